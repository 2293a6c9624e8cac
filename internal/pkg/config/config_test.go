package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestProcess_Defaults(t *testing.T) {
	cfg, err := Process(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": secret,
	}))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if cfg.Port != "8080" || cfg.StoreDriver != DriverMongo {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.JWT.TTL != 8*time.Hour || cfg.JWT.ClockSkew != 30*time.Second || cfg.JWT.Issuer != "dreamhome" {
		t.Fatalf("unexpected jwt defaults: %+v", cfg.JWT)
	}
	if cfg.Bcrypt.Cost != 10 {
		t.Fatalf("unexpected bcrypt cost %d", cfg.Bcrypt.Cost)
	}
	if cfg.RateLimit.Limit != 10 || cfg.RateLimit.Window != time.Minute {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("redis must be opt-in, got %q", cfg.Redis.Addr)
	}
	if len(cfg.TrustedProxyNets()) != 0 {
		t.Fatalf("no proxy may be trusted by default, got %v", cfg.TrustedProxies)
	}
}

func TestTrustedProxyNets(t *testing.T) {
	cfg, err := Process(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":      secret,
		"TRUSTED_PROXIES": "10.0.0.0/8,192.168.1.0/24",
	}))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	nets := cfg.TrustedProxyNets()
	if len(nets) != 2 || nets[0].String() != "10.0.0.0/8" || nets[1].String() != "192.168.1.0/24" {
		t.Fatalf("unexpected proxy ranges %v", nets)
	}
}

func TestProcess_Overrides(t *testing.T) {
	cfg, err := Process(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":           secret,
		"JWT_TTL":              "2h",
		"STORE_DRIVER":         "postgres",
		"POSTGRES_DSN":         "postgres://localhost/dreamhome",
		"CORS_ALLOWED_ORIGINS": "https://a.example,https://b.example",
	}))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if cfg.JWT.TTL != 2*time.Hour || cfg.StoreDriver != DriverPostgres {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("expected two origins, got %v", cfg.CORSOrigins)
	}
}

func TestProcess_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"missing secret":  {},
		"short secret":    {"JWT_SECRET": "short"},
		"bad driver":      {"JWT_SECRET": secret, "STORE_DRIVER": "sqlite"},
		"postgres no dsn": {"JWT_SECRET": secret, "STORE_DRIVER": "postgres"},
		"zero ttl":        {"JWT_SECRET": secret, "JWT_TTL": "0s"},
		"zero limit":      {"JWT_SECRET": secret, "AUTH_RATE_LIMIT": "0"},
		"bad proxy cidr":  {"JWT_SECRET": secret, "TRUSTED_PROXIES": "10.0.0.1"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Process(context.Background(), envconfig.MapLookuper(env)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	c := &Config{StoreDriver: "nope"}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"JWT_SECRET", "JWT_TTL", "STORE_DRIVER", "AUTH_RATE_LIMIT"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}
