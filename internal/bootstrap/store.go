// Package bootstrap assembles the infrastructure shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamhome/auth-gateway/internal/api/handler"
	"github.com/dreamhome/auth-gateway/internal/api/middleware"
	"github.com/dreamhome/auth-gateway/internal/core/ports"
	mongodb "github.com/dreamhome/auth-gateway/internal/infrastructure/db/mongo"
	"github.com/dreamhome/auth-gateway/internal/infrastructure/db/postgres"
	redisdb "github.com/dreamhome/auth-gateway/internal/infrastructure/db/redis"
	"github.com/dreamhome/auth-gateway/internal/infrastructure/ratelimit"
	"github.com/dreamhome/auth-gateway/internal/pkg/config"
)

const connectTimeout = 10 * time.Second

// Store bundles the persistence collaborators selected by STORE_DRIVER.
type Store struct {
	Credentials ports.CredentialStore
	Audit       ports.AuditRepository
	Readiness   map[string]handler.PingFunc

	close func(ctx context.Context) error
}

// Close releases the underlying connections.
func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// OpenStore connects the configured driver and prepares its schema.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			AppName:  "dreamhome-auth",
		})
		if err != nil {
			return nil, err
		}
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongo")
		return &Store{
			Credentials: mongodb.NewCredentialStore(db),
			Audit:       mongodb.NewAuditRepository(db),
			Readiness:   map[string]handler.PingFunc{"mongo": mongodb.Pinger(db)},
			close:       client.Disconnect,
		}, nil

	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Info().Msg("connected to postgres")
		return &Store{
			Credentials: postgres.NewCredentialStore(db.Pool),
			Audit:       postgres.NewAuditRepository(db.Pool),
			Readiness:   map[string]handler.PingFunc{"postgres": db.Ping},
			close: func(context.Context) error {
				db.Close()
				return nil
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// Limiter is the login throttle plus an optional readiness probe and closer.
type Limiter struct {
	middleware.Limiter
	Ping  handler.PingFunc
	close func() error
}

func (l *Limiter) Close() error {
	if l.close == nil {
		return nil
	}
	return l.close()
}

// OpenLimiter returns the Redis limiter when REDIS_ADDR is set and the
// in-process limiter otherwise.
func OpenLimiter(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Limiter, error) {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("REDIS_ADDR not set, using in-memory rate limiter")
		return &Limiter{Limiter: ratelimit.NewMemory(cfg.RateLimit.Limit, cfg.RateLimit.Window)}, nil
	}

	client, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	return &Limiter{
		Limiter: redisdb.NewRateLimiter(client, cfg.RateLimit.Limit, cfg.RateLimit.Window),
		Ping:    redisdb.Pinger(client),
		close:   client.Close,
	}, nil
}
