// @title                      DreamHome Auth Gateway API
// @version                    1.0
// @description                Stateless authentication and access control for the DreamHome API.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamhome/auth-gateway/internal/api"
	"github.com/dreamhome/auth-gateway/internal/bootstrap"
	"github.com/dreamhome/auth-gateway/internal/core/policy"
	"github.com/dreamhome/auth-gateway/internal/core/service"
	"github.com/dreamhome/auth-gateway/internal/infrastructure/queue"
	"github.com/dreamhome/auth-gateway/internal/infrastructure/security"
	"github.com/dreamhome/auth-gateway/internal/pkg/config"
	"github.com/dreamhome/auth-gateway/pkg/logger"
)

var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "dreamhome-auth",
		Env:     cfg.Env,
		Version: version,
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("auth gateway stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("closing store")
		}
	}()

	limiter, err := bootstrap.OpenLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer limiter.Close()
	if limiter.Ping != nil {
		store.Readiness["redis"] = limiter.Ping
	}

	pol := policy.Default()
	if cfg.PolicyFile != "" {
		if pol, err = policy.LoadFile(cfg.PolicyFile); err != nil {
			return err
		}
	}
	log.Info().Int("rules", pol.Len()).Str("file", cfg.PolicyFile).Msg("access policy loaded")

	codec, err := security.NewJWTCodec(security.JWTCodecConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.TTL,
		Leeway: cfg.JWT.ClockSkew,
	})
	if err != nil {
		return err
	}
	hasher := security.NewBcryptHasher(cfg.Bcrypt.Cost)

	// Audit workers outlive the HTTP server so in-flight events are drained.
	dispatcher := queue.NewDispatcher(cfg.AuditWorkers, store.Audit, logger.Component(log, "audit"))
	dispatcher.Start(context.Background())

	authService, err := service.NewAuthService(store.Credentials, hasher, codec, dispatcher, logger.Component(log, "auth"), cfg.JWT.TTL)
	if err != nil {
		return err
	}

	e := api.NewRouter(api.Dependencies{
		AuthService:    authService,
		Codec:          codec,
		Policy:         pol,
		Limiter:        limiter,
		Readiness:      store.Readiness,
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxyNets(),
		Version:        version,
		Log:            logger.Component(log, "http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("auth gateway listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("audit queue not fully drained")
	}
	log.Info().Msg("auth gateway stopped")
	return nil
}
