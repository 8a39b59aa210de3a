// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Admitly HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables (and .env in development).
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire token issuer, mail transport and domain services.
//  7. Start HTTP server and the reset-record sweeper with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/taibuivan/admitly/data/migrations"
	"github.com/taibuivan/admitly/internal/api"
	"github.com/taibuivan/admitly/internal/platform/config"
	"github.com/taibuivan/admitly/internal/platform/constants"
	"github.com/taibuivan/admitly/internal/platform/mail"
	"github.com/taibuivan/admitly/internal/platform/migration"
	pgstore "github.com/taibuivan/admitly/internal/platform/postgres"
	redisstore "github.com/taibuivan/admitly/internal/platform/redis"
	"github.com/taibuivan/admitly/internal/platform/sec"
	"github.com/taibuivan/admitly/internal/users/account"
	"github.com/taibuivan/admitly/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	// A missing .env file is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("dotenv_load_failed", slog.Any("error", err))
	}

	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. A 30s deadline surfaces misconfiguration quickly.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Lives until shutdown; background workers stop when it is cancelled.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing_redis_client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, migration.Source(migrations.Files, cfg.MigrationPath), log), "run migrations")

	// ── 6. Token Issuer ───────────────────────────────────────────────────
	issuer, err := sec.NewTokenIssuer(cfg.TokenConfig(constants.AuthIssuer))
	must(log, err, "initialize token issuer")

	// ── 7. Mail Transport ─────────────────────────────────────────────────
	var transport mail.Mailer = mail.NewLogMailer(log)
	if cfg.AMQPURL != "" {
		amqpMailer := mail.NewAMQPMailer(cfg.AMQPURL, cfg.MailQueue, log)
		defer func() {
			if cerr := amqpMailer.Close(); cerr != nil {
				log.Error("amqp_close_failed", slog.Any("error", cerr))
			}
		}()
		transport = amqpMailer
		log.Info("mail_transport_selected", slog.String("transport", "amqp"), slog.String("queue", cfg.MailQueue))
	} else {
		log.Warn("mail_transport_selected", slog.String("transport", "log"))
	}
	mailer := mail.NewAsync(transport, constants.ResetMailTimeout)

	// ── 8. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
		CheckCache: func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		},
	}, log)

	// ── 9. Domain Wiring ──────────────────────────────────────────────────
	userRepository := auth.NewUserRepository(pool)
	directoryRepository := auth.NewDirectoryRepository(pool)
	resetRepository := auth.NewResetRecordRepository(pool)

	authService := auth.NewService(userRepository, directoryRepository, issuer)

	resetOptions := []auth.ResetOption{
		auth.WithThrottle(auth.NewResetThrottle(rdb, cfg.ResetThrottleLimit, cfg.ResetThrottleWindow)),
	}
	if cfg.ResetRevokesSessions {
		resetOptions = append(resetOptions, auth.WithSessionRevoker(authService))
	}
	resetService := auth.NewResetService(userRepository, resetRepository, mailer, auth.ResetConfig{
		FrontendBaseURL: cfg.FrontendBaseURL,
		TokenTTL:        constants.ResetTokenTTL,
	}, resetOptions...)

	accountService := account.NewService(account.NewAccountRepository(pool), directoryRepository, authService, log)

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, resetService, issuer, cfg.InsecureCookies()),
		Account:   account.NewHandler(accountService),
	}

	server := api.NewServer(appCtx, cfg, log, issuer, handlers)

	go sweepResetRecords(appCtx, resetService, log)

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("server_shutting_down", slog.Duration("timeout", shutdownTimeout))

	appCancel()
	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown_failed", slog.Any("error", err))
	}

	// Let queued reset emails finish before the transports close.
	mailer.Wait()

	log.Info("server_stopped")
}

// sweepResetRecords periodically deletes expired reset grants until ctx ends.
func sweepResetRecords(ctx context.Context, resetService *auth.ResetService, log *slog.Logger) {
	ticker := time.NewTicker(constants.ResetPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := resetService.PurgeExpired(ctx, constants.ResetTokenTTL)
			if err != nil {
				log.Error("reset_purge_failed", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				log.Info("reset_records_purged", slog.Int64("removed", removed))
			}
		}
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned and
// handled explicitly.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
