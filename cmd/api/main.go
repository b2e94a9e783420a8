package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storefront-core/internal/config"
	"storefront-core/internal/db"
	"storefront-core/internal/gateway"
	"storefront-core/internal/httpserver"
	"storefront-core/internal/logging"
	"storefront-core/internal/migrate"
	sessionrepo "storefront-core/internal/repository/session"
	"storefront-core/internal/service/checkout"
	"storefront-core/internal/service/storefront"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(logging.Options{Service: "storefront-api", Env: cfg.AppEnv, Level: cfg.LogLevel})
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	var (
		pool *pgxpool.Pool
		repo sessionrepo.Repository
		deps httpserver.Deps
	)
	switch cfg.SessionBackend {
	case "memory":
		logger.Warn("sessions are kept in memory and lost on restart")
		repo = sessionrepo.NewMemory()
	default:
		pool, err = db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			logger.Fatal("connect to db", zap.Error(err))
		}
		defer pool.Close()
		if err := migrate.Apply(ctx, pool); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
		repo = sessionrepo.NewPostgres(pool)
		deps.DB = pool
	}

	backend, err := gateway.New(gateway.Config{
		BaseURL:        cfg.Commerce.BaseURL,
		PublishableKey: cfg.Commerce.PublishableKey,
		Timeout:        cfg.Commerce.Timeout,
		Logger:         logger.Named("gateway"),
	})
	if err != nil {
		logger.Fatal("init commerce gateway", zap.Error(err))
	}

	payment := checkout.Config{
		SystemProvider: cfg.Payment.SystemProvider,
		OnlineProvider: cfg.Payment.OnlineProvider,
		OnlineKey:      cfg.Payment.OnlineKey,
		PollAttempts:   cfg.Payment.PollAttempts,
		PollDelay:      cfg.Payment.PollDelay,
	}
	sessions, err := httpserver.NewSessions(cfg.SessionCacheSize, func(id string) *storefront.Storefront {
		return storefront.New(storefront.Deps{
			Backend:   backend,
			Sessions:  repo,
			SessionID: id,
			RegionID:  cfg.Commerce.RegionID,
			Payment:   payment,
			Logger:    logger.Named("storefront"),
		})
	})
	if err != nil {
		logger.Fatal("init sessions", zap.Error(err))
	}
	deps.Sessions = sessions
	deps.CORSOrigins = cfg.CORSOrigins

	srv, err := httpserver.New(cfg.HTTPAddr, logger.Named("http"), deps)
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr), zap.String("sessions", cfg.SessionBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}
