package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ridehouse/api/internal/di"
	"github.com/ridehouse/api/internal/handlers"
	"github.com/ridehouse/api/internal/platform/config"
	"github.com/ridehouse/api/internal/platform/observability"
	"github.com/ridehouse/api/internal/platform/secrets"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	logger, err := observability.NewLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var resolver config.SecretResolver
	if projectID := strings.TrimSpace(os.Getenv("GOOGLE_CLOUD_PROJECT")); projectID != "" &&
		strings.HasPrefix(os.Getenv("AUTH_SIGNING_SECRET"), "secret://") {
		fetcher, err := secrets.NewFetcher(ctx, projectID)
		if err != nil {
			return err
		}
		defer func() { _ = fetcher.Close() }()
		resolver = fetcher
	}

	cfg, err := config.Load(ctx, resolver)
	if err != nil {
		return err
	}

	container, err := di.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("close container", zap.Error(err))
		}
	}()

	router, err := handlers.NewRouter(handlers.RouterConfig{
		Logger:   logger,
		Auth:     container.AuthMiddleware,
		Sales:    container.SalesHandler,
		Tracking: container.TrackingHandler,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
