package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"undertow/internal/auth"
	"undertow/internal/config"
	"undertow/internal/export"
	"undertow/internal/forecast"
	"undertow/internal/http"
	"undertow/internal/log"
	"undertow/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	store, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer store.Close()

	authSvc := auth.NewService(cfg.JWTSecret, cfg.TokenTTL)
	builder := forecast.NewBuilder(store, logger.WithComponent(log.ComponentForecast))

	var exporter http.Exporter
	if cfg.ExportConfigured() {
		client, err := export.NewFromEnv(context.Background())
		if err != nil {
			logger.Warn("Sheets export disabled", log.FieldError, err.Error())
		} else {
			exporter = client
		}
	}

	srv := http.NewServer(":"+cfg.Port, store, builder,
		authSvc, exporter, cfg.ProjectionCacheSize, cfg.ProjectionCacheTTL,
		logger.WithComponent(log.ComponentHTTP))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}
