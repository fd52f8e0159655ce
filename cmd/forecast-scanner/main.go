// The forecast scanner projects the current month for every account on a
// cron schedule and queues a low-balance alert for each account whose
// projected lowest balance falls below the configured threshold.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"undertow/internal/amqp"
	"undertow/internal/config"
	"undertow/internal/forecast"
	"undertow/internal/log"
	"undertow/internal/services"
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

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentScanner)
	log.SetDefault(logger)

	store, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer store.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	builder := forecast.NewBuilder(store, logger.WithComponent(log.ComponentForecast))
	scanner := services.NewScanner(store, builder, client, cfg.AlertThresholdCents, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cron.New()
	_, err = c.AddFunc(cfg.ScanSchedule, func() {
		scanCtx, scanCancel := context.WithTimeout(ctx, 10*time.Minute)
		defer scanCancel()
		if _, err := scanner.ScanAll(scanCtx, time.Now().UTC()); err != nil {
			logger.Error("Scan failed", log.FieldError, err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("invalid scan schedule %q: %w", cfg.ScanSchedule, err)
	}

	c.Start()
	logger.Info("Forecast scanner started",
		"schedule", cfg.ScanSchedule,
		"threshold_cents", cfg.AlertThresholdCents)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Info("Shutting down", "signal", sig.String())

	cancel()
	<-c.Stop().Done()
	logger.Info("Shutdown complete")
	return nil
}
