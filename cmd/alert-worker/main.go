// The alert worker consumes queued low-balance alerts and mails each one to
// the account's address.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"undertow/internal/amqp"
	"undertow/internal/config"
	"undertow/internal/log"
	"undertow/internal/worker"
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

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	log.SetDefault(logger)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	var mailer worker.Mailer
	if cfg.MailerConfigured() {
		mailer = worker.NewSMTPMailer(cfg)
	} else {
		logger.Warn("SMTP not configured, alerts will be logged and dropped")
	}
	alertWorker := worker.NewAlertWorker(mailer, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		sig := <-stop
		logger.Info("Shutting down", "signal", sig.String())
		cancel()
	}()

	logger.Info("Alert worker started", "queue", cfg.AMQPQueue)
	if err := client.Consume(ctx, alertWorker.HandleAlert); err != nil && ctx.Err() == nil {
		return fmt.Errorf("consume: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}
