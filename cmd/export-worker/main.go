package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expenseform/internal/amqp"
	"expenseform/internal/config"
	"expenseform/internal/export"
	applog "expenseform/internal/log"
	"expenseform/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting export-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	// The worker reads records straight from the shared database file.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	worker := export.NewWorker(repo, export.NewWriter(cfg.ExportCSVPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		handler := func(event *amqp.RecordEvent) error {
			return worker.HandleRecordEvent(ctx, event)
		}
		if err := amqpClient.ConsumeRecordEvents(ctx, handler); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Record event consumption failed", "error", err)
			}
			cancel()
		}
	}()

	logger.Info("Consuming record events",
		"queue", cfg.AMQPQueue,
		"export_path", cfg.ExportCSVPath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	// Give the in-flight delivery a moment to ack before closing.
	time.Sleep(500 * time.Millisecond)
	logger.Info("Worker stopped gracefully")
}
