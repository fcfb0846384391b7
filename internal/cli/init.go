// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/wealthwise, cmd/ledger-worker, and cmd/wealthwisectl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"wealthwise/internal/amqp"
	"wealthwise/internal/backend"
	"wealthwise/internal/config"
	wlog "wealthwise/internal/log"
)

// SetupLogger initializes structured logging at the given level.
// Returns the configured logger and sets it as the default logger.
func SetupLogger(level string) *wlog.Logger {
	logger := wlog.New(wlog.Config{Level: wlog.ParseLevel(level)})
	wlog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *wlog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", wlog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore opens and migrates the configured ledger store.
// Returns the backend or exits the process on failure.
func OpenStore(ctx context.Context, logger *wlog.Logger, cfg *config.Config) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", wlog.FieldError, err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger store",
			wlog.FieldError, err,
			"backend", backendCfg.Type)
		os.Exit(1)
	}
	return result
}

// ConnectAMQP dials the broker when AMQP_URL is set. A nil client means
// messaging is disabled.
func ConnectAMQP(logger *wlog.Logger, cfg *config.Config) (*amqp.Client, error) {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil, nil
	}
	client, err := amqp.NewClient(amqp.Config{
		URL:            cfg.AMQPURL,
		Exchange:       cfg.AMQPExchange,
		EntryQueue:     cfg.AMQPEntryQueue,
		ReconcileQueue: cfg.AMQPReconcileQueue,
	})
	if err != nil {
		return nil, err
	}
	logger.WithComponent(wlog.ComponentAMQP).Info("AMQP client initialized",
		"exchange", cfg.AMQPExchange,
		"entry_queue", cfg.AMQPEntryQueue,
		"reconcile_queue", cfg.AMQPReconcileQueue)
	return client, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *wlog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received",
			wlog.FieldOperation, wlog.OpShutdown,
			"signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
