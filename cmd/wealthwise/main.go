package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"wealthwise/internal/cli"
	apphttp "wealthwise/internal/http"
	wlog "wealthwise/internal/log"
	"wealthwise/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	loc := cfg.Location()

	store := cli.OpenStore(context.Background(), logger, cfg)
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close ledger store", wlog.FieldError, err)
		}
	}()
	if !store.Type.MultiInstance() {
		logger.Warn("Ledger store supports a single server instance", "backend", store.Type)
	}

	// Publishing is optional; the API works without a broker
	amqpClient, err := cli.ConnectAMQP(logger, cfg)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without events", wlog.FieldError, err)
		amqpClient = nil
	}
	var (
		entryPublisher services.EntryPublisher
		reconcilerOpts = []services.ReconcilerOption{services.WithLocation(loc)}
	)
	if amqpClient != nil {
		defer amqpClient.Close()
		entryPublisher = amqpClient
		reconcilerOpts = append(reconcilerOpts, services.WithPublisher(amqpClient))
	}

	analytics, caches := services.NewAnalyticsService(store.Store, loc, cfg.CacheSize, cfg.CacheTTL)
	svc := apphttp.Services{
		Profiles:   services.NewProfileService(store.Store, loc),
		Categories: services.NewCategoryService(store.Store),
		Entries:    services.NewEntryService(store.Store, entryPublisher, analytics.Invalidate),
		Analytics:  analytics,
		Reconciler: services.NewReconciler(store.Store, reconcilerOpts...),
		Store:      store.Store,
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger,
		Location:           loc,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		JWTSecret:          cfg.JWTSecret,
		Caches:             caches,
	})
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set - /api/users/{id} routes are unauthenticated")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", wlog.FieldError, err)
		}
	})

	logger.Info("Starting wealthwise server",
		wlog.FieldOperation, wlog.OpStartup,
		"port", cfg.Port,
		"backend", store.Type,
		"timezone", loc.String(),
		"amqp", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", wlog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
