package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"wealthwise/internal/cli"
	wlog "wealthwise/internal/log"
	"wealthwise/internal/services"
	gsheet "wealthwise/internal/sheets/google"
	"wealthwise/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(wlog.ComponentWorker)
	logger.Info("Starting ledger-worker", wlog.FieldOperation, wlog.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("ledger-worker requires AMQP_URL")
		os.Exit(1)
	}

	store := cli.OpenStore(context.Background(), logger, cfg)
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close ledger store", wlog.FieldError, err)
		}
	}()

	amqpClient, err := cli.ConnectAMQP(logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", wlog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	reconciler := services.NewReconciler(store.Store,
		services.WithLocation(cfg.Location()),
		services.WithPublisher(amqpClient))
	reconcileWorker := worker.NewReconcileWorker(reconciler)

	// Google Sheets mirroring is optional
	var syncWorker *worker.SyncWorker
	if cfg.SheetsEnabled() {
		sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", wlog.FieldError, err)
			os.Exit(1)
		}
		syncWorker = worker.NewSyncWorker(store.Store, sheetsClient)
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - entry queue not consumed")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	ctx = wlog.WithContext(ctx, logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Consuming reconcile requests", wlog.FieldQueue, cfg.AMQPReconcileQueue)
		return amqpClient.ConsumeReconcileRequests(gCtx, reconcileWorker.HandleReconcileRequest)
	})
	if syncWorker != nil {
		g.Go(func() error {
			logger.Info("Consuming entry events", wlog.FieldQueue, cfg.AMQPEntryQueue)
			return amqpClient.ConsumeEntryEvents(gCtx, syncWorker.Handlers())
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", wlog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("ledger-worker stopped")
}
