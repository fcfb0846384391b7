package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"wealthwise/internal/cli"
	"wealthwise/internal/config"
	"wealthwise/internal/cycle"
	wlog "wealthwise/internal/log"
	"wealthwise/internal/services"
	gsheet "wealthwise/internal/sheets/google"
	"wealthwise/internal/storage"
	"wealthwise/internal/worker"
)

// --- Global Command Variables ---
var (
	userID     int64
	cycleParam string
	async      bool

	logger *wlog.Logger
	cfg    *config.Config

	rootCmd = &cobra.Command{
		Use:          "wealthwisectl",
		Short:        "Operate the wealthwise ledger",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = cli.SetupLogger(os.Getenv("LOG_LEVEL"))
			cfg = cli.LoadAndValidateConfig(logger)
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the SQL store",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}

	reconcileCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile one user's cycle (default: the current cycle)",
		Args:  cobra.NoArgs,
		RunE:  runReconcile,
	}

	reconcileAllCmd = &cobra.Command{
		Use:   "reconcile-all",
		Short: "Reconcile every user, in process or through the reconcile queue",
		Args:  cobra.NoArgs,
		RunE:  runReconcileAll,
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Append one user's cycle to the configured Google Sheet",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
)

func init() {
	reconcileCmd.Flags().Int64Var(&userID, "user", 0, "user id")
	reconcileCmd.Flags().StringVar(&cycleParam, "cycle", "", "cycle as YYYY-MM")
	_ = reconcileCmd.MarkFlagRequired("user")

	reconcileAllCmd.Flags().StringVar(&cycleParam, "cycle", "", "cycle as YYYY-MM")
	reconcileAllCmd.Flags().BoolVar(&async, "async", false, "publish one reconcile request per user instead of reconciling in process")

	exportCmd.Flags().Int64Var(&userID, "user", 0, "user id")
	exportCmd.Flags().StringVar(&cycleParam, "cycle", "", "cycle as YYYY-MM")
	_ = exportCmd.MarkFlagRequired("user")
	_ = exportCmd.MarkFlagRequired("cycle")

	rootCmd.AddCommand(migrateCmd, reconcileCmd, reconcileAllCmd, exportCmd)
}

// targetCycle parses --cycle. Empty means the zero key, which the
// reconciler resolves to the cycle current when it runs.
func targetCycle() (cycle.Key, error) {
	if cycleParam == "" {
		return cycle.Key{}, nil
	}
	return cycle.Parse(cycleParam)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	var (
		dialect storage.Dialect
		dsn     string
	)
	switch cfg.DataBackend {
	case config.BackendSQLite:
		dialect, dsn = storage.DialectSQLite, cfg.SQLiteDBPath
	case config.BackendPostgres:
		dialect, dsn = storage.DialectPostgres, cfg.DatabaseURL
	default:
		return fmt.Errorf("backend %q has no schema to migrate", cfg.DataBackend)
	}

	if err := storage.RunMigrations(dialect, dsn); err != nil {
		return fmt.Errorf("migrate %s: %w", dialect, err)
	}
	logger.Info("Migrations applied", "backend", cfg.DataBackend)
	return nil
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	target, err := targetCycle()
	if err != nil {
		return err
	}
	ctx := wlog.WithContext(cmd.Context(), logger)

	store := cli.OpenStore(ctx, logger, cfg)
	defer store.Cleanup()

	reconciler := services.NewReconciler(store.Store, services.WithLocation(cfg.Location()))
	res, err := reconciler.Reconcile(ctx, userID, target, time.Now())
	if err != nil {
		return fmt.Errorf("reconcile user %d: %w", userID, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "user %d cycle %s: %d inserted\n", res.UserID, res.Cycle, len(res.Inserted))
	for _, e := range res.Inserted {
		fmt.Fprintf(cmd.OutOrStdout(), "  + %s %-20s %s %s\n", e.Date, e.CategoryName, e.Kind, e.Amount)
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "  ! skipped %s: %s\n", s.Step, s.Reason)
	}
	return nil
}

func runReconcileAll(cmd *cobra.Command, _ []string) error {
	target, err := targetCycle()
	if err != nil {
		return err
	}
	ctx := wlog.WithContext(cmd.Context(), logger)

	store := cli.OpenStore(ctx, logger, cfg)
	defer store.Cleanup()

	if async {
		client, err := cli.ConnectAMQP(logger, cfg)
		if err != nil {
			return fmt.Errorf("connect AMQP: %w", err)
		}
		if client == nil {
			return errors.New("--async requires AMQP_URL")
		}
		defer client.Close()

		n, err := services.Enqueue(ctx, store.Store, client, target)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued %d reconcile requests\n", n)
		return nil
	}

	reconciler := services.NewReconciler(store.Store, services.WithLocation(cfg.Location()))
	report, err := services.NewSweeper(store.Store, reconciler, cfg.ReconcileConcurrency).Run(ctx, target, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "reconciled %d users: %d inserted, %d failed\n",
		report.Users, report.Inserted, len(report.Failed))
	if len(report.Failed) > 0 {
		return fmt.Errorf("users failed: %v", report.Failed)
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	target, err := cycle.Parse(cycleParam)
	if err != nil {
		return err
	}
	if !cfg.SheetsEnabled() {
		return errors.New("export requires GOOGLE_SPREADSHEET_ID")
	}
	ctx := wlog.WithContext(cmd.Context(), logger)

	store := cli.OpenStore(ctx, logger, cfg)
	defer store.Cleanup()

	sheetsClient, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsFile: cfg.GoogleCredentialsFile,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
	})
	if err != nil {
		return fmt.Errorf("google sheets: %w", err)
	}

	n, ref, err := worker.NewSyncWorker(store.Store, sheetsClient).ExportCycle(ctx, userID, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries of %s (%s)\n", n, target, ref)
	return nil
}
