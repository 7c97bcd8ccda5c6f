// Command terrasync is the operator CLI for running and inspecting sync
// operations and GIS exports: a thin cobra front end over the same engines
// the scheduler drives automatically.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appconfig "github.com/countygov/terrasync/internal/config"
	"github.com/countygov/terrasync/internal/concurrency"
	"github.com/countygov/terrasync/internal/conflict"
	"github.com/countygov/terrasync/internal/countyconfig"
	"github.com/countygov/terrasync/internal/exportengine"
	"github.com/countygov/terrasync/internal/scheduler"
	"github.com/countygov/terrasync/internal/store"
	"github.com/countygov/terrasync/internal/syncengine"
	"github.com/countygov/terrasync/internal/telemetry"
)

var (
	storeBackend string
	storeDSN     string
	countyDir    string
	jsonOutput   bool
)

// app bundles the engines and store a CLI invocation operates against. Built
// once in rootCmd's PersistentPreRunE so every subcommand shares one wiring.
type app struct {
	store   store.Store
	sync    *syncengine.Engine
	export  *exportengine.Engine
	sched   *scheduler.Scheduler
	cfg     *appconfig.Config
}

var theApp *app

func buildApp(ctx context.Context) (*app, error) {
	cfg := appconfig.Load()

	backend := storeBackend
	if backend == "" {
		backend = "memory"
	}
	st, err := store.New(ctx, backend, storeDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	dir := countyDir
	if dir == "" {
		dir = "./config/counties"
	}
	counties := countyconfig.New(countyconfig.FileLoader{Dir: dir})

	logger := slog.Default()

	syncEngine := syncengine.New(syncengine.Config{
		Store:         st,
		MaxConcurrent: cfg.MaxConcurrentSyncs,
		Resolver:      conflict.New(),
		SyncTimeout:   time.Duration(cfg.SyncTimeoutSeconds) * time.Second,
		Logger:        logger,
	})

	exportEngine := exportengine.New(exportengine.Config{
		Store:           st,
		Gate:            concurrency.New(cfg.MaxConcurrentExports),
		Cancellations:   concurrency.NewCancellationRegistry(),
		Counties:        counties,
		ExportTimeout:   time.Duration(cfg.ExportTimeoutMinutes) * time.Minute,
		ExportsDir:      cfg.ExportsDirectory,
		MaxExportSizeMB: cfg.MaxExportSizeMB,
		Logger:          logger,
	})

	sched := scheduler.New(scheduler.Config{
		Store:           st,
		SyncEngine:      syncEngine,
		TickInterval:    time.Duration(cfg.SchedulerIntervalSecs) * time.Second,
		CleanupInterval: time.Duration(cfg.CleanupIntervalHours) * time.Hour,
		OperationMaxAge: time.Duration(cfg.OperationRetentionDays) * 24 * time.Hour,
		RecordMaxAge:    time.Duration(cfg.RecordRetentionDays) * 24 * time.Hour,
		Logger:          logger,
	})

	if err := syncEngine.RecoverOnStartup(ctx); err != nil {
		logger.Warn("sync engine recovery sweep failed", "error", err)
	}
	if err := exportEngine.RecoverOnStartup(ctx); err != nil {
		logger.Warn("export engine recovery sweep failed", "error", err)
	}

	return &app{store: st, sync: syncEngine, export: exportEngine, sched: sched, cfg: cfg}, nil
}

var rootCmd = &cobra.Command{
	Use:   "terrasync",
	Short: "Run and inspect county sync operations and GIS exports",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		theApp = a
		return nil
	},
}

func init() {
	_, span := telemetry.StartSpan(context.Background(), "cli.init")
	telemetry.EndSpan(span, nil)

	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "memory", "Job store backend (memory|mysql)")
	rootCmd.PersistentFlags().StringVar(&storeDSN, "dsn", "", "Job store DSN (required for --store=mysql)")
	rootCmd.PersistentFlags().StringVar(&countyDir, "county-dir", "", "Directory of per-county YAML configuration files")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(syncCmd, exportCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
