// Package cmd defines the CLI commands for the release-calendar executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/release-calendar/internal/app"
	"github.com/JakeFAU/release-calendar/internal/config"
	"github.com/JakeFAU/release-calendar/internal/export"
	"github.com/JakeFAU/release-calendar/internal/ingest"
	"github.com/JakeFAU/release-calendar/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the service surface the commands use. Tests may substitute it.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Migrate(ctx context.Context) error
	Orchestrator(batchSize int) *ingest.Orchestrator
	Exporter(prefix string) *export.Exporter
	Serve(ctx context.Context) error
}

// loadConfig and newApp are variables so tests can replace them.
var (
	loadConfig = config.Load

	newApp = func(ctx context.Context, cfg config.Config) (App, error) {
		logger, err := logging.New(cfg.Logging.Development)
		if err != nil {
			return nil, err
		}
		a, err := app.Build(ctx, cfg, logger)
		if err != nil {
			_ = logger.Sync()
			return nil, err
		}
		return a, nil
	}
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release-calendar",
		Short: "Movie release-date ingestion, query API and calendar export.",
		Long: `release-calendar pulls movies and their per-country release dates from
TMDB into a catalog database, serves them as JSON and iCalendar feeds, and
exports per-country calendars to blob storage.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
				_ = appInstance.Logger().Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	cmd.AddCommand(newIngestCmd(), newServeCmd(), newExportCmd(), newMigrateCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command, canceling its context on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
