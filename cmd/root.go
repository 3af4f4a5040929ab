// Package cmd defines and implements the archive-ingest CLI commands.
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

	"github.com/JakeFAU/archive-ingest/internal/api"
	"github.com/JakeFAU/archive-ingest/internal/app"
	"github.com/JakeFAU/archive-ingest/internal/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what subcommands need from the application container. Tests
// inject their own.
type App interface {
	Close()
	GetConfig() config.Config
	GetLogger() *zap.Logger
	GetRunID() string
	StartStatusServer(ctx context.Context, status api.StatusSource, catalog api.Catalog)
}

// newApp is the application factory. It's a variable so tests can replace
// it.
var newApp = func(configPath, command string) (App, error) {
	return app.NewApp(app.Options{ConfigPath: configPath, Command: command})
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "archive-ingest",
		Short: "Harvest, ingest, and transcribe archival material into a searchable catalog.",
		Long: `archive-ingest builds a content-addressed catalog of archival items.

  harvest     fetch seed detail pages politely and write normalized records
  ingest      merge a local tree and harvested batches into the SQLite catalog
  transcribe  run speech recognition over audio and video items, resumably`,
		SilenceErrors: true,

		// Runs after flag parsing and before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Flag mistakes are reported with usage, before any setup.
			if err := cmd.ValidateRequiredFlags(); err != nil {
				return err
			}
			if err := cmd.ValidateFlagGroups(); err != nil {
				return err
			}
			appInstance, err := newApp(cfgFile, cmd.Name())
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			// Failures past this point are not usage errors.
			cmd.SilenceUsage = true
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML, or JSON)")

	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newTranscribeCmd())
	return cmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
