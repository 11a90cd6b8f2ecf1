package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/riskibarqy/league-import/internal/app"
	"github.com/riskibarqy/league-import/internal/config"
	"github.com/riskibarqy/league-import/internal/platform/logging"
)

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "importer",
		Short:         "Atomic league data import with identity-preserving reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("load env file %s: %w", envFile, err)
				}
				return nil
			}
			// A missing default .env is fine.
			_ = godotenv.Load()
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env", "", "env file loaded before configuration")

	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newReconcileCmd())
	cmd.AddCommand(newRestoreCmd())
	cmd.AddCommand(newWorkerCmd())
	return cmd
}

// execute exits non-zero on any failure; a zero exit means the requested
// operation fully succeeded.
func execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildApp(mutate func(*config.Config)) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if mutate != nil {
		mutate(&cfg)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)

	return app.New(cfg, logger)
}
