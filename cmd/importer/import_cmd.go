package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riskibarqy/league-import/internal/config"
	"github.com/riskibarqy/league-import/internal/observability"
	"github.com/riskibarqy/league-import/internal/usecase"
)

func newImportCmd() *cobra.Command {
	var (
		league    string
		dryRun    bool
		noBackup  bool
		sourceDir string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Run one full import for a league",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(func(cfg *config.Config) {
				if sourceDir != "" {
					cfg.SourceDir = sourceDir
				}
			})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stopProfiler, err := observability.InitPyroscope(a.Config, a.Logger)
			if err != nil {
				return fmt.Errorf("init profiler: %w", err)
			}
			defer func() { _ = stopProfiler() }()

			res, err := a.Importer.Run(cmd.Context(), usecase.RunOptions{
				League:       league,
				DryRun:       dryRun,
				CreateBackup: !noBackup,
			})
			if err != nil {
				return err
			}

			a.Logger.Info("run finished",
				"run_id", res.RunID,
				"state", string(res.State),
				"dry_run", res.DryRun,
				"inserts", res.Summary.Inserts,
				"updates", res.Summary.Updates,
				"retires", res.Summary.Retires,
				"matches", res.Summary.Matches,
				"excluded", len(res.Excluded),
				"report", res.ReportPath,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&league, "league", "", "league name to import (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan and check only, mutate nothing")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "bypass the pre-run snapshot")
	cmd.Flags().StringVar(&sourceDir, "source-dir", "", "override the source document directory")
	_ = cmd.MarkFlagRequired("league")
	return cmd
}
