package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRestoreCmd() *cobra.Command {
	var (
		league      string
		snapshotDir string
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a league from a backup snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			dir := snapshotDir
			if dir == "" {
				latest, err := a.Backups.Latest(league)
				if err != nil {
					return fmt.Errorf("resolve latest snapshot for %s: %w", league, err)
				}
				dir = latest
			}

			snap, err := a.Backups.Load(dir)
			if err != nil {
				return fmt.Errorf("load snapshot %s: %w", dir, err)
			}
			if err := a.Store.Restore(cmd.Context(), snap); err != nil {
				return err
			}

			a.Logger.Info("restore finished", "league", league, "snapshot", dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&league, "league", "", "league name to restore (required)")
	cmd.Flags().StringVar(&snapshotDir, "snapshot", "", "snapshot directory (defaults to the league's newest)")
	_ = cmd.MarkFlagRequired("league")
	return cmd
}
