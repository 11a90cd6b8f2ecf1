package main

import (
	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	var league string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Merge duplicates and repair dangling practice times for a league",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			findings, err := a.Reconciler.Run(cmd.Context(), league)
			if err != nil {
				return err
			}

			a.Logger.Info("reconciliation finished",
				"league", league, "findings", len(findings))
			return nil
		},
	}

	cmd.Flags().StringVar(&league, "league", "", "league name to reconcile (required)")
	_ = cmd.MarkFlagRequired("league")
	return cmd
}
