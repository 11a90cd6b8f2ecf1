package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/riskibarqy/league-import/internal/observability"
	"github.com/riskibarqy/league-import/internal/scheduler"
)

func newWorkerCmd() *cobra.Command {
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run scheduled imports until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if len(a.Config.Leagues) == 0 {
				return fmt.Errorf("IMPORT_LEAGUES is required for the worker")
			}

			stopProfiler, err := observability.InitPyroscope(a.Config, a.Logger)
			if err != nil {
				return fmt.Errorf("init profiler: %w", err)
			}
			defer func() { _ = stopProfiler() }()

			sched := scheduler.New(a.Importer, scheduler.Config{
				Leagues:     a.Config.Leagues,
				Spec:        a.Config.ImportSchedule,
				MaxAttempts: a.Config.ImportMaxAttempts,
				Backoff:     a.Config.ImportRetryBackoff,
				RunTimeout:  a.Config.RunTimeout,
			}, a.Logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if runOnStart {
				sched.RunAll(ctx)
			}
			if err := sched.Start(); err != nil {
				return err
			}

			<-ctx.Done()
			a.Logger.Info("worker shutting down")
			sched.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "import every league once before scheduling")
	return cmd
}
