// Package scheduler drives periodic imports. Retries live here, at the
// invocation layer; the import itself is all-or-nothing per attempt.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/league-import/internal/platform/logging"
	"github.com/riskibarqy/league-import/internal/usecase"
)

// Importer is the slice of ImportService the scheduler drives.
type Importer interface {
	Run(ctx context.Context, opts usecase.RunOptions) (usecase.RunResult, error)
}

type Config struct {
	Leagues     []string
	Spec        string
	MaxAttempts int
	Backoff     time.Duration
	RunTimeout  time.Duration
}

type Scheduler struct {
	importer Importer
	cfg      Config
	cron     *cron.Cron
	logger   *logging.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(importer Importer, cfg Config, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	return &Scheduler{
		importer: importer,
		cfg:      cfg,
		cron:     cron.New(),
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Start registers the cron entry and begins ticking.
func (s *Scheduler) Start() error {
	if len(s.cfg.Leagues) == 0 {
		return fmt.Errorf("scheduler needs at least one league")
	}
	if _, err := s.cron.AddFunc(s.cfg.Spec, func() {
		s.RunAll(context.Background())
	}); err != nil {
		return fmt.Errorf("register cron spec %q: %w", s.cfg.Spec, err)
	}
	s.cron.Start()
	s.logger.Info("import scheduler started",
		"spec", s.cfg.Spec, "leagues", len(s.cfg.Leagues))
	return nil
}

// Stop halts the cron and returns once any in-flight run finished.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunAll imports every configured league once. Leagues are independent, so
// they run in parallel; a failing league does not block the others.
func (s *Scheduler) RunAll(ctx context.Context) {
	p := pool.New()
	for _, league := range s.cfg.Leagues {
		p.Go(func() {
			if err := s.RunLeague(ctx, league); err != nil {
				s.logger.Error("scheduled import failed", "league", league, "error", err)
			}
		})
	}
	p.Wait()
}

// RunLeague runs one league with bounded retries. Lock conflicts are not
// retried: another run is already doing the work. Invariant violations are
// not retried either, the dataset will not fix itself.
func (s *Scheduler) RunLeague(ctx context.Context, league string) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		err := s.runOnce(ctx, league)
		if err == nil {
			return nil
		}
		if errors.Is(err, usecase.ErrRunConflict) {
			s.logger.Warn("import skipped, league lock is held", "league", league)
			return nil
		}
		if errors.Is(err, usecase.ErrInvariantViolation) {
			return err
		}
		lastErr = err
		s.logger.Warn("import attempt failed",
			"league", league, "attempt", attempt, "max_attempts", s.cfg.MaxAttempts, "error", err)

		if attempt < s.cfg.MaxAttempts {
			if err := s.sleep(ctx, s.cfg.Backoff*time.Duration(attempt)); err != nil {
				return fmt.Errorf("retry wait: %w", err)
			}
		}
	}
	return fmt.Errorf("league %s failed after %d attempt(s): %w", league, s.cfg.MaxAttempts, lastErr)
}

func (s *Scheduler) runOnce(ctx context.Context, league string) error {
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}
	_, err := s.importer.Run(ctx, usecase.RunOptions{
		League:       league,
		CreateBackup: true,
	})
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
