package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/league-import/internal/usecase"
)

type stubImporter struct {
	mu      sync.Mutex
	calls   []string
	errs    []error            // popped in call order
	errsFor map[string][]error // per-league queues, take precedence
}

func (s *stubImporter) Run(_ context.Context, opts usecase.RunOptions) (usecase.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, opts.League)

	var err error
	switch {
	case len(s.errsFor[opts.League]) > 0:
		err = s.errsFor[opts.League][0]
		s.errsFor[opts.League] = s.errsFor[opts.League][1:]
	case len(s.errs) > 0:
		err = s.errs[0]
		s.errs = s.errs[1:]
	}
	if err != nil {
		return usecase.RunResult{State: usecase.RunStateRolledBack}, err
	}
	return usecase.RunResult{State: usecase.RunStateCommitted}, nil
}

func (s *stubImporter) leagues() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func newTestScheduler(imp *stubImporter, cfg Config) *Scheduler {
	s := New(imp, cfg, nil)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func TestRunLeague_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	imp := &stubImporter{errs: []error{fmt.Errorf("db hiccup"), nil}}
	s := newTestScheduler(imp, Config{
		Leagues:     []string{"Spring League"},
		MaxAttempts: 3,
		Backoff:     time.Second,
	})

	if err := s.RunLeague(context.Background(), "Spring League"); err != nil {
		t.Fatalf("RunLeague error: %v", err)
	}
	if len(imp.calls) != 2 {
		t.Fatalf("expected a retry after the transient failure, got %d call(s)", len(imp.calls))
	}
}

func TestRunLeague_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	boom := fmt.Errorf("db down")
	imp := &stubImporter{errs: []error{boom, boom, boom}}
	s := newTestScheduler(imp, Config{
		Leagues:     []string{"Spring League"},
		MaxAttempts: 3,
		Backoff:     time.Second,
	})

	err := s.RunLeague(context.Background(), "Spring League")
	if err == nil {
		t.Fatal("expected an error after exhausting attempts")
	}
	if len(imp.calls) != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", len(imp.calls))
	}
}

func TestRunLeague_LockConflictIsNotRetried(t *testing.T) {
	t.Parallel()

	imp := &stubImporter{errs: []error{fmt.Errorf("acquire: %w", usecase.ErrRunConflict)}}
	s := newTestScheduler(imp, Config{
		Leagues:     []string{"Spring League"},
		MaxAttempts: 3,
		Backoff:     time.Second,
	})

	if err := s.RunLeague(context.Background(), "Spring League"); err != nil {
		t.Fatalf("a held lock must not surface as an error: %v", err)
	}
	if len(imp.calls) != 1 {
		t.Fatalf("expected no retries on lock conflict, got %d call(s)", len(imp.calls))
	}
}

func TestRunLeague_InvariantViolationIsNotRetried(t *testing.T) {
	t.Parallel()

	imp := &stubImporter{errs: []error{fmt.Errorf("3 violation(s): %w", usecase.ErrInvariantViolation)}}
	s := newTestScheduler(imp, Config{
		Leagues:     []string{"Spring League"},
		MaxAttempts: 3,
		Backoff:     time.Second,
	})

	err := s.RunLeague(context.Background(), "Spring League")
	if !errors.Is(err, usecase.ErrInvariantViolation) {
		t.Fatalf("expected the violation to surface unretried, got %v", err)
	}
	if len(imp.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(imp.calls))
	}
}

func TestRunAll_FailingLeagueDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	imp := &stubImporter{errsFor: map[string][]error{
		"Spring League": {fmt.Errorf("boom")},
	}}
	s := newTestScheduler(imp, Config{
		Leagues:     []string{"Spring League", "Autumn League"},
		MaxAttempts: 1,
		Backoff:     time.Second,
	})

	s.RunAll(context.Background())

	ran := imp.leagues()
	if len(ran) != 2 {
		t.Fatalf("expected both leagues attempted, got %v", ran)
	}
	seen := map[string]bool{}
	for _, l := range ran {
		seen[l] = true
	}
	if !seen["Autumn League"] || !seen["Spring League"] {
		t.Fatalf("expected both leagues to run, got %v", ran)
	}
}
