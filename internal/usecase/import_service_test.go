package usecase_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/league-import/external/feed"
	"github.com/riskibarqy/league-import/internal/backup"
	"github.com/riskibarqy/league-import/internal/check"
	"github.com/riskibarqy/league-import/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/league-import/internal/plan"
	"github.com/riskibarqy/league-import/internal/report"
	"github.com/riskibarqy/league-import/internal/usecase"
)

type stubLoader struct {
	ds  feed.Dataset
	err error
}

func (s *stubLoader) Load(context.Context, string) (feed.Dataset, error) {
	return s.ds, s.err
}

func fixtureDataset() feed.Dataset {
	return feed.Dataset{
		League: feed.LeagueDocument{Name: "Spring League", Season: "2026"},
		Clubs: []feed.ClubRecord{
			{Name: "Example CC"},
			{Name: "Riverside SC"},
		},
		Series: []feed.SeriesRecord{
			{Name: "Division 1", League: "Spring League", Tier: 1},
		},
		Teams: []feed.TeamRecord{
			{Club: "Example CC", Series: "Division 1", Name: "Example CC"},
			{Club: "Riverside SC", Series: "Division 1", Name: "Riverside SC"},
		},
		Players: []feed.PlayerRecord{
			{ExternalID: "p-1", Name: "Ada", Club: "Example CC", Series: "Division 1"},
			{ExternalID: "p-2", Name: "Grace", Club: "Riverside SC", Series: "Division 1"},
		},
		Matches: []feed.MatchRecord{
			{
				SourceID: "m-1", Series: "Division 1",
				HomeClub: "Example CC", AwayClub: "Riverside SC",
				HomePlayer1Ext: "p-1", AwayPlayer1Ext: "p-2",
				HomeScore: 6, AwayScore: 2,
				PlayedAt: time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC),
			},
		},
		Raw: map[string][]byte{"clubs.json": []byte(`[]`)},
	}
}

func newService(t *testing.T, store *memory.Store, ds feed.Dataset) *usecase.ImportService {
	t.Helper()
	return usecase.NewImportService(
		store,
		&stubLoader{ds: ds},
		plan.NewPlanner(nil),
		check.NewChecker(),
		backup.NewManager(t.TempDir(), 0, nil),
		report.NewEmitter(t.TempDir(), 0, nil),
		nil,
	)
}

func TestRun_FirstImportCommitsEverything(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	svc := newService(t, store, fixtureDataset())

	result, err := svc.Run(context.Background(), usecase.RunOptions{
		League: "Spring League", CreateBackup: true,
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.State != usecase.RunStateCommitted {
		t.Fatalf("expected committed, got %s", result.State)
	}
	if result.Summary.Inserts != 7 || result.Summary.Matches != 1 {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
	if result.SnapshotDir == "" {
		t.Fatal("expected a snapshot directory")
	}
	if _, err := os.Stat(filepath.Join(result.SnapshotDir, "clubs.json")); err != nil {
		t.Fatalf("snapshot missing clubs table: %v", err)
	}
	if _, err := os.Stat(filepath.Join(result.SnapshotDir, "source", "clubs.json")); err != nil {
		t.Fatalf("raw source documents not archived: %v", err)
	}

	lg, err := store.LeagueByName(context.Background(), "Spring League")
	if err != nil {
		t.Fatalf("league not created: %v", err)
	}
	if rows := store.Standings(lg.ID); len(rows) != 2 {
		t.Fatalf("expected standings for both teams, got %d rows", len(rows))
	}
	if entries := store.AuditEntries(); len(entries) != 7 {
		t.Fatalf("expected one audit entry per applied op, got %d", len(entries))
	}

	runs := store.Runs()
	if len(runs) != 1 || runs[0].State != usecase.RunStateCommitted || runs[0].Error != "" {
		t.Fatalf("unexpected run record %+v", runs)
	}
}

func TestRun_ReimportOfUnchangedDatasetIsNoOp(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	svc := newService(t, store, fixtureDataset())

	if _, err := svc.Run(context.Background(), usecase.RunOptions{League: "Spring League"}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	digest := store.StateDigest()

	result, err := svc.Run(context.Background(), usecase.RunOptions{League: "Spring League"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Summary.Inserts+result.Summary.Updates+result.Summary.Retires+result.Summary.Matches != 0 {
		t.Fatalf("re-import must plan nothing, got %+v", result.Summary)
	}
	if store.StateDigest() != digest {
		t.Fatal("re-import of unchanged dataset mutated state")
	}
}

func TestRun_SuffixRespellingPreservesSurrogateIDs(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	first := newService(t, store, fixtureDataset())
	if _, err := first.Run(context.Background(), usecase.RunOptions{League: "Spring League"}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	lg, err := store.LeagueByName(context.Background(), "Spring League")
	if err != nil {
		t.Fatalf("league lookup: %v", err)
	}
	before, err := store.LoadCurrent(context.Background(), lg.ID)
	if err != nil {
		t.Fatalf("load current: %v", err)
	}

	ds := fixtureDataset()
	ds.Clubs[0].Name = "Example Country Club"
	ds.Teams[0].Club = "Example Country Club"
	ds.Players[0].Club = "Example Country Club"
	ds.Matches = nil

	second := newService(t, store, ds)
	result, err := second.Run(context.Background(), usecase.RunOptions{League: "Spring League"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Summary.Updates != 1 || result.Summary.Inserts != 0 || result.Summary.Retires != 0 {
		t.Fatalf("respelled suffix must be a single update, got %+v", result.Summary)
	}

	after, err := store.LoadCurrent(context.Background(), lg.ID)
	if err != nil {
		t.Fatalf("load current: %v", err)
	}
	if len(after.Clubs) != len(before.Clubs) {
		t.Fatalf("club rows churned: %d -> %d", len(before.Clubs), len(after.Clubs))
	}
	for i := range after.Clubs {
		if after.Clubs[i].ID != before.Clubs[i].ID {
			t.Fatalf("club surrogate IDs changed: %+v -> %+v", before.Clubs[i], after.Clubs[i])
		}
	}
	for i := range after.Teams {
		if after.Teams[i].ID != before.Teams[i].ID {
			t.Fatalf("team surrogate IDs changed: %+v -> %+v", before.Teams[i], after.Teams[i])
		}
	}
}

func TestRun_DryRunMutatesNothing(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	svc := newService(t, store, fixtureDataset())
	digest := store.StateDigest()

	result, err := svc.Run(context.Background(), usecase.RunOptions{
		League: "Spring League", DryRun: true, CreateBackup: true,
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.State != usecase.RunStateIdle {
		t.Fatalf("dry run must stay idle, got %s", result.State)
	}
	if result.Summary.Inserts != 7 {
		t.Fatalf("dry run must still plan, got %+v", result.Summary)
	}
	if result.SnapshotDir != "" {
		t.Fatal("dry run must not write a snapshot")
	}
	if store.StateDigest() != digest {
		t.Fatal("dry run mutated state")
	}
}

func TestRun_InvariantViolationAbortsBeforeAnyMutation(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	svc := newService(t, store, fixtureDataset())
	if _, err := svc.Run(context.Background(), usecase.RunOptions{League: "Spring League"}); err != nil {
		t.Fatalf("seed run: %v", err)
	}
	digest := store.StateDigest()

	ds := fixtureDataset()
	ds.Series = append(ds.Series, feed.SeriesRecord{Name: "Division 1", League: "Autumn League"})

	bad := newService(t, store, ds)
	result, err := bad.Run(context.Background(), usecase.RunOptions{League: "Spring League", CreateBackup: true})
	if !errors.Is(err, usecase.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
	if result.State != usecase.RunStateRolledBack {
		t.Fatalf("expected rolled-back, got %s", result.State)
	}
	if result.ReportPath == "" {
		t.Fatal("abort must leave a report")
	}
	raw, readErr := os.ReadFile(result.ReportPath)
	if readErr != nil {
		t.Fatalf("read report: %v", readErr)
	}
	if !strings.Contains(string(raw), "series_multi_league") {
		t.Fatalf("report must carry the violation, got %q", raw)
	}
	if !strings.Contains(string(raw), "autumn-league") || !strings.Contains(string(raw), "spring-league") {
		t.Fatalf("report must name both league identifiers, got %q", raw)
	}
	if store.StateDigest() != digest {
		t.Fatal("aborted run mutated state")
	}
}

func TestRun_ApplyFailureRollsBackWholeRun(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	svc := newService(t, store, fixtureDataset())
	digest := store.StateDigest()

	store.FailOn = map[string]error{"insert_player": errors.New("disk full")}

	result, err := svc.Run(context.Background(), usecase.RunOptions{League: "Spring League"})
	if err == nil {
		t.Fatal("expected apply failure")
	}
	if result.State != usecase.RunStateRolledBack {
		t.Fatalf("expected rolled-back, got %s", result.State)
	}

	store.FailOn = nil
	after := store.StateDigest()
	// The league row is created before the transaction; everything staged
	// inside it must be gone.
	lg, lookupErr := store.LeagueByName(context.Background(), "Spring League")
	if lookupErr != nil {
		t.Fatalf("league lookup: %v", lookupErr)
	}
	current, loadErr := store.LoadCurrent(context.Background(), lg.ID)
	if loadErr != nil {
		t.Fatalf("load current: %v", loadErr)
	}
	if len(current.Clubs)+len(current.Series)+len(current.Teams)+len(current.Players) != 0 {
		t.Fatalf("partial apply leaked rows: %+v", current)
	}
	if after == digest {
		t.Fatal("expected the league row to persist outside the transaction")
	}
}

func TestRun_LeagueLockConflict(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	svc := newService(t, store, fixtureDataset())
	if _, err := svc.Run(context.Background(), usecase.RunOptions{League: "Spring League"}); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	lg, err := store.LeagueByName(context.Background(), "Spring League")
	if err != nil {
		t.Fatalf("league lookup: %v", err)
	}
	release, err := store.AcquireLeagueLock(context.Background(), lg.ID)
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer release()

	if _, err := svc.Run(context.Background(), usecase.RunOptions{League: "Spring League"}); !errors.Is(err, usecase.ErrRunConflict) {
		t.Fatalf("expected ErrRunConflict, got %v", err)
	}
}

func TestRun_MissingLeagueNameIsInvalid(t *testing.T) {
	t.Parallel()

	svc := newService(t, memory.NewStore(), fixtureDataset())
	if _, err := svc.Run(context.Background(), usecase.RunOptions{}); !errors.Is(err, usecase.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRun_VanishedEntitiesAreRetiredNotDeleted(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	svc := newService(t, store, fixtureDataset())
	if _, err := svc.Run(context.Background(), usecase.RunOptions{League: "Spring League"}); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	ds := fixtureDataset()
	ds.Clubs = ds.Clubs[:1]
	ds.Teams = ds.Teams[:1]
	ds.Players = ds.Players[:1]
	ds.Matches = nil

	second := newService(t, store, ds)
	result, err := second.Run(context.Background(), usecase.RunOptions{League: "Spring League"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Summary.Retires != 3 {
		t.Fatalf("expected club, team and player retires, got %+v", result.Summary)
	}

	lg, _ := store.LeagueByName(context.Background(), "Spring League")
	current, err := store.LoadCurrent(context.Background(), lg.ID)
	if err != nil {
		t.Fatalf("load current: %v", err)
	}
	// Retired rows survive with deleted_at set; nothing is erased.
	if len(current.Clubs) != 2 || len(current.Teams) != 2 || len(current.Players) != 2 {
		t.Fatalf("retire must keep rows: %d clubs %d teams %d players",
			len(current.Clubs), len(current.Teams), len(current.Players))
	}
	retired := 0
	for _, c := range current.Clubs {
		if !c.Active() {
			retired++
		}
	}
	for _, tm := range current.Teams {
		if !tm.Active() {
			retired++
		}
	}
	for _, p := range current.Players {
		if !p.Active() {
			retired++
		}
	}
	if retired != 3 {
		t.Fatalf("expected 3 retired rows, got %d", retired)
	}
}
