package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/league-import/internal/domain/audit"
	"github.com/riskibarqy/league-import/internal/domain/club"
	"github.com/riskibarqy/league-import/internal/domain/league"
	"github.com/riskibarqy/league-import/internal/domain/player"
	"github.com/riskibarqy/league-import/internal/domain/schedule"
	"github.com/riskibarqy/league-import/internal/domain/series"
	"github.com/riskibarqy/league-import/internal/domain/team"
	"github.com/riskibarqy/league-import/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/league-import/internal/naturalkey"
	"github.com/riskibarqy/league-import/internal/usecase"
)

func findingsFor(fs []usecase.Finding, reason string) []usecase.Finding {
	var out []usecase.Finding
	for _, f := range fs {
		if f.Reason == reason {
			out = append(out, f)
		}
	}
	return out
}

// Two active clubs that canonicalize to the same key, each with its own team
// in the same series. The merge must keep the older rows and their
// dependents.
func TestReconcile_MergesDuplicateClubsAndTeams(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	var practiceID int64
	store.Seed(func(sd *memory.Seeder) {
		lg := sd.League(league.League{Name: "Spring League"})
		sr := sd.Series(series.Series{LeagueID: lg.ID, Name: "Division 1", CanonicalName: "division-1"})
		keep := sd.Club(club.Club{LeagueID: lg.ID, Name: "Example CC", CanonicalName: "example-cc"})
		dup := sd.Club(club.Club{LeagueID: lg.ID, Name: "Example Country Club", CanonicalName: "example-cc"})

		keepTeam := sd.Team(team.Team{LeagueID: lg.ID, ClubID: keep.ID, SeriesID: sr.ID, Name: "Example CC"})
		dupTeam := sd.Team(team.Team{LeagueID: lg.ID, ClubID: dup.ID, SeriesID: sr.ID, Name: "Example Country Club"})
		sd.Player(player.Player{LeagueID: lg.ID, TeamID: keepTeam.ID, ExternalID: "p-1", Name: "Ada"})
		sd.Player(player.Player{LeagueID: lg.ID, TeamID: dupTeam.ID, ExternalID: "p-9", Name: "Grace"})
		pt := sd.PracticeTime(schedule.PracticeTime{LeagueID: lg.ID, TeamID: dupTeam.ID, Weekday: time.Tuesday, StartTime: "18:00", EndTime: "20:00"})
		practiceID = pt.ID
	})

	svc := usecase.NewReconcileService(store, nil, nil)
	findings, err := svc.Run(context.Background(), "Spring League")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := findingsFor(findings, usecase.FindingDuplicateClubMerged); len(got) != 1 {
		t.Fatalf("expected one club merge, got %+v", findings)
	}
	if got := findingsFor(findings, usecase.FindingDuplicateTeamMerged); len(got) != 1 {
		t.Fatalf("expected one team merge after club repointing, got %+v", findings)
	}

	lg, _ := store.LeagueByName(context.Background(), "Spring League")
	current, err := store.LoadCurrent(context.Background(), lg.ID)
	if err != nil {
		t.Fatalf("load current: %v", err)
	}
	activeClubs, activeTeams := 0, 0
	var survivingTeam int64
	for _, c := range current.Clubs {
		if c.Active() {
			activeClubs++
		}
	}
	for _, tm := range current.Teams {
		if tm.Active() {
			activeTeams++
			survivingTeam = tm.ID
		}
	}
	if activeClubs != 1 || activeTeams != 1 {
		t.Fatalf("expected one active club and team, got %d clubs %d teams", activeClubs, activeTeams)
	}
	for _, p := range current.Players {
		if p.Active() && p.TeamID != survivingTeam {
			t.Fatalf("player %d still points at a merged team %d", p.ID, p.TeamID)
		}
	}

	times, err := store.PracticeTimes(context.Background(), lg.ID)
	if err != nil {
		t.Fatalf("practice times: %v", err)
	}
	for _, pt := range times {
		if pt.ID == practiceID && pt.TeamID != survivingTeam {
			t.Fatalf("practice time still points at merged team %d", pt.TeamID)
		}
	}

	// Idempotence: a second pass finds nothing.
	again, err := svc.Run(context.Background(), "Spring League")
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second pass must be clean, got %+v", again)
	}
}

func TestReconcile_MergesDuplicatePlayersByExternalID(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.Seed(func(sd *memory.Seeder) {
		lg := sd.League(league.League{Name: "Spring League"})
		cl := sd.Club(club.Club{LeagueID: lg.ID, Name: "Example CC", CanonicalName: "example-cc"})
		sr := sd.Series(series.Series{LeagueID: lg.ID, Name: "Division 1", CanonicalName: "division-1"})
		tm := sd.Team(team.Team{LeagueID: lg.ID, ClubID: cl.ID, SeriesID: sr.ID, Name: "Example CC"})
		sd.Player(player.Player{LeagueID: lg.ID, TeamID: tm.ID, ExternalID: "p-1", Name: "Ada"})
		sd.Player(player.Player{LeagueID: lg.ID, TeamID: tm.ID, ExternalID: "p-1", Name: "Ada Again"})
	})

	svc := usecase.NewReconcileService(store, nil, nil)
	findings, err := svc.Run(context.Background(), "Spring League")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := findingsFor(findings, usecase.FindingDuplicatePlayerMerged); len(got) != 1 {
		t.Fatalf("expected one player merge, got %+v", findings)
	}

	lg, _ := store.LeagueByName(context.Background(), "Spring League")
	current, _ := store.LoadCurrent(context.Background(), lg.ID)
	var active []player.Player
	for _, p := range current.Players {
		if p.Active() {
			active = append(active, p)
		}
	}
	if len(active) != 1 || active[0].Name != "Ada" {
		t.Fatalf("oldest row must win the merge, got %+v", active)
	}
}

// A primary and an explicitly flagged substitute may share one external ID;
// the merge must leave that pair alone.
func TestReconcile_SubstituteSharingExternalIDIsNotMerged(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.Seed(func(sd *memory.Seeder) {
		lg := sd.League(league.League{Name: "Spring League"})
		cl := sd.Club(club.Club{LeagueID: lg.ID, Name: "Example CC", CanonicalName: "example-cc"})
		sr := sd.Series(series.Series{LeagueID: lg.ID, Name: "Division 1", CanonicalName: "division-1"})
		sr2 := sd.Series(series.Series{LeagueID: lg.ID, Name: "Division 2", CanonicalName: "division-2"})
		tm := sd.Team(team.Team{LeagueID: lg.ID, ClubID: cl.ID, SeriesID: sr.ID, Name: "Example CC"})
		tm2 := sd.Team(team.Team{LeagueID: lg.ID, ClubID: cl.ID, SeriesID: sr2.ID, Name: "Example CC II"})
		sd.Player(player.Player{LeagueID: lg.ID, TeamID: tm.ID, ExternalID: "p-1", Name: "Ada"})
		sd.Player(player.Player{LeagueID: lg.ID, TeamID: tm2.ID, ExternalID: "p-1", Name: "Ada", Substitute: true})
	})

	svc := usecase.NewReconcileService(store, nil, nil)
	findings, err := svc.Run(context.Background(), "Spring League")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := findingsFor(findings, usecase.FindingDuplicatePlayerMerged); len(got) != 0 {
		t.Fatalf("substitute pair must not be merged, got %+v", got)
	}

	lg, _ := store.LeagueByName(context.Background(), "Spring League")
	current, _ := store.LoadCurrent(context.Background(), lg.ID)
	active := 0
	for _, p := range current.Players {
		if p.Active() {
			active++
		}
	}
	if active != 2 {
		t.Fatalf("both roster rows must stay active, got %d", active)
	}
}

// A practice time points at a retired team whose natural key an active team
// now carries: the audit trail bridges the two.
func TestReconcile_RepairsDanglingPracticeTimeViaAuditTrail(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	var practiceID, newTeamID int64
	store.Seed(func(sd *memory.Seeder) {
		lg := sd.League(league.League{Name: "Spring League"})
		cl := sd.Club(club.Club{LeagueID: lg.ID, Name: "Example CC", CanonicalName: "example-cc"})
		sr := sd.Series(series.Series{LeagueID: lg.ID, Name: "Division 1", CanonicalName: "division-1"})

		gone := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
		oldTeam := sd.Team(team.Team{LeagueID: lg.ID, ClubID: cl.ID, SeriesID: sr.ID, Name: "Example CC", DeletedAt: &gone})
		newTeam := sd.Team(team.Team{LeagueID: lg.ID, ClubID: cl.ID, SeriesID: sr.ID, Name: "Example CC"})
		newTeamID = newTeam.ID

		clubKey, _ := naturalkey.Club(lg.ID, cl.Name)
		seriesKey, _ := naturalkey.Series(lg.ID, sr.Name)
		teamKey, _ := naturalkey.Team(clubKey, seriesKey)
		sd.Audit(audit.Entry{RunID: "run-0", EntityType: "team", EntityID: oldTeam.ID, NaturalKey: string(teamKey)})

		pt := sd.PracticeTime(schedule.PracticeTime{LeagueID: lg.ID, TeamID: oldTeam.ID, Weekday: time.Monday, StartTime: "17:00", EndTime: "19:00"})
		practiceID = pt.ID
	})

	svc := usecase.NewReconcileService(store, nil, nil)
	findings, err := svc.Run(context.Background(), "Spring League")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := findingsFor(findings, usecase.FindingPracticeTimeRepointed); len(got) != 1 {
		t.Fatalf("expected one repointed practice time, got %+v", findings)
	}

	lg, _ := store.LeagueByName(context.Background(), "Spring League")
	times, _ := store.PracticeTimes(context.Background(), lg.ID)
	for _, pt := range times {
		if pt.ID != practiceID {
			continue
		}
		if pt.TeamID != newTeamID {
			t.Fatalf("practice time must point at the active successor, got team %d", pt.TeamID)
		}
		if pt.NeedsReview {
			t.Fatal("repointed practice time must not stay flagged")
		}
	}
}

// A failing audit lookup is not the same as an absent trail entry: the pass
// still flags the row instead of bailing out, and the fault is surfaced in
// the log rather than swallowed.
func TestReconcile_AuditLookupFailureStillFlagsPracticeTime(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	var practiceID int64
	store.Seed(func(sd *memory.Seeder) {
		lg := sd.League(league.League{Name: "Spring League"})
		pt := sd.PracticeTime(schedule.PracticeTime{LeagueID: lg.ID, TeamID: 777, Weekday: time.Wednesday, StartTime: "18:00", EndTime: "20:00"})
		practiceID = pt.ID
	})
	store.FailOn = map[string]error{"audit_lookup": errors.New("connection reset")}

	svc := usecase.NewReconcileService(store, nil, nil)
	findings, err := svc.Run(context.Background(), "Spring League")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	got := findingsFor(findings, usecase.FindingPracticeTimeUnresolved)
	if len(got) != 1 {
		t.Fatalf("expected one unresolved practice time, got %+v", findings)
	}
	if got[0].NaturalKey != "" {
		t.Fatalf("a failed lookup must not carry a natural key, got %q", got[0].NaturalKey)
	}

	lg, _ := store.LeagueByName(context.Background(), "Spring League")
	times, _ := store.PracticeTimes(context.Background(), lg.ID)
	for _, pt := range times {
		if pt.ID == practiceID && !pt.NeedsReview {
			t.Fatal("practice time must be flagged despite the lookup failure")
		}
	}
}

func TestReconcile_FlagsUnresolvablePracticeTime(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	var practiceID int64
	store.Seed(func(sd *memory.Seeder) {
		lg := sd.League(league.League{Name: "Spring League"})
		// Team 999 never existed in the audit trail and has no successor.
		pt := sd.PracticeTime(schedule.PracticeTime{LeagueID: lg.ID, TeamID: 999, Weekday: time.Friday, StartTime: "17:00", EndTime: "19:00"})
		practiceID = pt.ID
	})

	svc := usecase.NewReconcileService(store, nil, nil)
	findings, err := svc.Run(context.Background(), "Spring League")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := findingsFor(findings, usecase.FindingPracticeTimeUnresolved); len(got) != 1 {
		t.Fatalf("expected one unresolved practice time, got %+v", findings)
	}

	lg, _ := store.LeagueByName(context.Background(), "Spring League")
	times, _ := store.PracticeTimes(context.Background(), lg.ID)
	for _, pt := range times {
		if pt.ID == practiceID && !pt.NeedsReview {
			t.Fatal("unresolved practice time must be flagged for review")
		}
	}

	// Already-flagged rows are not reported again.
	again, err := svc.Run(context.Background(), "Spring League")
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second pass must be clean, got %+v", again)
	}
}
