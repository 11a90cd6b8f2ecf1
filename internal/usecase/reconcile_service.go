package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/riskibarqy/league-import/internal/domain/club"
	"github.com/riskibarqy/league-import/internal/domain/league"
	"github.com/riskibarqy/league-import/internal/domain/player"
	"github.com/riskibarqy/league-import/internal/domain/schedule"
	"github.com/riskibarqy/league-import/internal/domain/team"
	"github.com/riskibarqy/league-import/internal/naturalkey"
	"github.com/riskibarqy/league-import/internal/plan"
	"github.com/riskibarqy/league-import/internal/platform/logging"
	"github.com/riskibarqy/league-import/internal/report"
)

// Finding reason codes, carried verbatim into the report artifact.
const (
	FindingDuplicateClubMerged    = "duplicate_club_merged"
	FindingDuplicateTeamMerged    = "duplicate_team_merged"
	FindingDuplicatePlayerMerged  = "duplicate_player_merged"
	FindingPracticeTimeRepointed  = "practice_time_repointed"
	FindingPracticeTimeUnresolved = "practice_time_unresolved"
)

type Finding struct {
	Entity     plan.EntityType
	NaturalKey string
	Reason     string
	Detail     string
}

// ReconcileStore is the persistence surface of the post-commit cleanup pass.
// Every operation is small and idempotent; there is no surrounding
// transaction.
type ReconcileStore interface {
	LeagueByName(ctx context.Context, name string) (league.League, error)
	LoadCurrent(ctx context.Context, leagueID int64) (plan.Current, error)
	PracticeTimes(ctx context.Context, leagueID int64) ([]schedule.PracticeTime, error)
	// AuditKeyForEntity resolves the natural key a surrogate ID carried the
	// last time an import touched it. ErrNotFound when the trail has no
	// entry.
	AuditKeyForEntity(ctx context.Context, entityType plan.EntityType, entityID int64) (string, error)

	RepointTeamsToClub(ctx context.Context, fromClubID, toClubID int64) error
	RepointPlayersToTeam(ctx context.Context, fromTeamID, toTeamID int64) error
	RepointPracticeTime(ctx context.Context, id, teamID int64) error
	FlagPracticeTime(ctx context.Context, id int64) error

	RetireClub(ctx context.Context, id int64, at time.Time) error
	RetireTeam(ctx context.Context, id int64, at time.Time) error
	RetirePlayer(ctx context.Context, id int64, at time.Time) error
}

// ReconcileService runs the post-commit cleanup: merge duplicates that
// accumulated in the live state and re-resolve practice times whose team
// vanished. Rows it cannot resolve are flagged, never guessed at.
type ReconcileService struct {
	store   ReconcileStore
	reports *report.Emitter
	clock   func() time.Time
	logger  *logging.Logger
}

func NewReconcileService(store ReconcileStore, reports *report.Emitter, logger *logging.Logger) *ReconcileService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ReconcileService{
		store:   store,
		reports: reports,
		clock:   time.Now,
		logger:  logger,
	}
}

// Run executes every reconciliation phase for one league. Running it twice
// in a row finds nothing the second time.
func (s *ReconcileService) Run(ctx context.Context, leagueName string) ([]Finding, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ReconcileService.Run")
	defer span.End()

	if leagueName == "" {
		return nil, fmt.Errorf("%w: league name is required", ErrInvalidInput)
	}

	lg, err := s.store.LeagueByName(ctx, leagueName)
	if err != nil {
		return nil, fmt.Errorf("resolve league %s: %w", leagueName, err)
	}

	var findings []Finding

	// Each merge phase reloads the state it works on: a club merge can
	// surface team duplicates, and a team merge moves players around.
	clubFindings, err := s.mergeDuplicateClubs(ctx, lg)
	if err != nil {
		return findings, err
	}
	findings = append(findings, clubFindings...)

	teamFindings, err := s.mergeDuplicateTeams(ctx, lg)
	if err != nil {
		return findings, err
	}
	findings = append(findings, teamFindings...)

	playerFindings, err := s.mergeDuplicatePlayers(ctx, lg)
	if err != nil {
		return findings, err
	}
	findings = append(findings, playerFindings...)

	repairFindings, err := s.repairPracticeTimes(ctx, lg)
	if err != nil {
		return findings, err
	}
	findings = append(findings, repairFindings...)

	if s.reports != nil && len(findings) > 0 {
		rows := make([]report.Row, 0, len(findings))
		for _, f := range findings {
			rows = append(rows, report.Row{
				EntityType: string(f.Entity),
				NaturalKey: f.NaturalKey,
				ReasonCode: f.Reason,
				Detail:     f.Detail,
			})
		}
		if path, err := s.reports.Emit(leagueName, s.clock(), rows); err != nil {
			s.logger.ErrorContext(ctx, "reconciliation report failed", "error", err)
		} else {
			s.logger.InfoContext(ctx, "reconciliation report written", "path", path)
		}
	}

	s.logger.InfoContext(ctx, "reconciliation pass complete",
		"league_id", lg.ID, "findings", len(findings))
	return findings, nil
}

func (s *ReconcileService) mergeDuplicateClubs(ctx context.Context, lg league.League) ([]Finding, error) {
	current, err := s.store.LoadCurrent(ctx, lg.ID)
	if err != nil {
		return nil, fmt.Errorf("load state for club merge: %w", err)
	}

	groups := make(map[naturalkey.Key][]club.Club)
	for _, c := range current.Clubs {
		if !c.Active() {
			continue
		}
		key, err := naturalkey.Club(lg.ID, c.Name)
		if err != nil {
			continue
		}
		groups[key] = append(groups[key], c)
	}

	var findings []Finding
	for _, key := range sortedKeys(groups) {
		rows := groups[key]
		if len(rows) < 2 {
			continue
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		winner := rows[0]
		for _, loser := range rows[1:] {
			if err := s.store.RepointTeamsToClub(ctx, loser.ID, winner.ID); err != nil {
				return findings, fmt.Errorf("repoint teams of club %d: %w", loser.ID, err)
			}
			if err := s.store.RetireClub(ctx, loser.ID, s.clock()); err != nil {
				return findings, fmt.Errorf("retire duplicate club %d: %w", loser.ID, err)
			}
			findings = append(findings, Finding{
				Entity:     plan.EntityClub,
				NaturalKey: string(key),
				Reason:     FindingDuplicateClubMerged,
				Detail:     fmt.Sprintf("club %d merged into %d", loser.ID, winner.ID),
			})
		}
	}
	return findings, nil
}

func (s *ReconcileService) mergeDuplicateTeams(ctx context.Context, lg league.League) ([]Finding, error) {
	current, err := s.store.LoadCurrent(ctx, lg.ID)
	if err != nil {
		return nil, fmt.Errorf("load state for team merge: %w", err)
	}
	keyOfTeam := activeTeamKeys(lg.ID, current)

	groups := make(map[naturalkey.Key][]team.Team)
	for _, t := range current.Teams {
		key, ok := keyOfTeam[t.ID]
		if !ok {
			continue
		}
		groups[key] = append(groups[key], t)
	}

	var findings []Finding
	for _, key := range sortedKeys(groups) {
		rows := groups[key]
		if len(rows) < 2 {
			continue
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		winner := rows[0]
		for _, loser := range rows[1:] {
			if err := s.store.RepointPlayersToTeam(ctx, loser.ID, winner.ID); err != nil {
				return findings, fmt.Errorf("repoint players of team %d: %w", loser.ID, err)
			}
			if err := s.repointPracticeTimesOfTeam(ctx, lg.ID, loser.ID, winner.ID); err != nil {
				return findings, err
			}
			if err := s.store.RetireTeam(ctx, loser.ID, s.clock()); err != nil {
				return findings, fmt.Errorf("retire duplicate team %d: %w", loser.ID, err)
			}
			findings = append(findings, Finding{
				Entity:     plan.EntityTeam,
				NaturalKey: string(key),
				Reason:     FindingDuplicateTeamMerged,
				Detail:     fmt.Sprintf("team %d merged into %d", loser.ID, winner.ID),
			})
		}
	}
	return findings, nil
}

func (s *ReconcileService) repointPracticeTimesOfTeam(ctx context.Context, leagueID, fromTeamID, toTeamID int64) error {
	times, err := s.store.PracticeTimes(ctx, leagueID)
	if err != nil {
		return fmt.Errorf("list practice times: %w", err)
	}
	for _, pt := range times {
		if pt.TeamID != fromTeamID {
			continue
		}
		if err := s.store.RepointPracticeTime(ctx, pt.ID, toTeamID); err != nil {
			return fmt.Errorf("repoint practice time %d: %w", pt.ID, err)
		}
	}
	return nil
}

func (s *ReconcileService) mergeDuplicatePlayers(ctx context.Context, lg league.League) ([]Finding, error) {
	current, err := s.store.LoadCurrent(ctx, lg.ID)
	if err != nil {
		return nil, fmt.Errorf("load state for player merge: %w", err)
	}

	groups := make(map[naturalkey.Key][]player.Player)
	for _, p := range current.Players {
		if !p.Active() {
			continue
		}
		// A flagged substitute may share its external ID with the primary
		// roster row; only unflagged rows can collide.
		if p.Substitute {
			continue
		}
		key, err := naturalkey.Player(lg.ID, p.ExternalID)
		if err != nil {
			continue
		}
		groups[key] = append(groups[key], p)
	}

	var findings []Finding
	for _, key := range sortedKeys(groups) {
		rows := groups[key]
		if len(rows) < 2 {
			continue
		}
		// User associations reference players by external ID, so retiring
		// the younger duplicate rows is enough; nothing needs repointing.
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		winner := rows[0]
		for _, loser := range rows[1:] {
			if err := s.store.RetirePlayer(ctx, loser.ID, s.clock()); err != nil {
				return findings, fmt.Errorf("retire duplicate player %d: %w", loser.ID, err)
			}
			findings = append(findings, Finding{
				Entity:     plan.EntityPlayer,
				NaturalKey: string(key),
				Reason:     FindingDuplicatePlayerMerged,
				Detail:     fmt.Sprintf("player %d merged into %d", loser.ID, winner.ID),
			})
		}
	}
	return findings, nil
}

// repairPracticeTimes re-resolves practice times whose team is retired or
// gone: the audit trail maps the old surrogate ID to its natural key, and if
// an active team carries that key today, the row is repointed. Anything else
// is flagged for review.
func (s *ReconcileService) repairPracticeTimes(ctx context.Context, lg league.League) ([]Finding, error) {
	current, err := s.store.LoadCurrent(ctx, lg.ID)
	if err != nil {
		return nil, fmt.Errorf("load state for practice time repair: %w", err)
	}
	keyOfTeam := activeTeamKeys(lg.ID, current)

	activeByKey := make(map[naturalkey.Key]int64, len(keyOfTeam))
	for id, key := range keyOfTeam {
		if existing, ok := activeByKey[key]; !ok || id < existing {
			activeByKey[key] = id
		}
	}

	times, err := s.store.PracticeTimes(ctx, lg.ID)
	if err != nil {
		return nil, fmt.Errorf("list practice times: %w", err)
	}

	var findings []Finding
	for _, pt := range times {
		if _, ok := keyOfTeam[pt.TeamID]; ok {
			continue
		}

		key, lookupErr := s.store.AuditKeyForEntity(ctx, plan.EntityTeam, pt.TeamID)
		if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
			s.logger.WarnContext(ctx, "audit trail lookup failed",
				"practice_time_id", pt.ID, "team_id", pt.TeamID, "error", lookupErr)
			key = ""
		}
		if lookupErr == nil {
			if teamID, ok := activeByKey[naturalkey.Key(key)]; ok {
				if err := s.store.RepointPracticeTime(ctx, pt.ID, teamID); err != nil {
					return findings, fmt.Errorf("repoint practice time %d: %w", pt.ID, err)
				}
				findings = append(findings, Finding{
					Entity:     plan.EntityTeam,
					NaturalKey: key,
					Reason:     FindingPracticeTimeRepointed,
					Detail:     fmt.Sprintf("practice time %d repointed from team %d to %d", pt.ID, pt.TeamID, teamID),
				})
				continue
			}
		}

		if pt.NeedsReview {
			continue
		}
		if err := s.store.FlagPracticeTime(ctx, pt.ID); err != nil {
			return findings, fmt.Errorf("flag practice time %d: %w", pt.ID, err)
		}
		findings = append(findings, Finding{
			Entity:     plan.EntityTeam,
			NaturalKey: key,
			Reason:     FindingPracticeTimeUnresolved,
			Detail:     fmt.Sprintf("practice time %d references team %d with no active successor", pt.ID, pt.TeamID),
		})
	}
	return findings, nil
}

// activeTeamKeys maps every active team's surrogate ID to its natural key.
func activeTeamKeys(leagueID int64, current plan.Current) map[int64]naturalkey.Key {
	clubKeyOf := make(map[int64]naturalkey.Key, len(current.Clubs))
	for _, c := range current.Clubs {
		if !c.Active() {
			continue
		}
		if key, err := naturalkey.Club(leagueID, c.Name); err == nil {
			clubKeyOf[c.ID] = key
		}
	}
	seriesKeyOf := make(map[int64]naturalkey.Key, len(current.Series))
	for _, sr := range current.Series {
		if !sr.Active() {
			continue
		}
		if key, err := naturalkey.Series(leagueID, sr.Name); err == nil {
			seriesKeyOf[sr.ID] = key
		}
	}

	out := make(map[int64]naturalkey.Key, len(current.Teams))
	for _, t := range current.Teams {
		if !t.Active() {
			continue
		}
		clubKey, okClub := clubKeyOf[t.ClubID]
		seriesKey, okSeries := seriesKeyOf[t.SeriesID]
		if !okClub || !okSeries {
			continue
		}
		if key, err := naturalkey.Team(clubKey, seriesKey); err == nil {
			out[t.ID] = key
		}
	}
	return out
}

func sortedKeys[V any](m map[naturalkey.Key]V) []naturalkey.Key {
	keys := make([]naturalkey.Key, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
