package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/riskibarqy/league-import/external/feed"
	"github.com/riskibarqy/league-import/internal/backup"
	"github.com/riskibarqy/league-import/internal/check"
	"github.com/riskibarqy/league-import/internal/domain/audit"
	"github.com/riskibarqy/league-import/internal/domain/league"
	"github.com/riskibarqy/league-import/internal/naturalkey"
	"github.com/riskibarqy/league-import/internal/plan"
	"github.com/riskibarqy/league-import/internal/platform/logging"
	"github.com/riskibarqy/league-import/internal/report"
)

// RunState tracks the coordinator's progress through one import run. The
// only terminal states are committed and rolled-back.
type RunState string

const (
	RunStateIdle       RunState = "idle"
	RunStateBackingUp  RunState = "backing-up"
	RunStateApplying   RunState = "applying"
	RunStateVerifying  RunState = "verifying"
	RunStateCommitted  RunState = "committed"
	RunStateRolledBack RunState = "rolled-back"
)

// RunRecord is the bookkeeping row persisted for every run, including the
// ones that never opened a transaction.
type RunRecord struct {
	RunID      string
	LeagueID   int64
	StartedAt  time.Time
	FinishedAt time.Time
	State      RunState
	DryRun     bool
	ReportPath string
	Error      string
}

// FeedLoader provides one league's parsed source documents.
type FeedLoader interface {
	Load(ctx context.Context, leagueName string) (feed.Dataset, error)
}

// ImportStore is everything the coordinator needs from persistence outside
// the apply transaction.
type ImportStore interface {
	LeagueByName(ctx context.Context, name string) (league.League, error)
	CreateLeague(ctx context.Context, lg league.League) (league.League, error)
	LoadCurrent(ctx context.Context, leagueID int64) (plan.Current, error)
	// AcquireLeagueLock serializes runs per league. ErrRunConflict when
	// another run holds it.
	AcquireLeagueLock(ctx context.Context, leagueID int64) (release func(), err error)
	Begin(ctx context.Context) (ImportTx, error)
	SaveRun(ctx context.Context, rec RunRecord) error
}

// ImportTx is the single transaction every mutation of a run goes through.
// Either Commit or Rollback must be called exactly once.
type ImportTx interface {
	InsertClub(ctx context.Context, op plan.ClubOp) (int64, error)
	UpdateClub(ctx context.Context, op plan.ClubOp) error
	RetireClub(ctx context.Context, id int64, at time.Time) error

	InsertSeries(ctx context.Context, op plan.SeriesOp) (int64, error)
	UpdateSeries(ctx context.Context, op plan.SeriesOp) error
	RetireSeries(ctx context.Context, id int64, at time.Time) error

	InsertTeam(ctx context.Context, op plan.TeamOp, clubID, seriesID int64) (int64, error)
	UpdateTeam(ctx context.Context, op plan.TeamOp, clubID, seriesID int64) error
	RetireTeam(ctx context.Context, id int64, at time.Time) error

	InsertPlayer(ctx context.Context, op plan.PlayerOp, teamID int64) (int64, error)
	UpdatePlayer(ctx context.Context, op plan.PlayerOp, teamID int64) error
	RetirePlayer(ctx context.Context, id int64, at time.Time) error

	InsertMatchResult(ctx context.Context, op plan.MatchOp, seriesID, homeTeamID, awayTeamID int64) (int64, error)

	AppendAudit(ctx context.Context, entry audit.Entry) error
	RecomputeStandings(ctx context.Context, leagueID int64, at time.Time) error
	// VerifyInvariants re-checks the uniqueness and referential invariants
	// inside the transaction, against the mutated state.
	VerifyInvariants(ctx context.Context, leagueID int64) ([]check.Violation, error)

	Commit() error
	Rollback() error
}

type RunOptions struct {
	League       string
	DryRun       bool
	CreateBackup bool
}

type RunResult struct {
	RunID       string
	State       RunState
	DryRun      bool
	Summary     plan.Summary
	Violations  []check.Violation
	Excluded    []feed.Exclusion
	ReportPath  string
	SnapshotDir string
}

// ImportService coordinates one full import run: load, plan, check, backup,
// apply, verify, commit. Any failure after Begin rolls the whole run back.
type ImportService struct {
	store   ImportStore
	loader  FeedLoader
	planner *plan.Planner
	checker *check.Checker
	backups *backup.Manager
	reports *report.Emitter
	clock   func() time.Time
	logger  *logging.Logger
}

func NewImportService(
	store ImportStore,
	loader FeedLoader,
	planner *plan.Planner,
	checker *check.Checker,
	backups *backup.Manager,
	reports *report.Emitter,
	logger *logging.Logger,
) *ImportService {
	if logger == nil {
		logger = logging.Default()
	}

	return &ImportService{
		store:   store,
		loader:  loader,
		planner: planner,
		checker: checker,
		backups: backups,
		reports: reports,
		clock:   time.Now,
		logger:  logger,
	}
}

func (s *ImportService) Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ImportService.Run")
	defer span.End()

	if opts.League == "" {
		return RunResult{}, fmt.Errorf("%w: league name is required", ErrInvalidInput)
	}

	result := RunResult{
		RunID:  uuid.NewString(),
		State:  RunStateIdle,
		DryRun: opts.DryRun,
	}
	startedAt := s.clock()
	logger := s.logger.With("run_id", result.RunID, "league", opts.League)

	ds, err := s.loader.Load(ctx, opts.League)
	if err != nil {
		return result, fmt.Errorf("load source documents league=%s: %w", opts.League, err)
	}

	lg, err := s.resolveLeague(ctx, ds, opts.DryRun)
	if err != nil {
		return result, err
	}

	current, err := s.store.LoadCurrent(ctx, lg.ID)
	if err != nil {
		return result, fmt.Errorf("load current state league=%s: %w", opts.League, err)
	}
	current.League = lg

	pl, err := s.planner.Build(current, ds)
	if err != nil {
		return result, fmt.Errorf("build plan league=%s: %w", opts.League, err)
	}
	result.Summary = pl.Summarize()
	result.Excluded = pl.Excluded

	result.Violations = s.checker.Check(current, pl, ds)
	if len(result.Violations) > 0 {
		result.State = RunStateRolledBack
		result.ReportPath = s.emitReport(ctx, opts.League, result.Violations, pl.Excluded)
		s.saveRun(ctx, lg.ID, result, startedAt, "pre-mutation invariant check failed")
		logger.WarnContext(ctx, "import aborted before any mutation",
			"violations", len(result.Violations), "report", result.ReportPath)
		return result, fmt.Errorf("%w: %d violation(s), see %s",
			ErrInvariantViolation, len(result.Violations), result.ReportPath)
	}

	if opts.DryRun {
		result.ReportPath = s.emitReport(ctx, opts.League, nil, pl.Excluded)
		s.saveRun(ctx, lg.ID, result, startedAt, "")
		logger.InfoContext(ctx, "dry run complete, nothing applied",
			"inserts", result.Summary.Inserts,
			"updates", result.Summary.Updates,
			"retires", result.Summary.Retires,
			"matches", result.Summary.Matches,
		)
		return result, nil
	}

	release, err := s.store.AcquireLeagueLock(ctx, lg.ID)
	if err != nil {
		return result, fmt.Errorf("acquire league lock league=%s: %w", opts.League, err)
	}
	defer release()

	if pl.Empty() {
		result.State = RunStateCommitted
		result.ReportPath = s.emitReport(ctx, opts.League, nil, pl.Excluded)
		s.saveRun(ctx, lg.ID, result, startedAt, "")
		logger.InfoContext(ctx, "dataset unchanged, nothing to apply")
		return result, nil
	}

	if opts.CreateBackup {
		result.State = RunStateBackingUp
		dir, err := s.writeSnapshot(ctx, lg, result.RunID, current, ds)
		if err != nil {
			result.State = RunStateRolledBack
			s.saveRun(ctx, lg.ID, result, startedAt, err.Error())
			return result, fmt.Errorf("%w: %v", ErrBackupFailed, err)
		}
		result.SnapshotDir = dir
	} else {
		logger.WarnContext(ctx, "pre-run backup explicitly bypassed")
	}

	if err := s.apply(ctx, lg, current, pl, &result); err != nil {
		result.State = RunStateRolledBack
		result.ReportPath = s.emitReport(ctx, opts.League, result.Violations, pl.Excluded)
		s.saveRun(ctx, lg.ID, result, startedAt, err.Error())
		logger.ErrorContext(ctx, "import rolled back", "error", err)
		return result, err
	}

	result.State = RunStateCommitted
	result.ReportPath = s.emitReport(ctx, opts.League, nil, pl.Excluded)
	s.saveRun(ctx, lg.ID, result, startedAt, "")
	logger.InfoContext(ctx, "import committed",
		"inserts", result.Summary.Inserts,
		"updates", result.Summary.Updates,
		"retires", result.Summary.Retires,
		"matches", result.Summary.Matches,
		"snapshot", result.SnapshotDir,
	)
	return result, nil
}

// resolveLeague reattaches to the existing league row or creates it on first
// import. A dry run never creates the row; planning proceeds against an
// empty league instead.
func (s *ImportService) resolveLeague(ctx context.Context, ds feed.Dataset, dryRun bool) (league.League, error) {
	lg, err := s.store.LeagueByName(ctx, ds.League.Name)
	if err == nil {
		return lg, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return league.League{}, fmt.Errorf("resolve league %s: %w", ds.League.Name, err)
	}

	lg = league.League{Name: ds.League.Name, Season: ds.League.Season}
	if err := lg.Validate(); err != nil {
		return league.League{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if dryRun {
		return lg, nil
	}
	created, err := s.store.CreateLeague(ctx, lg)
	if err != nil {
		return league.League{}, fmt.Errorf("create league %s: %w", ds.League.Name, err)
	}
	return created, nil
}

func (s *ImportService) writeSnapshot(ctx context.Context, lg league.League, runID string, current plan.Current, ds feed.Dataset) (string, error) {
	// Only the identity-bearing tables are snapshotted. Match results and
	// standings are derived from the feed and come back with the next import;
	// the raw source documents archived below cover the feed side.
	tables := map[string]any{
		"leagues": []league.League{lg},
		"clubs":   current.Clubs,
		"series":  current.Series,
		"teams":   current.Teams,
		"players": current.Players,
	}
	dir, err := s.backups.Write(ctx, lg.Name, runID, s.clock(), tables)
	if err != nil {
		return "", err
	}
	if err := s.backups.ArchiveSource(dir, ds.Raw); err != nil {
		return "", err
	}
	return dir, nil
}

// apply runs every plan stage inside one transaction, resolving parent
// natural keys to surrogate IDs as each stage lands, then re-verifies the
// invariants against the mutated state before committing.
func (s *ImportService) apply(ctx context.Context, lg league.League, current plan.Current, pl plan.Plan, result *RunResult) error {
	result.State = RunStateApplying

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", "run_id", result.RunID, "error", rbErr)
			}
		}
	}()

	ids, err := currentIDsByKey(lg.ID, current)
	if err != nil {
		return fmt.Errorf("index current state: %w", err)
	}
	now := s.clock()
	recordAudit := func(entityType plan.EntityType, entityID int64, key naturalkey.Key) error {
		return tx.AppendAudit(ctx, audit.Entry{
			RunID:      result.RunID,
			EntityType: string(entityType),
			EntityID:   entityID,
			NaturalKey: string(key),
			RecordedAt: now,
		})
	}

	for _, op := range pl.Clubs {
		id, err := applyEntityOp(ctx, op.Kind, op.Club.ID, now,
			func(ctx context.Context) (int64, error) { return tx.InsertClub(ctx, op) },
			func(ctx context.Context) error { return tx.UpdateClub(ctx, op) },
			tx.RetireClub,
		)
		if err != nil {
			return fmt.Errorf("%s club %s: %w", op.Kind, op.Key, err)
		}
		ids[op.Key] = id
		if err := recordAudit(plan.EntityClub, id, op.Key); err != nil {
			return fmt.Errorf("audit club %s: %w", op.Key, err)
		}
	}

	for _, op := range pl.Series {
		id, err := applyEntityOp(ctx, op.Kind, op.Series.ID, now,
			func(ctx context.Context) (int64, error) { return tx.InsertSeries(ctx, op) },
			func(ctx context.Context) error { return tx.UpdateSeries(ctx, op) },
			tx.RetireSeries,
		)
		if err != nil {
			return fmt.Errorf("%s series %s: %w", op.Kind, op.Key, err)
		}
		ids[op.Key] = id
		if err := recordAudit(plan.EntitySeries, id, op.Key); err != nil {
			return fmt.Errorf("audit series %s: %w", op.Key, err)
		}
	}

	for _, op := range pl.Teams {
		var clubID, seriesID int64
		if op.Kind != plan.OpRetire {
			var ok bool
			if clubID, ok = ids[op.ClubKey]; !ok {
				return fmt.Errorf("team %s: parent club %s did not resolve", op.Key, op.ClubKey)
			}
			if seriesID, ok = ids[op.SeriesKey]; !ok {
				return fmt.Errorf("team %s: parent series %s did not resolve", op.Key, op.SeriesKey)
			}
		}
		id, err := applyEntityOp(ctx, op.Kind, op.Team.ID, now,
			func(ctx context.Context) (int64, error) { return tx.InsertTeam(ctx, op, clubID, seriesID) },
			func(ctx context.Context) error { return tx.UpdateTeam(ctx, op, clubID, seriesID) },
			tx.RetireTeam,
		)
		if err != nil {
			return fmt.Errorf("%s team %s: %w", op.Kind, op.Key, err)
		}
		ids[op.Key] = id
		if err := recordAudit(plan.EntityTeam, id, op.Key); err != nil {
			return fmt.Errorf("audit team %s: %w", op.Key, err)
		}
	}

	for _, op := range pl.Players {
		var teamID int64
		if op.Kind != plan.OpRetire {
			var ok bool
			if teamID, ok = ids[op.TeamKey]; !ok {
				return fmt.Errorf("player %s: team %s did not resolve", op.Key, op.TeamKey)
			}
		}
		id, err := applyEntityOp(ctx, op.Kind, op.Player.ID, now,
			func(ctx context.Context) (int64, error) { return tx.InsertPlayer(ctx, op, teamID) },
			func(ctx context.Context) error { return tx.UpdatePlayer(ctx, op, teamID) },
			tx.RetirePlayer,
		)
		if err != nil {
			return fmt.Errorf("%s player %s: %w", op.Kind, op.Key, err)
		}
		ids[op.Key] = id
		if err := recordAudit(plan.EntityPlayer, id, op.Key); err != nil {
			return fmt.Errorf("audit player %s: %w", op.Key, err)
		}
	}

	for _, op := range pl.Matches {
		seriesID, ok := ids[op.SeriesKey]
		if !ok {
			return fmt.Errorf("match %s: series %s did not resolve", op.Key, op.SeriesKey)
		}
		homeID, ok := ids[op.HomeTeamKey]
		if !ok {
			return fmt.Errorf("match %s: home team %s did not resolve", op.Key, op.HomeTeamKey)
		}
		awayID, ok := ids[op.AwayTeamKey]
		if !ok {
			return fmt.Errorf("match %s: away team %s did not resolve", op.Key, op.AwayTeamKey)
		}
		if _, err := tx.InsertMatchResult(ctx, op, seriesID, homeID, awayID); err != nil {
			return fmt.Errorf("insert match %s: %w", op.Key, err)
		}
	}

	result.State = RunStateVerifying
	violations, err := tx.VerifyInvariants(ctx, lg.ID)
	if err != nil {
		return fmt.Errorf("in-transaction verification: %w", err)
	}
	if len(violations) > 0 {
		result.Violations = violations
		return fmt.Errorf("%w: post-apply verification found %d violation(s)",
			ErrInvariantViolation, len(violations))
	}

	if err := tx.RecomputeStandings(ctx, lg.ID, now); err != nil {
		return fmt.Errorf("recompute standings: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRolledBack, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// applyEntityOp dispatches one op and returns the surrogate ID the natural
// key now maps to. Retires keep their existing ID.
func applyEntityOp(
	ctx context.Context,
	kind plan.OpKind,
	existingID int64,
	at time.Time,
	insert func(context.Context) (int64, error),
	update func(context.Context) error,
	retire func(context.Context, int64, time.Time) error,
) (int64, error) {
	switch kind {
	case plan.OpInsert:
		return insert(ctx)
	case plan.OpUpdate:
		return existingID, update(ctx)
	case plan.OpRetire:
		return existingID, retire(ctx, existingID, at)
	default:
		return 0, fmt.Errorf("unknown op kind %d", kind)
	}
}

// currentIDsByKey seeds the key-to-ID map with every active row, so ops that
// reference untouched parents resolve without a plan entry.
func currentIDsByKey(leagueID int64, current plan.Current) (map[naturalkey.Key]int64, error) {
	ids := make(map[naturalkey.Key]int64)

	clubKeyOf := make(map[int64]naturalkey.Key, len(current.Clubs))
	for _, c := range current.Clubs {
		if !c.Active() {
			continue
		}
		key, err := naturalkey.Club(leagueID, c.Name)
		if err != nil {
			continue
		}
		if existing, ok := ids[key]; !ok || c.ID < existing {
			ids[key] = c.ID
		}
		clubKeyOf[c.ID] = key
	}
	seriesKeyOf := make(map[int64]naturalkey.Key, len(current.Series))
	for _, sr := range current.Series {
		if !sr.Active() {
			continue
		}
		key, err := naturalkey.Series(leagueID, sr.Name)
		if err != nil {
			continue
		}
		if existing, ok := ids[key]; !ok || sr.ID < existing {
			ids[key] = sr.ID
		}
		seriesKeyOf[sr.ID] = key
	}
	for _, t := range current.Teams {
		if !t.Active() {
			continue
		}
		clubKey, okClub := clubKeyOf[t.ClubID]
		seriesKey, okSeries := seriesKeyOf[t.SeriesID]
		if !okClub || !okSeries {
			continue
		}
		key, err := naturalkey.Team(clubKey, seriesKey)
		if err != nil {
			continue
		}
		if existing, ok := ids[key]; !ok || t.ID < existing {
			ids[key] = t.ID
		}
	}
	for _, pl := range current.Players {
		if !pl.Active() {
			continue
		}
		key, err := naturalkey.Player(leagueID, pl.ExternalID)
		if err != nil {
			continue
		}
		if existing, ok := ids[key]; !ok || pl.ID < existing {
			ids[key] = pl.ID
		}
	}
	return ids, nil
}

func (s *ImportService) emitReport(ctx context.Context, leagueName string, violations []check.Violation, excluded []feed.Exclusion) string {
	if s.reports == nil {
		return ""
	}
	rows := report.RowsFromViolations(violations)
	rows = append(rows, report.RowsFromExclusions(excluded)...)
	path, err := s.reports.Emit(leagueName, s.clock(), rows)
	if err != nil {
		s.logger.ErrorContext(ctx, "report emission failed", "league", leagueName, "error", err)
		return ""
	}
	return path
}

func (s *ImportService) saveRun(ctx context.Context, leagueID int64, result RunResult, startedAt time.Time, runErr string) {
	rec := RunRecord{
		RunID:      result.RunID,
		LeagueID:   leagueID,
		StartedAt:  startedAt,
		FinishedAt: s.clock(),
		State:      result.State,
		DryRun:     result.DryRun,
		ReportPath: result.ReportPath,
		Error:      runErr,
	}
	if err := s.store.SaveRun(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "run bookkeeping failed", "run_id", result.RunID, "error", err)
	}
}
