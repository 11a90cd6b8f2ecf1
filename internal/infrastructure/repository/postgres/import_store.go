package postgres

import (
	"context"
	"fmt"

	"github.com/riskibarqy/league-import/internal/domain/league"
	"github.com/riskibarqy/league-import/internal/plan"
	qb "github.com/riskibarqy/league-import/internal/platform/querybuilder"
	"github.com/riskibarqy/league-import/internal/usecase"
)

// leagueLockClass namespaces the advisory lock keys this service takes, so
// they cannot collide with other users of the same database.
const leagueLockClass = 4217

func (s *Store) LeagueByName(ctx context.Context, name string) (league.League, error) {
	query, args, err := qb.Select("*").From("leagues").
		Where(qb.Eq("name", name)).
		ToSQL()
	if err != nil {
		return league.League{}, fmt.Errorf("build get league query: %w", err)
	}

	var row leagueTableModel
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return league.League{}, fmt.Errorf("%w: league %s", usecase.ErrNotFound, name)
		}
		return league.League{}, fmt.Errorf("get league by name: %w", err)
	}

	return row.toDomain(), nil
}

func (s *Store) CreateLeague(ctx context.Context, lg league.League) (league.League, error) {
	query, args, err := qb.InsertInto("leagues").
		Columns("name", "season").
		Values(lg.Name, lg.Season).
		Suffix("RETURNING id, created_at").
		ToSQL()
	if err != nil {
		return league.League{}, fmt.Errorf("build insert league query: %w", err)
	}

	var row leagueTableModel
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&row.ID, &row.CreatedAt); err != nil {
		return league.League{}, fmt.Errorf("insert league %s: %w", lg.Name, err)
	}
	lg.ID = row.ID
	lg.CreatedAt = row.CreatedAt
	return lg, nil
}

// LoadCurrent returns every row of the league, retired ones included. The
// planner and checker filter on Active themselves; the reconciliation pass
// needs the retired rows too.
func (s *Store) LoadCurrent(ctx context.Context, leagueID int64) (plan.Current, error) {
	current := plan.Current{MatchSourceIDs: make(map[string]struct{})}

	var clubs []clubTableModel
	if err := s.selectByLeague(ctx, &clubs, "clubs", leagueID); err != nil {
		return plan.Current{}, err
	}
	for _, row := range clubs {
		current.Clubs = append(current.Clubs, row.toDomain())
	}

	var series []seriesTableModel
	if err := s.selectByLeague(ctx, &series, "series", leagueID); err != nil {
		return plan.Current{}, err
	}
	for _, row := range series {
		current.Series = append(current.Series, row.toDomain())
	}

	var teams []teamTableModel
	if err := s.selectByLeague(ctx, &teams, "teams", leagueID); err != nil {
		return plan.Current{}, err
	}
	for _, row := range teams {
		current.Teams = append(current.Teams, row.toDomain())
	}

	var players []playerTableModel
	if err := s.selectByLeague(ctx, &players, "players", leagueID); err != nil {
		return plan.Current{}, err
	}
	for _, row := range players {
		current.Players = append(current.Players, row.toDomain())
	}

	query, args, err := qb.Select("source_id").From("match_results").
		Where(qb.Eq("league_id", leagueID)).
		ToSQL()
	if err != nil {
		return plan.Current{}, fmt.Errorf("build select match source ids query: %w", err)
	}
	var sourceIDs []string
	if err := s.db.SelectContext(ctx, &sourceIDs, query, args...); err != nil {
		return plan.Current{}, fmt.Errorf("select match source ids: %w", err)
	}
	for _, id := range sourceIDs {
		current.MatchSourceIDs[id] = struct{}{}
	}

	return current, nil
}

func (s *Store) selectByLeague(ctx context.Context, dest any, table string, leagueID int64) error {
	query, args, err := qb.Select("*").From(table).
		Where(qb.Eq("league_id", leagueID)).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return fmt.Errorf("build select %s query: %w", table, err)
	}
	if err := s.db.SelectContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	return nil
}

// AcquireLeagueLock takes a session-level advisory lock on a dedicated
// connection. The connection is held until release so the lock survives
// intermediate transactions.
func (s *Store) AcquireLeagueLock(ctx context.Context, leagueID int64) (func(), error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkout lock connection: %w", err)
	}

	var locked bool
	if err := conn.GetContext(ctx, &locked,
		"SELECT pg_try_advisory_lock($1::int, $2::int)", leagueLockClass, leagueID); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire league lock: %w", err)
	}
	if !locked {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: league %d", usecase.ErrRunConflict, leagueID)
	}

	release := func() {
		var unlocked bool
		if err := conn.GetContext(context.Background(), &unlocked,
			"SELECT pg_advisory_unlock($1::int, $2::int)", leagueLockClass, leagueID); err != nil {
			s.logger.Error("release league lock failed", "league_id", leagueID, "error", err)
		}
		_ = conn.Close()
	}
	return release, nil
}

func (s *Store) Begin(ctx context.Context) (usecase.ImportTx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (s *Store) SaveRun(ctx context.Context, rec usecase.RunRecord) error {
	model := importRunInsertModel{
		RunID:      rec.RunID,
		LeagueID:   rec.LeagueID,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		State:      string(rec.State),
		DryRun:     rec.DryRun,
		ReportPath: rec.ReportPath,
		Error:      rec.Error,
	}
	query, args, err := qb.InsertModel("import_runs", model, `ON CONFLICT (run_id)
DO UPDATE SET
    finished_at = EXCLUDED.finished_at,
    state = EXCLUDED.state,
    report_path = EXCLUDED.report_path,
    error = EXCLUDED.error`)
	if err != nil {
		return fmt.Errorf("build upsert import run query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert import run %s: %w", rec.RunID, err)
	}
	return nil
}
