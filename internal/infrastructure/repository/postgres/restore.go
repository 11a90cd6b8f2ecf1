package postgres

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/league-import/internal/backup"
	"github.com/riskibarqy/league-import/internal/domain/club"
	"github.com/riskibarqy/league-import/internal/domain/league"
	"github.com/riskibarqy/league-import/internal/domain/player"
	"github.com/riskibarqy/league-import/internal/domain/series"
	"github.com/riskibarqy/league-import/internal/domain/team"
	qb "github.com/riskibarqy/league-import/internal/platform/querybuilder"
)

// Restore resets one league's imported rows to a snapshot, in a single
// transaction, preserving the surrogate IDs the snapshot recorded. User-owned
// rows (practice times, associations) and the audit trail stay untouched;
// match results and standings are derived data and are dropped with the rest.
func (s *Store) Restore(ctx context.Context, snap backup.Snapshot) error {
	var leagues []league.League
	if err := decodeTable(snap, "leagues", &leagues); err != nil {
		return err
	}
	if len(leagues) != 1 {
		return fmt.Errorf("snapshot %s: expected exactly one league row, got %d", snap.Dir, len(leagues))
	}
	lg := leagues[0]

	var clubs []club.Club
	if err := decodeTable(snap, "clubs", &clubs); err != nil {
		return err
	}
	var allSeries []series.Series
	if err := decodeTable(snap, "series", &allSeries); err != nil {
		return err
	}
	var teams []team.Team
	if err := decodeTable(snap, "teams", &teams); err != nil {
		return err
	}
	var players []player.Player
	if err := decodeTable(snap, "players", &players); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"standings", "match_results", "players", "teams", "series", "clubs"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE league_id = $1", table), lg.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	leagueQuery, leagueArgs, err := qb.InsertInto("leagues").
		Columns("id", "name", "season", "created_at").
		Values(lg.ID, lg.Name, lg.Season, lg.CreatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, season = EXCLUDED.season`).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build restore league query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, leagueQuery, leagueArgs...); err != nil {
		return fmt.Errorf("restore league %d: %w", lg.ID, err)
	}

	for _, c := range clubs {
		if err := insertRestored(ctx, tx, "clubs", clubTableModel{
			ID:            c.ID,
			LeagueID:      c.LeagueID,
			Name:          c.Name,
			CanonicalName: c.CanonicalName,
			CreatedAt:     c.CreatedAt,
			UpdatedAt:     c.UpdatedAt,
			DeletedAt:     c.DeletedAt,
		}); err != nil {
			return err
		}
	}
	for _, sr := range allSeries {
		if err := insertRestored(ctx, tx, "series", seriesTableModel{
			ID:            sr.ID,
			LeagueID:      sr.LeagueID,
			Name:          sr.Name,
			CanonicalName: sr.CanonicalName,
			Tier:          sr.Tier,
			CreatedAt:     sr.CreatedAt,
			UpdatedAt:     sr.UpdatedAt,
			DeletedAt:     sr.DeletedAt,
		}); err != nil {
			return err
		}
	}
	for _, t := range teams {
		if err := insertRestored(ctx, tx, "teams", teamTableModel{
			ID:        t.ID,
			LeagueID:  t.LeagueID,
			ClubID:    t.ClubID,
			SeriesID:  t.SeriesID,
			Name:      t.Name,
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
			DeletedAt: t.DeletedAt,
		}); err != nil {
			return err
		}
	}
	for _, p := range players {
		if err := insertRestored(ctx, tx, "players", playerTableModel{
			ID:         p.ID,
			LeagueID:   p.LeagueID,
			TeamID:     p.TeamID,
			ExternalID: p.ExternalID,
			Name:       p.Name,
			Substitute: p.Substitute,
			CreatedAt:  p.CreatedAt,
			UpdatedAt:  p.UpdatedAt,
			DeletedAt:  p.DeletedAt,
		}); err != nil {
			return err
		}
	}

	// Explicit-ID inserts leave the sequences behind; realign them.
	for _, table := range []string{"leagues", "clubs", "series", "teams", "players"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%s', 'id'), GREATEST(COALESCE((SELECT MAX(id) FROM %s), 0), 1))",
			table, table)); err != nil {
			return fmt.Errorf("realign %s sequence: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore tx: %w", err)
	}
	committed = true

	s.logger.Info("snapshot restored",
		"league_id", lg.ID,
		"run_id", snap.RunID,
		"clubs", len(clubs),
		"series", len(allSeries),
		"teams", len(teams),
		"players", len(players),
	)
	return nil
}

func decodeTable(snap backup.Snapshot, table string, dest any) error {
	raw, ok := snap.Tables[table]
	if !ok {
		return fmt.Errorf("snapshot %s: table %s missing", snap.Dir, table)
	}
	if err := sonic.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode snapshot table %s: %w", table, err)
	}
	return nil
}

func insertRestored(ctx context.Context, tx *sqlx.Tx, table string, model any) error {
	query, args, err := qb.InsertModel(table, model, "")
	if err != nil {
		return fmt.Errorf("build restore %s query: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("restore %s row: %w", table, err)
	}
	return nil
}
