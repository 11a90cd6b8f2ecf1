package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/league-import/internal/check"
	"github.com/riskibarqy/league-import/internal/domain/audit"
	"github.com/riskibarqy/league-import/internal/plan"
	qb "github.com/riskibarqy/league-import/internal/platform/querybuilder"
)

// Tx carries every mutation of one import run. The coordinator calls either
// Commit or Rollback exactly once.
type Tx struct {
	tx *sqlx.Tx
}

func (t *Tx) InsertClub(ctx context.Context, op plan.ClubOp) (int64, error) {
	query, args, err := qb.InsertInto("clubs").
		Columns("league_id", "name", "canonical_name").
		Values(op.Club.LeagueID, op.Club.Name, op.Club.CanonicalName).
		Suffix("RETURNING id").
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build insert club query: %w", err)
	}
	return t.insertReturningID(ctx, query, args)
}

func (t *Tx) UpdateClub(ctx context.Context, op plan.ClubOp) error {
	query, args, err := qb.Update("clubs").
		Set("name", op.Club.Name).
		Set("canonical_name", op.Club.CanonicalName).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", op.Club.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update club query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update club %d: %w", op.Club.ID, err)
	}
	return nil
}

func (t *Tx) RetireClub(ctx context.Context, id int64, at time.Time) error {
	return t.retire(ctx, "clubs", id, at)
}

func (t *Tx) InsertSeries(ctx context.Context, op plan.SeriesOp) (int64, error) {
	query, args, err := qb.InsertInto("series").
		Columns("league_id", "name", "canonical_name", "tier").
		Values(op.Series.LeagueID, op.Series.Name, op.Series.CanonicalName, op.Series.Tier).
		Suffix("RETURNING id").
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build insert series query: %w", err)
	}
	return t.insertReturningID(ctx, query, args)
}

func (t *Tx) UpdateSeries(ctx context.Context, op plan.SeriesOp) error {
	query, args, err := qb.Update("series").
		Set("name", op.Series.Name).
		Set("canonical_name", op.Series.CanonicalName).
		Set("tier", op.Series.Tier).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", op.Series.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update series query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update series %d: %w", op.Series.ID, err)
	}
	return nil
}

func (t *Tx) RetireSeries(ctx context.Context, id int64, at time.Time) error {
	return t.retire(ctx, "series", id, at)
}

func (t *Tx) InsertTeam(ctx context.Context, op plan.TeamOp, clubID, seriesID int64) (int64, error) {
	query, args, err := qb.InsertInto("teams").
		Columns("league_id", "club_id", "series_id", "name").
		Values(op.Team.LeagueID, clubID, seriesID, op.Team.Name).
		Suffix("RETURNING id").
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build insert team query: %w", err)
	}
	return t.insertReturningID(ctx, query, args)
}

func (t *Tx) UpdateTeam(ctx context.Context, op plan.TeamOp, clubID, seriesID int64) error {
	query, args, err := qb.Update("teams").
		Set("club_id", clubID).
		Set("series_id", seriesID).
		Set("name", op.Team.Name).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", op.Team.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update team query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update team %d: %w", op.Team.ID, err)
	}
	return nil
}

func (t *Tx) RetireTeam(ctx context.Context, id int64, at time.Time) error {
	return t.retire(ctx, "teams", id, at)
}

func (t *Tx) InsertPlayer(ctx context.Context, op plan.PlayerOp, teamID int64) (int64, error) {
	query, args, err := qb.InsertInto("players").
		Columns("league_id", "team_id", "external_id", "name", "substitute").
		Values(op.Player.LeagueID, teamID, op.Player.ExternalID, op.Player.Name, op.Player.Substitute).
		Suffix("RETURNING id").
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build insert player query: %w", err)
	}
	return t.insertReturningID(ctx, query, args)
}

func (t *Tx) UpdatePlayer(ctx context.Context, op plan.PlayerOp, teamID int64) error {
	query, args, err := qb.Update("players").
		Set("team_id", teamID).
		Set("name", op.Player.Name).
		Set("substitute", op.Player.Substitute).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", op.Player.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update player query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update player %d: %w", op.Player.ID, err)
	}
	return nil
}

func (t *Tx) RetirePlayer(ctx context.Context, id int64, at time.Time) error {
	return t.retire(ctx, "players", id, at)
}

func (t *Tx) InsertMatchResult(ctx context.Context, op plan.MatchOp, seriesID, homeTeamID, awayTeamID int64) (int64, error) {
	r := op.Result
	query, args, err := qb.InsertInto("match_results").
		Columns("league_id", "series_id", "source_id",
			"home_team_id", "away_team_id",
			"home_player1_ext", "home_player2_ext", "away_player1_ext", "away_player2_ext",
			"home_score", "away_score", "played_at").
		Values(r.LeagueID, seriesID, r.SourceID,
			homeTeamID, awayTeamID,
			r.HomePlayer1Ext, r.HomePlayer2Ext, r.AwayPlayer1Ext, r.AwayPlayer2Ext,
			r.HomeScore, r.AwayScore, r.PlayedAt).
		Suffix("RETURNING id").
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build insert match result query: %w", err)
	}
	return t.insertReturningID(ctx, query, args)
}

func (t *Tx) AppendAudit(ctx context.Context, entry audit.Entry) error {
	query, args, err := qb.InsertInto("id_audit").
		Columns("run_id", "entity_type", "entity_id", "natural_key", "recorded_at").
		Values(entry.RunID, entry.EntityType, entry.EntityID, entry.NaturalKey, entry.RecordedAt).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert audit query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit entry %s/%d: %w", entry.EntityType, entry.EntityID, err)
	}
	return nil
}

// recomputeStandingsSQL rebuilds the cached table from match results: two
// points for a win, one for a draw, position per series by points then team
// ID.
const recomputeStandingsSQL = `
INSERT INTO standings (league_id, series_id, team_id, played, won, drawn, lost, points, position, computed_at)
SELECT league_id, series_id, team_id,
       played, won, drawn, lost, points,
       ROW_NUMBER() OVER (PARTITION BY series_id ORDER BY points DESC, team_id) AS position,
       $2
FROM (
    SELECT league_id, series_id, team_id,
           COUNT(*)   AS played,
           SUM(won)   AS won,
           SUM(drawn) AS drawn,
           SUM(lost)  AS lost,
           2 * SUM(won) + SUM(drawn) AS points
    FROM (
        SELECT league_id, series_id, home_team_id AS team_id,
               CASE WHEN home_score > away_score THEN 1 ELSE 0 END AS won,
               CASE WHEN home_score = away_score THEN 1 ELSE 0 END AS drawn,
               CASE WHEN home_score < away_score THEN 1 ELSE 0 END AS lost
        FROM match_results
        WHERE league_id = $1
        UNION ALL
        SELECT league_id, series_id, away_team_id,
               CASE WHEN away_score > home_score THEN 1 ELSE 0 END,
               CASE WHEN away_score = home_score THEN 1 ELSE 0 END,
               CASE WHEN away_score < home_score THEN 1 ELSE 0 END
        FROM match_results
        WHERE league_id = $1
    ) sides
    GROUP BY league_id, series_id, team_id
) agg`

func (t *Tx) RecomputeStandings(ctx context.Context, leagueID int64, at time.Time) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM standings WHERE league_id = $1", leagueID); err != nil {
		return fmt.Errorf("clear standings: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, recomputeStandingsSQL, leagueID, at); err != nil {
		return fmt.Errorf("recompute standings: %w", err)
	}
	return nil
}

// VerifyInvariants re-checks uniqueness and referential integrity against
// the mutated state, inside the transaction, before the coordinator commits.
// All findings accumulate; the caller decides to roll back.
func (t *Tx) VerifyInvariants(ctx context.Context, leagueID int64) ([]check.Violation, error) {
	var out []check.Violation

	type dupRow struct {
		Key   string `db:"key"`
		MinID int64  `db:"min_id"`
		MaxID int64  `db:"max_id"`
	}

	var clubDups []dupRow
	if err := t.tx.SelectContext(ctx, &clubDups, `
		SELECT canonical_name AS key, MIN(id) AS min_id, MAX(id) AS max_id
		FROM clubs
		WHERE league_id = $1 AND deleted_at IS NULL
		GROUP BY canonical_name
		HAVING COUNT(*) > 1`, leagueID); err != nil {
		return nil, fmt.Errorf("verify club uniqueness: %w", err)
	}
	for _, row := range clubDups {
		out = append(out, check.Violation{
			Entity:     plan.EntityClub,
			NaturalKey: row.Key,
			Reason:     check.ReasonVerificationFailed,
			Detail:     fmt.Sprintf("active clubs %d and %d share one canonical name", row.MinID, row.MaxID),
		})
	}

	type refRow struct {
		ID     int64  `db:"id"`
		Key    string `db:"key"`
		Parent int64  `db:"parent"`
	}

	var orphanTeams []refRow
	if err := t.tx.SelectContext(ctx, &orphanTeams, `
		SELECT t.id AS id, t.name AS key, t.club_id AS parent
		FROM teams t
		LEFT JOIN clubs c ON c.id = t.club_id AND c.deleted_at IS NULL
		WHERE t.league_id = $1 AND t.deleted_at IS NULL AND c.id IS NULL`, leagueID); err != nil {
		return nil, fmt.Errorf("verify team club refs: %w", err)
	}
	for _, row := range orphanTeams {
		out = append(out, check.Violation{
			Entity:     plan.EntityTeam,
			NaturalKey: row.Key,
			Reason:     check.ReasonDanglingTeamRef,
			Detail:     fmt.Sprintf("team %d references inactive club %d", row.ID, row.Parent),
		})
	}

	var orphanSeriesTeams []refRow
	if err := t.tx.SelectContext(ctx, &orphanSeriesTeams, `
		SELECT t.id AS id, t.name AS key, t.series_id AS parent
		FROM teams t
		LEFT JOIN series s ON s.id = t.series_id AND s.deleted_at IS NULL
		WHERE t.league_id = $1 AND t.deleted_at IS NULL AND s.id IS NULL`, leagueID); err != nil {
		return nil, fmt.Errorf("verify team series refs: %w", err)
	}
	for _, row := range orphanSeriesTeams {
		out = append(out, check.Violation{
			Entity:     plan.EntityTeam,
			NaturalKey: row.Key,
			Reason:     check.ReasonDanglingTeamRef,
			Detail:     fmt.Sprintf("team %d references inactive series %d", row.ID, row.Parent),
		})
	}

	var slotDups []dupRow
	if err := t.tx.SelectContext(ctx, &slotDups, `
		SELECT MIN(name) AS key, MIN(id) AS min_id, MAX(id) AS max_id
		FROM teams
		WHERE league_id = $1 AND deleted_at IS NULL
		GROUP BY club_id, series_id
		HAVING COUNT(*) > 1`, leagueID); err != nil {
		return nil, fmt.Errorf("verify team slot uniqueness: %w", err)
	}
	for _, row := range slotDups {
		out = append(out, check.Violation{
			Entity:     plan.EntityTeam,
			NaturalKey: row.Key,
			Reason:     check.ReasonTeamKeyConflict,
			Detail:     fmt.Sprintf("active teams %d and %d share one club and series", row.MinID, row.MaxID),
		})
	}

	var orphanPlayers []refRow
	if err := t.tx.SelectContext(ctx, &orphanPlayers, `
		SELECT p.id AS id, p.external_id AS key, p.team_id AS parent
		FROM players p
		LEFT JOIN teams t ON t.id = p.team_id AND t.deleted_at IS NULL
		WHERE p.league_id = $1 AND p.deleted_at IS NULL AND t.id IS NULL`, leagueID); err != nil {
		return nil, fmt.Errorf("verify player team refs: %w", err)
	}
	for _, row := range orphanPlayers {
		out = append(out, check.Violation{
			Entity:     plan.EntityPlayer,
			NaturalKey: row.Key,
			Reason:     check.ReasonDanglingTeamRef,
			Detail:     fmt.Sprintf("player %d references inactive team %d", row.ID, row.Parent),
		})
	}

	var playerDups []dupRow
	if err := t.tx.SelectContext(ctx, &playerDups, `
		SELECT external_id AS key, MIN(id) AS min_id, MAX(id) AS max_id
		FROM players
		WHERE league_id = $1 AND deleted_at IS NULL AND substitute = FALSE
		GROUP BY external_id
		HAVING COUNT(*) > 1`, leagueID); err != nil {
		return nil, fmt.Errorf("verify player uniqueness: %w", err)
	}
	for _, row := range playerDups {
		out = append(out, check.Violation{
			Entity:     plan.EntityPlayer,
			NaturalKey: row.Key,
			Reason:     check.ReasonPlayerExternalDup,
			Detail:     fmt.Sprintf("active players %d and %d share one external id", row.MinID, row.MaxID),
		})
	}

	var orphanMatches []refRow
	if err := t.tx.SelectContext(ctx, &orphanMatches, `
		SELECT m.id AS id, m.source_id AS key, side.team_id AS parent
		FROM match_results m
		CROSS JOIN LATERAL (VALUES (m.home_team_id), (m.away_team_id)) AS side(team_id)
		LEFT JOIN teams t ON t.id = side.team_id
		WHERE m.league_id = $1 AND t.id IS NULL`, leagueID); err != nil {
		return nil, fmt.Errorf("verify match team refs: %w", err)
	}
	for _, row := range orphanMatches {
		out = append(out, check.Violation{
			Entity:     plan.EntityMatchResult,
			NaturalKey: row.Key,
			Reason:     check.ReasonDanglingTeamRef,
			Detail:     fmt.Sprintf("match %s references unknown team %d", row.Key, row.Parent),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		return out[i].NaturalKey < out[j].NaturalKey
	})
	return out, nil
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

func (t *Tx) insertReturningID(ctx context.Context, query string, args []any) (int64, error) {
	var id int64
	if err := t.tx.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *Tx) retire(ctx context.Context, table string, id int64, at time.Time) error {
	query, args, err := qb.Update(table).
		Set("deleted_at", at).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", id), qb.IsNull("deleted_at")).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build retire %s query: %w", table, err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("retire %s %d: %w", table, id, err)
	}
	return nil
}
