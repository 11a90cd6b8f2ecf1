package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/league-import/internal/domain/schedule"
	"github.com/riskibarqy/league-import/internal/plan"
	qb "github.com/riskibarqy/league-import/internal/platform/querybuilder"
	"github.com/riskibarqy/league-import/internal/usecase"
)

func (s *Store) PracticeTimes(ctx context.Context, leagueID int64) ([]schedule.PracticeTime, error) {
	query, args, err := qb.Select("*").From("practice_times").
		Where(qb.Eq("league_id", leagueID)).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select practice times query: %w", err)
	}

	var rows []practiceTimeTableModel
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select practice times: %w", err)
	}

	out := make([]schedule.PracticeTime, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// AuditKeyForEntity returns the newest natural key the trail recorded for
// one surrogate ID.
func (s *Store) AuditKeyForEntity(ctx context.Context, entityType plan.EntityType, entityID int64) (string, error) {
	query, args, err := qb.Select("natural_key").From("id_audit").
		Where(
			qb.Eq("entity_type", string(entityType)),
			qb.Eq("entity_id", entityID),
		).
		OrderBy("recorded_at DESC", "id DESC").
		Limit(1).
		ToSQL()
	if err != nil {
		return "", fmt.Errorf("build audit lookup query: %w", err)
	}

	var key string
	if err := s.db.GetContext(ctx, &key, query, args...); err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("audit %s/%d: %w", entityType, entityID, usecase.ErrNotFound)
		}
		return "", fmt.Errorf("audit lookup %s/%d: %w", entityType, entityID, err)
	}
	return key, nil
}

func (s *Store) RepointTeamsToClub(ctx context.Context, fromClubID, toClubID int64) error {
	query, args, err := qb.Update("teams").
		Set("club_id", toClubID).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("club_id", fromClubID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build repoint teams query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("repoint teams %d -> %d: %w", fromClubID, toClubID, err)
	}
	return nil
}

func (s *Store) RepointPlayersToTeam(ctx context.Context, fromTeamID, toTeamID int64) error {
	query, args, err := qb.Update("players").
		Set("team_id", toTeamID).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("team_id", fromTeamID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build repoint players query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("repoint players %d -> %d: %w", fromTeamID, toTeamID, err)
	}
	return nil
}

// RepointPracticeTime also clears the review flag; a successful re-resolve
// supersedes any earlier flagging.
func (s *Store) RepointPracticeTime(ctx context.Context, id, teamID int64) error {
	query, args, err := qb.Update("practice_times").
		Set("team_id", teamID).
		Set("needs_review", false).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build repoint practice time query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("repoint practice time %d: %w", id, err)
	}
	return nil
}

func (s *Store) FlagPracticeTime(ctx context.Context, id int64) error {
	query, args, err := qb.Update("practice_times").
		Set("needs_review", true).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build flag practice time query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("flag practice time %d: %w", id, err)
	}
	return nil
}

func (s *Store) RetireClub(ctx context.Context, id int64, at time.Time) error {
	return s.retire(ctx, "clubs", id, at)
}

func (s *Store) RetireTeam(ctx context.Context, id int64, at time.Time) error {
	return s.retire(ctx, "teams", id, at)
}

func (s *Store) RetirePlayer(ctx context.Context, id int64, at time.Time) error {
	return s.retire(ctx, "players", id, at)
}

func (s *Store) retire(ctx context.Context, table string, id int64, at time.Time) error {
	query, args, err := qb.Update(table).
		Set("deleted_at", at).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", id), qb.IsNull("deleted_at")).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build retire %s query: %w", table, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("retire %s %d: %w", table, id, err)
	}
	return nil
}
