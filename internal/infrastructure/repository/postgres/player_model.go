package postgres

import (
	"time"

	"github.com/riskibarqy/league-import/internal/domain/player"
)

type playerTableModel struct {
	ID         int64      `db:"id"`
	LeagueID   int64      `db:"league_id"`
	TeamID     int64      `db:"team_id"`
	ExternalID string     `db:"external_id"`
	Name       string     `db:"name"`
	Substitute bool       `db:"substitute"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
	DeletedAt  *time.Time `db:"deleted_at"`
}

func (m playerTableModel) toDomain() player.Player {
	return player.Player{
		ID:         m.ID,
		LeagueID:   m.LeagueID,
		TeamID:     m.TeamID,
		ExternalID: m.ExternalID,
		Name:       m.Name,
		Substitute: m.Substitute,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		DeletedAt:  m.DeletedAt,
	}
}
