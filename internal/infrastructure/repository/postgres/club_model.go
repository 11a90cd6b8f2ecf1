package postgres

import (
	"time"

	"github.com/riskibarqy/league-import/internal/domain/club"
)

type clubTableModel struct {
	ID            int64      `db:"id"`
	LeagueID      int64      `db:"league_id"`
	Name          string     `db:"name"`
	CanonicalName string     `db:"canonical_name"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
}

func (m clubTableModel) toDomain() club.Club {
	return club.Club{
		ID:            m.ID,
		LeagueID:      m.LeagueID,
		Name:          m.Name,
		CanonicalName: m.CanonicalName,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		DeletedAt:     m.DeletedAt,
	}
}
