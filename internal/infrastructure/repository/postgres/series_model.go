package postgres

import (
	"time"

	"github.com/riskibarqy/league-import/internal/domain/series"
)

type seriesTableModel struct {
	ID            int64      `db:"id"`
	LeagueID      int64      `db:"league_id"`
	Name          string     `db:"name"`
	CanonicalName string     `db:"canonical_name"`
	Tier          int        `db:"tier"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
}

func (m seriesTableModel) toDomain() series.Series {
	return series.Series{
		ID:            m.ID,
		LeagueID:      m.LeagueID,
		Name:          m.Name,
		CanonicalName: m.CanonicalName,
		Tier:          m.Tier,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		DeletedAt:     m.DeletedAt,
	}
}
