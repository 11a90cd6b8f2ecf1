package postgres

import (
	"time"

	"github.com/riskibarqy/league-import/internal/domain/league"
)

type leagueTableModel struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Season    string    `db:"season"`
	CreatedAt time.Time `db:"created_at"`
}

func (m leagueTableModel) toDomain() league.League {
	return league.League{
		ID:        m.ID,
		Name:      m.Name,
		Season:    m.Season,
		CreatedAt: m.CreatedAt,
	}
}
