package postgres

import (
	"time"

	"github.com/riskibarqy/league-import/internal/domain/team"
)

type teamTableModel struct {
	ID        int64      `db:"id"`
	LeagueID  int64      `db:"league_id"`
	ClubID    int64      `db:"club_id"`
	SeriesID  int64      `db:"series_id"`
	Name      string     `db:"name"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at"`
}

func (m teamTableModel) toDomain() team.Team {
	return team.Team{
		ID:        m.ID,
		LeagueID:  m.LeagueID,
		ClubID:    m.ClubID,
		SeriesID:  m.SeriesID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		DeletedAt: m.DeletedAt,
	}
}
