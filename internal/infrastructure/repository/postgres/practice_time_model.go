package postgres

import (
	"time"

	"github.com/riskibarqy/league-import/internal/domain/schedule"
)

type practiceTimeTableModel struct {
	ID          int64     `db:"id"`
	LeagueID    int64     `db:"league_id"`
	TeamID      int64     `db:"team_id"`
	Weekday     int       `db:"weekday"`
	StartTime   string    `db:"start_time"`
	EndTime     string    `db:"end_time"`
	Location    string    `db:"location"`
	NeedsReview bool      `db:"needs_review"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (m practiceTimeTableModel) toDomain() schedule.PracticeTime {
	return schedule.PracticeTime{
		ID:          m.ID,
		LeagueID:    m.LeagueID,
		TeamID:      m.TeamID,
		Weekday:     time.Weekday(m.Weekday),
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		Location:    m.Location,
		NeedsReview: m.NeedsReview,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
