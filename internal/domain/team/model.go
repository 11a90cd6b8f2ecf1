package team

import (
	"fmt"
	"time"
)

// Team is one club's entry in one series. The (club_id, series_id,
// league_id) triple is unique among active teams; practice times, rosters
// and cached standings all hang off the surrogate ID, which must survive
// re-imports.
type Team struct {
	ID        int64
	LeagueID  int64
	ClubID    int64
	SeriesID  int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (t Team) Active() bool {
	return t.DeletedAt == nil
}

func (t Team) Validate() error {
	if t.LeagueID <= 0 {
		return fmt.Errorf("team league id is required")
	}
	if t.ClubID <= 0 {
		return fmt.Errorf("team club id is required")
	}
	if t.SeriesID <= 0 {
		return fmt.Errorf("team series id is required")
	}
	return nil
}
