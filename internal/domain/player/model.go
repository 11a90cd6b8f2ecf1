package player

import (
	"fmt"
	"time"
)

// Player is identified by the source system's external ID plus league.
// Historical references (match participation, user associations) use the
// external ID so they survive row churn and team reassignment.
type Player struct {
	ID         int64
	LeagueID   int64
	TeamID     int64
	ExternalID string
	Name       string
	// Substitute marks an explicitly sanctioned secondary record; those are
	// exempt from the (external_id, league_id) uniqueness invariant.
	Substitute bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

func (p Player) Active() bool {
	return p.DeletedAt == nil
}

func (p Player) Validate() error {
	if p.LeagueID <= 0 {
		return fmt.Errorf("player league id is required")
	}
	if p.TeamID <= 0 {
		return fmt.Errorf("player team id is required")
	}
	if p.ExternalID == "" {
		return fmt.Errorf("player external id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("player name is required")
	}
	return nil
}
