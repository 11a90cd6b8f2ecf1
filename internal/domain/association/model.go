package association

import "time"

// UserPlayer links an account to a player by the player's external ID, not
// the surrogate row ID, so the link survives player row churn.
type UserPlayer struct {
	ID               int64
	UserID           int64
	LeagueID         int64
	PlayerExternalID string
	CreatedAt        time.Time
}
