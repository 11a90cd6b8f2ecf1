package series

import (
	"fmt"
	"time"
)

// Series is a competitive division. Each series belongs to exactly one
// league; (league_id, canonical_name) is unique among active rows.
type Series struct {
	ID            int64
	LeagueID      int64
	Name          string
	CanonicalName string
	Tier          int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

func (s Series) Active() bool {
	return s.DeletedAt == nil
}

func (s Series) Validate() error {
	if s.LeagueID <= 0 {
		return fmt.Errorf("series league id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("series name is required")
	}
	if s.CanonicalName == "" {
		return fmt.Errorf("series canonical name is required")
	}
	return nil
}
