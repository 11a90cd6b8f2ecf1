package club

import (
	"fmt"
	"time"
)

// Club groups teams under one organisation. Identity across imports is the
// canonical name, never the surrogate ID.
type Club struct {
	ID            int64
	LeagueID      int64
	Name          string
	CanonicalName string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

func (c Club) Active() bool {
	return c.DeletedAt == nil
}

func (c Club) Validate() error {
	if c.LeagueID <= 0 {
		return fmt.Errorf("club league id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("club name is required")
	}
	if c.CanonicalName == "" {
		return fmt.Errorf("club canonical name is required")
	}
	return nil
}
