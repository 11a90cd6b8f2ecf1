package league

import (
	"fmt"
	"time"
)

// League is the top-level partition for every other entity. Rows are
// immutable once created; re-imports reattach to the existing row.
type League struct {
	ID        int64
	Name      string
	Season    string
	CreatedAt time.Time
}

func (l League) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("league name is required")
	}
	return nil
}
