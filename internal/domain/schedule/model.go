package schedule

import "time"

// PracticeTime is created by users, not by the import. It references a team
// by surrogate ID, which makes it the first casualty of any import that
// fails to preserve team identity. The import never writes these rows; only
// the reconciliation pass repoints or flags them.
type PracticeTime struct {
	ID          int64
	LeagueID    int64
	TeamID      int64
	Weekday     time.Weekday
	StartTime   string
	EndTime     string
	Location    string
	NeedsReview bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
