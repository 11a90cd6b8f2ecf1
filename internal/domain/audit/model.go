package audit

import "time"

// Entry maps a surrogate ID to the natural key it carried at the time of an
// import run. The trail is append-only; the reconciliation pass uses it to
// re-resolve dangling references after the fact.
type Entry struct {
	ID         int64
	RunID      string
	EntityType string
	EntityID   int64
	NaturalKey string
	RecordedAt time.Time
}
