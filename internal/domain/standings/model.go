package standings

import "time"

// Row is a cached aggregate per team and series, recomputed from match
// results after every committed import.
type Row struct {
	ID         int64
	LeagueID   int64
	SeriesID   int64
	TeamID     int64
	Played     int
	Won        int
	Drawn      int
	Lost       int
	Points     int
	Position   int
	ComputedAt time.Time
}
