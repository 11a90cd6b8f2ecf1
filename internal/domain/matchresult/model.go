package matchresult

import (
	"fmt"
	"time"
)

// Result is an immutable record of one played match. Teams are referenced by
// surrogate ID, players by external ID. Rows are append-only per run,
// deduplicated on (league_id, source_id).
type Result struct {
	ID             int64
	LeagueID       int64
	SeriesID       int64
	SourceID       string
	HomeTeamID     int64
	AwayTeamID     int64
	HomePlayer1Ext string
	HomePlayer2Ext string
	AwayPlayer1Ext string
	AwayPlayer2Ext string
	HomeScore      int
	AwayScore      int
	PlayedAt       time.Time
	CreatedAt      time.Time
}

func (r Result) Validate() error {
	if r.LeagueID <= 0 {
		return fmt.Errorf("match result league id is required")
	}
	if r.SourceID == "" {
		return fmt.Errorf("match result source id is required")
	}
	if r.HomeTeamID <= 0 || r.AwayTeamID <= 0 {
		return fmt.Errorf("match result team ids are required")
	}
	if r.HomeTeamID == r.AwayTeamID {
		return fmt.Errorf("match result teams must differ")
	}
	return nil
}
