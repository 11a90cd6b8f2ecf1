package feed

import "time"

// Dataset is one league's worth of scraped source documents, parsed and
// field-validated. Records that failed validation are carried in Excluded
// with a reason instead of being silently dropped.
type Dataset struct {
	League  LeagueDocument
	Clubs   []ClubRecord
	Series  []SeriesRecord
	Teams   []TeamRecord
	Players []PlayerRecord
	Matches []MatchRecord

	Excluded []Exclusion
	// Raw holds the document bytes keyed by file name, for archiving next to
	// the pre-run backup.
	Raw map[string][]byte
}

type LeagueDocument struct {
	Name      string    `json:"name" validate:"required"`
	Season    string    `json:"season"`
	ScrapedAt time.Time `json:"scraped_at"`
}

type ClubRecord struct {
	Name string `json:"name" validate:"required"`
}

type SeriesRecord struct {
	Name string `json:"name" validate:"required"`
	// League is the league the source claims this series belongs to. The
	// invariant checker aborts the run when one series claims several.
	League string `json:"league"`
	Tier   int    `json:"tier"`
}

type TeamRecord struct {
	Club   string `json:"club" validate:"required"`
	Series string `json:"series" validate:"required"`
	Name   string `json:"name"`
}

type PlayerRecord struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name" validate:"required"`
	Club       string `json:"club" validate:"required"`
	Series     string `json:"series" validate:"required"`
	Substitute bool   `json:"substitute"`
}

type MatchRecord struct {
	SourceID       string    `json:"source_id" validate:"required"`
	Series         string    `json:"series" validate:"required"`
	HomeClub       string    `json:"home_club" validate:"required"`
	AwayClub       string    `json:"away_club" validate:"required"`
	HomePlayer1Ext string    `json:"home_player1_ext"`
	HomePlayer2Ext string    `json:"home_player2_ext"`
	AwayPlayer1Ext string    `json:"away_player1_ext"`
	AwayPlayer2Ext string    `json:"away_player2_ext"`
	HomeScore      int       `json:"home_score"`
	AwayScore      int       `json:"away_score"`
	PlayedAt       time.Time `json:"played_at"`
}

// Exclusion records one input defect: the record is kept out of the run and
// surfaced, never guessed at.
type Exclusion struct {
	Entity string
	Reason string
	Detail string
}
