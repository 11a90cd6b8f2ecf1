package postgres

import (
	"time"
)

type importRunInsertModel struct {
	RunID      string    `db:"run_id"`
	LeagueID   int64     `db:"league_id"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	State      string    `db:"state"`
	DryRun     bool      `db:"dry_run"`
	ReportPath string    `db:"report_path"`
	Error      string    `db:"error"`
}
