package postgres

import (
	"time"

	"github.com/riskibarqy/league-import/internal/domain/matchresult"
)

type matchResultTableModel struct {
	ID             int64     `db:"id"`
	LeagueID       int64     `db:"league_id"`
	SeriesID       int64     `db:"series_id"`
	SourceID       string    `db:"source_id"`
	HomeTeamID     int64     `db:"home_team_id"`
	AwayTeamID     int64     `db:"away_team_id"`
	HomePlayer1Ext string    `db:"home_player1_ext"`
	HomePlayer2Ext string    `db:"home_player2_ext"`
	AwayPlayer1Ext string    `db:"away_player1_ext"`
	AwayPlayer2Ext string    `db:"away_player2_ext"`
	HomeScore      int       `db:"home_score"`
	AwayScore      int       `db:"away_score"`
	PlayedAt       time.Time `db:"played_at"`
	CreatedAt      time.Time `db:"created_at"`
}

func (m matchResultTableModel) toDomain() matchresult.Result {
	return matchresult.Result{
		ID:             m.ID,
		LeagueID:       m.LeagueID,
		SeriesID:       m.SeriesID,
		SourceID:       m.SourceID,
		HomeTeamID:     m.HomeTeamID,
		AwayTeamID:     m.AwayTeamID,
		HomePlayer1Ext: m.HomePlayer1Ext,
		HomePlayer2Ext: m.HomePlayer2Ext,
		AwayPlayer1Ext: m.AwayPlayer1Ext,
		AwayPlayer2Ext: m.AwayPlayer2Ext,
		HomeScore:      m.HomeScore,
		AwayScore:      m.AwayScore,
		PlayedAt:       m.PlayedAt,
		CreatedAt:      m.CreatedAt,
	}
}
