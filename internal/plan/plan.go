package plan

import (
	"github.com/riskibarqy/league-import/external/feed"
	"github.com/riskibarqy/league-import/internal/domain/club"
	"github.com/riskibarqy/league-import/internal/domain/league"
	"github.com/riskibarqy/league-import/internal/domain/matchresult"
	"github.com/riskibarqy/league-import/internal/domain/player"
	"github.com/riskibarqy/league-import/internal/domain/series"
	"github.com/riskibarqy/league-import/internal/domain/team"
	"github.com/riskibarqy/league-import/internal/naturalkey"
)

type OpKind int

const (
	OpInsert OpKind = iota + 1
	OpUpdate
	OpRetire
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpRetire:
		return "retire"
	default:
		return "unknown"
	}
}

type EntityType string

const (
	EntityLeague      EntityType = "league"
	EntityClub        EntityType = "club"
	EntitySeries      EntityType = "series"
	EntityTeam        EntityType = "team"
	EntityPlayer      EntityType = "player"
	EntityMatchResult EntityType = "match_result"
)

// Current is the pre-mutation view of one league's active rows, loaded once
// before planning. MatchSourceIDs lets the planner keep the result stream
// append-only.
type Current struct {
	League         league.League
	Clubs          []club.Club
	Series         []series.Series
	Teams          []team.Team
	Players        []player.Player
	MatchSourceIDs map[string]struct{}
}

// ClubOp's surrogate ID is set for update and retire, zero for insert.
type ClubOp struct {
	Kind OpKind
	Key  naturalkey.Key
	Club club.Club
}

type SeriesOp struct {
	Kind   OpKind
	Key    naturalkey.Key
	Series series.Series
}

// TeamOp references its parents by natural key; the coordinator resolves
// them to surrogate IDs stage by stage during apply.
type TeamOp struct {
	Kind      OpKind
	Key       naturalkey.Key
	ClubKey   naturalkey.Key
	SeriesKey naturalkey.Key
	Team      team.Team
}

type PlayerOp struct {
	Kind    OpKind
	Key     naturalkey.Key
	TeamKey naturalkey.Key
	Player  player.Player
}

// MatchOp is always an insert; results are append-only.
type MatchOp struct {
	Key         naturalkey.Key
	SeriesKey   naturalkey.Key
	HomeTeamKey naturalkey.Key
	AwayTeamKey naturalkey.Key
	Result      matchresult.Result
}

// Plan is the ordered set of mutations one import run would apply. Stage
// order is fixed: clubs and series before teams, teams before players,
// players before match results.
type Plan struct {
	LeagueID int64
	Clubs    []ClubOp
	Series   []SeriesOp
	Teams    []TeamOp
	Players  []PlayerOp
	Matches  []MatchOp
	Excluded []feed.Exclusion
}

// Empty reports whether applying the plan would change anything. A re-import
// of an unchanged dataset must produce an empty plan.
func (p Plan) Empty() bool {
	return len(p.Clubs) == 0 && len(p.Series) == 0 && len(p.Teams) == 0 &&
		len(p.Players) == 0 && len(p.Matches) == 0
}

type Summary struct {
	Inserts int `json:"inserts"`
	Updates int `json:"updates"`
	Retires int `json:"retires"`
	Matches int `json:"matches"`
}

func (p Plan) Summarize() Summary {
	var s Summary
	count := func(kind OpKind) {
		switch kind {
		case OpInsert:
			s.Inserts++
		case OpUpdate:
			s.Updates++
		case OpRetire:
			s.Retires++
		}
	}
	for _, op := range p.Clubs {
		count(op.Kind)
	}
	for _, op := range p.Series {
		count(op.Kind)
	}
	for _, op := range p.Teams {
		count(op.Kind)
	}
	for _, op := range p.Players {
		count(op.Kind)
	}
	s.Matches = len(p.Matches)
	return s
}
