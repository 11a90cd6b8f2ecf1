// Package check validates a proposed import plan against the pre-mutation
// state. It never mutates anything and never fails on the first finding: the
// whole violation list is accumulated so one report can describe the full
// scope of a bad dataset.
package check

import (
	"fmt"
	"sort"
	"strings"

	"github.com/riskibarqy/league-import/external/feed"
	"github.com/riskibarqy/league-import/internal/naturalkey"
	"github.com/riskibarqy/league-import/internal/plan"
)

// Reason codes are machine-stable; the report artifact carries them verbatim.
type Reason string

const (
	ReasonSeriesMultiLeague  Reason = "series_multi_league"
	ReasonSeriesNoLeague     Reason = "series_no_league"
	ReasonSeriesWrongLeague  Reason = "series_wrong_league"
	ReasonTeamKeyConflict    Reason = "team_key_conflict"
	ReasonPlayerExternalDup  Reason = "player_external_dup"
	ReasonDanglingTeamRef    Reason = "dangling_team_ref"
	ReasonDanglingPlayerRef  Reason = "dangling_player_ref"
	ReasonMissingParent      Reason = "missing_parent"
	ReasonRunTimeout         Reason = "run_timeout"
	ReasonApplyFailed        Reason = "apply_failed"
	ReasonVerificationFailed Reason = "verification_failed"
)

type Violation struct {
	Entity     plan.EntityType
	NaturalKey string
	Reason     Reason
	Detail     string
}

type Checker struct{}

func NewChecker() *Checker {
	return &Checker{}
}

// Check runs every violation class over the current state, the proposed plan
// and the raw dataset. A non-empty result aborts the run before the
// coordinator opens anything.
func (c *Checker) Check(current plan.Current, p plan.Plan, ds feed.Dataset) []Violation {
	var out []Violation

	out = append(out, c.checkSeriesLeagueCardinality(ds)...)
	out = append(out, c.checkTeamUniqueness(current, ds)...)
	out = append(out, c.checkPlayerUniqueness(current, ds)...)
	out = append(out, c.checkParentResolution(current, p)...)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		if out[i].NaturalKey != out[j].NaturalKey {
			return out[i].NaturalKey < out[j].NaturalKey
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// checkSeriesLeagueCardinality groups the incoming series records by series
// identity. A series claiming two different leagues, or none, is never
// auto-resolved; the run halts and a human picks.
func (c *Checker) checkSeriesLeagueCardinality(ds feed.Dataset) []Violation {
	runLeague := naturalkey.Canonicalize(ds.League.Name)

	leaguesBySeries := make(map[string]map[string]struct{})
	for _, record := range ds.Series {
		canon := naturalkey.Canonicalize(record.Name)
		if canon == "" {
			continue
		}
		if leaguesBySeries[canon] == nil {
			leaguesBySeries[canon] = make(map[string]struct{})
		}
		claimed := naturalkey.Canonicalize(record.League)
		if claimed != "" {
			leaguesBySeries[canon][claimed] = struct{}{}
		}
	}

	var out []Violation
	for canon, leagues := range leaguesBySeries {
		switch {
		case len(leagues) == 0:
			out = append(out, Violation{
				Entity:     plan.EntitySeries,
				NaturalKey: canon,
				Reason:     ReasonSeriesNoLeague,
				Detail:     "series record carries no league association",
			})
		case len(leagues) > 1:
			names := make([]string, 0, len(leagues))
			for name := range leagues {
				names = append(names, name)
			}
			sort.Strings(names)
			out = append(out, Violation{
				Entity:     plan.EntitySeries,
				NaturalKey: canon,
				Reason:     ReasonSeriesMultiLeague,
				Detail:     "series is associated with leagues: " + strings.Join(names, ", "),
			})
		default:
			for claimed := range leagues {
				if claimed != runLeague {
					out = append(out, Violation{
						Entity:     plan.EntitySeries,
						NaturalKey: canon,
						Reason:     ReasonSeriesWrongLeague,
						Detail:     fmt.Sprintf("series claims league %q but the dataset is for %q", claimed, runLeague),
					})
				}
			}
		}
	}

	return out
}

// checkTeamUniqueness detects two incoming team records that would collide
// on the (club, series, league) triple.
func (c *Checker) checkTeamUniqueness(current plan.Current, ds feed.Dataset) []Violation {
	leagueID := current.League.ID

	counts := make(map[naturalkey.Key]int, len(ds.Teams))
	for _, record := range ds.Teams {
		clubKey, err := naturalkey.Club(leagueID, record.Club)
		if err != nil {
			continue
		}
		seriesKey, err := naturalkey.Series(leagueID, record.Series)
		if err != nil {
			continue
		}
		key, err := naturalkey.Team(clubKey, seriesKey)
		if err != nil {
			continue
		}
		counts[key]++
	}

	var out []Violation
	for key, n := range counts {
		if n > 1 {
			out = append(out, Violation{
				Entity:     plan.EntityTeam,
				NaturalKey: string(key),
				Reason:     ReasonTeamKeyConflict,
				Detail:     fmt.Sprintf("%d incoming records collide on one team identity", n),
			})
		}
	}
	return out
}

// checkPlayerUniqueness flags two non-substitute records sharing one
// external ID.
func (c *Checker) checkPlayerUniqueness(current plan.Current, ds feed.Dataset) []Violation {
	leagueID := current.League.ID

	counts := make(map[naturalkey.Key]int, len(ds.Players))
	for _, record := range ds.Players {
		if record.Substitute {
			continue
		}
		key, err := naturalkey.Player(leagueID, record.ExternalID)
		if err != nil {
			continue
		}
		counts[key]++
	}

	var out []Violation
	for key, n := range counts {
		if n > 1 {
			out = append(out, Violation{
				Entity:     plan.EntityPlayer,
				NaturalKey: string(key),
				Reason:     ReasonPlayerExternalDup,
				Detail:     fmt.Sprintf("%d non-substitute records share one external id", n),
			})
		}
	}
	return out
}

// checkParentResolution predicts dangling foreign keys: every op that
// references a parent by natural key must find that parent either in the
// plan's inserts/updates or among the currently active rows.
func (c *Checker) checkParentResolution(current plan.Current, p plan.Plan) []Violation {
	leagueID := current.League.ID

	clubKeys := make(map[naturalkey.Key]struct{})
	seriesKeys := make(map[naturalkey.Key]struct{})
	teamKeys := make(map[naturalkey.Key]struct{})
	playerExts := make(map[string]struct{})

	for _, cl := range current.Clubs {
		if !cl.Active() {
			continue
		}
		if key, err := naturalkey.Club(leagueID, cl.Name); err == nil {
			clubKeys[key] = struct{}{}
		}
	}
	for _, s := range current.Series {
		if !s.Active() {
			continue
		}
		if key, err := naturalkey.Series(leagueID, s.Name); err == nil {
			seriesKeys[key] = struct{}{}
		}
	}
	for _, pl := range current.Players {
		if pl.Active() {
			playerExts[pl.ExternalID] = struct{}{}
		}
	}

	for _, op := range p.Clubs {
		switch op.Kind {
		case plan.OpInsert, plan.OpUpdate:
			clubKeys[op.Key] = struct{}{}
		case plan.OpRetire:
			delete(clubKeys, op.Key)
		}
	}
	for _, op := range p.Series {
		switch op.Kind {
		case plan.OpInsert, plan.OpUpdate:
			seriesKeys[op.Key] = struct{}{}
		case plan.OpRetire:
			delete(seriesKeys, op.Key)
		}
	}

	var out []Violation

	for _, op := range p.Teams {
		if op.Kind == plan.OpRetire {
			continue
		}
		teamKeys[op.Key] = struct{}{}
		if _, ok := clubKeys[op.ClubKey]; !ok {
			out = append(out, Violation{
				Entity:     plan.EntityTeam,
				NaturalKey: string(op.Key),
				Reason:     ReasonMissingParent,
				Detail:     "club " + string(op.ClubKey) + " is neither incoming nor active",
			})
		}
		if _, ok := seriesKeys[op.SeriesKey]; !ok {
			out = append(out, Violation{
				Entity:     plan.EntityTeam,
				NaturalKey: string(op.Key),
				Reason:     ReasonMissingParent,
				Detail:     "series " + string(op.SeriesKey) + " is neither incoming nor active",
			})
		}
	}

	// Teams that survive this run untouched still resolve player refs.
	surviving := survivingTeamKeys(current, p)
	for key := range surviving {
		teamKeys[key] = struct{}{}
	}

	for _, op := range p.Players {
		if op.Kind == plan.OpRetire {
			continue
		}
		playerExts[op.Player.ExternalID] = struct{}{}
		if _, ok := teamKeys[op.TeamKey]; !ok {
			out = append(out, Violation{
				Entity:     plan.EntityPlayer,
				NaturalKey: string(op.Key),
				Reason:     ReasonDanglingTeamRef,
				Detail:     "team " + string(op.TeamKey) + " is neither incoming nor active",
			})
		}
	}

	for _, op := range p.Matches {
		for _, teamKey := range []naturalkey.Key{op.HomeTeamKey, op.AwayTeamKey} {
			if _, ok := teamKeys[teamKey]; !ok {
				out = append(out, Violation{
					Entity:     plan.EntityMatchResult,
					NaturalKey: string(op.Key),
					Reason:     ReasonDanglingTeamRef,
					Detail:     "team " + string(teamKey) + " is neither incoming nor active",
				})
			}
		}
		for _, ext := range []string{
			op.Result.HomePlayer1Ext, op.Result.HomePlayer2Ext,
			op.Result.AwayPlayer1Ext, op.Result.AwayPlayer2Ext,
		} {
			if ext == "" {
				continue
			}
			if _, ok := playerExts[ext]; !ok {
				out = append(out, Violation{
					Entity:     plan.EntityMatchResult,
					NaturalKey: string(op.Key),
					Reason:     ReasonDanglingPlayerRef,
					Detail:     "player external id " + ext + " is neither incoming nor active",
				})
			}
		}
	}

	return out
}

// survivingTeamKeys resolves the natural keys of active teams that the plan
// does not retire.
func survivingTeamKeys(current plan.Current, p plan.Plan) map[naturalkey.Key]struct{} {
	leagueID := current.League.ID

	clubKeyOf := make(map[int64]naturalkey.Key, len(current.Clubs))
	for _, cl := range current.Clubs {
		if key, err := naturalkey.Club(leagueID, cl.Name); err == nil {
			clubKeyOf[cl.ID] = key
		}
	}
	seriesKeyOf := make(map[int64]naturalkey.Key, len(current.Series))
	for _, s := range current.Series {
		if key, err := naturalkey.Series(leagueID, s.Name); err == nil {
			seriesKeyOf[s.ID] = key
		}
	}

	retired := make(map[naturalkey.Key]struct{})
	for _, op := range p.Teams {
		if op.Kind == plan.OpRetire {
			retired[op.Key] = struct{}{}
		}
	}

	out := make(map[naturalkey.Key]struct{}, len(current.Teams))
	for _, t := range current.Teams {
		if !t.Active() {
			continue
		}
		clubKey, okClub := clubKeyOf[t.ClubID]
		seriesKey, okSeries := seriesKeyOf[t.SeriesID]
		if !okClub || !okSeries {
			continue
		}
		key, err := naturalkey.Team(clubKey, seriesKey)
		if err != nil {
			continue
		}
		if _, gone := retired[key]; gone {
			continue
		}
		out[key] = struct{}{}
	}
	return out
}
