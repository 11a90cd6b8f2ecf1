// Package plan diffs one league's incoming dataset against the currently
// active rows and produces the ordered mutation plan an import run applies.
// Surrogate IDs are preserved wherever a natural-key match exists; rows that
// vanished from the source are retired, never deleted.
package plan

import (
	"sort"

	"github.com/riskibarqy/league-import/external/feed"
	"github.com/riskibarqy/league-import/internal/domain/club"
	"github.com/riskibarqy/league-import/internal/domain/matchresult"
	"github.com/riskibarqy/league-import/internal/domain/player"
	"github.com/riskibarqy/league-import/internal/domain/series"
	"github.com/riskibarqy/league-import/internal/domain/team"
	"github.com/riskibarqy/league-import/internal/naturalkey"
	"github.com/riskibarqy/league-import/internal/platform/logging"
)

type Planner struct {
	logger *logging.Logger
}

func NewPlanner(logger *logging.Logger) *Planner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Planner{logger: logger}
}

// currentIndex resolves every active row of the pre-run state to its natural
// key once, so the incoming walk is a map lookup per record.
type currentIndex struct {
	clubs      map[naturalkey.Key]club.Club
	series     map[naturalkey.Key]series.Series
	teams      map[naturalkey.Key]team.Team
	players    map[naturalkey.Key]player.Player
	clubKeyOf  map[int64]naturalkey.Key
	serieKeyOf map[int64]naturalkey.Key
}

// Build walks the incoming dataset once per entity type, in dependency
// order. The returned plan is deterministic: ops are sorted by natural key
// within each stage.
func (p *Planner) Build(current Current, ds feed.Dataset) (Plan, error) {
	leagueID := current.League.ID

	idx, skipped := indexCurrent(leagueID, current)
	for _, detail := range skipped {
		p.logger.Warn("current row skipped during planning", "league_id", leagueID, "detail", detail)
	}

	out := Plan{LeagueID: leagueID, Excluded: append([]feed.Exclusion(nil), ds.Excluded...)}

	p.planClubs(leagueID, &out, idx, ds)
	p.planSeries(leagueID, &out, idx, ds)
	p.planTeams(leagueID, &out, idx, ds)
	p.planPlayers(leagueID, &out, idx, ds)
	p.planMatches(leagueID, &out, current, ds)

	sortOps(&out)
	return out, nil
}

func indexCurrent(leagueID int64, current Current) (currentIndex, []string) {
	idx := currentIndex{
		clubs:      make(map[naturalkey.Key]club.Club, len(current.Clubs)),
		series:     make(map[naturalkey.Key]series.Series, len(current.Series)),
		teams:      make(map[naturalkey.Key]team.Team, len(current.Teams)),
		players:    make(map[naturalkey.Key]player.Player, len(current.Players)),
		clubKeyOf:  make(map[int64]naturalkey.Key, len(current.Clubs)),
		serieKeyOf: make(map[int64]naturalkey.Key, len(current.Series)),
	}
	var skipped []string

	for _, c := range current.Clubs {
		if !c.Active() {
			continue
		}
		key, err := naturalkey.Club(leagueID, c.Name)
		if err != nil {
			skipped = append(skipped, "club "+c.Name+": "+err.Error())
			continue
		}
		// Duplicate canonical names in the current state are left for the
		// reconciliation pass; the oldest row wins the index slot.
		if existing, ok := idx.clubs[key]; !ok || c.ID < existing.ID {
			idx.clubs[key] = c
		}
		idx.clubKeyOf[c.ID] = key
	}

	for _, s := range current.Series {
		if !s.Active() {
			continue
		}
		key, err := naturalkey.Series(leagueID, s.Name)
		if err != nil {
			skipped = append(skipped, "series "+s.Name+": "+err.Error())
			continue
		}
		if existing, ok := idx.series[key]; !ok || s.ID < existing.ID {
			idx.series[key] = s
		}
		idx.serieKeyOf[s.ID] = key
	}

	for _, t := range current.Teams {
		if !t.Active() {
			continue
		}
		clubKey, okClub := idx.clubKeyOf[t.ClubID]
		seriesKey, okSeries := idx.serieKeyOf[t.SeriesID]
		if !okClub || !okSeries {
			skipped = append(skipped, "team "+t.Name+": parent club or series is not active")
			continue
		}
		key, err := naturalkey.Team(clubKey, seriesKey)
		if err != nil {
			skipped = append(skipped, "team "+t.Name+": "+err.Error())
			continue
		}
		if existing, ok := idx.teams[key]; !ok || t.ID < existing.ID {
			idx.teams[key] = t
		}
	}

	for _, pl := range current.Players {
		if !pl.Active() {
			continue
		}
		key, err := naturalkey.Player(leagueID, pl.ExternalID)
		if err != nil {
			skipped = append(skipped, "player "+pl.Name+": "+err.Error())
			continue
		}
		if existing, ok := idx.players[key]; !ok || pl.ID < existing.ID {
			idx.players[key] = pl
		}
	}

	return idx, skipped
}

func (p *Planner) planClubs(leagueID int64, out *Plan, idx currentIndex, ds feed.Dataset) {
	seen := make(map[naturalkey.Key]struct{}, len(ds.Clubs))

	for _, record := range ds.Clubs {
		key, err := naturalkey.Club(leagueID, record.Name)
		if err != nil {
			out.Excluded = append(out.Excluded, feed.Exclusion{
				Entity: string(EntityClub), Reason: "unresolvable_key", Detail: err.Error(),
			})
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		canon := naturalkey.CanonicalClubName(record.Name)
		if existing, ok := idx.clubs[key]; ok {
			if existing.Name == record.Name && existing.CanonicalName == canon {
				continue
			}
			updated := existing
			updated.Name = record.Name
			updated.CanonicalName = canon
			out.Clubs = append(out.Clubs, ClubOp{Kind: OpUpdate, Key: key, Club: updated})
			continue
		}

		out.Clubs = append(out.Clubs, ClubOp{Kind: OpInsert, Key: key, Club: club.Club{
			LeagueID:      leagueID,
			Name:          record.Name,
			CanonicalName: canon,
		}})
	}

	for key, existing := range idx.clubs {
		if _, ok := seen[key]; ok {
			continue
		}
		out.Clubs = append(out.Clubs, ClubOp{Kind: OpRetire, Key: key, Club: existing})
	}
}

func (p *Planner) planSeries(leagueID int64, out *Plan, idx currentIndex, ds feed.Dataset) {
	seen := make(map[naturalkey.Key]struct{}, len(ds.Series))

	for _, record := range ds.Series {
		key, err := naturalkey.Series(leagueID, record.Name)
		if err != nil {
			out.Excluded = append(out.Excluded, feed.Exclusion{
				Entity: string(EntitySeries), Reason: "unresolvable_key", Detail: err.Error(),
			})
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		canon := naturalkey.Canonicalize(record.Name)
		if existing, ok := idx.series[key]; ok {
			if existing.Name == record.Name && existing.Tier == record.Tier && existing.CanonicalName == canon {
				continue
			}
			updated := existing
			updated.Name = record.Name
			updated.CanonicalName = canon
			updated.Tier = record.Tier
			out.Series = append(out.Series, SeriesOp{Kind: OpUpdate, Key: key, Series: updated})
			continue
		}

		out.Series = append(out.Series, SeriesOp{Kind: OpInsert, Key: key, Series: series.Series{
			LeagueID:      leagueID,
			Name:          record.Name,
			CanonicalName: canon,
			Tier:          record.Tier,
		}})
	}

	for key, existing := range idx.series {
		if _, ok := seen[key]; ok {
			continue
		}
		out.Series = append(out.Series, SeriesOp{Kind: OpRetire, Key: key, Series: existing})
	}
}

func (p *Planner) planTeams(leagueID int64, out *Plan, idx currentIndex, ds feed.Dataset) {
	seen := make(map[naturalkey.Key]struct{}, len(ds.Teams))

	for _, record := range ds.Teams {
		key, clubKey, seriesKey, err := teamKeys(leagueID, record.Club, record.Series)
		if err != nil {
			out.Excluded = append(out.Excluded, feed.Exclusion{
				Entity: string(EntityTeam), Reason: "unresolvable_key", Detail: err.Error(),
			})
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		name := record.Name
		if name == "" {
			name = record.Club
		}

		if existing, ok := idx.teams[key]; ok {
			if existing.Name == name {
				continue
			}
			updated := existing
			updated.Name = name
			out.Teams = append(out.Teams, TeamOp{
				Kind: OpUpdate, Key: key, ClubKey: clubKey, SeriesKey: seriesKey, Team: updated,
			})
			continue
		}

		out.Teams = append(out.Teams, TeamOp{
			Kind: OpInsert, Key: key, ClubKey: clubKey, SeriesKey: seriesKey,
			Team: team.Team{LeagueID: leagueID, Name: name},
		})
	}

	for key, existing := range idx.teams {
		if _, ok := seen[key]; ok {
			continue
		}
		clubKey := idx.clubKeyOf[existing.ClubID]
		seriesKey := idx.serieKeyOf[existing.SeriesID]
		out.Teams = append(out.Teams, TeamOp{
			Kind: OpRetire, Key: key, ClubKey: clubKey, SeriesKey: seriesKey, Team: existing,
		})
	}
}

func (p *Planner) planPlayers(leagueID int64, out *Plan, idx currentIndex, ds feed.Dataset) {
	seen := make(map[naturalkey.Key]struct{}, len(ds.Players))

	for _, record := range ds.Players {
		key, err := naturalkey.Player(leagueID, record.ExternalID)
		if err != nil {
			// Fail closed: a player without a source identifier is excluded
			// with a reason, not matched by name.
			out.Excluded = append(out.Excluded, feed.Exclusion{
				Entity: string(EntityPlayer), Reason: "missing_external_id", Detail: record.Name,
			})
			continue
		}
		if _, dup := seen[key]; dup {
			// A second record under one external ID cannot be planned; the
			// exclusion keeps it visible in the report instead of vanishing.
			out.Excluded = append(out.Excluded, feed.Exclusion{
				Entity: string(EntityPlayer), Reason: "duplicate_external_id",
				Detail: record.Name + ": external id " + record.ExternalID + " already planned",
			})
			continue
		}
		seen[key] = struct{}{}

		teamKey, _, _, err := teamKeys(leagueID, record.Club, record.Series)
		if err != nil {
			out.Excluded = append(out.Excluded, feed.Exclusion{
				Entity: string(EntityPlayer), Reason: "unresolvable_team", Detail: record.Name + ": " + err.Error(),
			})
			continue
		}

		if existing, ok := idx.players[key]; ok {
			sameTeam := false
			if t, okTeam := idx.teams[teamKey]; okTeam && t.ID == existing.TeamID {
				sameTeam = true
			}
			if sameTeam && existing.Name == record.Name && existing.Substitute == record.Substitute {
				continue
			}
			updated := existing
			updated.Name = record.Name
			updated.Substitute = record.Substitute
			out.Players = append(out.Players, PlayerOp{Kind: OpUpdate, Key: key, TeamKey: teamKey, Player: updated})
			continue
		}

		out.Players = append(out.Players, PlayerOp{Kind: OpInsert, Key: key, TeamKey: teamKey, Player: player.Player{
			LeagueID:   leagueID,
			ExternalID: record.ExternalID,
			Name:       record.Name,
			Substitute: record.Substitute,
		}})
	}

	for key, existing := range idx.players {
		if _, ok := seen[key]; ok {
			continue
		}
		out.Players = append(out.Players, PlayerOp{Kind: OpRetire, Key: key, Player: existing})
	}
}

func (p *Planner) planMatches(leagueID int64, out *Plan, current Current, ds feed.Dataset) {
	seen := make(map[naturalkey.Key]struct{}, len(ds.Matches))

	for _, record := range ds.Matches {
		key, err := naturalkey.Match(leagueID, record.SourceID)
		if err != nil {
			out.Excluded = append(out.Excluded, feed.Exclusion{
				Entity: string(EntityMatchResult), Reason: "missing_source_id", Detail: record.Series,
			})
			continue
		}
		if _, ok := current.MatchSourceIDs[record.SourceID]; ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}

		homeKey, _, seriesKey, homeErr := teamKeys(leagueID, record.HomeClub, record.Series)
		awayKey, _, _, awayErr := teamKeys(leagueID, record.AwayClub, record.Series)
		if homeErr != nil || awayErr != nil {
			out.Excluded = append(out.Excluded, feed.Exclusion{
				Entity: string(EntityMatchResult), Reason: "unresolvable_team", Detail: record.SourceID,
			})
			continue
		}
		seen[key] = struct{}{}

		out.Matches = append(out.Matches, MatchOp{
			Key:         key,
			SeriesKey:   seriesKey,
			HomeTeamKey: homeKey,
			AwayTeamKey: awayKey,
			Result: matchresult.Result{
				LeagueID:       leagueID,
				SourceID:       record.SourceID,
				HomePlayer1Ext: record.HomePlayer1Ext,
				HomePlayer2Ext: record.HomePlayer2Ext,
				AwayPlayer1Ext: record.AwayPlayer1Ext,
				AwayPlayer2Ext: record.AwayPlayer2Ext,
				HomeScore:      record.HomeScore,
				AwayScore:      record.AwayScore,
				PlayedAt:       record.PlayedAt,
			},
		})
	}
}

func teamKeys(leagueID int64, clubName, seriesName string) (teamKey, clubKey, seriesKey naturalkey.Key, err error) {
	clubKey, err = naturalkey.Club(leagueID, clubName)
	if err != nil {
		return "", "", "", err
	}
	seriesKey, err = naturalkey.Series(leagueID, seriesName)
	if err != nil {
		return "", "", "", err
	}
	teamKey, err = naturalkey.Team(clubKey, seriesKey)
	if err != nil {
		return "", "", "", err
	}
	return teamKey, clubKey, seriesKey, nil
}

func sortOps(p *Plan) {
	sort.SliceStable(p.Clubs, func(i, j int) bool { return p.Clubs[i].Key < p.Clubs[j].Key })
	sort.SliceStable(p.Series, func(i, j int) bool { return p.Series[i].Key < p.Series[j].Key })
	sort.SliceStable(p.Teams, func(i, j int) bool { return p.Teams[i].Key < p.Teams[j].Key })
	sort.SliceStable(p.Players, func(i, j int) bool { return p.Players[i].Key < p.Players[j].Key })
	sort.SliceStable(p.Matches, func(i, j int) bool { return p.Matches[i].Key < p.Matches[j].Key })
}
