// Package memory implements the import and reconciliation store contracts
// on in-process maps. It exists so the coordinator's atomicity and identity
// properties can be exercised without Postgres; transactions clone the whole
// state and swap it back in on commit.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/riskibarqy/league-import/internal/check"
	"github.com/riskibarqy/league-import/internal/domain/association"
	"github.com/riskibarqy/league-import/internal/domain/audit"
	"github.com/riskibarqy/league-import/internal/domain/club"
	"github.com/riskibarqy/league-import/internal/domain/league"
	"github.com/riskibarqy/league-import/internal/domain/matchresult"
	"github.com/riskibarqy/league-import/internal/domain/player"
	"github.com/riskibarqy/league-import/internal/domain/schedule"
	"github.com/riskibarqy/league-import/internal/domain/series"
	"github.com/riskibarqy/league-import/internal/domain/standings"
	"github.com/riskibarqy/league-import/internal/domain/team"
	"github.com/riskibarqy/league-import/internal/plan"
	"github.com/riskibarqy/league-import/internal/usecase"
)

type state struct {
	Leagues       map[int64]league.League
	Clubs         map[int64]club.Club
	Series        map[int64]series.Series
	Teams         map[int64]team.Team
	Players       map[int64]player.Player
	Matches       map[int64]matchresult.Result
	PracticeTimes map[int64]schedule.PracticeTime
	Associations  map[int64]association.UserPlayer
	Audit         []audit.Entry
	Standings     []standings.Row
	Runs          []usecase.RunRecord
	NextID        int64
}

func newState() *state {
	return &state{
		Leagues:       make(map[int64]league.League),
		Clubs:         make(map[int64]club.Club),
		Series:        make(map[int64]series.Series),
		Teams:         make(map[int64]team.Team),
		Players:       make(map[int64]player.Player),
		Matches:       make(map[int64]matchresult.Result),
		PracticeTimes: make(map[int64]schedule.PracticeTime),
		Associations:  make(map[int64]association.UserPlayer),
		NextID:        1,
	}
}

func (s *state) clone() *state {
	out := newState()
	for id, v := range s.Leagues {
		out.Leagues[id] = v
	}
	for id, v := range s.Clubs {
		out.Clubs[id] = v
	}
	for id, v := range s.Series {
		out.Series[id] = v
	}
	for id, v := range s.Teams {
		out.Teams[id] = v
	}
	for id, v := range s.Players {
		out.Players[id] = v
	}
	for id, v := range s.Matches {
		out.Matches[id] = v
	}
	for id, v := range s.PracticeTimes {
		out.PracticeTimes[id] = v
	}
	for id, v := range s.Associations {
		out.Associations[id] = v
	}
	out.Audit = append([]audit.Entry(nil), s.Audit...)
	out.Standings = append([]standings.Row(nil), s.Standings...)
	out.Runs = append([]usecase.RunRecord(nil), s.Runs...)
	out.NextID = s.NextID
	return out
}

func (s *state) nextID() int64 {
	id := s.NextID
	s.NextID++
	return id
}

// Store holds one mutable state behind a mutex. FailOn lets tests inject a
// fault into a named store operation, to exercise rollback and repair paths.
type Store struct {
	mu     sync.Mutex
	state  *state
	locked map[int64]bool

	FailOn map[string]error
}

func NewStore() *Store {
	return &Store{state: newState(), locked: make(map[int64]bool)}
}

func (s *Store) fail(op string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn[op]
}

// Seed installs fixture rows directly, bypassing the run pipeline.
func (s *Store) Seed(mut func(st *Seeder)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mut(&Seeder{st: s.state})
}

type Seeder struct {
	st *state
}

func (sd *Seeder) League(lg league.League) league.League {
	if lg.ID == 0 {
		lg.ID = sd.st.nextID()
	} else if lg.ID >= sd.st.NextID {
		sd.st.NextID = lg.ID + 1
	}
	sd.st.Leagues[lg.ID] = lg
	return lg
}

func (sd *Seeder) Club(c club.Club) club.Club {
	if c.ID == 0 {
		c.ID = sd.st.nextID()
	} else if c.ID >= sd.st.NextID {
		sd.st.NextID = c.ID + 1
	}
	sd.st.Clubs[c.ID] = c
	return c
}

func (sd *Seeder) Series(sr series.Series) series.Series {
	if sr.ID == 0 {
		sr.ID = sd.st.nextID()
	} else if sr.ID >= sd.st.NextID {
		sd.st.NextID = sr.ID + 1
	}
	sd.st.Series[sr.ID] = sr
	return sr
}

func (sd *Seeder) Team(t team.Team) team.Team {
	if t.ID == 0 {
		t.ID = sd.st.nextID()
	} else if t.ID >= sd.st.NextID {
		sd.st.NextID = t.ID + 1
	}
	sd.st.Teams[t.ID] = t
	return t
}

func (sd *Seeder) Player(p player.Player) player.Player {
	if p.ID == 0 {
		p.ID = sd.st.nextID()
	} else if p.ID >= sd.st.NextID {
		sd.st.NextID = p.ID + 1
	}
	sd.st.Players[p.ID] = p
	return p
}

func (sd *Seeder) PracticeTime(pt schedule.PracticeTime) schedule.PracticeTime {
	if pt.ID == 0 {
		pt.ID = sd.st.nextID()
	} else if pt.ID >= sd.st.NextID {
		sd.st.NextID = pt.ID + 1
	}
	sd.st.PracticeTimes[pt.ID] = pt
	return pt
}

func (sd *Seeder) Association(a association.UserPlayer) association.UserPlayer {
	if a.ID == 0 {
		a.ID = sd.st.nextID()
	} else if a.ID >= sd.st.NextID {
		sd.st.NextID = a.ID + 1
	}
	sd.st.Associations[a.ID] = a
	return a
}

func (sd *Seeder) Audit(e audit.Entry) {
	e.ID = sd.st.nextID()
	sd.st.Audit = append(sd.st.Audit, e)
}

// StateDigest hashes the full persisted state deterministically. Tests use
// it to prove a rolled-back or dry run changed nothing.
func (s *Store) StateDigest() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := struct {
		Leagues       []league.League
		Clubs         []club.Club
		Series        []series.Series
		Teams         []team.Team
		Players       []player.Player
		Matches       []matchresult.Result
		PracticeTimes []schedule.PracticeTime
		Associations  []association.UserPlayer
		Standings     []standings.Row
	}{
		Leagues:       sortedValues(s.state.Leagues, func(v league.League) int64 { return v.ID }),
		Clubs:         sortedValues(s.state.Clubs, func(v club.Club) int64 { return v.ID }),
		Series:        sortedValues(s.state.Series, func(v series.Series) int64 { return v.ID }),
		Teams:         sortedValues(s.state.Teams, func(v team.Team) int64 { return v.ID }),
		Players:       sortedValues(s.state.Players, func(v player.Player) int64 { return v.ID }),
		Matches:       sortedValues(s.state.Matches, func(v matchresult.Result) int64 { return v.ID }),
		PracticeTimes: sortedValues(s.state.PracticeTimes, func(v schedule.PracticeTime) int64 { return v.ID }),
		Associations:  sortedValues(s.state.Associations, func(v association.UserPlayer) int64 { return v.ID }),
		Standings:     append([]standings.Row(nil), s.state.Standings...),
	}

	raw, err := sonic.Marshal(snapshot)
	if err != nil {
		return "marshal-error:" + err.Error()
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func sortedValues[V any](m map[int64]V, id func(V) int64) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func (s *Store) LeagueByName(_ context.Context, name string) (league.League, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, lg := range s.state.Leagues {
		if lg.Name == name {
			return lg, nil
		}
	}
	return league.League{}, fmt.Errorf("league %s: %w", name, usecase.ErrNotFound)
}

func (s *Store) CreateLeague(_ context.Context, lg league.League) (league.League, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lg.ID = s.state.nextID()
	lg.CreatedAt = time.Now()
	s.state.Leagues[lg.ID] = lg
	return lg, nil
}

func (s *Store) LoadCurrent(_ context.Context, leagueID int64) (plan.Current, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := plan.Current{
		League:         s.state.Leagues[leagueID],
		MatchSourceIDs: make(map[string]struct{}),
	}
	for _, c := range s.state.Clubs {
		if c.LeagueID == leagueID {
			out.Clubs = append(out.Clubs, c)
		}
	}
	for _, sr := range s.state.Series {
		if sr.LeagueID == leagueID {
			out.Series = append(out.Series, sr)
		}
	}
	for _, t := range s.state.Teams {
		if t.LeagueID == leagueID {
			out.Teams = append(out.Teams, t)
		}
	}
	for _, p := range s.state.Players {
		if p.LeagueID == leagueID {
			out.Players = append(out.Players, p)
		}
	}
	for _, m := range s.state.Matches {
		if m.LeagueID == leagueID {
			out.MatchSourceIDs[m.SourceID] = struct{}{}
		}
	}

	sort.Slice(out.Clubs, func(i, j int) bool { return out.Clubs[i].ID < out.Clubs[j].ID })
	sort.Slice(out.Series, func(i, j int) bool { return out.Series[i].ID < out.Series[j].ID })
	sort.Slice(out.Teams, func(i, j int) bool { return out.Teams[i].ID < out.Teams[j].ID })
	sort.Slice(out.Players, func(i, j int) bool { return out.Players[i].ID < out.Players[j].ID })
	return out, nil
}

func (s *Store) AcquireLeagueLock(_ context.Context, leagueID int64) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked[leagueID] {
		return nil, fmt.Errorf("league %d: %w", leagueID, usecase.ErrRunConflict)
	}
	s.locked[leagueID] = true
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.locked, leagueID)
	}, nil
}

func (s *Store) SaveRun(_ context.Context, rec usecase.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Runs = append(s.state.Runs, rec)
	return nil
}

func (s *Store) Runs() []usecase.RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]usecase.RunRecord(nil), s.state.Runs...)
}

func (s *Store) Begin(_ context.Context) (usecase.ImportTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("begin"); err != nil {
		return nil, err
	}
	return &Tx{store: s, st: s.state.clone()}, nil
}

// Tx mutates a private clone; Commit swaps it in under the store lock.
type Tx struct {
	store *Store
	st    *state
	done  bool
}

func (t *Tx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	if err := t.store.fail("commit"); err != nil {
		return err
	}
	t.store.state = t.st
	t.done = true
	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return nil
}

func (t *Tx) InsertClub(_ context.Context, op plan.ClubOp) (int64, error) {
	if err := t.store.fail("insert_club"); err != nil {
		return 0, err
	}
	c := op.Club
	c.ID = t.st.nextID()
	c.CreatedAt = time.Now()
	t.st.Clubs[c.ID] = c
	return c.ID, nil
}

func (t *Tx) UpdateClub(_ context.Context, op plan.ClubOp) error {
	if err := t.store.fail("update_club"); err != nil {
		return err
	}
	existing, ok := t.st.Clubs[op.Club.ID]
	if !ok {
		return fmt.Errorf("club %d: %w", op.Club.ID, usecase.ErrNotFound)
	}
	existing.Name = op.Club.Name
	existing.CanonicalName = op.Club.CanonicalName
	existing.UpdatedAt = time.Now()
	t.st.Clubs[existing.ID] = existing
	return nil
}

func (t *Tx) RetireClub(_ context.Context, id int64, at time.Time) error {
	if err := t.store.fail("retire_club"); err != nil {
		return err
	}
	existing, ok := t.st.Clubs[id]
	if !ok {
		return fmt.Errorf("club %d: %w", id, usecase.ErrNotFound)
	}
	existing.DeletedAt = &at
	t.st.Clubs[id] = existing
	return nil
}

func (t *Tx) InsertSeries(_ context.Context, op plan.SeriesOp) (int64, error) {
	if err := t.store.fail("insert_series"); err != nil {
		return 0, err
	}
	sr := op.Series
	sr.ID = t.st.nextID()
	sr.CreatedAt = time.Now()
	t.st.Series[sr.ID] = sr
	return sr.ID, nil
}

func (t *Tx) UpdateSeries(_ context.Context, op plan.SeriesOp) error {
	if err := t.store.fail("update_series"); err != nil {
		return err
	}
	existing, ok := t.st.Series[op.Series.ID]
	if !ok {
		return fmt.Errorf("series %d: %w", op.Series.ID, usecase.ErrNotFound)
	}
	existing.Name = op.Series.Name
	existing.CanonicalName = op.Series.CanonicalName
	existing.Tier = op.Series.Tier
	existing.UpdatedAt = time.Now()
	t.st.Series[existing.ID] = existing
	return nil
}

func (t *Tx) RetireSeries(_ context.Context, id int64, at time.Time) error {
	if err := t.store.fail("retire_series"); err != nil {
		return err
	}
	existing, ok := t.st.Series[id]
	if !ok {
		return fmt.Errorf("series %d: %w", id, usecase.ErrNotFound)
	}
	existing.DeletedAt = &at
	t.st.Series[id] = existing
	return nil
}

func (t *Tx) InsertTeam(_ context.Context, op plan.TeamOp, clubID, seriesID int64) (int64, error) {
	if err := t.store.fail("insert_team"); err != nil {
		return 0, err
	}
	tm := op.Team
	tm.ID = t.st.nextID()
	tm.ClubID = clubID
	tm.SeriesID = seriesID
	tm.CreatedAt = time.Now()
	t.st.Teams[tm.ID] = tm
	return tm.ID, nil
}

func (t *Tx) UpdateTeam(_ context.Context, op plan.TeamOp, clubID, seriesID int64) error {
	if err := t.store.fail("update_team"); err != nil {
		return err
	}
	existing, ok := t.st.Teams[op.Team.ID]
	if !ok {
		return fmt.Errorf("team %d: %w", op.Team.ID, usecase.ErrNotFound)
	}
	existing.Name = op.Team.Name
	existing.ClubID = clubID
	existing.SeriesID = seriesID
	existing.UpdatedAt = time.Now()
	t.st.Teams[existing.ID] = existing
	return nil
}

func (t *Tx) RetireTeam(_ context.Context, id int64, at time.Time) error {
	if err := t.store.fail("retire_team"); err != nil {
		return err
	}
	existing, ok := t.st.Teams[id]
	if !ok {
		return fmt.Errorf("team %d: %w", id, usecase.ErrNotFound)
	}
	existing.DeletedAt = &at
	t.st.Teams[id] = existing
	return nil
}

func (t *Tx) InsertPlayer(_ context.Context, op plan.PlayerOp, teamID int64) (int64, error) {
	if err := t.store.fail("insert_player"); err != nil {
		return 0, err
	}
	p := op.Player
	p.ID = t.st.nextID()
	p.TeamID = teamID
	p.CreatedAt = time.Now()
	t.st.Players[p.ID] = p
	return p.ID, nil
}

func (t *Tx) UpdatePlayer(_ context.Context, op plan.PlayerOp, teamID int64) error {
	if err := t.store.fail("update_player"); err != nil {
		return err
	}
	existing, ok := t.st.Players[op.Player.ID]
	if !ok {
		return fmt.Errorf("player %d: %w", op.Player.ID, usecase.ErrNotFound)
	}
	existing.Name = op.Player.Name
	existing.Substitute = op.Player.Substitute
	existing.TeamID = teamID
	existing.UpdatedAt = time.Now()
	t.st.Players[existing.ID] = existing
	return nil
}

func (t *Tx) RetirePlayer(_ context.Context, id int64, at time.Time) error {
	if err := t.store.fail("retire_player"); err != nil {
		return err
	}
	existing, ok := t.st.Players[id]
	if !ok {
		return fmt.Errorf("player %d: %w", id, usecase.ErrNotFound)
	}
	existing.DeletedAt = &at
	t.st.Players[id] = existing
	return nil
}

func (t *Tx) InsertMatchResult(_ context.Context, op plan.MatchOp, seriesID, homeTeamID, awayTeamID int64) (int64, error) {
	if err := t.store.fail("insert_match"); err != nil {
		return 0, err
	}
	m := op.Result
	m.ID = t.st.nextID()
	m.SeriesID = seriesID
	m.HomeTeamID = homeTeamID
	m.AwayTeamID = awayTeamID
	m.CreatedAt = time.Now()
	if err := m.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err)
	}
	t.st.Matches[m.ID] = m
	return m.ID, nil
}

func (t *Tx) AppendAudit(_ context.Context, entry audit.Entry) error {
	if err := t.store.fail("append_audit"); err != nil {
		return err
	}
	entry.ID = t.st.nextID()
	t.st.Audit = append(t.st.Audit, entry)
	return nil
}

func (t *Tx) RecomputeStandings(_ context.Context, leagueID int64, at time.Time) error {
	if err := t.store.fail("recompute_standings"); err != nil {
		return err
	}

	type slot struct {
		seriesID int64
		teamID   int64
	}
	rows := make(map[slot]*standings.Row)
	bump := func(seriesID, teamID int64, won, drawn, lost int) {
		key := slot{seriesID, teamID}
		row, ok := rows[key]
		if !ok {
			row = &standings.Row{LeagueID: leagueID, SeriesID: seriesID, TeamID: teamID, ComputedAt: at}
			rows[key] = row
		}
		row.Played++
		row.Won += won
		row.Drawn += drawn
		row.Lost += lost
		row.Points += won*2 + drawn
	}

	for _, m := range t.st.Matches {
		if m.LeagueID != leagueID {
			continue
		}
		switch {
		case m.HomeScore > m.AwayScore:
			bump(m.SeriesID, m.HomeTeamID, 1, 0, 0)
			bump(m.SeriesID, m.AwayTeamID, 0, 0, 1)
		case m.HomeScore < m.AwayScore:
			bump(m.SeriesID, m.HomeTeamID, 0, 0, 1)
			bump(m.SeriesID, m.AwayTeamID, 1, 0, 0)
		default:
			bump(m.SeriesID, m.HomeTeamID, 0, 1, 0)
			bump(m.SeriesID, m.AwayTeamID, 0, 1, 0)
		}
	}

	out := make([]standings.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeriesID != out[j].SeriesID {
			return out[i].SeriesID < out[j].SeriesID
		}
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].TeamID < out[j].TeamID
	})
	position := 0
	lastSeries := int64(-1)
	for i := range out {
		if out[i].SeriesID != lastSeries {
			lastSeries = out[i].SeriesID
			position = 0
		}
		position++
		out[i].Position = position
	}

	kept := t.st.Standings[:0]
	for _, row := range t.st.Standings {
		if row.LeagueID != leagueID {
			kept = append(kept, row)
		}
	}
	t.st.Standings = append(kept, out...)
	return nil
}

// VerifyInvariants recomputes the uniqueness and referential invariants
// against the transaction's mutated state.
func (t *Tx) VerifyInvariants(_ context.Context, leagueID int64) ([]check.Violation, error) {
	if err := t.store.fail("verify"); err != nil {
		return nil, err
	}

	var out []check.Violation

	activeClubs := make(map[int64]club.Club)
	clubByCanon := make(map[string]int64)
	for _, c := range t.st.Clubs {
		if c.LeagueID != leagueID || !c.Active() {
			continue
		}
		activeClubs[c.ID] = c
		if prev, ok := clubByCanon[c.CanonicalName]; ok {
			out = append(out, check.Violation{
				Entity:     plan.EntityClub,
				NaturalKey: c.CanonicalName,
				Reason:     check.ReasonVerificationFailed,
				Detail:     fmt.Sprintf("active clubs %d and %d share one canonical name", prev, c.ID),
			})
			continue
		}
		clubByCanon[c.CanonicalName] = c.ID
	}

	activeSeries := make(map[int64]series.Series)
	for _, sr := range t.st.Series {
		if sr.LeagueID == leagueID && sr.Active() {
			activeSeries[sr.ID] = sr
		}
	}

	activeTeams := make(map[int64]team.Team)
	teamSlots := make(map[string]int64)
	for _, tm := range t.st.Teams {
		if tm.LeagueID != leagueID || !tm.Active() {
			continue
		}
		activeTeams[tm.ID] = tm
		if _, ok := activeClubs[tm.ClubID]; !ok {
			out = append(out, check.Violation{
				Entity:     plan.EntityTeam,
				NaturalKey: tm.Name,
				Reason:     check.ReasonDanglingTeamRef,
				Detail:     fmt.Sprintf("team %d references inactive club %d", tm.ID, tm.ClubID),
			})
		}
		if _, ok := activeSeries[tm.SeriesID]; !ok {
			out = append(out, check.Violation{
				Entity:     plan.EntityTeam,
				NaturalKey: tm.Name,
				Reason:     check.ReasonDanglingTeamRef,
				Detail:     fmt.Sprintf("team %d references inactive series %d", tm.ID, tm.SeriesID),
			})
		}
		slot := fmt.Sprintf("%d|%d|%d", tm.ClubID, tm.SeriesID, tm.LeagueID)
		if prev, ok := teamSlots[slot]; ok {
			out = append(out, check.Violation{
				Entity:     plan.EntityTeam,
				NaturalKey: tm.Name,
				Reason:     check.ReasonTeamKeyConflict,
				Detail:     fmt.Sprintf("active teams %d and %d share one club and series", prev, tm.ID),
			})
			continue
		}
		teamSlots[slot] = tm.ID
	}

	playerSlots := make(map[string]int64)
	for _, p := range t.st.Players {
		if p.LeagueID != leagueID || !p.Active() {
			continue
		}
		if _, ok := activeTeams[p.TeamID]; !ok {
			out = append(out, check.Violation{
				Entity:     plan.EntityPlayer,
				NaturalKey: p.ExternalID,
				Reason:     check.ReasonDanglingTeamRef,
				Detail:     fmt.Sprintf("player %d references inactive team %d", p.ID, p.TeamID),
			})
		}
		if p.Substitute {
			continue
		}
		if prev, ok := playerSlots[p.ExternalID]; ok {
			out = append(out, check.Violation{
				Entity:     plan.EntityPlayer,
				NaturalKey: p.ExternalID,
				Reason:     check.ReasonPlayerExternalDup,
				Detail:     fmt.Sprintf("active players %d and %d share one external id", prev, p.ID),
			})
			continue
		}
		playerSlots[p.ExternalID] = p.ID
	}

	for _, m := range t.st.Matches {
		if m.LeagueID != leagueID {
			continue
		}
		for _, teamID := range []int64{m.HomeTeamID, m.AwayTeamID} {
			if _, ok := t.st.Teams[teamID]; !ok {
				out = append(out, check.Violation{
					Entity:     plan.EntityMatchResult,
					NaturalKey: m.SourceID,
					Reason:     check.ReasonDanglingTeamRef,
					Detail:     fmt.Sprintf("match %s references unknown team %d", m.SourceID, teamID),
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		return out[i].NaturalKey < out[j].NaturalKey
	})
	return out, nil
}

// Reconciliation store methods operate directly on the live state; each one
// is a single idempotent step.

func (s *Store) PracticeTimes(_ context.Context, leagueID int64) ([]schedule.PracticeTime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []schedule.PracticeTime
	for _, pt := range s.state.PracticeTimes {
		if pt.LeagueID == leagueID {
			out = append(out, pt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) AuditKeyForEntity(_ context.Context, entityType plan.EntityType, entityID int64) (string, error) {
	if err := s.fail("audit_lookup"); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Newest entry wins; the trail is append-only.
	for i := len(s.state.Audit) - 1; i >= 0; i-- {
		entry := s.state.Audit[i]
		if entry.EntityType == string(entityType) && entry.EntityID == entityID {
			return entry.NaturalKey, nil
		}
	}
	return "", fmt.Errorf("audit %s/%d: %w", entityType, entityID, usecase.ErrNotFound)
}

func (s *Store) RepointTeamsToClub(_ context.Context, fromClubID, toClubID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, tm := range s.state.Teams {
		if tm.ClubID == fromClubID {
			tm.ClubID = toClubID
			tm.UpdatedAt = time.Now()
			s.state.Teams[id] = tm
		}
	}
	return nil
}

func (s *Store) RepointPlayersToTeam(_ context.Context, fromTeamID, toTeamID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.state.Players {
		if p.TeamID == fromTeamID {
			p.TeamID = toTeamID
			p.UpdatedAt = time.Now()
			s.state.Players[id] = p
		}
	}
	return nil
}

func (s *Store) RepointPracticeTime(_ context.Context, id, teamID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pt, ok := s.state.PracticeTimes[id]
	if !ok {
		return fmt.Errorf("practice time %d: %w", id, usecase.ErrNotFound)
	}
	pt.TeamID = teamID
	pt.NeedsReview = false
	pt.UpdatedAt = time.Now()
	s.state.PracticeTimes[id] = pt
	return nil
}

func (s *Store) FlagPracticeTime(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pt, ok := s.state.PracticeTimes[id]
	if !ok {
		return fmt.Errorf("practice time %d: %w", id, usecase.ErrNotFound)
	}
	pt.NeedsReview = true
	pt.UpdatedAt = time.Now()
	s.state.PracticeTimes[id] = pt
	return nil
}

func (s *Store) RetireClub(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.state.Clubs[id]
	if !ok {
		return fmt.Errorf("club %d: %w", id, usecase.ErrNotFound)
	}
	c.DeletedAt = &at
	s.state.Clubs[id] = c
	return nil
}

func (s *Store) RetireTeam(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tm, ok := s.state.Teams[id]
	if !ok {
		return fmt.Errorf("team %d: %w", id, usecase.ErrNotFound)
	}
	tm.DeletedAt = &at
	s.state.Teams[id] = tm
	return nil
}

func (s *Store) RetirePlayer(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.state.Players[id]
	if !ok {
		return fmt.Errorf("player %d: %w", id, usecase.ErrNotFound)
	}
	p.DeletedAt = &at
	s.state.Players[id] = p
	return nil
}

// Standings returns the cached rows for assertions in tests.
func (s *Store) Standings(leagueID int64) []standings.Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []standings.Row
	for _, row := range s.state.Standings {
		if row.LeagueID == leagueID {
			out = append(out, row)
		}
	}
	return out
}

// AuditEntries returns the full trail for assertions in tests.
func (s *Store) AuditEntries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]audit.Entry(nil), s.state.Audit...)
}
