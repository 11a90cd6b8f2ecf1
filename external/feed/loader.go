// Package feed reads the typed source documents the scraping collaborator
// drops on disk, one directory per league. Parsing is the only phase of a
// run that may fan out: it is read-only and touches in-memory state only.
package feed

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/league-import/internal/naturalkey"
	"github.com/riskibarqy/league-import/internal/platform/logging"
)

const (
	leagueFile  = "league.json"
	clubsFile   = "clubs.json"
	seriesFile  = "series.json"
	teamsFile   = "teams.json"
	playersFile = "players.json"
	matchesFile = "matches.json"

	defaultMaxWorkers = 4
)

var validate = validator.New()

type Loader struct {
	dir        string
	maxWorkers int
	logger     *logging.Logger
}

func NewLoader(dir string, maxWorkers int, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.Default()
	}
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	return &Loader{dir: dir, maxWorkers: maxWorkers, logger: logger}
}

// Load reads and validates every document for one league. The five record
// files are parsed on a bounded worker pool; the league document is read
// first because its name must match the requested league.
func (l *Loader) Load(ctx context.Context, leagueName string) (Dataset, error) {
	docDir := filepath.Join(l.dir, naturalkey.Canonicalize(leagueName))

	ds := Dataset{Raw: make(map[string][]byte, 6)}

	leagueRaw, err := os.ReadFile(filepath.Join(docDir, leagueFile))
	if err != nil {
		return Dataset{}, crerr.Wrapf(err, "read league document for %q", leagueName)
	}
	if err := sonic.Unmarshal(leagueRaw, &ds.League); err != nil {
		return Dataset{}, crerr.Wrapf(err, "decode %s", leagueFile)
	}
	if err := validate.Struct(ds.League); err != nil {
		return Dataset{}, crerr.Wrapf(err, "invalid league document in %s", docDir)
	}
	ds.Raw[leagueFile] = leagueRaw

	pool, err := ants.NewPool(l.maxWorkers)
	if err != nil {
		return Dataset{}, crerr.Wrap(err, "create parse worker pool")
	}
	defer pool.Release()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)

	parse := func(name string, required bool, decode func([]byte) ([]Exclusion, error)) {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			raw, readErr := os.ReadFile(filepath.Join(docDir, name))
			if readErr != nil {
				mu.Lock()
				defer mu.Unlock()
				if !required && os.IsNotExist(readErr) {
					l.logger.InfoContext(ctx, "optional source document missing", "file", name, "league", leagueName)
					return
				}
				if firstErr == nil {
					firstErr = crerr.Wrapf(readErr, "read %s", name)
				}
				return
			}

			excluded, decodeErr := decode(raw)

			mu.Lock()
			defer mu.Unlock()
			if decodeErr != nil {
				if firstErr == nil {
					firstErr = crerr.Wrapf(decodeErr, "decode %s", name)
				}
				return
			}
			ds.Raw[name] = raw
			ds.Excluded = append(ds.Excluded, excluded...)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = crerr.Wrap(submitErr, "submit parse task")
			}
			mu.Unlock()
		}
	}

	parse(clubsFile, true, func(raw []byte) ([]Exclusion, error) {
		records, excluded, err := decodeRecords[ClubRecord](raw, "club")
		ds.Clubs = records
		return excluded, err
	})
	parse(seriesFile, true, func(raw []byte) ([]Exclusion, error) {
		records, excluded, err := decodeRecords[SeriesRecord](raw, "series")
		ds.Series = records
		return excluded, err
	})
	parse(teamsFile, true, func(raw []byte) ([]Exclusion, error) {
		records, excluded, err := decodeRecords[TeamRecord](raw, "team")
		ds.Teams = records
		return excluded, err
	})
	parse(playersFile, true, func(raw []byte) ([]Exclusion, error) {
		records, excluded, err := decodeRecords[PlayerRecord](raw, "player")
		ds.Players = records
		return excluded, err
	})
	parse(matchesFile, false, func(raw []byte) ([]Exclusion, error) {
		records, excluded, err := decodeRecords[MatchRecord](raw, "match")
		ds.Matches = records
		return excluded, err
	})

	wg.Wait()

	if firstErr != nil {
		return Dataset{}, firstErr
	}
	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}

	for _, ex := range ds.Excluded {
		l.logger.WarnContext(ctx, "source record excluded",
			"league", leagueName,
			"entity", ex.Entity,
			"reason", ex.Reason,
			"detail", ex.Detail,
		)
	}

	return ds, nil
}

// decodeRecords unmarshals one document and keeps only records that pass
// field validation. Invalid records become exclusions; a document that is
// not valid JSON at all fails the load.
func decodeRecords[T any](raw []byte, entity string) ([]T, []Exclusion, error) {
	var records []T
	if err := sonic.Unmarshal(raw, &records); err != nil {
		return nil, nil, err
	}

	out := records[:0]
	var excluded []Exclusion
	for _, record := range records {
		if err := validate.Struct(record); err != nil {
			excluded = append(excluded, Exclusion{
				Entity: entity,
				Reason: "invalid_record",
				Detail: err.Error(),
			})
			continue
		}
		out = append(out, record)
	}

	return out, excluded, nil
}
