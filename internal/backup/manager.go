// Package backup takes logical pre-mutation snapshots of one league's rows
// and restores them on demand. Snapshots are plain JSON files in a
// per-run directory, so an operator can inspect or hand-edit them.
package backup

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/league-import/internal/naturalkey"
	"github.com/riskibarqy/league-import/internal/platform/logging"
)

// Snapshot is the unit the restore path consumes: one table name mapped to
// its serialized rows, plus where it came from.
type Snapshot struct {
	League    string
	RunID     string
	CreatedAt time.Time
	Dir       string
	Tables    map[string][]byte
}

type Manager struct {
	root   string
	retain int
	logger *logging.Logger
}

// NewManager stores snapshots under root, keeping at most retain run
// directories per league. retain <= 0 disables pruning.
func NewManager(root string, retain int, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{root: root, retain: retain, logger: logger}
}

// Write snapshots every table in one run directory, writing the files in
// parallel and verifying each one by reading it back. Any failure removes
// the partial directory so a later restore can never pick up a half
// snapshot.
func (m *Manager) Write(ctx context.Context, league, runID string, now time.Time, tables map[string]any) (string, error) {
	slug := naturalkey.Canonicalize(league)
	if slug == "" {
		return "", crerr.New("backup: empty league name")
	}
	if len(tables) == 0 {
		return "", crerr.New("backup: nothing to snapshot")
	}

	dir := filepath.Join(m.root, slug, now.UTC().Format("20060102T150405Z")+"_"+runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", crerr.Wrapf(err, "backup: create %s", dir)
	}

	p := pool.New().WithErrors().WithContext(ctx)
	for name, rows := range tables {
		name, rows := name, rows
		p.Go(func(ctx context.Context) error {
			return m.writeTable(dir, name, rows)
		})
	}
	if err := p.Wait(); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			m.logger.Warn("partial snapshot left behind", "dir", dir, "error", rmErr)
		}
		return "", crerr.Wrap(err, "backup: snapshot failed")
	}

	m.logger.InfoContext(ctx, "snapshot written", "dir", dir, "tables", len(tables))

	if m.retain > 0 {
		if err := m.prune(slug); err != nil {
			m.logger.Warn("snapshot retention prune failed", "error", err)
		}
	}
	return dir, nil
}

func (m *Manager) writeTable(dir, name string, rows any) error {
	raw, err := sonic.Marshal(rows)
	if err != nil {
		return crerr.Wrapf(err, "marshal %s", name)
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return crerr.Wrapf(err, "write %s", name)
	}
	// Read-back verification: a snapshot we cannot restore from is not a
	// snapshot.
	check, err := os.ReadFile(path)
	if err != nil {
		return crerr.Wrapf(err, "verify %s", name)
	}
	if !bytes.Equal(raw, check) {
		return crerr.Newf("verify %s: read-back mismatch", name)
	}
	return nil
}

// ArchiveSource stores the raw feed documents next to the snapshot, under a
// source/ subdirectory.
func (m *Manager) ArchiveSource(dir string, raw map[string][]byte) error {
	if len(raw) == 0 {
		return nil
	}
	srcDir := filepath.Join(dir, "source")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return crerr.Wrapf(err, "backup: create %s", srcDir)
	}
	for name, doc := range raw {
		if err := os.WriteFile(filepath.Join(srcDir, filepath.Base(name)), doc, 0o644); err != nil {
			return crerr.Wrapf(err, "backup: archive %s", name)
		}
	}
	return nil
}

// Load reads one snapshot directory back for restore. Only top-level .json
// files count as tables; the archived source documents are skipped.
func (m *Manager) Load(dir string) (Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Snapshot{}, crerr.Wrapf(err, "backup: read %s", dir)
	}

	snap := Snapshot{Dir: dir, Tables: make(map[string][]byte)}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return Snapshot{}, crerr.Wrapf(err, "backup: read %s", entry.Name())
		}
		name := entry.Name()[:len(entry.Name())-len(".json")]
		snap.Tables[name] = raw
	}
	if len(snap.Tables) == 0 {
		return Snapshot{}, crerr.Newf("backup: %s holds no tables", dir)
	}

	snap.League = filepath.Base(filepath.Dir(dir))
	base := filepath.Base(dir)
	if at, runID, ok := splitRunDir(base); ok {
		snap.CreatedAt = at
		snap.RunID = runID
	}
	return snap, nil
}

// Latest returns the newest snapshot directory for a league.
func (m *Manager) Latest(league string) (string, error) {
	slug := naturalkey.Canonicalize(league)
	dirs, err := m.runDirs(slug)
	if err != nil {
		return "", err
	}
	if len(dirs) == 0 {
		return "", crerr.Newf("backup: no snapshots for %s", slug)
	}
	return dirs[len(dirs)-1], nil
}

func (m *Manager) prune(slug string) error {
	dirs, err := m.runDirs(slug)
	if err != nil {
		return err
	}
	if len(dirs) <= m.retain {
		return nil
	}
	for _, stale := range dirs[:len(dirs)-m.retain] {
		if err := os.RemoveAll(stale); err != nil {
			return err
		}
		m.logger.Info("stale snapshot pruned", "dir", stale)
	}
	return nil
}

// runDirs lists a league's snapshot directories oldest first. The
// timestamp prefix makes lexicographic order chronological.
func (m *Manager) runDirs(slug string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.root, slug))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, crerr.Wrapf(err, "backup: list %s", slug)
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(m.root, slug, entry.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func splitRunDir(base string) (time.Time, string, bool) {
	const layout = "20060102T150405Z"
	if len(base) < len(layout)+2 || base[len(layout)] != '_' {
		return time.Time{}, "", false
	}
	at, err := time.Parse(layout, base[:len(layout)])
	if err != nil {
		return time.Time{}, "", false
	}
	return at, base[len(layout)+1:], true
}
