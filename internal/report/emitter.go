// Package report writes the per-run violation artifact. One file per run,
// tab-separated, fixed columns. The emitter only ever writes new files; it
// never mutates database state.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/riskibarqy/league-import/external/feed"
	"github.com/riskibarqy/league-import/internal/check"
	"github.com/riskibarqy/league-import/internal/naturalkey"
	"github.com/riskibarqy/league-import/internal/platform/logging"
)

const header = "entity_type\tnatural_key\treason_code\tdetail\n"

type Row struct {
	EntityType string
	NaturalKey string
	ReasonCode string
	Detail     string
}

type Emitter struct {
	dir    string
	retain int
	logger *logging.Logger
}

// NewEmitter writes artifacts under dir, keeping at most retain files per
// league. retain <= 0 disables pruning.
func NewEmitter(dir string, retain int, logger *logging.Logger) *Emitter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Emitter{dir: dir, retain: retain, logger: logger}
}

// Emit writes one artifact and returns its path. An empty row set still
// produces a file with only the header, so every run leaves a trace.
func (e *Emitter) Emit(leagueName string, now time.Time, rows []Row) (string, error) {
	slug := naturalkey.Canonicalize(leagueName)
	if slug == "" {
		return "", fmt.Errorf("report: empty league name")
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("report: create dir: %w", err)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString(header)
	for _, row := range rows {
		_, _ = buf.WriteString(sanitize(row.EntityType))
		_ = buf.WriteByte('\t')
		_, _ = buf.WriteString(sanitize(row.NaturalKey))
		_ = buf.WriteByte('\t')
		_, _ = buf.WriteString(sanitize(row.ReasonCode))
		_ = buf.WriteByte('\t')
		_, _ = buf.WriteString(sanitize(row.Detail))
		_ = buf.WriteByte('\n')
	}

	name := fmt.Sprintf("report_%s_%s.tsv", slug, now.UTC().Format("20060102T150405Z"))
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", name, err)
	}

	e.logger.Info("report written", "path", path, "rows", len(rows))

	if e.retain > 0 {
		if err := e.prune(slug); err != nil {
			e.logger.Warn("report retention prune failed", "error", err)
		}
	}
	return path, nil
}

// prune keeps the newest retain artifacts for one league. Lexicographic
// order on the file names matches chronological order because of the
// timestamp format.
func (e *Emitter) prune(slug string) error {
	matches, err := filepath.Glob(filepath.Join(e.dir, "report_"+slug+"_*.tsv"))
	if err != nil {
		return err
	}
	if len(matches) <= e.retain {
		return nil
	}
	sort.Strings(matches)
	for _, stale := range matches[:len(matches)-e.retain] {
		if err := os.Remove(stale); err != nil {
			return err
		}
	}
	return nil
}

// sanitize keeps the artifact parseable: detail text must not break the
// tab-separated layout.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

func RowsFromViolations(vs []check.Violation) []Row {
	rows := make([]Row, 0, len(vs))
	for _, v := range vs {
		rows = append(rows, Row{
			EntityType: string(v.Entity),
			NaturalKey: v.NaturalKey,
			ReasonCode: string(v.Reason),
			Detail:     v.Detail,
		})
	}
	return rows
}

func RowsFromExclusions(exs []feed.Exclusion) []Row {
	rows := make([]Row, 0, len(exs))
	for _, ex := range exs {
		rows = append(rows, Row{
			EntityType: ex.Entity,
			ReasonCode: ex.Reason,
			Detail:     ex.Detail,
		})
	}
	return rows
}
