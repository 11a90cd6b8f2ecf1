package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/league-import/internal/check"
	"github.com/riskibarqy/league-import/internal/plan"
)

func TestEmit_WritesFixedColumns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	emitter := NewEmitter(dir, 0, nil)

	rows := RowsFromViolations([]check.Violation{
		{
			Entity:     plan.EntitySeries,
			NaturalKey: "division-1",
			Reason:     check.ReasonSeriesMultiLeague,
			Detail:     "series is associated with leagues: autumn-league, spring-league",
		},
	})

	path, err := emitter.Emit("Spring League", time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC), rows)
	if err != nil {
		t.Fatalf("Emit error: %v", err)
	}
	if filepath.Base(path) != "report_spring-league_20260826T120000Z.tsv" {
		t.Fatalf("unexpected artifact name %q", filepath.Base(path))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + one row, got %d lines", len(lines))
	}
	if lines[0] != "entity_type\tnatural_key\treason_code\tdetail" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	cols := strings.Split(lines[1], "\t")
	if len(cols) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(cols))
	}
	if cols[0] != "series" || cols[1] != "division-1" || cols[2] != "series_multi_league" {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func TestEmit_EmptyRunStillLeavesArtifact(t *testing.T) {
	t.Parallel()

	emitter := NewEmitter(t.TempDir(), 0, nil)
	path, err := emitter.Emit("Spring League", time.Now(), nil)
	if err != nil {
		t.Fatalf("Emit error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(raw) != "entity_type\tnatural_key\treason_code\tdetail\n" {
		t.Fatalf("expected header-only artifact, got %q", raw)
	}
}

func TestEmit_DetailWithTabsStaysParseable(t *testing.T) {
	t.Parallel()

	emitter := NewEmitter(t.TempDir(), 0, nil)
	path, err := emitter.Emit("Spring League", time.Now(), []Row{
		{EntityType: "club", NaturalKey: "k", ReasonCode: "r", Detail: "a\tb\nc"},
	})
	if err != nil {
		t.Fatalf("Emit error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("embedded newline must not add rows, got %d lines", len(lines))
	}
	if got := strings.Count(lines[1], "\t"); got != 3 {
		t.Fatalf("embedded tab must not add columns, got %d separators", got)
	}
}

func TestEmit_RetentionPrunesOldestPerLeague(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	emitter := NewEmitter(dir, 2, nil)

	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if _, err := emitter.Emit("Spring League", base.Add(time.Duration(i)*time.Minute), nil); err != nil {
			t.Fatalf("Emit error: %v", err)
		}
	}
	// Another league's artifacts are never touched.
	if _, err := emitter.Emit("Autumn League", base, nil); err != nil {
		t.Fatalf("Emit error: %v", err)
	}

	spring, err := filepath.Glob(filepath.Join(dir, "report_spring-league_*.tsv"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(spring) != 2 {
		t.Fatalf("expected 2 retained artifacts, got %d", len(spring))
	}
	for _, p := range spring {
		if strings.Contains(p, "T1200") || strings.Contains(p, "T1201") {
			t.Fatalf("oldest artifacts must be pruned, found %s", p)
		}
	}
	autumn, _ := filepath.Glob(filepath.Join(dir, "report_autumn-league_*.tsv"))
	if len(autumn) != 1 {
		t.Fatalf("other league's artifact must survive, got %d", len(autumn))
	}
}
