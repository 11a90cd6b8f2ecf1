package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/riskibarqy/league-import/internal/domain/club"
)

func fixtureTables() map[string]any {
	return map[string]any{
		"clubs": []club.Club{
			{ID: 10, LeagueID: 1, Name: "Example CC", CanonicalName: "example-cc"},
		},
		"series":  []struct{}{},
		"teams":   []struct{}{},
		"players": []struct{}{},
	}
}

func TestWrite_SnapshotRoundTrips(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir(), 0, nil)
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	dir, err := m.Write(context.Background(), "Spring League", "run-1", now, fixtureTables())
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if filepath.Base(dir) != "20260826T120000Z_run-1" {
		t.Fatalf("unexpected snapshot dir %q", filepath.Base(dir))
	}

	snap, err := m.Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(snap.Tables) != 4 {
		t.Fatalf("expected 4 tables, got %d", len(snap.Tables))
	}
	if snap.RunID != "run-1" || !snap.CreatedAt.Equal(now) {
		t.Fatalf("run metadata not recovered: %+v", snap)
	}

	var clubs []club.Club
	if err := sonic.Unmarshal(snap.Tables["clubs"], &clubs); err != nil {
		t.Fatalf("unmarshal clubs: %v", err)
	}
	if len(clubs) != 1 || clubs[0].ID != 10 {
		t.Fatalf("club rows did not round-trip: %+v", clubs)
	}
}

func TestWrite_EmptyTableSetIsFatal(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir(), 0, nil)
	if _, err := m.Write(context.Background(), "Spring League", "run-1", time.Now(), nil); err == nil {
		t.Fatal("expected error for empty table set")
	}
}

func TestWrite_UnmarshalableTableRemovesPartialSnapshot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	m := NewManager(root, 0, nil)

	tables := fixtureTables()
	tables["bad"] = make(chan int)

	if _, err := m.Write(context.Background(), "Spring League", "run-1", time.Now(), tables); err == nil {
		t.Fatal("expected error for unmarshalable table")
	}
	entries, err := os.ReadDir(filepath.Join(root, "spring-league"))
	if err == nil && len(entries) != 0 {
		t.Fatalf("partial snapshot must be removed, found %d entries", len(entries))
	}
}

func TestArchiveSource(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir(), 0, nil)
	dir, err := m.Write(context.Background(), "Spring League", "run-1", time.Now(), fixtureTables())
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if err := m.ArchiveSource(dir, map[string][]byte{"clubs.json": []byte(`[]`)}); err != nil {
		t.Fatalf("ArchiveSource error: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "source", "clubs.json"))
	if err != nil {
		t.Fatalf("read archived doc: %v", err)
	}
	if string(raw) != "[]" {
		t.Fatalf("unexpected archived content %q", raw)
	}

	// Archived documents must not surface as restorable tables.
	snap, err := m.Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(snap.Tables) != 4 {
		t.Fatalf("source archive leaked into tables: %d", len(snap.Tables))
	}
}

func TestRetention_KeepsNewestRuns(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	m := NewManager(root, 2, nil)
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		now := base.Add(time.Duration(i) * time.Minute)
		if _, err := m.Write(context.Background(), "Spring League", "run", now, fixtureTables()); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(root, "spring-league"))
	if err != nil {
		t.Fatalf("read league dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 retained snapshots, got %d", len(entries))
	}

	latest, err := m.Latest("Spring League")
	if err != nil {
		t.Fatalf("Latest error: %v", err)
	}
	if filepath.Base(latest) != "20260826T120300Z_run" {
		t.Fatalf("unexpected latest snapshot %q", filepath.Base(latest))
	}
}
