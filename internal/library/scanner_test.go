package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"redshift/internal/config"
	"redshift/internal/store"
)

func newTestScanner(t *testing.T) (*Scanner, *store.Store, string) {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.OutboxDir = filepath.Join(base, "outbox")
	cfg.Sync.ExtractWorkers = 2

	st, err := store.Open(&cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return NewScanner(&cfg, st, nil), st, cfg.Paths.LibraryDir
}

func writeFile(t *testing.T, root, rel string, content []byte) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	return path
}

func TestScanDetectsNewFiles(t *testing.T) {
	scanner, st, libraryDir := newTestScanner(t)
	writeFile(t, libraryDir, "Artist/Album/01 Song.mp3", []byte("audio-a"))
	writeFile(t, libraryDir, "Artist/Album/02 Other.flac", []byte("audio-b"))
	writeFile(t, libraryDir, "Artist/Album/cover.jpg", []byte("not audio"))
	writeFile(t, libraryDir, ".hidden/secret.mp3", []byte("hidden"))

	summary, err := scanner.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if summary.Scanned != 2 || summary.New != 2 || summary.Modified != 0 || summary.Deleted != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	entries, err := st.SnapshotEntries(context.Background())
	if err != nil {
		t.Fatalf("SnapshotEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 snapshot entries, got %d", len(entries))
	}
	if _, ok := entries["Artist/Album/01 Song.mp3"]; !ok {
		t.Fatal("expected slash-relative snapshot path")
	}
}

func TestScanIsIdempotent(t *testing.T) {
	scanner, _, libraryDir := newTestScanner(t)
	writeFile(t, libraryDir, "a.mp3", []byte("audio"))

	if _, err := scanner.Scan(context.Background(), nil); err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	summary, err := scanner.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if summary.Changed() {
		t.Fatalf("expected no changes on second scan, got %+v", summary)
	}
	if summary.Unchanged != 1 {
		t.Fatalf("expected 1 unchanged, got %+v", summary)
	}
}

func TestScanDetectsModificationAndDeletion(t *testing.T) {
	scanner, st, libraryDir := newTestScanner(t)
	modified := writeFile(t, libraryDir, "a.mp3", []byte("audio"))
	writeFile(t, libraryDir, "b.mp3", []byte("audio"))

	if _, err := scanner.Scan(context.Background(), nil); err != nil {
		t.Fatalf("first Scan: %v", err)
	}

	if err := os.WriteFile(modified, []byte("audio but longer"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	// Force a distinct mtime even on coarse-grained filesystems.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(modified, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Remove(filepath.Join(libraryDir, "b.mp3")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	summary, err := scanner.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if summary.Modified != 1 || summary.Deleted != 1 || summary.New != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	entries, err := st.SnapshotEntries(context.Background())
	if err != nil {
		t.Fatalf("SnapshotEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if _, ok := entries["b.mp3"]; ok {
		t.Fatal("expected b.mp3 to be removed from snapshot")
	}
}

func TestScanProgressIsMonotonic(t *testing.T) {
	scanner, _, libraryDir := newTestScanner(t)
	for _, name := range []string{"a.mp3", "b.mp3", "c.mp3", "d.mp3", "e.mp3"} {
		writeFile(t, libraryDir, name, []byte("audio "+name))
	}

	var reports []int
	_, err := scanner.Scan(context.Background(), func(processed, total int) {
		if total != 5 {
			t.Errorf("total changed mid-scan: %d", total)
		}
		reports = append(reports, processed)
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(reports) != 5 {
		t.Fatalf("expected 5 progress reports, got %d", len(reports))
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] <= reports[i-1] {
			t.Fatalf("progress not monotonic: %v", reports)
		}
	}
	if reports[len(reports)-1] != 5 {
		t.Fatalf("final progress should equal total: %v", reports)
	}
}

func TestScanMissingLibraryDirFails(t *testing.T) {
	scanner, _, libraryDir := newTestScanner(t)
	if err := os.RemoveAll(libraryDir); err != nil {
		t.Fatalf("remove library dir: %v", err)
	}
	if _, err := scanner.Scan(context.Background(), nil); err == nil {
		t.Fatal("expected error for missing library directory")
	}
}
