package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"redshift/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.OutboxDir = filepath.Join(base, "outbox")

	s, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestApplyScanRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	upserts := []SnapshotEntry{
		{Path: "Artist/Album/01 Song.mp3", Size: 4096, MTime: 1700000000, MetadataJSON: `{"title":"Song"}`},
		{Path: "Artist/Album/02 Other.flac", Size: 8192, MTime: 1700000100},
	}
	if err := s.ApplyScan(ctx, upserts, nil); err != nil {
		t.Fatalf("ApplyScan: %v", err)
	}

	entries, err := s.SnapshotEntries(ctx)
	if err != nil {
		t.Fatalf("SnapshotEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	entry := entries["Artist/Album/01 Song.mp3"]
	if entry.Size != 4096 || entry.MTime != 1700000000 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.MetadataJSON != `{"title":"Song"}` {
		t.Fatalf("unexpected metadata %q", entry.MetadataJSON)
	}
	if entries["Artist/Album/02 Other.flac"].MetadataJSON != "" {
		t.Fatal("expected empty metadata for second entry")
	}
}

func TestApplyScanUpdatesAndDeletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	initial := []SnapshotEntry{
		{Path: "a.mp3", Size: 100, MTime: 1},
		{Path: "b.mp3", Size: 200, MTime: 2},
	}
	if err := s.ApplyScan(ctx, initial, nil); err != nil {
		t.Fatalf("ApplyScan: %v", err)
	}

	update := []SnapshotEntry{{Path: "a.mp3", Size: 150, MTime: 3}}
	if err := s.ApplyScan(ctx, update, []string{"b.mp3"}); err != nil {
		t.Fatalf("ApplyScan update: %v", err)
	}

	entries, err := s.SnapshotEntries(ctx)
	if err != nil {
		t.Fatalf("SnapshotEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries["a.mp3"].Size != 150 || entries["a.mp3"].MTime != 3 {
		t.Fatalf("update not applied: %+v", entries["a.mp3"])
	}
}

func TestInsertTransfersAndLedgerRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []TransferRecord{
		{Path: "a.mp3", Hash: "abc123", Size: 100, MTime: 1, Method: "direct", DeviceID: "dev-1"},
		{Path: "b.mp3", Hash: "def456", Size: 200, MTime: 2, Method: "direct", DeviceID: "dev-1"},
		{Path: "a.mp3", Hash: "abc123", Size: 100, MTime: 1, Method: "direct", DeviceID: "dev-2"},
	}
	if err := s.InsertTransfers(ctx, records); err != nil {
		t.Fatalf("InsertTransfers: %v", err)
	}

	ledger, err := s.LedgerRecords(ctx, "dev-1")
	if err != nil {
		t.Fatalf("LedgerRecords: %v", err)
	}
	if len(ledger) != 2 {
		t.Fatalf("expected 2 records for dev-1, got %d", len(ledger))
	}
	record := ledger["a.mp3"]
	if record.Hash != "abc123" || record.Status != StatusCompleted {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.TransferredAt.IsZero() {
		t.Fatal("expected transferred_at to be set")
	}

	other, err := s.LedgerRecords(ctx, "dev-2")
	if err != nil {
		t.Fatalf("LedgerRecords dev-2: %v", err)
	}
	if len(other) != 1 {
		t.Fatalf("expected 1 record for dev-2, got %d", len(other))
	}
}

func TestInsertTransfersReplacesStaleRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := TransferRecord{Path: "a.mp3", Hash: "old", Size: 100, MTime: 1, Method: "direct", DeviceID: "dev-1"}
	if err := s.InsertTransfers(ctx, []TransferRecord{first}); err != nil {
		t.Fatalf("InsertTransfers: %v", err)
	}

	second := TransferRecord{Path: "a.mp3", Hash: "new", Size: 120, MTime: 5, Method: "sandbox", DeviceID: "dev-1"}
	if err := s.InsertTransfers(ctx, []TransferRecord{second}); err != nil {
		t.Fatalf("InsertTransfers replace: %v", err)
	}

	ledger, err := s.LedgerRecords(ctx, "dev-1")
	if err != nil {
		t.Fatalf("LedgerRecords: %v", err)
	}
	if len(ledger) != 1 {
		t.Fatalf("expected single record, got %d", len(ledger))
	}
	record := ledger["a.mp3"]
	if record.Hash != "new" || record.Size != 120 || record.Method != "sandbox" {
		t.Fatalf("stale record not replaced: %+v", record)
	}
}

func TestConfirmPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []TransferRecord{
		{Path: "a.mp3", Size: 100, MTime: 1, Method: "manual", DeviceID: "dev-1", Status: StatusPending},
		{Path: "b.mp3", Size: 200, MTime: 2, Method: "manual", DeviceID: "dev-1", Status: StatusPending},
		{Path: "c.mp3", Size: 300, MTime: 3, Method: "direct", DeviceID: "dev-1"},
	}
	if err := s.InsertTransfers(ctx, records); err != nil {
		t.Fatalf("InsertTransfers: %v", err)
	}

	promoted, err := s.ConfirmPending(ctx, "dev-1", []string{"a.mp3"})
	if err != nil {
		t.Fatalf("ConfirmPending: %v", err)
	}
	if promoted != 1 {
		t.Fatalf("expected 1 promotion, got %d", promoted)
	}

	promoted, err = s.ConfirmPending(ctx, "dev-1", nil)
	if err != nil {
		t.Fatalf("ConfirmPending all: %v", err)
	}
	if promoted != 1 {
		t.Fatalf("expected 1 remaining promotion, got %d", promoted)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pending != 0 || stats.Transferred != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestDeleteLedgerPaths(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []TransferRecord{
		{Path: "a.mp3", Size: 100, MTime: 1, Method: "direct", DeviceID: "dev-1"},
		{Path: "b.mp3", Size: 200, MTime: 2, Method: "direct", DeviceID: "dev-1"},
	}
	if err := s.InsertTransfers(ctx, records); err != nil {
		t.Fatalf("InsertTransfers: %v", err)
	}

	removed, err := s.DeleteLedgerPaths(ctx, "dev-1", []string{"a.mp3", "missing.mp3"})
	if err != nil {
		t.Fatalf("DeleteLedgerPaths: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}

	ledger, err := s.LedgerRecords(ctx, "dev-1")
	if err != nil {
		t.Fatalf("LedgerRecords: %v", err)
	}
	if _, ok := ledger["a.mp3"]; ok {
		t.Fatal("expected a.mp3 to be removed")
	}
	if _, ok := ledger["b.mp3"]; !ok {
		t.Fatal("expected b.mp3 to remain")
	}
}

func TestRecordSessionAndHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Add(-time.Minute)
	session := SessionRecord{
		ID:               "session-1",
		StartedAt:        started,
		FilesQueued:      10,
		Method:           "direct",
		DeviceID:         "dev-1",
	}
	if err := s.RecordSession(ctx, session); err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	session.FinishedAt = time.Now().UTC()
	session.FilesTransferred = 9
	session.FilesFailed = 1
	session.TotalBytes = 12345
	if err := s.RecordSession(ctx, session); err != nil {
		t.Fatalf("RecordSession update: %v", err)
	}

	sessions, err := s.Sessions(ctx, 5)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.FilesTransferred != 9 || got.FilesFailed != 1 || got.TotalBytes != 12345 {
		t.Fatalf("unexpected session %+v", got)
	}
	if got.FinishedAt.IsZero() {
		t.Fatal("expected finished_at to be set")
	}
}

func TestCheckHealth(t *testing.T) {
	s := newTestStore(t)

	health, err := s.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable {
		t.Fatalf("unexpected health %+v", health)
	}
	if len(health.MissingTables) != 0 {
		t.Fatalf("missing tables: %v", health.MissingTables)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
}
