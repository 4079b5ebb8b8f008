package store

import "time"

// Status represents the lifecycle of a transfer ledger record.
type Status string

const (
	// StatusCompleted marks a verified transfer; the file is on the device.
	StatusCompleted Status = "completed"
	// StatusPending marks a staged manual transfer. Pending records are never
	// treated as proof of presence on the device.
	StatusPending Status = "pending"
)

// SnapshotEntry is the last-known-good record of one library file, persisted
// between scans.
type SnapshotEntry struct {
	Path         string
	Size         int64
	MTime        int64
	MetadataJSON string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TransferRecord is proof that a specific library file was placed on a
// specific device.
type TransferRecord struct {
	ID            int64
	Path          string
	Hash          string
	Size          int64
	MTime         int64
	TransferredAt time.Time
	Method        string
	DeviceID      string
	Status        Status
}

// SessionRecord summarizes one completed sync session for history output.
type SessionRecord struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	FilesQueued      int
	FilesTransferred int
	FilesFailed      int
	TotalBytes       int64
	Method           string
	DeviceID         string
}

// Stats aggregates row counts for status output.
type Stats struct {
	CachedFiles int
	Transferred int
	Pending     int
}

// DatabaseHealth captures diagnostic information about the sync database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	Error            string
}
