package ipc

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DeviceStatus describes the attached device, if any.
type DeviceStatus struct {
	UDID      string `json:"udid"`
	Name      string `json:"name"`
	ProductID string `json:"product_id"`
}

// SessionStatus summarizes a recorded sync session.
type SessionStatus struct {
	ID               string `json:"id"`
	StartedAt        string `json:"started_at"`
	FinishedAt       string `json:"finished_at"`
	FilesQueued      int    `json:"files_queued"`
	FilesTransferred int    `json:"files_transferred"`
	FilesFailed      int    `json:"files_failed"`
	TotalBytes       int64  `json:"total_bytes"`
	Method           string `json:"method"`
	DeviceID         string `json:"device_id"`
}

// StatusResponse represents combined daemon and sync status information.
type StatusResponse struct {
	Running     bool           `json:"running"`
	SyncActive  bool           `json:"sync_active"`
	Device      *DeviceStatus  `json:"device,omitempty"`
	CachedFiles int            `json:"cached_files"`
	Transferred int            `json:"transferred"`
	Pending     int            `json:"pending"`
	HealthScore int            `json:"health_score"`
	LastSession *SessionStatus `json:"last_session,omitempty"`
	DBPath      string         `json:"db_path"`
	LockPath    string         `json:"lock_path"`
	PID         int            `json:"pid"`
}

// ScanRequest triggers a library scan.
type ScanRequest struct{}

// ScanResponse reports scan results.
type ScanResponse struct {
	Scanned   int    `json:"scanned"`
	New       int    `json:"new"`
	Modified  int    `json:"modified"`
	Unchanged int    `json:"unchanged"`
	Deleted   int    `json:"deleted"`
	Duration  string `json:"duration"`
}

// SyncStartRequest starts a sync session.
type SyncStartRequest struct {
	Method          string `json:"method"`
	CleanupOrphaned bool   `json:"cleanup_orphaned"`
	SkipScan        bool   `json:"skip_scan"`
}

// SyncStartResponse reports the session outcome.
type SyncStartResponse struct {
	SessionID   string `json:"session_id"`
	Queued      int    `json:"queued"`
	Transferred int    `json:"transferred"`
	Failed      int    `json:"failed"`
	Orphans     int    `json:"orphans_cleaned"`
	Bytes       int64  `json:"bytes"`
	Duration    string `json:"duration"`
	Method      string `json:"method"`
}

// PreIndexRequest seeds the ledger from the device's current contents.
type PreIndexRequest struct{}

// PreIndexResponse reports seeding results.
type PreIndexResponse struct {
	Strategy string `json:"strategy"`
	Indexed  int    `json:"indexed"`
	Seeded   int    `json:"seeded"`
}

// RefreshLedgerRequest prunes ledger rows for deleted library files.
type RefreshLedgerRequest struct{}

// RefreshLedgerResponse reports how many rows were checked and dropped.
type RefreshLedgerResponse struct {
	Checked int `json:"checked"`
	Dropped int `json:"dropped"`
}

// DevicesRequest lists attached devices.
type DevicesRequest struct{}

// DevicesResponse contains the tracked device list.
type DevicesResponse struct {
	Devices []DeviceStatus `json:"devices"`
}

// SessionsRequest fetches recent session history.
type SessionsRequest struct {
	Limit int `json:"limit"`
}

// SessionsResponse contains session history, newest first.
type SessionsResponse struct {
	Sessions []SessionStatus `json:"sessions"`
}

// StopRequest asks the daemon to shut down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	TablesPresent    []string `json:"tables_present"`
	MissingTables    []string `json:"missing_tables"`
	IntegrityCheck   bool     `json:"integrity_check"`
	Error            string   `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
