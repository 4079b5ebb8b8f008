package main

import (
	"context"
	"time"

	"redshift/internal/ipc"
	"redshift/internal/store"
)

func cmdContext() context.Context {
	return context.Background()
}

func sessionStatusFromRecord(record store.SessionRecord) ipc.SessionStatus {
	status := ipc.SessionStatus{
		ID:               record.ID,
		StartedAt:        record.StartedAt.Format(time.RFC3339),
		FilesQueued:      record.FilesQueued,
		FilesTransferred: record.FilesTransferred,
		FilesFailed:      record.FilesFailed,
		TotalBytes:       record.TotalBytes,
		Method:           record.Method,
		DeviceID:         record.DeviceID,
	}
	if !record.FinishedAt.IsZero() {
		status.FinishedAt = record.FinishedAt.Format(time.RFC3339)
	}
	return status
}
