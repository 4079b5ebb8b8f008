package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordSession persists a finished sync session for history output.
func (s *Store) RecordSession(ctx context.Context, record SessionRecord) error {
	finishedAt := nullableString("")
	if !record.FinishedAt.IsZero() {
		finishedAt = record.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_sessions (id, started_at, finished_at, files_queued, files_transferred, files_failed, total_bytes, method, device_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			files_queued = excluded.files_queued,
			files_transferred = excluded.files_transferred,
			files_failed = excluded.files_failed,
			total_bytes = excluded.total_bytes`,
		record.ID, record.StartedAt.UTC().Format(time.RFC3339Nano), finishedAt,
		record.FilesQueued, record.FilesTransferred, record.FilesFailed,
		record.TotalBytes, record.Method, record.DeviceID)
	if err != nil {
		return fmt.Errorf("record sync session %q: %w", record.ID, err)
	}
	return nil
}

// Sessions returns the most recent sync sessions, newest first.
func (s *Store) Sessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, files_queued, files_transferred, files_failed, total_bytes, method, device_id
		FROM sync_sessions
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRecord
	for rows.Next() {
		var (
			record     SessionRecord
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&record.ID, &startedAt, &finishedAt, &record.FilesQueued,
			&record.FilesTransferred, &record.FilesFailed, &record.TotalBytes,
			&record.Method, &record.DeviceID); err != nil {
			return nil, err
		}
		if t, err := parseTimeString(startedAt); err == nil {
			record.StartedAt = t
		}
		if finishedAt.Valid {
			if t, err := parseTimeString(finishedAt.String); err == nil {
				record.FinishedAt = t
			}
		}
		sessions = append(sessions, record)
	}
	return sessions, rows.Err()
}
