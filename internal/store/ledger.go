package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LedgerRecords loads all transfer records for a device keyed by path.
// Records for other devices are excluded.
func (s *Store) LedgerRecords(ctx context.Context, deviceID string) (map[string]TransferRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, hash, size, mtime, transferred_at, method, device_id, status
		FROM transfer_ledger
		WHERE device_id = ?`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	records := make(map[string]TransferRecord)
	for rows.Next() {
		record, err := scanTransferRecord(rows)
		if err != nil {
			return nil, err
		}
		records[record.Path] = record
	}
	return records, rows.Err()
}

// InsertTransfers records a batch of transfers in a single transaction.
// On conflict the existing row is replaced; a re-transfer of a modified
// file supersedes the stale record.
func (s *Store) InsertTransfers(ctx context.Context, records []TransferRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transfer_ledger (path, hash, size, mtime, transferred_at, method, device_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, device_id) DO UPDATE SET
			hash = excluded.hash,
			size = excluded.size,
			mtime = excluded.mtime,
			transferred_at = excluded.transferred_at,
			method = excluded.method,
			status = excluded.status`)
	if err != nil {
		return fmt.Errorf("prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		transferredAt := record.TransferredAt
		if transferredAt.IsZero() {
			transferredAt = time.Now().UTC()
		}
		status := record.Status
		if status == "" {
			status = StatusCompleted
		}
		if _, err := stmt.ExecContext(ctx, record.Path, nullableString(record.Hash),
			record.Size, record.MTime, transferredAt.Format(time.RFC3339Nano),
			record.Method, record.DeviceID, string(status)); err != nil {
			return fmt.Errorf("insert ledger record %q: %w", record.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	return nil
}

// DeleteLedgerPaths removes ledger records for the given paths on one device,
// typically after the files were removed from the device during orphan
// cleanup. Returns the number of rows removed.
func (s *Store) DeleteLedgerPaths(ctx context.Context, deviceID string, paths []string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(paths)+1)
	args = append(args, deviceID)
	for _, path := range paths {
		args = append(args, path)
	}

	query := fmt.Sprintf(`DELETE FROM transfer_ledger WHERE device_id = ? AND path IN (%s)`,
		makePlaceholders(len(paths)))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete ledger records: %w", err)
	}
	return result.RowsAffected()
}

// ConfirmPending promotes pending manual-transfer records to completed.
// With no paths given, every pending record for the device is promoted.
// Returns the number of rows promoted.
func (s *Store) ConfirmPending(ctx context.Context, deviceID string, paths []string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var (
		query string
		args  []any
	)
	if len(paths) == 0 {
		query = `UPDATE transfer_ledger SET status = ?, transferred_at = ? WHERE device_id = ? AND status = ?`
		args = []any{string(StatusCompleted), now, deviceID, string(StatusPending)}
	} else {
		query = fmt.Sprintf(
			`UPDATE transfer_ledger SET status = ?, transferred_at = ? WHERE device_id = ? AND status = ? AND path IN (%s)`,
			makePlaceholders(len(paths)))
		args = make([]any, 0, len(paths)+4)
		args = append(args, string(StatusCompleted), now, deviceID, string(StatusPending))
		for _, path := range paths {
			args = append(args, path)
		}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("confirm pending transfers: %w", err)
	}
	return result.RowsAffected()
}

func scanTransferRecord(row rowScanner) (TransferRecord, error) {
	var (
		record        TransferRecord
		hash          sql.NullString
		transferredAt string
		status        string
	)
	if err := row.Scan(&record.ID, &record.Path, &hash, &record.Size, &record.MTime,
		&transferredAt, &record.Method, &record.DeviceID, &status); err != nil {
		return TransferRecord{}, err
	}
	record.Hash = hash.String
	record.Status = Status(status)
	if t, err := parseTimeString(transferredAt); err == nil {
		record.TransferredAt = t
	}
	return record, nil
}
