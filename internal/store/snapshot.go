package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SnapshotEntries loads the persisted library snapshot keyed by path.
func (s *Store) SnapshotEntries(ctx context.Context) (map[string]SnapshotEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, size, mtime, metadata_json, created_at, updated_at
		FROM cache_snapshot`)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]SnapshotEntry)
	for rows.Next() {
		entry, err := scanSnapshotEntry(rows)
		if err != nil {
			return nil, err
		}
		entries[entry.Path] = entry
	}
	return entries, rows.Err()
}

// SnapshotEntry returns one snapshot record, or sql.ErrNoRows when absent.
func (s *Store) SnapshotEntry(ctx context.Context, path string) (SnapshotEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, size, mtime, metadata_json, created_at, updated_at
		FROM cache_snapshot WHERE path = ?`, path)
	return scanSnapshotEntry(row)
}

// ApplyScan commits the outcome of one library scan in a single transaction:
// upserts for new and modified files, deletes for files that vanished. Either
// the whole scan result lands or none of it does.
func (s *Store) ApplyScan(ctx context.Context, upserts []SnapshotEntry, deletes []string) error {
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scan transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Format(time.RFC3339Nano)

	if len(upserts) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO cache_snapshot (path, size, mtime, metadata_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				size = excluded.size,
				mtime = excluded.mtime,
				metadata_json = excluded.metadata_json,
				updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("prepare snapshot upsert: %w", err)
		}
		defer stmt.Close()
		for _, entry := range upserts {
			if _, err := stmt.ExecContext(ctx, entry.Path, entry.Size, entry.MTime,
				nullableString(entry.MetadataJSON), now, now); err != nil {
				return fmt.Errorf("upsert snapshot entry %q: %w", entry.Path, err)
			}
		}
	}

	if len(deletes) > 0 {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM cache_snapshot WHERE path = ?`)
		if err != nil {
			return fmt.Errorf("prepare snapshot delete: %w", err)
		}
		defer stmt.Close()
		for _, path := range deletes {
			if _, err := stmt.ExecContext(ctx, path); err != nil {
				return fmt.Errorf("delete snapshot entry %q: %w", path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scan transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshotEntry(row rowScanner) (SnapshotEntry, error) {
	var (
		entry     SnapshotEntry
		meta      sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&entry.Path, &entry.Size, &entry.MTime, &meta, &createdAt, &updatedAt); err != nil {
		return SnapshotEntry{}, err
	}
	entry.MetadataJSON = meta.String
	if t, err := parseTimeString(createdAt); err == nil {
		entry.CreatedAt = t
	}
	if t, err := parseTimeString(updatedAt); err == nil {
		entry.UpdatedAt = t
	}
	return entry, nil
}
