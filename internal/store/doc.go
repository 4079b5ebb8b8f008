// Package store persists sync state in SQLite: the library cache snapshot,
// the per-device transfer ledger, and sync session history. Schema changes
// ship as embedded migrations applied on open.
package store
