// Package library scans the local music library and keeps the persisted
// cache snapshot current. Scans are incremental: files whose size and mtime
// match the snapshot are never re-read.
package library
