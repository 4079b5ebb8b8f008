// Package daemon wires the store, device monitors, library watcher, and
// sync engine into a single background process guarded by a file lock.
package daemon
