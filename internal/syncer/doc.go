// Package syncer plans and executes transfers between the library and a
// device. The planner compares the persisted snapshot against the transfer
// ledger; the executor moves files through a pluggable transfer strategy and
// commits verified work in batches.
package syncer
