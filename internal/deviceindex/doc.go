// Package deviceindex reads what is already on a device so an empty transfer
// ledger can be seeded without re-transferring tracks.
package deviceindex
