// Package database provides SQLite-based run history for antmaps.
//
// Every delivered run is appended to the runs table together with a SHA3
// digest of its species list, so later runs for the same location can be
// compared. The history is an audit log only: results are never read back to
// answer a query.
//
// The driver is modernc.org/sqlite, which needs no cgo.
package database
