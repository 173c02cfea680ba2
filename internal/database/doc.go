// Package database provides SQLite-based run history for breachscan.
//
// Every check can be recorded with its summary counts, one row per
// looked-up address and the full run as JSON. The history is an audit
// trail only: lookups are never answered from it.
//
// SQLite is accessed through modernc.org/sqlite, a CGO-free driver, so
// the database is a single file under the XDG data directory.
package database
