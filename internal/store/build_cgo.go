//go:build sqlite_cgo

package store

// Built with the sqlite_cgo tag the repository uses the cgo driver:
//
//   CGO_ENABLED=1 go build -tags sqlite_cgo ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver used by the SQLite repository.
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"

	// connParams are applied by the driver to every new connection.
	connParams = "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
)
