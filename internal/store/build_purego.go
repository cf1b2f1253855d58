//go:build !sqlite_cgo

package store

// Default build: pure Go SQLite, no C toolchain required.
//
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver used by the SQLite repository.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"

	// connParams are applied by the driver to every new connection.
	connParams = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
)
