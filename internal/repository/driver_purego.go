//go:build !sqlite_cgo
// +build !sqlite_cgo

package repository

// Сборка по умолчанию: чистый Go SQLite без CGO.
//
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// SQLiteDriverName драйвер database/sql для SQLite
	SQLiteDriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
