package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// CurrentSchemaVersion версия схемы после всех миграций
const CurrentSchemaVersion = "1.1.0"

// Migration шаг схемы. %s в Up подставляется типом автоинкрементного ключа диалекта.
type Migration struct {
	Version string
	Up      string
}

// AllMigrations in order
var AllMigrations = []Migration{
	{Version: "1.0.0", Up: migrationV1Up},
	{Version: "1.1.0", Up: migrationV11Up},
}

// Времена хранятся текстом фиксированной ширины в UTC: сортируются лексикографически и одинаково в SQLite и Postgres.
const migrationV1Up = `
CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    seq BIGINT NOT NULL,
    order_number TEXT NOT NULL,
    status TEXT NOT NULL,
    total_amount TEXT NOT NULL,
    discount_amount TEXT NOT NULL,
    final_amount TEXT NOT NULL,
    table_identifier TEXT NOT NULL DEFAULT '',
    order_type TEXT NOT NULL,
    bill_requested INTEGER NOT NULL DEFAULT 0,
    payment_preference TEXT NOT NULL DEFAULT '',
    payment_reference TEXT NOT NULL DEFAULT '',
    payment_method TEXT NOT NULL DEFAULT '',
    paid_by TEXT NOT NULL DEFAULT '',
    version BIGINT NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    confirmed_at TEXT,
    billed_at TEXT,
    paid_at TEXT,
    UNIQUE (tenant_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_orders_tenant_status ON orders(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_orders_created ON orders(tenant_id, created_at);

CREATE TABLE IF NOT EXISTS order_items (
    id TEXT PRIMARY KEY,
    order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    line_no INTEGER NOT NULL,
    status TEXT NOT NULL,
    kds_destination TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    item_name_snapshot TEXT NOT NULL,
    unit_price TEXT NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    prepared_at TEXT,
    served_at TEXT,
    served_by TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_items_order ON order_items(order_id);
CREATE INDEX IF NOT EXISTS idx_items_destination ON order_items(kds_destination, status)
`

const migrationV11Up = `
CREATE TABLE IF NOT EXISTS order_status_log (
    id %s,
    order_id TEXT NOT NULL,
    item_id TEXT NOT NULL DEFAULT '',
    from_status TEXT NOT NULL,
    to_status TEXT NOT NULL,
    changed_by TEXT NOT NULL DEFAULT '',
    changed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_status_log_order ON order_status_log(order_id)
`

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB, d dialect) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL
)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	currentVersion, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}
		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		up := migration.Up
		if strings.Contains(up, "%s") {
			up = fmt.Sprintf(up, d.autoID)
		}
		// драйверы по-разному относятся к нескольким операторам в одном Exec
		for _, stmt := range strings.Split(up, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
			}
		}

		_, err = db.ExecContext(ctx, d.rebind("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)"),
			migration.Version, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}
		currentVersion = migrationVersion
	}
	return nil
}

// schemaVersion наибольшая применённая версия; 0.0.0 для пустой базы
func schemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer rows.Close()

	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(s)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", s, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return current, nil
}
