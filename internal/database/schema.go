package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sync_queue (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_type   TEXT NOT NULL,
		entity_id     TEXT NOT NULL,
		operation     TEXT NOT NULL CHECK (operation IN ('create','update','delete')),
		payload       TEXT NOT NULL DEFAULT '{}',
		status        TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','synced','failed')),
		last_error    TEXT,
		attempts      INTEGER NOT NULL DEFAULT 0,
		retryable     INTEGER NOT NULL DEFAULT 0,
		next_retry_at INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL,
		synced_at     INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_queue_entity ON sync_queue(entity_type, entity_id, id)`,

	`CREATE TABLE IF NOT EXISTS sync_lock (
		name       TEXT PRIMARY KEY,
		holder     TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sync_log (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		level       TEXT NOT NULL,
		message     TEXT NOT NULL,
		caller      TEXT,
		entity_type TEXT,
		entity_id   TEXT,
		queue_id    INTEGER,
		error       TEXT,
		app_id      TEXT,
		created_at  INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS cron_job_logs (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		job_name          TEXT NOT NULL,
		start_time        INTEGER NOT NULL,
		end_time          INTEGER,
		status            TEXT NOT NULL,
		records_processed INTEGER NOT NULL DEFAULT 0,
		records_affected  INTEGER NOT NULL DEFAULT 0,
		error             TEXT,
		output            TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cron_job_logs_job ON cron_job_logs(job_name, start_time)`,

	`CREATE TABLE IF NOT EXISTS customers (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		phone      TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		price         REAL NOT NULL DEFAULT 0,
		stock         REAL NOT NULL DEFAULT 0,
		units_per_box REAL NOT NULL DEFAULT 1,
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id             TEXT PRIMARY KEY,
		customer_id    TEXT,
		total          REAL NOT NULL DEFAULT 0,
		payment_method TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'completed',
		created_at     INTEGER NOT NULL,
		updated_at     INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id         TEXT PRIMARY KEY,
		sale_id    TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity   REAL NOT NULL,
		unit_price REAL NOT NULL,
		subtotal   REAL NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id)`,
	`CREATE TABLE IF NOT EXISTS debts (
		id          TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		sale_id     TEXT,
		amount      REAL NOT NULL,
		paid        REAL NOT NULL DEFAULT 0,
		status      TEXT NOT NULL DEFAULT 'open',
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_items (
		id            TEXT PRIMARY KEY,
		purchase_id   TEXT NOT NULL,
		product_id    TEXT NOT NULL,
		qty_units     REAL NOT NULL,
		units_per_box REAL NOT NULL DEFAULT 1,
		unit_cost     REAL NOT NULL,
		total         REAL NOT NULL,
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL
	)`,
}

// Migrate creates every table the sync process needs. Safe to run repeatedly.
func (db *LocalDB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate local store: %w", err)
		}
	}
	return nil
}
