// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(conn *sql.DB, d Dialect) error {
	var stmts []string
	switch d {
	case SQLite:
		stmts = sqliteSchema
	case Postgres:
		stmts = postgresSchema
	case MySQL:
		stmts = mysqlSchema
	default:
		return fmt.Errorf("unsupported dialect %q", d)
	}

	// One statement per Exec; the mysql driver rejects multi-statement strings
	for _, stmt := range stmts {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS negotiation_case (
    id TEXT PRIMARY KEY,
    seller_id TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('pending', 'counter_offered', 'accepted', 'rejected')),
    current_rate TEXT NOT NULL,
    counter_rate TEXT,
    counter_reason TEXT NOT NULL DEFAULT '',
    rounds_used INTEGER NOT NULL DEFAULT 0,
    max_rounds INTEGER NOT NULL,
    version INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    last_activity_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_case_seller_id ON negotiation_case(seller_id)`,
	`CREATE INDEX IF NOT EXISTS idx_case_status ON negotiation_case(status)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_case_open_seller ON negotiation_case(seller_id)
    WHERE status IN ('pending', 'counter_offered')`,
	`CREATE TABLE IF NOT EXISTS negotiation_history (
    id TEXT PRIMARY KEY,
    case_id TEXT NOT NULL REFERENCES negotiation_case(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    action TEXT NOT NULL,
    actor_role TEXT NOT NULL,
    actor_id TEXT NOT NULL DEFAULT '',
    rate TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMP NOT NULL,
    UNIQUE (case_id, seq)
)`,
	`CREATE TABLE IF NOT EXISTS request_receipt (
    case_id TEXT NOT NULL,
    request_token TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    view_json TEXT NOT NULL,
    completed_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP,
    PRIMARY KEY (case_id, request_token)
)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS negotiation_case (
    id TEXT PRIMARY KEY,
    seller_id TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('pending', 'counter_offered', 'accepted', 'rejected')),
    current_rate NUMERIC(9,4) NOT NULL,
    counter_rate NUMERIC(9,4),
    counter_reason TEXT NOT NULL DEFAULT '',
    rounds_used INTEGER NOT NULL DEFAULT 0,
    max_rounds INTEGER NOT NULL,
    version INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,
    last_activity_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_case_seller_id ON negotiation_case(seller_id)`,
	`CREATE INDEX IF NOT EXISTS idx_case_status ON negotiation_case(status)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_case_open_seller ON negotiation_case(seller_id)
    WHERE status IN ('pending', 'counter_offered')`,
	`CREATE TABLE IF NOT EXISTS negotiation_history (
    id TEXT PRIMARY KEY,
    case_id TEXT NOT NULL REFERENCES negotiation_case(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    action TEXT NOT NULL,
    actor_role TEXT NOT NULL,
    actor_id TEXT NOT NULL DEFAULT '',
    rate NUMERIC(9,4) NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ NOT NULL,
    UNIQUE (case_id, seq)
)`,
	`CREATE TABLE IF NOT EXISTS request_receipt (
    case_id TEXT NOT NULL,
    request_token TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    view_json JSONB NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ,
    PRIMARY KEY (case_id, request_token)
)`,
}

// MySQL has no partial indexes. open_seller is seller_id while the case is
// open and NULL once closed, and NULLs never collide in a unique key.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS negotiation_case (
    id VARCHAR(64) PRIMARY KEY,
    seller_id VARCHAR(128) NOT NULL,
    status VARCHAR(32) NOT NULL CHECK (status IN ('pending', 'counter_offered', 'accepted', 'rejected')),
    current_rate DECIMAL(9,4) NOT NULL,
    counter_rate DECIMAL(9,4),
    counter_reason TEXT NOT NULL,
    rounds_used INT NOT NULL DEFAULT 0,
    max_rounds INT NOT NULL,
    version INT NOT NULL DEFAULT 0,
    created_at DATETIME(6) NOT NULL,
    last_activity_at DATETIME(6) NOT NULL,
    open_seller VARCHAR(128) AS (
        CASE WHEN status IN ('pending', 'counter_offered') THEN seller_id END
    ) STORED,
    INDEX idx_case_seller_id (seller_id),
    INDEX idx_case_status (status),
    UNIQUE KEY ux_case_open_seller (open_seller)
)`,
	`CREATE TABLE IF NOT EXISTS negotiation_history (
    id VARCHAR(32) PRIMARY KEY,
    case_id VARCHAR(64) NOT NULL,
    seq INT NOT NULL,
    action VARCHAR(16) NOT NULL,
    actor_role VARCHAR(16) NOT NULL,
    actor_id VARCHAR(128) NOT NULL DEFAULT '',
    rate DECIMAL(9,4) NOT NULL,
    reason TEXT NOT NULL,
    occurred_at DATETIME(6) NOT NULL,
    UNIQUE KEY ux_history_case_seq (case_id, seq),
    FOREIGN KEY (case_id) REFERENCES negotiation_case(id) ON DELETE CASCADE
)`,
	`CREATE TABLE IF NOT EXISTS request_receipt (
    case_id VARCHAR(64) NOT NULL,
    request_token VARCHAR(128) NOT NULL,
    fingerprint CHAR(64) NOT NULL,
    view_json JSON NOT NULL,
    completed_at DATETIME(6) NOT NULL,
    expires_at DATETIME(6) NULL,
    PRIMARY KEY (case_id, request_token)
)`,
}
