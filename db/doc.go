// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates the schema.

# Dialects

Three drivers are supported, chosen by DATABASE_TYPE:

  - sqlite: modernc.org/sqlite (pure Go, default, used by tests)
  - postgres: github.com/lib/pq
  - mysql: github.com/go-sql-driver/mysql

	d, _ := db.ParseDialect(cfg.DatabaseType)
	conn, err := db.Open(d, cfg.DatabaseURL)

Queries are written with ? placeholders and passed through Rebind, which
rewrites them to $n for postgres.

# Schema Creation

	if err := db.CreateSchema(conn, d); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - negotiation_case: one row per case with the current state and a version
  - negotiation_history: append-only transitions, unique on (case_id, seq)
  - request_receipt: completed mutation results keyed by (case_id, request_token)

# Relationships

	negotiation_case 1──* negotiation_history

History rows cascade on delete. Receipts are not tied to a case row so that
they can expire independently.

# Indexes

  - negotiation_case.seller_id
  - negotiation_case.status
  - negotiation_case.seller_id where status is open (unique; sqlite and postgres)
*/
package db
