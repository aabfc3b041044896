// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL driver and the DDL flavour.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case SQLite, Postgres, MySQL:
		return d, nil
	case "postgresql":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported database type %q (want sqlite, postgres or mysql)", s)
}

// Open connects with the driver for d. SQLite gets a single connection and
// foreign keys switched on; MySQL always parses DATETIME columns to time.Time.
func Open(d Dialect, url string) (*sql.DB, error) {
	switch d {
	case SQLite:
		conn, err := sql.Open("sqlite", sqliteDSN(url))
		if err != nil {
			return nil, err
		}
		// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY
		conn.SetMaxOpenConns(1)
		return conn, nil
	case Postgres:
		return sql.Open("postgres", url)
	case MySQL:
		cfg, err := mysql.ParseDSN(url)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql DSN: %w", err)
		}
		cfg.ParseTime = true
		return sql.Open("mysql", cfg.FormatDSN())
	}
	return nil, fmt.Errorf("unsupported dialect %q", d)
}

func sqliteDSN(url string) string {
	if strings.Contains(url, "_pragma=") {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Rebind rewrites ? placeholders to $1, $2, ... for postgres. Queries are
// written once with ? and passed through here.
func Rebind(d Dialect, query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
