// Package db owns the embedded auxiliary database every derived structure
// in the core (dedup registry, embedding cache, relationship graph, logs,
// generations, schedules, reference counts, search cache) is persisted in.
// It mirrors the teacher's dual sqlite/postgres backend split
// (internal/storage/sqlite, internal/storage/postgres) behind a single
// Open function keyed by DSN scheme, rather than separate packages, since
// every table here shares one schema and one set of callers.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DB wraps a *sql.DB plus the dialect information callers need to build
// portable queries (SQLite uses "?" placeholders, Postgres uses "$1".."$n").
type DB struct {
	*sql.DB
	Driver            string // "sqlite" or "postgres"
	PgvectorAvailable bool   // true when the postgres "vector" extension and embeddings.vector_native exist
}

// Open opens dsn against the driver implied by its scheme:
//   - "postgres://..." or "postgresql://..." -> lib/pq
//   - anything else is treated as a SQLite file path (including ":memory:")
//
// SQLite connections are pinned to a single writer connection and opened in
// WAL mode with a busy timeout, following the teacher's memory_store.go
// open sequence, since SQLite only serializes writers per-connection.
func Open(dsn string) (*DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return openPostgres(dsn)
	}
	return openSQLite(dsn)
}

func openSQLite(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("db: apply pragma %q: %w", p, err)
		}
	}

	if _, err := sqlDB.Exec(Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("db: apply schema: %w", err)
	}

	return &DB{DB: sqlDB, Driver: "sqlite"}, nil
}

func openPostgres(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open postgres: %w", err)
	}

	if _, err := sqlDB.Exec(Rebind("postgres", Schema)); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("db: apply schema: %w", err)
	}

	// pgvector backs the embeddings table with a native vector column when
	// the extension is available, so internal/embedcache also writes it
	// through pgvector-go's pgvector.Vector (driver.Valuer); reads use the
	// BYTEA-encoded vector column. Unavailable in most
	// bare Postgres installs, so failure here is not fatal: the BLOB-backed
	// embeddings table still works without it.
	pgvectorAvailable := false
	if _, err := sqlDB.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err == nil {
		if _, err := sqlDB.Exec("ALTER TABLE embeddings ADD COLUMN IF NOT EXISTS vector_native vector(1536)"); err == nil {
			pgvectorAvailable = true
		}
	}

	return &DB{DB: sqlDB, Driver: "postgres", PgvectorAvailable: pgvectorAvailable}, nil
}

// Rebind rewrites "?" placeholders to "$1".."$n" for the postgres driver,
// and leaves the query untouched for sqlite. Every package in this module
// builds queries with "?" placeholders and calls Rebind before executing,
// so one query string serves both backends (mirroring the teacher's split
// between internal/storage/sqlite and internal/storage/postgres, but without
// duplicating every query body).
func Rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Bind rewrites "?" placeholders for db's own driver.
func (d *DB) Bind(query string) string {
	return Rebind(d.Driver, query)
}
