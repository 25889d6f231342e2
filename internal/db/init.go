// Package db opens the PostgreSQL connection, applies the schema and runs
// background maintenance.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS vaults (
    id UUID PRIMARY KEY,
    salt BYTEA NOT NULL,
    lookup_hash TEXT NOT NULL,
    hash_algorithm TEXT NOT NULL,
    encrypted_payload TEXT NOT NULL,
    created_from_address TEXT NOT NULL DEFAULT '',
    created_from_agent TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS vaults_lookup_hash_created_at_idx
    ON vaults (lookup_hash, created_at DESC);

CREATE TABLE IF NOT EXISTS access_events (
    id UUID PRIMARY KEY,
    address TEXT NOT NULL,
    route TEXT NOT NULL,
    agent TEXT NOT NULL,
    method TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS access_events_created_at_idx
    ON access_events (created_at);
`

// InitPostgres opens the database at dsn, checks the connection and applies
// the schema.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := prepare(db); err != nil {
		return nil, err
	}
	return db, nil
}

// prepare pings db and applies the schema. db is closed on failure.
func prepare(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
