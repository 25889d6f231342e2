// Package repository provides persistence implementations for vault records
// and access events, backed by PostgreSQL or by process memory.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/easyvault/internal/models"
	"github.com/atinyakov/easyvault/internal/vaulterr"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresVaultRepository stores vault records in a PostgreSQL database.
type PostgresVaultRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresVaultRepository creates a PostgresVaultRepository using the provided *sql.DB.
// db must be a valid connection to a PostgreSQL instance with the vault schema applied.
func NewPostgresVaultRepository(db *sql.DB) *PostgresVaultRepository {
	return &PostgresVaultRepository{DB: db}
}

// Create inserts rec as a new row. Records are never updated in place.
// An empty ID or zero CreatedAt is filled in before the insert.
func (r *PostgresVaultRepository) Create(ctx context.Context, rec *models.VaultRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO vaults (id, salt, lookup_hash, hash_algorithm, encrypted_payload, created_from_address, created_from_agent, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Salt, rec.LookupHash, rec.HashAlgorithm, rec.EncryptedPayload,
		rec.CreatedFromAddress, rec.CreatedFromAgent, rec.CreatedAt,
	)
	if err != nil {
		if isConflict(err) {
			return vaulterr.NewConflictError(err)
		}
		return fmt.Errorf("insert vault: %w", err)
	}
	return nil
}

// FindLatestByHash returns the newest record with the given lookup hash.
// It returns vaulterr.ErrNotFound if there is none.
func (r *PostgresVaultRepository) FindLatestByHash(ctx context.Context, lookupHash string) (*models.VaultRecord, error) {
	var rec models.VaultRecord
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, salt, lookup_hash, hash_algorithm, encrypted_payload, created_from_address, created_from_agent, created_at
		FROM vaults WHERE lookup_hash = $1 ORDER BY created_at DESC LIMIT 1
	`, lookupHash).Scan(
		&rec.ID, &rec.Salt, &rec.LookupHash, &rec.HashAlgorithm, &rec.EncryptedPayload,
		&rec.CreatedFromAddress, &rec.CreatedFromAgent, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vaulterr.NewNotFoundError("vault", "for lookup hash")
	}
	if err != nil {
		return nil, fmt.Errorf("find vault: %w", err)
	}
	return &rec, nil
}

// isConflict reports whether err is a unique violation or a serialization failure.
func isConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "23505", "40001":
		return true
	}
	return false
}
