package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atinyakov/easyvault/internal/models"
	"github.com/google/uuid"
)

// PostgresAccessEventRepository stores access events in a PostgreSQL database.
type PostgresAccessEventRepository struct {
	DB *sql.DB
}

// NewPostgresAccessEventRepository creates a PostgresAccessEventRepository using db.
func NewPostgresAccessEventRepository(db *sql.DB) *PostgresAccessEventRepository {
	return &PostgresAccessEventRepository{DB: db}
}

// Record inserts ev, assigning an ID and timestamp when missing.
func (r *PostgresAccessEventRepository) Record(ctx context.Context, ev *models.AccessEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO access_events (id, address, route, agent, method, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.Address, ev.Route, ev.Agent, ev.Method, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert access event: %w", err)
	}
	return nil
}
