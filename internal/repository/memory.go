package repository

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/atinyakov/easyvault/internal/models"
	"github.com/atinyakov/easyvault/internal/vaulterr"
	"github.com/google/uuid"
)

// DefaultEventCapacity bounds the number of access events kept in memory.
const DefaultEventCapacity = 10000

var errDuplicateID = errors.New("duplicate record id")

// MemoryVaultRepository keeps vault records in process memory. It is used
// when no database is configured and in tests.
type MemoryVaultRepository struct {
	mu      sync.RWMutex
	records []models.VaultRecord
}

// NewMemoryVaultRepository returns an empty MemoryVaultRepository.
func NewMemoryVaultRepository() *MemoryVaultRepository {
	return &MemoryVaultRepository{}
}

// Create appends a copy of rec.
func (r *MemoryVaultRepository) Create(_ context.Context, rec *models.VaultRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.ID == rec.ID {
			return vaulterr.NewConflictError(errDuplicateID)
		}
	}
	cp := *rec
	cp.Salt = bytes.Clone(rec.Salt)
	r.records = append(r.records, cp)
	return nil
}

// FindLatestByHash returns the newest record with the given lookup hash.
// Records with equal timestamps resolve to the one inserted last.
func (r *MemoryVaultRepository) FindLatestByHash(_ context.Context, lookupHash string) (*models.VaultRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *models.VaultRecord
	for i := range r.records {
		rec := &r.records[i]
		if rec.LookupHash != lookupHash {
			continue
		}
		if latest == nil || !rec.CreatedAt.Before(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, vaulterr.NewNotFoundError("vault", "for lookup hash")
	}
	cp := *latest
	cp.Salt = bytes.Clone(latest.Salt)
	return &cp, nil
}

// MemoryAccessEventRepository keeps the most recent access events in memory.
type MemoryAccessEventRepository struct {
	mu       sync.Mutex
	capacity int
	events   []models.AccessEvent
}

// NewMemoryAccessEventRepository returns a repository holding at most
// capacity events. A non-positive capacity means DefaultEventCapacity.
func NewMemoryAccessEventRepository(capacity int) *MemoryAccessEventRepository {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &MemoryAccessEventRepository{capacity: capacity}
}

// Record appends ev, dropping the oldest event once capacity is reached.
func (r *MemoryAccessEventRepository) Record(_ context.Context, ev *models.AccessEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) >= r.capacity {
		r.events = r.events[1:]
	}
	r.events = append(r.events, *ev)
	return nil
}

// Events returns a snapshot of the stored events, oldest first.
func (r *MemoryAccessEventRepository) Events() []models.AccessEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AccessEvent, len(r.events))
	copy(out, r.events)
	return out
}
