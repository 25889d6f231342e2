// Package sealed provides the in-memory cache of decrypted entries.
//
// A Store is Sealed while it holds no entries and Unsealed once an unseal
// call has loaded at least one. Nothing in normal operation clears it; a
// process restart is the only way back to Sealed, since the encrypted
// records remain the source of truth.
package sealed

import (
	"maps"
	"slices"
	"sync"

	"github.com/atinyakov/easyvault/internal/models"
	"github.com/atinyakov/easyvault/internal/vaulterr"
)

// State is the seal state of a Store.
type State int

const (
	// Sealed means the cache is empty.
	Sealed State = iota
	// Unsealed means the cache holds at least one entry.
	Unsealed
)

func (s State) String() string {
	if s == Unsealed {
		return "unsealed"
	}
	return "sealed"
}

// Transition describes a change of seal state.
type Transition struct {
	From State
	To   State
	// Entries is the number of cached entries after the transition.
	Entries int
}

// Listener is notified once per state edge.
type Listener func(Transition)

// Option configures a Store.
type Option func(*Store)

// WithListener registers l for state transitions.
func WithListener(l Listener) Option {
	return func(s *Store) {
		s.listeners = append(s.listeners, l)
	}
}

// Store caches decrypted entries by id.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]models.Entry
	listeners []Listener
}

// New returns an empty, sealed Store.
func New(opts ...Option) *Store {
	s := &Store{entries: make(map[string]models.Entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Unseal upserts entries by id. An entry whose id is already cached
// replaces the cached one.
func (s *Store) Unseal(entries []models.Entry) error {
	if len(entries) == 0 {
		return vaulterr.NewValidationError("secrets", "cannot be null or empty")
	}

	s.mu.Lock()
	before := stateOf(len(s.entries))
	for _, e := range entries {
		s.entries[e.ID] = clone(e)
	}
	n := len(s.entries)
	s.mu.Unlock()

	if after := stateOf(n); after != before {
		s.notify(Transition{From: before, To: after, Entries: n})
	}
	return nil
}

// GetEntry returns the cached entry with the given id.
func (s *Store) GetEntry(id string) (models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return models.Entry{}, vaulterr.ErrSealed
	}
	e, ok := s.entries[id]
	if !ok {
		return models.Entry{}, vaulterr.NewNotFoundError("entry", id)
	}
	return e, nil
}

// IsSealed reports whether the cache is empty.
func (s *Store) IsSealed() bool {
	return s.State() == Sealed
}

// State returns the current seal state.
func (s *Store) State() State {
	return stateOf(s.Len())
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) notify(t Transition) {
	for _, l := range s.listeners {
		l(t)
	}
}

func stateOf(n int) State {
	if n == 0 {
		return Sealed
	}
	return Unsealed
}

func clone(e models.Entry) models.Entry {
	e.Values = maps.Clone(e.Values)
	e.AllowedAddressPatterns = slices.Clone(e.AllowedAddressPatterns)
	e.AllowedAgentPatterns = slices.Clone(e.AllowedAgentPatterns)
	return e
}
