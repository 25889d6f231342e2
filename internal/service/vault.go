// Package service provides the vault business logic: batch writes and reads,
// single-entry reads and access auditing, delegating persistence to
// repository interfaces.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/atinyakov/easyvault/internal/crypto"
	"github.com/atinyakov/easyvault/internal/guard"
	"github.com/atinyakov/easyvault/internal/metrics"
	"github.com/atinyakov/easyvault/internal/models"
	"github.com/atinyakov/easyvault/internal/record"
	"github.com/atinyakov/easyvault/internal/sealed"
	"github.com/atinyakov/easyvault/internal/vaulterr"
)

// VaultRepository defines the persistence operations needed by the VaultService.
type VaultRepository interface {
	// Create stores a new record. It never updates an existing one.
	// A concurrent-write failure is reported as vaulterr.ErrConflict.
	Create(ctx context.Context, rec *models.VaultRecord) error
	// FindLatestByHash returns the most recently created record with the
	// given lookup hash, or vaulterr.ErrNotFound.
	FindLatestByHash(ctx context.Context, lookupHash string) (*models.VaultRecord, error)
}

// VaultService ties the crypto engine, the sealed store and the access guard together.
type VaultService struct {
	// repo is the underlying persistence repository.
	repo VaultRepository
	// store caches decrypted entries between batch reads.
	store *sealed.Store
}

// NewVaultService constructs a VaultService with the provided repository and store.
func NewVaultService(repo VaultRepository, store *sealed.Store) *VaultService {
	return &VaultService{repo: repo, store: store}
}

// WriteBatch validates entries, encrypts them into a new record under
// passphrase, persists it and unseals the cache with them. Nothing is
// written unless every entry is valid.
func (s *VaultService) WriteBatch(ctx context.Context, passphrase string, entries []models.Entry, caller models.Caller) error {
	if err := validateBatch(passphrase, entries); err != nil {
		metrics.BatchWrite(metrics.ResultInvalid)
		return err
	}
	entries = withEmptyPatterns(entries)

	rec := &models.VaultRecord{
		CreatedFromAddress: caller.Address,
		CreatedFromAgent:   caller.Agent,
	}
	if err := record.Encrypt(rec, passphrase, entries); err != nil {
		metrics.BatchWrite(metrics.ResultError)
		return err
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		metrics.BatchWrite(metrics.ResultError)
		return err
	}
	if err := s.store.Unseal(entries); err != nil {
		metrics.BatchWrite(metrics.ResultError)
		return err
	}

	metrics.BatchWrite(metrics.ResultOK)
	metrics.SetCachedEntries(s.store.Len())
	return nil
}

// ReadBatch returns the entries of the newest record matching passphrase and
// unseals the cache with them. A blank passphrase or an unknown one yields
// an empty batch, not an error.
func (s *VaultService) ReadBatch(ctx context.Context, passphrase string) ([]models.Entry, error) {
	if strings.TrimSpace(passphrase) == "" {
		metrics.BatchRead(metrics.ResultEmpty)
		return []models.Entry{}, nil
	}

	rec, err := s.repo.FindLatestByHash(ctx, crypto.HashPassphrase(passphrase))
	if errors.Is(err, vaulterr.ErrNotFound) {
		metrics.BatchRead(metrics.ResultEmpty)
		return []models.Entry{}, nil
	}
	if err != nil {
		metrics.BatchRead(metrics.ResultError)
		return nil, err
	}

	entries, err := record.Decrypt(rec, passphrase)
	if err != nil {
		if errors.Is(err, vaulterr.ErrAuthentication) {
			metrics.BatchRead(metrics.ResultDenied)
		} else {
			metrics.BatchRead(metrics.ResultError)
		}
		return nil, err
	}
	entries = withEmptyPatterns(entries)
	if len(entries) == 0 {
		metrics.BatchRead(metrics.ResultEmpty)
		return entries, nil
	}

	if err := s.store.Unseal(entries); err != nil {
		metrics.BatchRead(metrics.ResultError)
		return nil, err
	}
	metrics.BatchRead(metrics.ResultOK)
	metrics.SetCachedEntries(s.store.Len())
	return entries, nil
}

// ReadEntry releases the values of one cached entry to caller, rendered in
// the requested format. An unknown id and a policy rejection both surface
// as vaulterr.ErrAccessDenied; the underlying cause stays wrapped.
func (s *VaultService) ReadEntry(ctx context.Context, id string, caller models.Caller, format models.Format) (*models.Rendered, error) {
	if s.store.IsSealed() {
		metrics.EntryRead(metrics.ResultDenied)
		return nil, vaulterr.ErrSealed
	}

	entry, err := s.store.GetEntry(id)
	if err != nil {
		metrics.EntryRead(metrics.ResultDenied)
		return nil, vaulterr.Denied(err)
	}
	if !guard.IsAllowed(entry, caller.Address, caller.Agent) {
		metrics.EntryRead(metrics.ResultDenied)
		return nil, vaulterr.Denied(fmt.Errorf("caller %s (%s) not allowed for entry", caller.Address, caller.Agent))
	}

	out, err := Render(entry.Values, format)
	if err != nil {
		metrics.EntryRead(metrics.ResultInvalid)
		return nil, err
	}
	metrics.EntryRead(metrics.ResultOK)
	return out, nil
}

// IsSealed reports whether the cache is empty.
func (s *VaultService) IsSealed() bool {
	return s.store.IsSealed()
}

// Render serializes values in the given format. Lines are sorted by key.
func Render(values map[string]string, format models.Format) (*models.Rendered, error) {
	switch format {
	case models.FormatStructured:
		if values == nil {
			values = map[string]string{}
		}
		body, err := json.Marshal(values)
		if err != nil {
			return nil, fmt.Errorf("encode values: %w", err)
		}
		return &models.Rendered{ContentType: "application/json", Body: body, Values: len(values)}, nil
	case models.FormatLines:
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		var sb strings.Builder
		for _, k := range keys {
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(values[k])
			sb.WriteByte('\n')
		}
		return &models.Rendered{
			ContentType: "text/plain; charset=utf-8",
			Body:        []byte(strings.TrimSpace(sb.String())),
			Values:      len(values),
		}, nil
	}
	return nil, vaulterr.NewValidationError("format", "must be 'structured' or 'lines'")
}

// withEmptyPatterns returns a copy of entries whose allow-lists are never
// nil, so they encode as [] instead of null.
func withEmptyPatterns(entries []models.Entry) []models.Entry {
	out := make([]models.Entry, len(entries))
	for i, e := range entries {
		if e.AllowedAddressPatterns == nil {
			e.AllowedAddressPatterns = []string{}
		}
		if e.AllowedAgentPatterns == nil {
			e.AllowedAgentPatterns = []string{}
		}
		out[i] = e
	}
	return out
}

func validateBatch(passphrase string, entries []models.Entry) error {
	if strings.TrimSpace(passphrase) == "" {
		return vaulterr.NewValidationError("key", "cannot be null or empty")
	}
	if len(entries) == 0 {
		return vaulterr.NewValidationError("secrets", "cannot be null or empty")
	}
	for i, e := range entries {
		switch {
		case strings.TrimSpace(e.OwnerLabel) == "":
			return vaulterr.NewValidationError(fmt.Sprintf("entries[%d].ownerLabel", i), "cannot be null or empty")
		case strings.TrimSpace(e.ID) == "":
			return vaulterr.NewValidationError(fmt.Sprintf("entries[%d].id", i), "cannot be empty")
		case len(e.Values) == 0:
			return vaulterr.NewValidationError(fmt.Sprintf("entries[%d].values", i), "cannot be null or empty")
		}
	}
	return nil
}
