package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/atinyakov/easyvault/internal/crypto"
	"github.com/atinyakov/easyvault/internal/models"
	"github.com/atinyakov/easyvault/internal/record"
	"github.com/atinyakov/easyvault/internal/repository"
	"github.com/atinyakov/easyvault/internal/sealed"
	"github.com/atinyakov/easyvault/internal/vaulterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockVaultRepo struct {
	CreateFunc           func(ctx context.Context, rec *models.VaultRecord) error
	FindLatestByHashFunc func(ctx context.Context, hash string) (*models.VaultRecord, error)
}

func (m *mockVaultRepo) Create(ctx context.Context, rec *models.VaultRecord) error {
	return m.CreateFunc(ctx, rec)
}

func (m *mockVaultRepo) FindLatestByHash(ctx context.Context, hash string) (*models.VaultRecord, error) {
	return m.FindLatestByHashFunc(ctx, hash)
}

func sampleEntries() []models.Entry {
	return []models.Entry{{
		ID:         "k1",
		OwnerLabel: "app",
		Values:     map[string]string{"x": "1"},
	}}
}

func TestWriteBatch_Validation(t *testing.T) {
	repo := &mockVaultRepo{
		CreateFunc: func(ctx context.Context, rec *models.VaultRecord) error {
			t.Fatal("Create must not be called for invalid input")
			return nil
		},
	}
	svc := NewVaultService(repo, sealed.New())

	tests := []struct {
		name       string
		passphrase string
		entries    []models.Entry
		field      string
	}{
		{"blank passphrase", "  ", sampleEntries(), "key"},
		{"no entries", "secret", nil, "secrets"},
		{"missing owner", "secret", []models.Entry{{ID: "k1", Values: map[string]string{"a": "b"}}}, "entries[0].ownerLabel"},
		{"missing id", "secret", []models.Entry{{OwnerLabel: "app", Values: map[string]string{"a": "b"}}}, "entries[0].id"},
		{"missing values", "secret", []models.Entry{
			{ID: "k1", OwnerLabel: "app", Values: map[string]string{"a": "b"}},
			{ID: "k2", OwnerLabel: "app"},
		}, "entries[1].values"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.WriteBatch(context.Background(), tt.passphrase, tt.entries, models.Caller{})
			require.ErrorIs(t, err, vaulterr.ErrValidation)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
	assert.True(t, svc.IsSealed())
}

func TestWriteBatch_PersistsAndUnseals(t *testing.T) {
	var stored *models.VaultRecord
	repo := &mockVaultRepo{
		CreateFunc: func(ctx context.Context, rec *models.VaultRecord) error {
			stored = rec
			return nil
		},
	}
	svc := NewVaultService(repo, sealed.New())
	caller := models.Caller{Address: "10.0.0.1", Agent: "curl/8"}

	require.NoError(t, svc.WriteBatch(context.Background(), "secret", sampleEntries(), caller))
	require.NotNil(t, stored)
	assert.Equal(t, crypto.HashPassphrase("secret"), stored.LookupHash)
	assert.Equal(t, "10.0.0.1", stored.CreatedFromAddress)
	assert.Equal(t, "curl/8", stored.CreatedFromAgent)
	entries, err := record.Decrypt(stored, "secret")
	require.NoError(t, err)
	assert.Equal(t, withEmptyPatterns(sampleEntries()), entries)
	assert.False(t, svc.IsSealed())
}

func TestWriteBatch_RepoErrorKeepsSealed(t *testing.T) {
	wantErr := vaulterr.NewConflictError(errors.New("serialization failure"))
	repo := &mockVaultRepo{
		CreateFunc: func(ctx context.Context, rec *models.VaultRecord) error { return wantErr },
	}
	svc := NewVaultService(repo, sealed.New())

	err := svc.WriteBatch(context.Background(), "secret", sampleEntries(), models.Caller{})
	require.ErrorIs(t, err, vaulterr.ErrConflict)
	assert.True(t, vaulterr.IsRetryable(err))
	assert.True(t, svc.IsSealed())
}

func TestReadBatch_BlankAndUnknown(t *testing.T) {
	calls := 0
	repo := &mockVaultRepo{
		FindLatestByHashFunc: func(ctx context.Context, hash string) (*models.VaultRecord, error) {
			calls++
			return nil, vaulterr.NewNotFoundError("vault", hash)
		},
	}
	svc := NewVaultService(repo, sealed.New())

	got, err := svc.ReadBatch(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, calls, "blank passphrase must not hit the repository")

	got, err = svc.ReadBatch(context.Background(), "unknown")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.True(t, svc.IsSealed())
}

func TestReadBatch_RepoError(t *testing.T) {
	wantErr := errors.New("db down")
	repo := &mockVaultRepo{
		FindLatestByHashFunc: func(ctx context.Context, hash string) (*models.VaultRecord, error) {
			return nil, wantErr
		},
	}
	svc := NewVaultService(repo, sealed.New())

	_, err := svc.ReadBatch(context.Background(), "secret")
	assert.ErrorIs(t, err, wantErr)
}

func TestReadBatch_DecryptsAndUnseals(t *testing.T) {
	rec := &models.VaultRecord{}
	require.NoError(t, record.Encrypt(rec, "secret", sampleEntries()))

	repo := &mockVaultRepo{
		FindLatestByHashFunc: func(ctx context.Context, hash string) (*models.VaultRecord, error) {
			if hash != rec.LookupHash {
				t.Errorf("FindLatestByHash received hash = %q; want %q", hash, rec.LookupHash)
			}
			return rec, nil
		},
	}
	svc := NewVaultService(repo, sealed.New())

	got, err := svc.ReadBatch(context.Background(), "secret")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].Values["x"])
	assert.False(t, svc.IsSealed())
}

func TestReadBatch_CorruptPayload(t *testing.T) {
	rec := &models.VaultRecord{}
	require.NoError(t, record.Encrypt(rec, "secret", sampleEntries()))
	rec.EncryptedPayload = "bm90LWEtY2lwaGVydGV4dA=="

	repo := &mockVaultRepo{
		FindLatestByHashFunc: func(ctx context.Context, hash string) (*models.VaultRecord, error) {
			return rec, nil
		},
	}
	svc := NewVaultService(repo, sealed.New())

	_, err := svc.ReadBatch(context.Background(), "secret")
	assert.ErrorIs(t, err, vaulterr.ErrDecryption)
	assert.True(t, svc.IsSealed())
}

func TestReadEntry(t *testing.T) {
	store := sealed.New()
	svc := NewVaultService(&mockVaultRepo{}, store)
	caller := models.Caller{Address: "10.1.2.3", Agent: "svc/1.0"}

	_, err := svc.ReadEntry(context.Background(), "k1", caller, models.FormatStructured)
	require.ErrorIs(t, err, vaulterr.ErrSealed)

	require.NoError(t, store.Unseal([]models.Entry{
		{ID: "open", OwnerLabel: "app", Values: map[string]string{"b": "2", "a": "1"}},
		{
			ID:                     "locked",
			OwnerLabel:             "app",
			Values:                 map[string]string{"a": "1"},
			AllowedAddressPatterns: []string{"192.168.*"},
		},
	}))

	out, err := svc.ReadEntry(context.Background(), "open", caller, models.FormatStructured)
	require.NoError(t, err)
	assert.Equal(t, "application/json", out.ContentType)
	assert.JSONEq(t, `{"a":"1","b":"2"}`, string(out.Body))

	out, err = svc.ReadEntry(context.Background(), "open", caller, models.FormatLines)
	require.NoError(t, err)
	assert.Equal(t, "a=1\nb=2", string(out.Body))

	_, err = svc.ReadEntry(context.Background(), "locked", caller, models.FormatStructured)
	assert.ErrorIs(t, err, vaulterr.ErrAccessDenied)

	_, err = svc.ReadEntry(context.Background(), "missing", caller, models.FormatStructured)
	assert.ErrorIs(t, err, vaulterr.ErrAccessDenied)
	assert.ErrorIs(t, err, vaulterr.ErrNotFound)

	_, err = svc.ReadEntry(context.Background(), "open", caller, models.Format("xml"))
	assert.ErrorIs(t, err, vaulterr.ErrValidation)
}

func TestRender_EmptyValues(t *testing.T) {
	out, err := Render(nil, models.FormatStructured)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(out.Body))

	out, err = Render(map[string]string{}, models.FormatLines)
	require.NoError(t, err)
	assert.Equal(t, "", string(out.Body))
	assert.Equal(t, "text/plain; charset=utf-8", out.ContentType)
}

func TestVaultService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	svc := NewVaultService(repository.NewMemoryVaultRepository(), sealed.New())

	require.NoError(t, svc.WriteBatch(ctx, "secret", sampleEntries(), models.Caller{Address: "127.0.0.1", Agent: "test"}))

	got, err := svc.ReadBatch(ctx, "secret")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "k1", got[0].ID)

	got, err = svc.ReadBatch(ctx, "wrong")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = svc.ReadBatch(ctx, "secret")
	require.NoError(t, err)
	require.Len(t, got, 1, "record under the original passphrase is untouched")
	assert.Equal(t, "k1", got[0].ID)
	assert.Equal(t, "1", got[0].Values["x"])

	out, err := svc.ReadEntry(ctx, "k1", models.Caller{Address: "203.0.113.9", Agent: "anything"}, models.FormatLines)
	require.NoError(t, err)
	assert.Equal(t, "x=1", string(out.Body))

	newer := []models.Entry{{ID: "k1", OwnerLabel: "app", Values: map[string]string{"x": "2"}}}
	require.NoError(t, svc.WriteBatch(ctx, "secret", newer, models.Caller{}))

	got, err = svc.ReadBatch(ctx, "secret")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].Values["x"], "newest record wins")
}

func TestReadBatch_OmittedPatternsEncodeAsEmptyArrays(t *testing.T) {
	ctx := context.Background()
	svc := NewVaultService(repository.NewMemoryVaultRepository(), sealed.New())

	var entries []models.Entry
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"k1","ownerLabel":"app","values":{"x":"1"}}]`), &entries))
	require.Nil(t, entries[0].AllowedAddressPatterns)
	require.NoError(t, svc.WriteBatch(ctx, "secret", entries, models.Caller{}))

	got, err := svc.ReadBatch(ctx, "secret")
	require.NoError(t, err)
	body, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"allowedAddressPatterns":[]`)
	assert.Contains(t, string(body), `"allowedAgentPatterns":[]`)
	assert.NotContains(t, string(body), "null")
	assert.Nil(t, entries[0].AllowedAddressPatterns, "caller's slice is not modified")
}

func TestReadBatch_NormalizesStoredNullPatterns(t *testing.T) {
	rec := &models.VaultRecord{}
	require.NoError(t, record.Encrypt(rec, "secret", sampleEntries()))
	repo := &mockVaultRepo{
		FindLatestByHashFunc: func(ctx context.Context, hash string) (*models.VaultRecord, error) {
			return rec, nil
		},
	}
	svc := NewVaultService(repo, sealed.New())

	got, err := svc.ReadBatch(context.Background(), "secret")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotNil(t, got[0].AllowedAddressPatterns)
	assert.NotNil(t, got[0].AllowedAgentPatterns)
}
