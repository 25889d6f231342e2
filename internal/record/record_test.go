package record

import (
	"bytes"
	"testing"

	"github.com/atinyakov/easyvault/internal/crypto"
	"github.com/atinyakov/easyvault/internal/models"
	"github.com/atinyakov/easyvault/internal/vaulterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBatch() []models.Entry {
	return []models.Entry{
		{
			ID:                     "k1",
			OwnerLabel:             "app",
			Values:                 map[string]string{"x": "1", "DB_PASSWORD": "hunter2"},
			AllowedAddressPatterns: []string{"172.*.*.*"},
			AllowedAgentPatterns:   []string{},
		},
		{
			ID:         "k2",
			OwnerLabel: "worker",
			Values:     map[string]string{"token": "abc"},
		},
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	rec := &models.VaultRecord{}
	batch := sampleBatch()

	require.NoError(t, Encrypt(rec, "secret", batch))
	assert.Equal(t, crypto.HashPassphrase("secret"), rec.LookupHash)
	assert.Equal(t, crypto.HashAlgorithm, rec.HashAlgorithm)
	assert.Len(t, rec.Salt, crypto.SaltSize)
	assert.NotEmpty(t, rec.EncryptedPayload)
	assert.NotContains(t, rec.EncryptedPayload, "hunter2")

	got, err := Decrypt(rec, "secret")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, batch[0].Values, got[0].Values)
	assert.Equal(t, batch[0].AllowedAddressPatterns, got[0].AllowedAddressPatterns)
	assert.Equal(t, "k2", got[1].ID)
}

func TestEncrypt_SaltGeneratedOnce(t *testing.T) {
	rec := &models.VaultRecord{}
	require.NoError(t, Encrypt(rec, "secret", sampleBatch()))
	salt := bytes.Clone(rec.Salt)
	payload := rec.EncryptedPayload

	require.NoError(t, Encrypt(rec, "secret", sampleBatch()))
	assert.Equal(t, salt, rec.Salt, "salt must be reused once set")
	assert.NotEqual(t, payload, rec.EncryptedPayload, "fresh IV per encryption")
}

func TestEncrypt_LookupHashImmutable(t *testing.T) {
	rec := &models.VaultRecord{}
	require.NoError(t, Encrypt(rec, "secret", sampleBatch()))
	hash := rec.LookupHash

	assert.ErrorIs(t, Encrypt(rec, "other", sampleBatch()), vaulterr.ErrAuthentication)
	assert.Equal(t, hash, rec.LookupHash)
}

func TestEncrypt_Validation(t *testing.T) {
	assert.ErrorIs(t, Encrypt(&models.VaultRecord{}, "  ", sampleBatch()), vaulterr.ErrValidation)
	assert.ErrorIs(t, Encrypt(&models.VaultRecord{}, "secret", nil), vaulterr.ErrValidation)
}

func TestDecrypt_WrongPassphrase(t *testing.T) {
	rec := &models.VaultRecord{}
	require.NoError(t, Encrypt(rec, "secret", sampleBatch()))

	for _, p := range []string{"wrong", "Secret", "secret "} {
		_, err := Decrypt(rec, p)
		assert.ErrorIs(t, err, vaulterr.ErrAuthentication, "passphrase %q", p)
	}
}

func TestDecrypt_AuthenticatesBeforeCipher(t *testing.T) {
	rec := &models.VaultRecord{
		LookupHash:       crypto.HashPassphrase("secret"),
		EncryptedPayload: "not even base64 %%%",
		Salt:             []byte("0123456789abcdef"),
	}
	_, err := Decrypt(rec, "wrong")
	assert.ErrorIs(t, err, vaulterr.ErrAuthentication)

	_, err = Decrypt(rec, "secret")
	assert.ErrorIs(t, err, vaulterr.ErrDecryption)
}

func TestDecrypt_EmptyPayload(t *testing.T) {
	rec := &models.VaultRecord{LookupHash: crypto.HashPassphrase("secret")}
	got, err := Decrypt(rec, "secret")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestDecrypt_CorruptJSON(t *testing.T) {
	rec := &models.VaultRecord{LookupHash: crypto.HashPassphrase("secret"), Salt: []byte("0123456789abcdef")}
	payload, err := crypto.Encrypt([]byte("{not json"), crypto.DeriveKey("secret", rec.Salt))
	require.NoError(t, err)
	rec.EncryptedPayload = payload

	_, err = Decrypt(rec, "secret")
	assert.ErrorIs(t, err, vaulterr.ErrDecryption)
}
