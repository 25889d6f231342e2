// Package record encodes batches of entries into vault records and back.
package record

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atinyakov/easyvault/internal/crypto"
	"github.com/atinyakov/easyvault/internal/models"
	"github.com/atinyakov/easyvault/internal/vaulterr"
)

// Encrypt serializes entries and stores them in rec under a key derived
// from passphrase. A salt is generated only when rec has none yet.
func Encrypt(rec *models.VaultRecord, passphrase string, entries []models.Entry) error {
	if strings.TrimSpace(passphrase) == "" {
		return vaulterr.NewValidationError("key", "cannot be null or empty")
	}
	if len(entries) == 0 {
		return vaulterr.NewValidationError("secrets", "cannot be null or empty")
	}

	if rec.LookupHash != "" && !crypto.VerifyPassphrase(passphrase, rec.LookupHash) {
		return vaulterr.ErrAuthentication
	}

	if len(rec.Salt) == 0 {
		salt, err := crypto.NewSalt()
		if err != nil {
			return err
		}
		rec.Salt = salt
	}

	plain, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}

	payload, err := crypto.Encrypt(plain, crypto.DeriveKey(passphrase, rec.Salt))
	if err != nil {
		return err
	}

	if rec.LookupHash == "" {
		rec.LookupHash = crypto.HashPassphrase(passphrase)
	}
	rec.HashAlgorithm = crypto.HashAlgorithm
	rec.EncryptedPayload = payload
	return nil
}

// Decrypt authenticates passphrase against rec and returns its entries.
// A hash mismatch fails before the cipher is touched.
func Decrypt(rec *models.VaultRecord, passphrase string) ([]models.Entry, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, vaulterr.NewValidationError("key", "cannot be null or empty")
	}
	if !crypto.VerifyPassphrase(passphrase, rec.LookupHash) {
		return nil, vaulterr.ErrAuthentication
	}
	if rec.EncryptedPayload == "" {
		return []models.Entry{}, nil
	}

	plain, err := crypto.Decrypt(rec.EncryptedPayload, crypto.DeriveKey(passphrase, rec.Salt))
	if err != nil {
		return nil, err
	}

	var entries []models.Entry
	if err := json.Unmarshal(plain, &entries); err != nil {
		return nil, fmt.Errorf("%w: decode entries", vaulterr.ErrDecryption)
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	return entries, nil
}
