// Package crypto implements passphrase-based key derivation and the
// AES-256-CBC scheme used to protect vault batches at rest.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/atinyakov/easyvault/internal/vaulterr"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 iteration count.
	Iterations = 10000
	// KeySize is the derived key length (AES-256).
	KeySize = 32
	// SaltSize is the length of a freshly generated record salt.
	SaltSize = 16
	// IVSize is the CBC initialization vector length.
	IVSize = aes.BlockSize
	// HashAlgorithm names the PRF used by DeriveKey.
	HashAlgorithm = "SHA256"
)

// DeriveKey derives a 256-bit key from passphrase and salt with PBKDF2-HMAC-SHA256.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, Iterations, KeySize, sha256.New)
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// HashPassphrase returns the lowercase hex SHA-512 of passphrase.
func HashPassphrase(passphrase string) string {
	sum := sha512.Sum512([]byte(passphrase))
	return hex.EncodeToString(sum[:])
}

// VerifyPassphrase compares the passphrase hash with lookupHash in constant time.
func VerifyPassphrase(passphrase, lookupHash string) bool {
	got := HashPassphrase(passphrase)
	return subtle.ConstantTimeCompare([]byte(got), []byte(lookupHash)) == 1
}

// Encrypt pads plaintext with PKCS#7, encrypts it under key with a fresh IV
// and returns base64(IV || ciphertext).
func Encrypt(plaintext, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, IVSize+len(padded))
	iv := out[:IVSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[IVSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any malformed input yields vaulterr.ErrDecryption.
func Decrypt(blob string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid encoding", vaulterr.ErrDecryption)
	}
	if len(raw) < IVSize+aes.BlockSize {
		return nil, fmt.Errorf("%w: ciphertext too short", vaulterr.ErrDecryption)
	}
	iv, data := raw[:IVSize], raw[IVSize:]
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not a multiple of the block size", vaulterr.ErrDecryption)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)
	return unpad(plain, aes.BlockSize)
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, fmt.Errorf("%w: invalid padding", vaulterr.ErrDecryption)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, fmt.Errorf("%w: invalid padding", vaulterr.ErrDecryption)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: invalid padding", vaulterr.ErrDecryption)
		}
	}
	return b[:len(b)-n], nil
}
