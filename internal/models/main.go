// Package models defines the core data structures for vault records and entries.
package models

import "time"

// VaultRecord is the persisted, encrypted form of one batch of entries.
type VaultRecord struct {
	// ID is the unique identifier for the record.
	ID string
	// LookupHash is the hex SHA-512 of the passphrase used to find and authenticate the record.
	LookupHash string
	// HashAlgorithm names the PRF used for key derivation.
	HashAlgorithm string
	// EncryptedPayload is base64(IV || ciphertext) of the JSON-encoded batch.
	EncryptedPayload string
	// Salt is generated once, at first encryption.
	Salt []byte
	// CreatedFromAddress is the address of the caller that wrote the record.
	CreatedFromAddress string
	// CreatedFromAgent is the agent string of the caller that wrote the record.
	CreatedFromAgent string
	// CreatedAt is the creation timestamp; the newest record wins on lookup.
	CreatedAt time.Time
}

// Entry is one decrypted bundle of secrets with its own access policy.
type Entry struct {
	// ID is the opaque identifier used for single-entry reads.
	ID string `json:"id"`
	// OwnerLabel is a free-text name for whoever consumes the entry.
	OwnerLabel string `json:"ownerLabel"`
	// Values maps secret names to secret values.
	Values map[string]string `json:"values"`
	// AllowedAddressPatterns restricts caller addresses; empty allows all.
	AllowedAddressPatterns []string `json:"allowedAddressPatterns"`
	// AllowedAgentPatterns restricts caller agent strings; empty allows all.
	AllowedAgentPatterns []string `json:"allowedAgentPatterns"`
}

// Caller identifies whoever is asking for an entry.
type Caller struct {
	Address string
	Agent   string
}

// AccessEvent is an audit trail row written for every vault request.
type AccessEvent struct {
	ID        string
	Address   string
	Route     string
	Agent     string
	Method    string
	CreatedAt time.Time
}

// Format selects how entry values are rendered.
type Format string

const (
	// FormatStructured renders values as a JSON object.
	FormatStructured Format = "structured"
	// FormatLines renders values as key=value lines.
	FormatLines Format = "lines"
)

// ParseFormat resolves a format selector. The legacy names "json" and
// "plain" are accepted as aliases. An empty selector means structured.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "", string(FormatStructured), "json":
		return FormatStructured, true
	case string(FormatLines), "plain":
		return FormatLines, true
	}
	return "", false
}

// Rendered is an entry's values serialized for the transport.
type Rendered struct {
	ContentType string
	Body        []byte
	// Values is the number of key/value pairs in Body.
	Values int
}
