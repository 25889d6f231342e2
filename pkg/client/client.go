// Package client is the Go SDK for the vault server. Applications use it to
// fetch the values of one entry; operators use the batch calls to read and
// replace the whole vault.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	apiVault   = "/api/v2/vault/"
	apiSecrets = "/api/v2/vault/secrets/"

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 4 << 10
)

// Entry mirrors the server's entry document.
type Entry struct {
	ID                     string            `json:"id"`
	OwnerLabel             string            `json:"ownerLabel"`
	Values                 map[string]string `json:"values"`
	AllowedAddressPatterns []string          `json:"allowedAddressPatterns,omitempty"`
	AllowedAgentPatterns   []string          `json:"allowedAgentPatterns,omitempty"`
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vault responded %d: %s", e.StatusCode, e.Body)
}

// Client talks to one vault server on behalf of one entry id.
type Client struct {
	baseURL   *url.URL
	keyID     string
	userAgent string
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client is nil")
		}
		c.http = hc
		return nil
	}
}

// WithUserAgent overrides the User-Agent, which entry policies may match on.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.userAgent = ua
		return nil
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.http.Timeout = d
		return nil
	}
}

// WithCAFile trusts the PEM-encoded CA at path in addition to the system pool.
func WithCAFile(path string) Option {
	return func(c *Client) error {
		caCert, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read CA cert: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(caCert) {
			return errors.New("failed to parse CA cert")
		}
		c.http.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
		}
		return nil
	}
}

// New returns a Client for baseURL reading the entry keyID. keyID may be
// empty for clients that only use the batch calls.
func New(baseURL, keyID string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:   u,
		keyID:     keyID,
		userAgent: defaultUserAgent(),
		http:      &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// KeyID returns the entry id the client reads.
func (c *Client) KeyID() string { return c.keyID }

// GetSecrets returns the values of the configured entry.
func (c *Client) GetSecrets(ctx context.Context) (map[string]string, error) {
	if strings.TrimSpace(c.keyID) == "" {
		return nil, errors.New("key id is required")
	}
	values := map[string]string{}
	if err := c.do(ctx, http.MethodGet, apiSecrets+url.PathEscape(c.keyID)+"?format=structured", nil, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// GetSecretsInto fetches the configured entry and binds it onto dst, which
// must be a pointer to a struct. See Bind.
func (c *Client) GetSecretsInto(ctx context.Context, dst any) error {
	values, err := c.GetSecrets(ctx)
	if err != nil {
		return err
	}
	return Bind(values, dst)
}

// GetSecretsRaw returns the configured entry rendered as key=value lines.
func (c *Client) GetSecretsRaw(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.keyID) == "" {
		return "", errors.New("key id is required")
	}
	var sb strings.Builder
	if err := c.do(ctx, http.MethodGet, apiSecrets+url.PathEscape(c.keyID)+"?format=lines", nil, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ReadBatch returns every entry stored under passphrase. An unknown
// passphrase yields an empty slice.
func (c *Client) ReadBatch(ctx context.Context, passphrase string) ([]Entry, error) {
	entries := []Entry{}
	if err := c.do(ctx, http.MethodGet, apiVault+url.PathEscape(passphrase), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// WriteBatch replaces the batch stored under passphrase.
func (c *Client) WriteBatch(ctx context.Context, passphrase string, entries []Entry) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}
	return c.do(ctx, http.MethodPost, apiVault+url.PathEscape(passphrase), b, nil)
}

// do sends one request. out may be nil, a *strings.Builder for raw text or
// a value to decode JSON into.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error repeats the full URL
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("%s %s: %w", method, redact(path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	switch dst := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *strings.Builder:
		_, err := io.Copy(dst, resp.Body)
		return err
	default:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}

// redact hides the last path segment, which carries a passphrase or entry id.
func redact(path string) string {
	path, _, _ = strings.Cut(path, "?")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i+1] + "***"
	}
	return path
}

func defaultUserAgent() string {
	exe, err := os.Executable()
	if err != nil || exe == "" {
		return "easyvault-client"
	}
	return filepath.Base(exe)
}
