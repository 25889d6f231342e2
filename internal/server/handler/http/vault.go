// Package http provides the HTTP handlers and router of the vault server.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/atinyakov/easyvault/internal/middleware"
	"github.com/atinyakov/easyvault/internal/models"
	"github.com/atinyakov/easyvault/internal/vaulterr"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxBodyBytes bounds the size of a batch upload.
const maxBodyBytes = 1 << 20

// VaultService defines the vault operations required by the VaultHandler.
type VaultService interface {
	// WriteBatch stores entries as a new record under passphrase.
	WriteBatch(ctx context.Context, passphrase string, entries []models.Entry, caller models.Caller) error
	// ReadBatch returns the newest batch stored under passphrase, or an empty one.
	ReadBatch(ctx context.Context, passphrase string) ([]models.Entry, error)
	// ReadEntry returns the values of one cached entry if caller is allowed.
	ReadEntry(ctx context.Context, id string, caller models.Caller, format models.Format) (*models.Rendered, error)
}

// AuditService records access events.
type AuditService interface {
	Record(ctx context.Context, caller models.Caller, method, route, secret string) error
}

// VaultHandler handles the /api/v2/vault routes.
type VaultHandler struct {
	VaultService VaultService
	AuditService AuditService
	Logger       *zap.Logger
}

// GetVault handles GET /api/v2/vault/{key} and returns the entries stored
// under the passphrase in the path as a JSON array.
func (h *VaultHandler) GetVault(w http.ResponseWriter, r *http.Request) {
	key := routeParam(r, "key")
	h.audit(r, key)

	entries, err := h.VaultService.ReadBatch(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

// UpdateVault handles POST /api/v2/vault/{key}. The body is a JSON array of
// entries that replaces the batch stored under the passphrase in the path.
func (h *VaultHandler) UpdateVault(w http.ResponseWriter, r *http.Request) {
	key := routeParam(r, "key")
	h.audit(r, key)

	var entries []models.Entry
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&entries); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	caller := middleware.GetCallerFromContext(r.Context())
	if err := h.VaultService.WriteBatch(r.Context(), key, entries, caller); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.Logger.Info("vault updated",
		zap.String("address", caller.Address),
		zap.Int("entries", len(entries)),
	)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Vault updated successfully."))
}

// GetEntry handles GET /api/v2/vault/secrets/{id}?format=structured|lines.
func (h *VaultHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := routeParam(r, "id")
	h.audit(r, id)

	raw := r.URL.Query().Get("format")
	format, ok := models.ParseFormat(raw)
	if !ok {
		// rejected by the service after the access checks
		format = models.Format(raw)
	}

	caller := middleware.GetCallerFromContext(r.Context())
	out, err := h.VaultService.ReadEntry(r.Context(), id, caller, format)
	if err != nil {
		if vaulterr.IsDenial(err) {
			h.Logger.Warn("unauthorized access attempt",
				zap.String("address", caller.Address),
				zap.String("agent", caller.Agent),
				zap.NamedError("reason", err),
			)
		}
		h.writeError(w, r, err)
		return
	}

	h.Logger.Info("access granted",
		zap.String("address", caller.Address),
		zap.Int("values", out.Values),
	)
	w.Header().Set("Content-Type", out.ContentType)
	_, _ = w.Write(out.Body)
}

// audit records the request. A failure is logged and does not fail the request.
func (h *VaultHandler) audit(r *http.Request, secret string) {
	if h.AuditService == nil {
		return
	}
	caller := middleware.GetCallerFromContext(r.Context())
	if err := h.AuditService.Record(r.Context(), caller, r.Method, r.URL.Path, secret); err != nil {
		h.Logger.Warn("failed to record access event", zap.Error(err))
	}
}

// writeError maps err to a status code. Denials of every kind share one
// response so callers cannot tell them apart.
func (h *VaultHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, vaulterr.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case vaulterr.IsDenial(err):
		http.Error(w, "access denied", http.StatusUnauthorized)
	case vaulterr.IsRetryable(err):
		http.Error(w, "conflicting write, retry", http.StatusConflict)
	default:
		h.Logger.Error("vault request failed",
			zap.String("method", r.Method),
			zap.Error(err),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// routeParam returns the decoded path parameter. chi matches on the raw
// path when the request has one.
func routeParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}
