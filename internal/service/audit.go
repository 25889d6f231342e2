package service

import (
	"context"
	"strings"

	"github.com/atinyakov/easyvault/internal/models"
)

// AccessEventRepository defines the persistence operations for access events.
type AccessEventRepository interface {
	Record(ctx context.Context, ev *models.AccessEvent) error
}

// AuditService records one access event per vault request.
type AuditService struct {
	repo AccessEventRepository
}

// NewAuditService constructs an AuditService backed by repo.
func NewAuditService(repo AccessEventRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Record stores an access event for caller. Occurrences of secret in route
// are masked before anything is persisted.
func (s *AuditService) Record(ctx context.Context, caller models.Caller, method, route, secret string) error {
	return s.repo.Record(ctx, &models.AccessEvent{
		Address: caller.Address,
		Agent:   caller.Agent,
		Method:  method,
		Route:   MaskRoute(route, secret),
	})
}

// MaskRoute replaces every occurrence of secret in route with asterisks of
// the same length.
func MaskRoute(route, secret string) string {
	if secret == "" {
		return route
	}
	return strings.ReplaceAll(route, secret, strings.Repeat("*", len(secret)))
}
