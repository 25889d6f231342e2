package service

import (
	"context"
	"errors"
	"testing"

	"github.com/atinyakov/easyvault/internal/models"
)

type mockEventRepo struct {
	RecordFunc func(ctx context.Context, ev *models.AccessEvent) error
}

func (m *mockEventRepo) Record(ctx context.Context, ev *models.AccessEvent) error {
	return m.RecordFunc(ctx, ev)
}

func TestAuditRecord_MasksSecret(t *testing.T) {
	var got *models.AccessEvent
	repo := &mockEventRepo{
		RecordFunc: func(ctx context.Context, ev *models.AccessEvent) error {
			got = ev
			return nil
		},
	}
	svc := NewAuditService(repo)

	caller := models.Caller{Address: "10.0.0.5", Agent: "curl/8"}
	if err := svc.Record(context.Background(), caller, "GET", "/api/v2/vault/hunter2", "hunter2"); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected Record to be called on repo")
	}
	if got.Route != "/api/v2/vault/*******" {
		t.Errorf("Route = %q; want masked route", got.Route)
	}
	if got.Address != "10.0.0.5" || got.Agent != "curl/8" || got.Method != "GET" {
		t.Errorf("unexpected event %+v", got)
	}
}

func TestAuditRecord_Error(t *testing.T) {
	wantErr := errors.New("db error")
	repo := &mockEventRepo{
		RecordFunc: func(ctx context.Context, ev *models.AccessEvent) error { return wantErr },
	}
	svc := NewAuditService(repo)

	err := svc.Record(context.Background(), models.Caller{}, "POST", "/api/v2/vault/x", "x")
	if !errors.Is(err, wantErr) {
		t.Fatalf("Record error = %v; want %v", err, wantErr)
	}
}

func TestMaskRoute(t *testing.T) {
	tests := []struct {
		route, secret, want string
	}{
		{"/api/v2/vault/abc", "abc", "/api/v2/vault/***"},
		{"/api/v2/vault/secrets/k1", "", "/api/v2/vault/secrets/k1"},
		{"/x/ab/ab", "ab", "/x/**/**"},
	}
	for _, tt := range tests {
		if got := MaskRoute(tt.route, tt.secret); got != tt.want {
			t.Errorf("MaskRoute(%q, %q) = %q; want %q", tt.route, tt.secret, got, tt.want)
		}
	}
}
