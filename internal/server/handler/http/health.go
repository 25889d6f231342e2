package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus is the state of one checked component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// SealChecker reports whether the vault cache is sealed.
type SealChecker interface {
	IsSealed() bool
}

// Pinger checks the database connection. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthResult is the outcome of one check.
type HealthResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthReport is the body of GET /api/v2/health.
type HealthReport struct {
	Status    HealthStatus             `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Results   map[string]*HealthResult `json:"results"`
}

// HealthHandler serves the health report. DB may be nil when vaults are
// kept in memory; the database check is then omitted.
type HealthHandler struct {
	Vault   SealChecker
	DB      Pinger
	Timeout time.Duration
}

// Check handles GET /api/v2/health. It answers 200 when every check is
// healthy and 503 otherwise.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	report := HealthReport{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Results:   make(map[string]*HealthResult),
	}

	vault := &HealthResult{Status: StatusHealthy}
	if h.Vault.IsSealed() {
		vault = &HealthResult{Status: StatusUnhealthy, Message: "vault is sealed"}
	}
	report.Results["vault"] = vault

	if h.DB != nil {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		db := &HealthResult{Status: StatusHealthy}
		if err := h.DB.PingContext(ctx); err != nil {
			db = &HealthResult{Status: StatusUnhealthy, Message: "database unreachable"}
		}
		report.Results["database"] = db
	}

	code := http.StatusOK
	for _, res := range report.Results {
		if res.Status != StatusHealthy {
			report.Status = StatusUnhealthy
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}
