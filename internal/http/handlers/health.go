// Package handlers holds HTTP handlers that do not belong to a single
// domain package.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/consultare/practice-api/pkg/logging"
)

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// HealthHandler reports process liveness and dependency readiness.
type HealthHandler struct {
	checks map[string]CheckFunc
	logger *logging.Logger
}

// NewHealthHandler creates a health handler over the given named checks.
func NewHealthHandler(checks map[string]CheckFunc, logger *logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthHandler{checks: checks, logger: logger}
}

// ServeHTTP answers GET /health. Any failing dependency turns the response
// into a 503 but the body still names which check failed.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", "check", name, "error", err)
			results[name] = err.Error()
			status = "degraded"
		} else {
			results[name] = "ok"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": results,
	})
}
