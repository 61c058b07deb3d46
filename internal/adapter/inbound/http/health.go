package http

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/0xReLogic/Tunly/internal/adapter/outbound/memory"
	"github.com/0xReLogic/Tunly/internal/domain/session"
)

// HealthResponse is the structured result of Check. The /healthz endpoint
// does not serve it; it answers with a literal "ok".
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// HealthChecker verifies the gateway's in-process components respond
// without blocking.
type HealthChecker struct {
	sessions    *session.Manager
	rateLimiter *memory.MemoryRateLimiter
	version     string
}

// NewHealthChecker creates a HealthChecker. Pass nil for a component that
// isn't wired; its check is reported as "not configured".
func NewHealthChecker(sessions *session.Manager, rateLimiter *memory.MemoryRateLimiter, version string) *HealthChecker {
	return &HealthChecker{sessions: sessions, rateLimiter: rateLimiter, version: version}
}

// Check performs the health checks and summarizes the result.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)

	if h.sessions != nil {
		checks["sessions"] = fmt.Sprintf("ok: %d active", h.sessions.Len())
	} else {
		checks["sessions"] = "not configured"
	}

	if h.rateLimiter != nil {
		checks["rate_limiter"] = fmt.Sprintf("ok: %d keys", h.rateLimiter.Size())
	} else {
		checks["rate_limiter"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	return HealthResponse{Status: "healthy", Checks: checks, Version: h.version}
}

// Handler returns an HTTP handler for the /healthz endpoint. Its wire
// contract is a literal "ok" liveness body; Check()'s structured
// diagnostic remains available to tests and operators directly.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
