package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/0xReLogic/Tunly/internal/adapter/outbound/memory"
	"github.com/0xReLogic/Tunly/internal/domain/session"
)

func TestHealthCheckerHealthyWithComponents(t *testing.T) {
	sessions := session.NewManager(nil)
	sessions.Create("SID")
	rateLimiter := memory.NewRateLimiter()

	hc := NewHealthChecker(sessions, rateLimiter, "test-version")
	health := hc.Check()

	if health.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", health.Status)
	}
	if health.Version != "test-version" {
		t.Errorf("Version = %q, want test-version", health.Version)
	}
	if health.Checks["sessions"] != "ok: 1 active" {
		t.Errorf("sessions check = %q", health.Checks["sessions"])
	}
	if health.Checks["rate_limiter"] != "ok: 0 keys" {
		t.Errorf("rate_limiter check = %q", health.Checks["rate_limiter"])
	}
}

func TestHealthCheckerNilComponents(t *testing.T) {
	hc := NewHealthChecker(nil, nil, "")
	health := hc.Check()

	if health.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", health.Status)
	}
	if health.Checks["sessions"] != "not configured" {
		t.Errorf("sessions = %q, want 'not configured'", health.Checks["sessions"])
	}
	if health.Checks["rate_limiter"] != "not configured" {
		t.Errorf("rate_limiter = %q, want 'not configured'", health.Checks["rate_limiter"])
	}
}

func TestHealthCheckerHandlerReturnsOK(t *testing.T) {
	hc := NewHealthChecker(nil, nil, "1.0.0")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	hc.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "ok")
	}
}

func TestHealthCheckerGoroutineCount(t *testing.T) {
	hc := NewHealthChecker(nil, nil, "")
	health := hc.Check()

	if health.Checks["goroutines"] == "" || health.Checks["goroutines"] == "0" {
		t.Errorf("goroutines = %q, want a positive count", health.Checks["goroutines"])
	}
}
