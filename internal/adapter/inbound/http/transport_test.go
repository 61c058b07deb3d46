package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/0xReLogic/Tunly/internal/adapter/outbound/memory"
	"github.com/0xReLogic/Tunly/internal/domain/credential"
	"github.com/0xReLogic/Tunly/internal/domain/session"
)

func markerHandler(marker string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Handler", marker)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, marker)
	})
}

func newTestTransport(t *testing.T) *HTTPTransport {
	t.Helper()
	secret := []byte(strings.Repeat("k", 32))
	return NewHTTPTransport(
		session.NewManager(nil),
		credential.NewService(credential.ModeEphemeral, secret, ""),
		memory.NewRateLimiter(),
		WithAddr(":0"),
		WithLogger(slog.Default()),
		WithDuplexHandler(markerHandler("duplex")),
	)
}

func TestRoutingTableDriven(t *testing.T) {
	transport := newTestTransport(t)
	srv := httptest.NewServer(transport.buildHandler())
	defer srv.Close()

	cases := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"token", http.MethodGet, "/token", http.StatusOK},
		{"proxy bare sid missing session", http.MethodGet, "/s/nope", http.StatusServiceUnavailable},
		{"proxy with path missing session", http.MethodGet, "/s/nope/hello", http.StatusServiceUnavailable},
		{"next redirect without sid", http.MethodGet, "/_next/chunk.js", http.StatusNotFound},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"favicon", http.MethodGet, "/favicon.ico", http.StatusNoContent},
		{"catch-all", http.MethodGet, "/whatever", http.StatusNotFound},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req, err := http.NewRequest(c.method, srv.URL+c.path, nil)
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}
			resp, err := srv.Client().Do(req)
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != c.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, c.wantStatus)
			}
		})
	}
}

func TestRoutingSessionLogTakesPrecedenceOverWildcard(t *testing.T) {
	transport := newTestTransport(t)
	srv := httptest.NewServer(transport.buildHandler())
	defer srv.Close()

	// With a live session the proxy wildcard would enqueue and wait for an
	// agent; only the session-log route answers 200 with an HTML page.
	transport.sessions.Create("live")

	resp, err := srv.Client().Get(srv.URL + "/s/live/_log")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (session-log route reached, not the generic proxy wildcard)", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q, want text/html from the session-log page", ct)
	}
}

func TestRoutingAddsRequestIDHeader(t *testing.T) {
	transport := newTestTransport(t)
	srv := httptest.NewServer(transport.buildHandler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header on every response")
	}
}

func TestCloseWithoutStartIsNoop(t *testing.T) {
	transport := newTestTransport(t)
	if err := transport.Close(); err != nil {
		t.Fatalf("Close() before Start() = %v, want nil", err)
	}
}
