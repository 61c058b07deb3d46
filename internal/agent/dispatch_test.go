package agent

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/0xReLogic/Tunly/internal/domain/frame"
)

func newTestClient(local string) *Client {
	return NewClient("gateway.example", local, true, "/ws", "", "fixed-token", nil)
}

func TestDispatchLocalForwardsRequestAndRewritesHost(t *testing.T) {
	var gotHost, gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		gotMethod = r.Method
		gotPath = r.URL.RequestURI()
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer srv.Close()

	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	c := newTestClient("127.0.0.1:" + port)

	req := frame.RequestEnvelope{ID: 1, Method: "POST", URI: "/widgets?x=1", Headers: frame.Headers{}.Add("Connection", "keep-alive")}
	resp := c.dispatchLocal(req)

	if resp.Status != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.Status)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotPath != "/widgets?x=1" {
		t.Errorf("path = %q, want /widgets?x=1", gotPath)
	}
	if gotHost != "localhost:"+port {
		t.Errorf("host = %q, want localhost:%s", gotHost, port)
	}
	found := false
	for _, kv := range resp.Headers {
		if kv.Name == "X-Upstream" && kv.Value == "yes" {
			found = true
		}
	}
	if !found {
		t.Error("expected X-Upstream response header to survive")
	}
}

func TestDispatchLocalUnknownMethodFallsBackToGet(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	c := newTestClient("127.0.0.1:" + port)

	req := frame.RequestEnvelope{ID: 2, Method: "BOGUS", URI: "/"}
	c.dispatchLocal(req)

	if gotMethod != http.MethodGet {
		t.Errorf("method = %q, want GET fallback", gotMethod)
	}
}

func TestDispatchLocalUpstreamErrorProducesBadGateway(t *testing.T) {
	c := newTestClient("127.0.0.1:1")

	resp := c.dispatchLocal(frame.RequestEnvelope{ID: 3, Method: "GET", URI: "/"})

	if resp.Status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.Status)
	}
	body, err := frame.DecodeBody(resp.BodyB64, resp.IsCompressed)
	if err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	if !strings.HasPrefix(string(body), "upstream error: ") {
		t.Errorf("body = %q, want upstream error prefix", body)
	}
}
