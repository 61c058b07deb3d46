package http

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m.RequestsTotal == nil {
		t.Error("RequestsTotal not initialized")
	}
	if m.RequestDuration == nil {
		t.Error("RequestDuration not initialized")
	}
	if m.ActiveSessions == nil {
		t.Error("ActiveSessions not initialized")
	}
	if m.CredentialsIssued == nil {
		t.Error("CredentialsIssued not initialized")
	}
	if m.CredentialsRejected == nil {
		t.Error("CredentialsRejected not initialized")
	}
	if m.RateLimitRejections == nil {
		t.Error("RateLimitRejections not initialized")
	}
}

func TestMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RequestsTotal.WithLabelValues("GET", "ok").Inc()
	count := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "ok"))
	if count != 1 {
		t.Errorf("RequestsTotal = %v, want 1", count)
	}

	m.ActiveSessions.Set(5)
	sessions := testutil.ToFloat64(m.ActiveSessions)
	if sessions != 5 {
		t.Errorf("ActiveSessions = %v, want 5", sessions)
	}

	m.CredentialsIssued.Inc()
	if issued := testutil.ToFloat64(m.CredentialsIssued); issued != 1 {
		t.Errorf("CredentialsIssued = %v, want 1", issued)
	}

	m.RateLimitRejections.WithLabelValues("ingress").Inc()

	m.RequestDuration.WithLabelValues("GET").Observe(0.1)
	gathered, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	found := false
	for _, mf := range gathered {
		if strings.Contains(mf.GetName(), "request_duration") {
			found = true
			break
		}
	}
	if !found {
		t.Error("request_duration histogram not found in gathered metrics")
	}
}
