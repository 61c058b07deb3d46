package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus instruments.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	ActiveSessions      prometheus.Gauge
	CredentialsIssued   prometheus.Counter
	CredentialsRejected *prometheus.CounterVec
	RateLimitRejections *prometheus.CounterVec
}

// NewMetrics creates and registers every metric with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tunly",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tunly",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ActiveSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tunly",
				Name:      "active_sessions",
				Help:      "Number of live duplex-channel sessions",
			},
		),
		CredentialsIssued: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "tunly",
				Name:      "credentials_issued_total",
				Help:      "Total ephemeral credentials issued via /token",
			},
		),
		CredentialsRejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tunly",
				Name:      "credentials_rejected_total",
				Help:      "Total credential requests rejected, by reason",
			},
			// reason=operator_gated, recorded by /token only; rejected /ws
			// upgrades are not counted here.
			[]string{"reason"},
		),
		RateLimitRejections: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tunly",
				Name:      "rate_limit_rejections_total",
				Help:      "Total requests rejected by a rate limit bucket",
			},
			[]string{"bucket"}, // bucket=credential/ingress
		),
	}
}
