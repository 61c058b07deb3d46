// Package http provides the gateway's public HTTP surface.
package http

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xReLogic/Tunly/internal/adapter/outbound/memory"
	"github.com/0xReLogic/Tunly/internal/domain/credential"
	"github.com/0xReLogic/Tunly/internal/domain/session"
)

// HTTPTransport is the gateway's HTTP server: token issuance, proxy ingress,
// the duplex-channel upgrade, and the ambient health/metrics/redirect routes.
type HTTPTransport struct {
	server         *http.Server
	addr           string
	certFile       string
	keyFile        string
	logger         *slog.Logger
	version        string
	duplexHandler  http.Handler
	sessions       *session.Manager
	credentials    *credential.Service
	rateLimiter    *memory.MemoryRateLimiter
	internalKey    string
	metrics        *Metrics
	metricsReg     *prometheus.Registry
}

// Option is a functional option for configuring HTTPTransport.
type Option func(*HTTPTransport)

// WithAddr sets the listen address. Default is "127.0.0.1:8080".
func WithAddr(addr string) Option {
	return func(t *HTTPTransport) { t.addr = addr }
}

// WithTLS enables TLS with the provided certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(t *HTTPTransport) { t.certFile, t.keyFile = certFile, keyFile }
}

// WithLogger sets the transport's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) { t.logger = logger }
}

// WithVersion sets the version string reported by health checks.
func WithVersion(version string) Option {
	return func(t *HTTPTransport) { t.version = version }
}

// WithDuplexHandler wires the /ws upgrade route (see package httpgw).
func WithDuplexHandler(h http.Handler) Option {
	return func(t *HTTPTransport) { t.duplexHandler = h }
}

// WithInternalKey gates /token issuance on a matching X-Internal-Key header.
func WithInternalKey(key string) Option {
	return func(t *HTTPTransport) { t.internalKey = key }
}

// WithMetrics wires an externally constructed registry and Metrics instance,
// so the caller can hand the same ActiveSessions gauge to session.NewManager
// before the transport exists and still see it served under /metrics. If
// omitted, the transport creates its own private registry in buildHandler.
func WithMetrics(reg *prometheus.Registry, m *Metrics) Option {
	return func(t *HTTPTransport) {
		t.metricsReg = reg
		t.metrics = m
	}
}

// NewHTTPTransport constructs an HTTPTransport over the gateway's shared
// process-wide state (sessions table, credential service, rate limiter).
func NewHTTPTransport(sessions *session.Manager, credentials *credential.Service, rateLimiter *memory.MemoryRateLimiter, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		addr:        "127.0.0.1:8080",
		logger:      slog.Default(),
		sessions:    sessions,
		credentials: credentials,
		rateLimiter: rateLimiter,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// buildHandler assembles the routed mux and middleware chain. Split out of
// Start so routing tests can exercise it without binding a listener.
func (t *HTTPTransport) buildHandler() http.Handler {
	reg := t.metricsReg
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if t.metrics == nil {
		t.metrics = NewMetrics(reg)
	}

	handler := NewHandler(t.sessions, t.credentials, t.rateLimiter, t.metrics, t.internalKey)
	healthChecker := NewHealthChecker(t.sessions, t.rateLimiter, t.version)

	mux := http.NewServeMux()
	mux.Handle("/healthz", healthChecker.Handler())
	mux.HandleFunc("/token", handler.Token)
	if t.duplexHandler != nil {
		mux.Handle("/ws", t.duplexHandler)
	}
	mux.HandleFunc("/s/{sid}", handler.Proxy)
	mux.HandleFunc("/s/{sid}/_log", handler.SessionLog)
	mux.HandleFunc("/s/{sid}/{path...}", handler.Proxy)
	mux.HandleFunc("/_next/{path...}", handler.NextRedirect)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/", handler.NotFound)

	var root http.Handler = mux
	root = RequestIDMiddleware(t.logger)(root)
	root = MetricsMiddleware(t.metrics)(root)
	return root
}

// Start begins accepting HTTP connections. It blocks until ctx is cancelled
// or the server fails to start.
func (t *HTTPTransport) Start(ctx context.Context) error {
	root := t.buildHandler()

	t.server = &http.Server{Addr: t.addr, Handler: root}
	if t.certFile != "" && t.keyFile != "" {
		t.server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if t.certFile != "" && t.keyFile != "" {
			t.logger.Info("starting HTTPS server", "addr", t.addr)
			err = t.server.ListenAndServeTLS(t.certFile, t.keyFile)
		} else {
			t.logger.Info("starting HTTP server", "addr", t.addr)
			err = t.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

func (t *HTTPTransport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}
	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *HTTPTransport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
