// Package http provides the gateway's public HTTP surface.
package http

import (
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/0xReLogic/Tunly/internal/domain/credential"
	"github.com/0xReLogic/Tunly/internal/domain/frame"
	"github.com/0xReLogic/Tunly/internal/domain/ratelimit"
	"github.com/0xReLogic/Tunly/internal/domain/session"
	"github.com/0xReLogic/Tunly/internal/netaddr"
)

// maxProxyBodySize caps a proxied request body.
const maxProxyBodySize = 2 * 1024 * 1024

// proxyAwaitTimeout bounds how long the ingress handler waits for the
// agent's response before yielding gateway-timeout.
const proxyAwaitTimeout = 30 * time.Second

// sessionCookieName is the cookie the gateway sets on every proxied
// response, scoping the public URL back to its sid.
const sessionCookieName = "tunly_sid"

// sessionCookieMaxAge matches the cookie's Max-Age in seconds.
const sessionCookieMaxAge = 600

// internalKeyHeader gates /token issuance when the gateway is configured
// with an operator internal key.
const internalKeyHeader = "X-Internal-Key"

var credentialRateLimit = ratelimit.RateLimitConfig{Rate: 10, Period: 60 * time.Second}
var ingressRateLimit = ratelimit.RateLimitConfig{Rate: 120, Period: 60 * time.Second}

// Handler serves the gateway's token-issuance and proxy-ingress routes, plus
// the peripheral session-log page and asset-redirect heuristic.
type Handler struct {
	sessions    *session.Manager
	credentials *credential.Service
	limiter     ratelimit.RateLimiter
	metrics     *Metrics
	internalKey string

	nextRequestID atomic.Uint64
}

// NewHandler constructs a Handler. internalKey may be empty, disabling the
// operator-gating check on /token.
func NewHandler(sessions *session.Manager, credentials *credential.Service, limiter ratelimit.RateLimiter, metrics *Metrics, internalKey string) *Handler {
	return &Handler{
		sessions:    sessions,
		credentials: credentials,
		limiter:     limiter,
		metrics:     metrics,
		internalKey: internalKey,
	}
}

func writeNoStoreHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Robots-Tag", "noindex, nofollow")
	w.Header().Set("Referrer-Policy", "same-origin")
}

func writeRetryAfter(w http.ResponseWriter, d time.Duration) {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
}

// Token issues a fresh single-use credential.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())
	address := netaddr.Extract(r)

	if h.credentials.Mode() != credential.ModeEphemeral {
		writeNoStoreHeaders(w)
		http.Error(w, "credential issuance disabled", http.StatusForbidden)
		return
	}

	if h.internalKey != "" && r.Header.Get(internalKeyHeader) != h.internalKey {
		writeNoStoreHeaders(w)
		if h.metrics != nil {
			h.metrics.CredentialsRejected.WithLabelValues("operator_gated").Inc()
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.limiter.Allow(r.Context(), ratelimit.FormatKey(ratelimit.KeyTypeCredential, address), credentialRateLimit)
	if err != nil {
		writeNoStoreHeaders(w)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !result.Allowed {
		writeNoStoreHeaders(w)
		writeRetryAfter(w, result.RetryAfter)
		if h.metrics != nil {
			h.metrics.RateLimitRejections.WithLabelValues("credential").Inc()
		}
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	resp, err := h.credentials.Issue(address)
	if err != nil {
		logger.Warn("credential issuance failed", "error", err)
		writeNoStoreHeaders(w)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if h.metrics != nil {
		h.metrics.CredentialsIssued.Inc()
	}

	writeNoStoreHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"token":%q,"session":%q,"expires_in":%d}`, resp.Token, resp.Session, resp.ExpiresIn)
}

// Proxy implements the proxy-ingress path for /s/{sid} and /s/{sid}/{path...}.
func (h *Handler) Proxy(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())
	address := netaddr.Extract(r)
	sid := r.PathValue("sid")

	result, err := h.limiter.Allow(r.Context(), ratelimit.FormatKey(ratelimit.KeyTypeIngress, address), ingressRateLimit)
	if err != nil {
		writeNoStoreHeaders(w)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !result.Allowed {
		writeNoStoreHeaders(w)
		writeRetryAfter(w, result.RetryAfter)
		if h.metrics != nil {
			h.metrics.RateLimitRejections.WithLabelValues("ingress").Inc()
		}
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	upstreamPath := "/"
	if tail := r.PathValue("path"); tail != "" {
		upstreamPath = "/" + tail
	}
	uri := upstreamPath
	if r.URL.RawQuery != "" {
		uri += "?" + r.URL.RawQuery
	}

	sess, err := h.sessions.Get(sid)
	if err != nil {
		writeNoStoreHeaders(w)
		http.Error(w, "no tunnel client for session", http.StatusServiceUnavailable)
		return
	}
	sess.Touch()

	id := h.nextRequestID.Add(1)

	r.Body = http.MaxBytesReader(w, r.Body, maxProxyBodySize+1)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeNoStoreHeaders(w)
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeNoStoreHeaders(w)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if len(body) > maxProxyBodySize {
		writeNoStoreHeaders(w)
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	var headers frame.Headers
	for name, values := range r.Header {
		for _, v := range values {
			headers = headers.Add(name, v)
		}
	}
	headers = frame.FilterHopByHop(headers)

	bodyB64, isCompressed := frame.EncodeBody(body)

	req := frame.RequestEnvelope{
		Type:         frame.TypeProxyRequest,
		ID:           id,
		Method:       r.Method,
		URI:          uri,
		Headers:      headers,
		BodyB64:      bodyB64,
		IsCompressed: isCompressed,
	}

	slot := sess.AddPending(id)

	select {
	case sess.Outbound <- req:
	default:
		sess.RemovePending(id)
		writeNoStoreHeaders(w)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	var resp frame.ResponseEnvelope
	select {
	case got, ok := <-slot:
		if !ok {
			writeNoStoreHeaders(w)
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		resp = got
	case <-time.After(proxyAwaitTimeout):
		sess.RemovePending(id)
		writeNoStoreHeaders(w)
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
		return
	}

	respBody, err := frame.DecodeBody(resp.BodyB64, resp.IsCompressed)
	if err != nil {
		logger.Warn("malformed response body", "sid", sid, "id", id, "error", err)
	}

	for _, kv := range frame.FilterHopByHop(resp.Headers) {
		value := kv.Value
		if strings.EqualFold(kv.Name, "location") {
			value = rewriteLocation(value, sid)
		}
		w.Header().Add(kv.Name, value)
	}
	writeNoStoreHeaders(w)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(resp.Status)
	_, _ = w.Write(respBody)

	sess.AppendAccessLog(session.AccessLogEntry{
		Time:   time.Now(),
		Method: r.Method,
		Path:   uri,
		Status: resp.Status,
	})
}

// rewriteLocation confines a redirect Location value under /s/{sid}/,
// confining redirects to the session's prefix.
func rewriteLocation(value, sid string) string {
	prefix := "/s/" + sid + "/"

	if strings.HasPrefix(value, "/") {
		if strings.HasPrefix(value, prefix) {
			return value
		}
		return "/s/" + sid + "/" + strings.TrimPrefix(value, "/")
	}

	lower := strings.ToLower(value)
	var schemeLen int
	switch {
	case strings.HasPrefix(lower, "http://"):
		schemeLen = len("http://")
	case strings.HasPrefix(lower, "https://"):
		schemeLen = len("https://")
	default:
		return value
	}

	rest := value[schemeLen:]
	idx := strings.Index(rest, "/")
	if idx < 0 {
		return rewriteLocation("/", sid)
	}
	return rewriteLocation(rest[idx:], sid)
}

// NextRedirect implements the /_next/{path...} redirect heuristic: infer
// sid from the Referer header's /s/{sid}/ segment, else from the
// tunly_sid cookie, and 307-redirect under the sid's prefix.
func (h *Handler) NextRedirect(w http.ResponseWriter, r *http.Request) {
	sid := sidFromReferer(r.Header.Get("Referer"))
	if sid == "" {
		if c, err := r.Cookie(sessionCookieName); err == nil {
			sid = c.Value
		}
	}
	if sid == "" {
		http.NotFound(w, r)
		return
	}

	target := "/s/" + sid + "/_next/" + r.PathValue("path")
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func sidFromReferer(referer string) string {
	if referer == "" {
		return ""
	}
	idx := strings.Index(referer, "/s/")
	if idx < 0 {
		return ""
	}
	rest := referer[idx+len("/s/"):]
	if end := strings.IndexByte(rest, '/'); end >= 0 {
		return rest[:end]
	}
	return rest
}

// SessionLog renders the session's access-log ring buffer as HTML, a
// peripheral collaborator surface.
func (h *Handler) SessionLog(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")
	sess, err := h.sessions.Get(sid)
	if err != nil {
		http.Error(w, "no tunnel client for session", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	writeNoStoreHeaders(w)
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "<html><head><title>Tunly session %s</title></head><body>\n", html.EscapeString(sid))
	fmt.Fprintf(w, "<h1>Access log for %s</h1>\n<table>\n", html.EscapeString(sid))
	fmt.Fprintf(w, "<tr><th>Time</th><th>Method</th><th>Path</th><th>Status</th></tr>\n")
	for _, e := range sess.AccessLog() {
		fmt.Fprintf(w, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%d</td></tr>\n",
			html.EscapeString(e.Time.Format(time.RFC3339)),
			html.EscapeString(e.Method),
			html.EscapeString(e.Path),
			e.Status)
	}
	fmt.Fprintf(w, "</table>\n</body></html>\n")
}

// NotFound is the catch-all: this project exposes no admin UI.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	http.NotFound(w, r)
}
