// Package http provides the gateway's public HTTP surface: credential
// issuance, proxy ingress, the duplex-channel upgrade route, and the
// ambient health/metrics/redirect endpoints.
//
// # Endpoints
//
//	GET  /healthz        - liveness check
//	GET  /token           - credential issuance (ephemeral mode only)
//	GET  /ws?sid=...       - duplex-channel upgrade (see package httpgw)
//	ANY  /s/{sid}          - proxy ingress
//	ANY  /s/{sid}/{path...} - proxy ingress
//	GET  /s/{sid}/_log     - session access-log page (peripheral)
//	ANY  /_next/{path...}   - redirect heuristic (peripheral)
//	GET  /metrics          - Prometheus exposition format
//
// # Middleware chain
//
// Requests pass through, outermost first: MetricsMiddleware, then
// RequestIDMiddleware (enriches the context logger and echoes
// X-Request-ID), then the route handler. RealIPMiddleware-equivalent
// address extraction happens inline via internal/netaddr, since the
// extracted address is only needed by the handlers that rate-limit or
// bind credentials, not by every route.
package http
