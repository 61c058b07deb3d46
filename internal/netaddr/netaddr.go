// Package netaddr extracts the client network address used for rate
// limiting and credential binding throughout the gateway.
package netaddr

import (
	"net"
	"net/http"
	"strings"
)

// forwardingHeader is the single forwarding header the gateway trusts.
const forwardingHeader = "X-Forwarded-For"

// Extract returns the client address to bind rate limits and credentials
// to: the first entry of X-Forwarded-For if present, else the request's
// transport peer address with any port stripped.
func Extract(r *http.Request) string {
	if xff := r.Header.Get(forwardingHeader); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
