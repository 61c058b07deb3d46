// Package httpgw upgrades the gateway's /ws endpoint into the
// agent-facing duplex frame channel.
package httpgw
