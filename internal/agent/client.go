// Package agent implements the tunly-agent reconnect loop: it dials a
// gateway's duplex websocket endpoint, authenticates with a bearer
// credential, and dispatches each inbound request envelope to a local
// HTTP target.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xReLogic/Tunly/internal/domain/idgen"
)

const (
	// outboundCapacity bounds the agent's single-writer outbound queue:
	// every response envelope and heartbeat ping passes through this
	// channel. Pongs are written by gorilla/websocket's default ping handler.
	outboundCapacity = 64

	heartbeatInterval = 20 * time.Second
	controlWriteWait  = 5 * time.Second
	handshakeTimeout  = 15 * time.Second

	maxBackoffExp = 4
	maxBackoff    = 15 * time.Second
)

// Client operates one agent's reconnect loop against a single gateway.
type Client struct {
	RemoteHost string
	Local      string
	UseWSS     bool
	Path       string
	TokenURL   string

	logger     *slog.Logger
	httpClient *http.Client
	stdin      *os.File

	mu    sync.Mutex
	token string
	sid   string
}

// NewClient constructs an agent Client. token is a pre-provisioned fixed
// credential used when tokenURL is empty; it may be "" to force the
// interactive prompt.
func NewClient(remoteHost, local string, useWSS bool, path, tokenURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		RemoteHost: remoteHost,
		Local:      local,
		UseWSS:     useWSS,
		Path:       path,
		TokenURL:   tokenURL,
		token:      token,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		stdin:      os.Stdin,
	}
}

type outcomeKind int

const (
	outcomeDisconnected outcomeKind = iota
	outcomeUnauthorized
	outcomeUpgradeFailed
)

type connectResult struct {
	kind outcomeKind
	err  error
}

// Run blocks, reconnecting with exponential backoff capped at 15s,
// until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result := c.connectOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch result.kind {
		case outcomeUnauthorized:
			c.logger.Warn("credential rejected, clearing and retrying", "error", result.err)
			c.mu.Lock()
			c.token = ""
			c.mu.Unlock()
			attempt = 0
			c.regenerateSID()

		case outcomeUpgradeFailed:
			delay := backoffDelay(attempt)
			attempt++
			c.regenerateSID()
			c.logger.Warn("upgrade failed, retrying", "delay", delay, "error", result.err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

		case outcomeDisconnected:
			attempt = 0
			c.regenerateSID()
		}
	}
}

// backoffDelay computes min(2^min(attempt,4), 15) seconds.
func backoffDelay(attempt int) time.Duration {
	exp := attempt
	if exp > maxBackoffExp {
		exp = maxBackoffExp
	}
	d := time.Duration(1<<uint(exp)) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func (c *Client) regenerateSID() {
	sid, err := idgen.Generate()
	if err != nil {
		c.logger.Error("failed to generate session id", "error", err)
		return
	}
	c.mu.Lock()
	c.sid = sid
	c.mu.Unlock()
}

// connectOnce performs one full connection lifecycle: credential
// acquisition, upgrade, and duplex operation until the connection ends.
func (c *Client) connectOnce(ctx context.Context) connectResult {
	if c.TokenURL != "" {
		token, sid, expiresIn, err := c.fetchToken(ctx)
		if err != nil {
			c.logger.Warn("token fetch failed", "error", err)
		} else if token != "" {
			c.mu.Lock()
			c.token = token
			if sid != "" {
				c.sid = sid
			}
			c.mu.Unlock()
			if expiresIn > 0 {
				c.logger.Info("credential fetched", "expires_in", expiresIn)
			}
		}
	}

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		prompted, err := c.promptForToken(c.stdin)
		if err != nil || prompted == "" {
			return connectResult{kind: outcomeUpgradeFailed, err: errors.New("no credential available")}
		}
		c.mu.Lock()
		c.token = prompted
		c.mu.Unlock()
		token = prompted
	}

	c.mu.Lock()
	if c.sid == "" {
		sid, err := idgen.Generate()
		if err != nil {
			c.mu.Unlock()
			return connectResult{kind: outcomeUpgradeFailed, err: err}
		}
		c.sid = sid
	}
	sid := c.sid
	c.mu.Unlock()

	conn, resp, err := c.dial(ctx, token, sid)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return connectResult{kind: outcomeUnauthorized, err: err}
		}
		return connectResult{kind: outcomeUpgradeFailed, err: err}
	}
	defer conn.Close()

	scheme := "http"
	if c.UseWSS {
		scheme = "https"
	}
	c.logger.Info("tunnel established",
		"public_url", fmt.Sprintf("%s://%s/s/%s/", scheme, c.RemoteHost, sid))

	c.serve(ctx, conn)
	return connectResult{kind: outcomeDisconnected}
}

// dial performs the duplex-channel upgrade handshake.
func (c *Client) dial(ctx context.Context, token, sid string) (*websocket.Conn, *http.Response, error) {
	scheme := "ws"
	if c.UseWSS {
		scheme = "wss"
	}
	target := url.URL{
		Scheme:   scheme,
		Host:     c.RemoteHost,
		Path:     c.Path,
		RawQuery: "sid=" + url.QueryEscape(sid),
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	// gorilla/websocket refuses a caller-supplied Sec-WebSocket-Extensions
	// header; EnableCompression makes the dialer offer permessage-deflate.
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout, EnableCompression: true}
	return dialer.DialContext(ctx, target.String(), header)
}

// serve spawns the writer and heartbeat tasks and runs the read loop
// until the connection closes or errors.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	outbound := make(chan wireMessage, outboundCapacity)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); c.writeLoop(conn, outbound, done) }()
	go func() { defer wg.Done(); c.heartbeatLoop(outbound, done) }()

	closeOnCancel := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-closeOnCancel:
		}
	}()

	c.readLoop(conn, outbound)

	close(done)
	close(closeOnCancel)
	wg.Wait()
}
