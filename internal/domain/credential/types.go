// Package credential issues and validates the single-use, address-and-sid
// bound bearer tokens that authorize an agent to upgrade the duplex
// channel for a given session id.
package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TTL is how long an issued credential remains valid.
const TTL = 300 * time.Second

// Mode selects how the gateway authorizes duplex-channel upgrades.
type Mode int

const (
	// ModeEphemeral issues a fresh signed credential per /token request.
	ModeEphemeral Mode = iota
	// ModeFixed compares the upgrade bearer token against one static,
	// operator-configured token; the /token endpoint is disabled.
	ModeFixed
)

// Claims is the JWT payload signed by the gateway. Subject carries the
// bound sid, ID carries the single-use jti, and IP carries the bound
// client address; ExpiresAt is enforced by the jwt library on Validate.
type Claims struct {
	IP string `json:"ip"`
	jwt.RegisteredClaims
}

// Issued is a credential recorded at issuance time and consumed exactly
// once on successful validation.
type Issued struct {
	JTI       string
	Address   string
	SID       string
	ExpiresAt time.Time
}

// Response is the JSON body returned by the /token endpoint.
type Response struct {
	Token     string `json:"token"`
	Session   string `json:"session"`
	ExpiresIn int    `json:"expires_in"`
}
