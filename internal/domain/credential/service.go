package credential

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/0xReLogic/Tunly/internal/domain/idgen"
)

// Errors returned by Issue and Validate; the HTTP adapter maps each to a
// status code.
var (
	// ErrModeDisabled is returned by Issue when the gateway is in fixed-token mode.
	ErrModeDisabled = errors.New("credential: issuance disabled in fixed-token mode")
	// ErrUnauthorized is returned by Validate for any validation failure:
	// missing token, bad signature/expiry, binding mismatch, or replay.
	ErrUnauthorized = errors.New("credential: unauthorized")
)

// Service issues and validates Tunly bearer credentials. It is process-wide
// state: one Service per gateway.
type Service struct {
	mode       Mode
	secret     []byte
	fixedToken string

	mu     sync.Mutex
	issued map[string]Issued
}

// NewService constructs a credential Service. In ModeFixed, fixedToken is
// the single static token compared for equality on every upgrade; secret
// is unused. In ModeEphemeral, secret signs and verifies issued tokens.
func NewService(mode Mode, secret []byte, fixedToken string) *Service {
	return &Service{
		mode:       mode,
		secret:     secret,
		fixedToken: fixedToken,
		issued:     make(map[string]Issued),
	}
}

// Mode reports the configured authorization mode.
func (s *Service) Mode() Mode {
	return s.mode
}

// Issue mints a fresh single-use credential bound to address. Returns
// ErrModeDisabled outside ephemeral mode.
func (s *Service) Issue(address string) (Response, error) {
	if s.mode != ModeEphemeral {
		return Response{}, ErrModeDisabled
	}

	sid, err := idgen.Generate()
	if err != nil {
		return Response{}, err
	}
	jti, err := idgen.Generate()
	if err != nil {
		return Response{}, err
	}

	now := time.Now()
	expiresAt := now.Add(TTL)

	claims := Claims{
		IP: address,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sid,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return Response{}, err
	}

	s.mu.Lock()
	s.issued[jti] = Issued{JTI: jti, Address: address, SID: sid, ExpiresAt: expiresAt}
	s.mu.Unlock()

	return Response{Token: signed, Session: sid, ExpiresIn: int(TTL.Seconds())}, nil
}

// Validate authorizes a duplex-channel upgrade for sid from address,
// presenting bearerToken. On success in ephemeral mode, the credential's
// jti is removed as part of the check (single use).
func (s *Service) Validate(bearerToken, sid, address string) error {
	if bearerToken == "" {
		return ErrUnauthorized
	}

	if s.mode == ModeFixed {
		if subtle.ConstantTimeCompare([]byte(bearerToken), []byte(s.fixedToken)) != 1 {
			return ErrUnauthorized
		}
		return nil
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(bearerToken, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return ErrUnauthorized
	}

	if claims.IP != address || claims.Subject != sid {
		return ErrUnauthorized
	}

	if !s.consume(claims.ID) {
		return ErrUnauthorized
	}
	return nil
}

// consume removes jti from the issued map if present, returning whether it
// was there. This is the single-use check's linearization point: a second
// concurrent Validate for the same jti can never both succeed.
func (s *Service) consume(jti string) bool {
	if jti == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issued[jti]; !ok {
		return false
	}
	delete(s.issued, jti)
	return true
}

// SweepExpired removes issued credentials past their expiry from the map,
// independent of the JWT's own exp enforcement on Validate. Returns the
// number of entries removed.
func (s *Service) SweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for jti, iss := range s.issued {
		if now.After(iss.ExpiresAt) {
			delete(s.issued, jti)
			removed++
		}
	}
	return removed
}

// RunExpiredSweep blocks, running SweepExpired every interval, until stop
// is closed. Intended to be launched in its own goroutine.
func (s *Service) RunExpiredSweep(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			s.SweepExpired(now)
		}
	}
}

// PendingCount returns the number of issued-but-unconsumed credentials.
// Used by tests and health checks.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.issued)
}
