package tokens

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// DefaultDuration is the lifetime stamped into every minted token.
const DefaultDuration = time.Hour

const keyInfo = "admin-session/v1"

var (
	ErrMissingSecret      = errors.New("tokens: signing secret is empty")
	ErrIncompleteIdentity = errors.New("tokens: identity fields must be non-empty")
	ErrInvalidToken       = errors.New("tokens: invalid session token")
	ErrSessionExpired     = errors.New("tokens: session expired")
)

// Identity is the principal a session is minted for.
type Identity struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func (i Identity) complete() bool {
	return i.UserID != "" && i.Username != "" && i.Email != "" && i.Role != ""
}

// SessionClaims is the decoded payload of a session token. It is never
// modified after minting; ExpiresAt is unix seconds.
type SessionClaims struct {
	UserID    string
	Username  string
	Email     string
	Role      string
	ExpiresAt int64
	IssuedAt  int64
	TokenID   string
}

// Identity returns the identity part of the claims.
func (c SessionClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Username: c.Username, Email: c.Email, Role: c.Role}
}

// wireClaims is the JWT payload layout.
type wireClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Codec mints and verifies HS256 session tokens. It holds no mutable state
// and is safe for concurrent use.
type Codec struct {
	key      []byte
	duration time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

type Option func(*Codec)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithDuration overrides the session lifetime.
func WithDuration(d time.Duration) Option {
	return func(c *Codec) { c.duration = d }
}

// NewCodec derives the HMAC key from secret with HKDF-SHA256.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("tokens: derive key: %w", err)
	}
	c := &Codec{
		key:      key,
		duration: DefaultDuration,
		now:      time.Now,
		// Expiry is checked separately by IsExpired, so claims validation is off here.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Duration returns the fixed session lifetime.
func (c *Codec) Duration() time.Duration { return c.duration }

// Mint signs a token for id expiring at now + duration.
func (c *Codec) Mint(id Identity) (string, SessionClaims, error) {
	if !id.complete() {
		return "", SessionClaims{}, ErrIncompleteIdentity
	}
	now := c.now().Truncate(time.Second)
	exp := now.Add(c.duration)
	wc := wireClaims{
		UserID:   id.UserID,
		Username: id.Username,
		Email:    id.Email,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wc).SignedString(c.key)
	if err != nil {
		return "", SessionClaims{}, fmt.Errorf("tokens: sign: %w", err)
	}
	return signed, toClaims(wc), nil
}

// Decode verifies the signature and parses the claims. It does not look at
// the expiry. Every failure wraps ErrInvalidToken.
func (c *Codec) Decode(token string) (SessionClaims, error) {
	if token == "" {
		return SessionClaims{}, ErrInvalidToken
	}
	var wc wireClaims
	parsed, err := c.parser.ParseWithClaims(token, &wc, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil {
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return SessionClaims{}, ErrInvalidToken
	}
	if wc.UserID == "" || wc.Username == "" || wc.Email == "" || wc.Role == "" || wc.ExpiresAt == nil {
		return SessionClaims{}, fmt.Errorf("%w: missing required claim", ErrInvalidToken)
	}
	return toClaims(wc), nil
}

// IsExpired reports now > ExpiresAt. A token is still valid during its final second.
func (c *Codec) IsExpired(claims SessionClaims) bool {
	return c.now().Unix() > claims.ExpiresAt
}

// Remaining is the time left before claims expire, never negative.
func (c *Codec) Remaining(claims SessionClaims) time.Duration {
	left := time.Unix(claims.ExpiresAt, 0).Sub(c.now())
	if left < 0 {
		return 0
	}
	return left
}

// Verify is Decode followed by IsExpired. An authentic but stale token
// returns the claims together with ErrSessionExpired.
func (c *Codec) Verify(token string) (SessionClaims, error) {
	claims, err := c.Decode(token)
	if err != nil {
		return SessionClaims{}, err
	}
	if c.IsExpired(claims) {
		return claims, ErrSessionExpired
	}
	return claims, nil
}

func toClaims(wc wireClaims) SessionClaims {
	sc := SessionClaims{
		UserID:   wc.UserID,
		Username: wc.Username,
		Email:    wc.Email,
		Role:     wc.Role,
		TokenID:  wc.ID,
	}
	if wc.ExpiresAt != nil {
		sc.ExpiresAt = wc.ExpiresAt.Unix()
	}
	if wc.IssuedAt != nil {
		sc.IssuedAt = wc.IssuedAt.Unix()
	}
	return sc
}
