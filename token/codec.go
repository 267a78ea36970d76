package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for any signature, structure, or expiry failure
	ErrInvalidToken = errors.New("invalid token")
)

// Kind distinguishes access tokens from refresh tokens. The two kinds use
// independently configured secrets and lifetimes.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Config holds signing configuration for the codec
type Config struct {
	AccessSecret  string
	RefreshSecret string // falls back to AccessSecret when empty
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Codec signs and verifies the HS256 tokens issued by this API.
// Configuration is immutable after construction, so a single Codec is safe
// for concurrent use.
type Codec struct {
	cfg Config
}

// NewCodec creates a Codec, applying the development defaults: the refresh
// secret falls back to the access secret, access tokens live 15 minutes and
// refresh tokens 7 days.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessSecret == "" {
		return nil, errors.New("access secret is required")
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.AccessSecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Codec{cfg: cfg}, nil
}

// Sign issues a token of the given kind carrying the payload claims plus
// iat/exp. Extra claims (notably the refresh jti, which is supplied by the
// caller and never generated here) are merged on top.
func (c *Codec) Sign(kind Kind, payload map[string]any, extra map[string]any) (string, error) {
	secret, ttl, err := c.params(kind)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	for k, v := range payload {
		claims[k] = v
	}
	for k, v := range extra {
		claims[k] = v
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify checks signature and expiry for a token of the given kind and
// returns its claims. Every failure mode wraps ErrInvalidToken.
func (c *Codec) Verify(kind Kind, tokenString string) (jwt.MapClaims, error) {
	secret, _, err := c.params(kind)
	if err != nil {
		return nil, err
	}

	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignAccess issues an access token for the payload
func (c *Codec) SignAccess(payload map[string]any) (string, error) {
	return c.Sign(KindAccess, payload, nil)
}

// SignRefresh issues a refresh token bound to the given session id
func (c *Codec) SignRefresh(payload map[string]any, jti string) (string, error) {
	return c.Sign(KindRefresh, payload, map[string]any{"jti": jti})
}

// VerifyAccess verifies an access token
func (c *Codec) VerifyAccess(tokenString string) (jwt.MapClaims, error) {
	return c.Verify(KindAccess, tokenString)
}

// VerifyRefresh verifies a refresh token
func (c *Codec) VerifyRefresh(tokenString string) (jwt.MapClaims, error) {
	return c.Verify(KindRefresh, tokenString)
}

// AccessTTL returns the configured access-token lifetime
func (c *Codec) AccessTTL() time.Duration {
	return c.cfg.AccessTTL
}

// RefreshTTL returns the configured refresh-token lifetime
func (c *Codec) RefreshTTL() time.Duration {
	return c.cfg.RefreshTTL
}

func (c *Codec) params(kind Kind) (secret string, ttl time.Duration, err error) {
	switch kind {
	case KindAccess:
		return c.cfg.AccessSecret, c.cfg.AccessTTL, nil
	case KindRefresh:
		return c.cfg.RefreshSecret, c.cfg.RefreshTTL, nil
	default:
		return "", 0, fmt.Errorf("unknown token kind %q", kind)
	}
}
