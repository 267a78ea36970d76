// Package firebase is the adapter for the external identity provider. It
// verifies Firebase ID tokens against Google's published signing
// certificates and exposes the small slice of the user-directory REST API
// this service needs (list/create/update/delete users, custom claims,
// provider-level sign-out).
package firebase

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

var (
	// ErrInvalidToken is returned when an ID token fails verification
	ErrInvalidToken = errors.New("invalid id token")

	// ErrTokenExpired is returned when the ID token has expired
	ErrTokenExpired = errors.New("id token expired")

	// ErrTokenRevoked is returned when the token predates a server-side
	// refresh-token revocation for its user
	ErrTokenRevoked = errors.New("id token revoked")

	// ErrCertFetchFailed is returned when the signing certificates cannot
	// be fetched
	ErrCertFetchFailed = errors.New("failed to fetch signing certificates")

	// ErrMisconfigured is returned at construction when required provider
	// configuration is missing. This is fatal at startup, never a
	// per-request error.
	ErrMisconfigured = errors.New("firebase provider misconfigured")

	// ErrUserNotFound is returned by directory lookups for unknown uids
	ErrUserNotFound = errors.New("user not found")
)

const (
	defaultCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"
	defaultAdminURL = "https://identitytoolkit.googleapis.com/v1"
)

// Config holds configuration for the Firebase client
type Config struct {
	ProjectID   string
	CacheTTL    time.Duration
	HTTPTimeout time.Duration

	// TokenSource supplies OAuth2 bearer tokens for the admin REST API.
	// Verification works without it; directory operations and revocation
	// checks do not.
	TokenSource TokenSource

	// CertsURL and AdminURL exist for tests; zero values select the
	// production Google endpoints.
	CertsURL string
	AdminURL string
}

// Client verifies ID tokens and talks to the user-directory API
type Client struct {
	projectID   string
	certsURL    string
	adminURL    string
	tokenSource TokenSource
	httpClient  *http.Client

	// Cache for parsed signing certificates, keyed by kid
	certMu   sync.RWMutex
	certs    map[string]*rsa.PublicKey
	certsExp time.Time
	certsTTL time.Duration
}

// NewClient creates a Client. A missing project ID is a configuration error
// surfaced immediately so the process fails fast instead of rejecting every
// request at runtime.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("%w: project ID is required", ErrMisconfigured)
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.CertsURL == "" {
		cfg.CertsURL = defaultCertsURL
	}
	if cfg.AdminURL == "" {
		cfg.AdminURL = defaultAdminURL
	}

	return &Client{
		projectID:   cfg.ProjectID,
		certsURL:    cfg.CertsURL,
		adminURL:    cfg.AdminURL,
		tokenSource: cfg.TokenSource,
		certsTTL:    cfg.CacheTTL,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// ProjectID returns the configured project
func (c *Client) ProjectID() string {
	return c.projectID
}

// InvalidateCertCache drops the cached signing certificates (tests, forced refresh)
func (c *Client) InvalidateCertCache() {
	c.certMu.Lock()
	defer c.certMu.Unlock()
	c.certs = nil
	c.certsExp = time.Time{}
}
