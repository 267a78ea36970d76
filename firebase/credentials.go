package firebase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	oauthScope = "https://www.googleapis.com/auth/identitytoolkit"

	// Google caps assertion lifetimes at one hour
	assertionTTL = time.Hour
)

// ServiceAccount is the parsed service-account key file
type ServiceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	ProjectID   string `json:"project_id"`
	TokenURI    string `json:"token_uri"`
}

// LoadServiceAccount reads a service-account key from, in order of
// preference, a file path or an inline JSON blob. Private keys stored in
// env vars commonly arrive with literal \n sequences; those are unescaped.
func LoadServiceAccount(path, inlineJSON string) (*ServiceAccount, error) {
	var raw []byte
	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		raw = data
	case inlineJSON != "":
		raw = []byte(inlineJSON)
	default:
		return nil, fmt.Errorf("%w: no service account credentials provided", ErrMisconfigured)
	}

	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, fmt.Errorf("%w: service account missing client_email or private_key", ErrMisconfigured)
	}
	sa.PrivateKey = strings.ReplaceAll(sa.PrivateKey, `\n`, "\n")
	if sa.TokenURI == "" {
		sa.TokenURI = "https://oauth2.googleapis.com/token"
	}
	return &sa, nil
}

// serviceAccountTokenSource exchanges a signed JWT assertion for an OAuth2
// access token and caches it until shortly before expiry.
type serviceAccountTokenSource struct {
	account    *ServiceAccount
	httpClient *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewServiceAccountTokenSource builds a TokenSource from a service account.
// The private key is parsed eagerly so a bad key fails at startup.
func NewServiceAccountTokenSource(sa *ServiceAccount, timeout time.Duration) (TokenSource, error) {
	if _, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey)); err != nil {
		return nil, fmt.Errorf("%w: invalid service account private key: %v", ErrMisconfigured, err)
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &serviceAccountTokenSource{
		account:    sa,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Token implements TokenSource
func (s *serviceAccountTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expires) {
		return s.token, nil
	}

	assertion, err := s.signAssertion()
	if err != nil {
		return "", err
	}

	data := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.account.TokenURI, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("no access_token in response")
	}

	s.token = tokenResp.AccessToken
	// Refresh a minute early to avoid using a token at the edge of expiry.
	s.expires = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - time.Minute)
	return s.token, nil
}

func (s *serviceAccountTokenSource) signAssertion() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(s.account.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   s.account.ClientEmail,
		"scope": oauthScope,
		"aud":   s.account.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}

// StaticTokenSource returns a TokenSource that always yields the given
// token. Intended for tests and emulator setups.
func StaticTokenSource(token string) TokenSource {
	return staticTokenSource(token)
}

type staticTokenSource string

func (s staticTokenSource) Token(context.Context) (string, error) {
	return string(s), nil
}
