package firebase

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyIDToken verifies a Firebase ID token and returns its claims. The
// token must be RS256-signed by one of Google's published securetoken
// certificates, issued by this project, and unexpired.
//
// When checkRevoked is true, the token's auth_time is additionally compared
// against the user's server-side tokensValidAfterTime; tokens minted before
// a RevokeRefreshTokens call fail with ErrTokenRevoked. The check costs a
// directory lookup per call, which is why it defaults off at the call sites.
func (c *Client) VerifyIDToken(ctx context.Context, idToken string, checkRevoked bool) (map[string]any, error) {
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, ok := t.Header["kid"].(string)
		if !ok {
			return nil, errors.New("kid header not found")
		}
		return c.signingKey(ctx, kid)
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}

	expectedIssuer := "https://securetoken.google.com/" + c.projectID
	if iss, _ := claims.GetIssuer(); iss != expectedIssuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, iss)
	}
	aud, _ := claims.GetAudience()
	if !containsAudience(aud, c.projectID) {
		return nil, fmt.Errorf("%w: unexpected audience", ErrInvalidToken)
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	if checkRevoked {
		if err := c.checkNotRevoked(ctx, sub, claims); err != nil {
			return nil, err
		}
	}

	return claims, nil
}

func (c *Client) checkNotRevoked(ctx context.Context, uid string, claims jwt.MapClaims) error {
	user, err := c.GetUser(ctx, uid)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if user.TokensValidAfter.IsZero() {
		return nil
	}
	authTime, ok := claims["auth_time"].(float64)
	if !ok {
		return fmt.Errorf("%w: missing auth_time", ErrInvalidToken)
	}
	if time.Unix(int64(authTime), 0).Before(user.TokensValidAfter) {
		return ErrTokenRevoked
	}
	return nil
}

// signingKey returns the parsed public key for a kid, refreshing the
// certificate cache when stale.
func (c *Client) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.certMu.RLock()
	if c.certs != nil && time.Now().Before(c.certsExp) {
		key, ok := c.certs[kid]
		c.certMu.RUnlock()
		if ok {
			return key, nil
		}
	} else {
		c.certMu.RUnlock()
	}

	certs, err := c.fetchCerts(ctx)
	if err != nil {
		return nil, err
	}

	key, ok := certs[kid]
	if !ok {
		return nil, fmt.Errorf("signing certificate for kid %q not found", kid)
	}
	return key, nil
}

// fetchCerts downloads and parses Google's securetoken certificates, a JSON
// object of kid → PEM-encoded X.509 certificate, and refreshes the cache.
func (c *Client) fetchCerts(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.certsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create certs request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrCertFetchFailed, resp.StatusCode)
	}

	var raw map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode certificates: %w", err)
	}

	certs := make(map[string]*rsa.PublicKey, len(raw))
	for kid, pemCert := range raw {
		key, err := parseCertPublicKey(pemCert)
		if err != nil {
			return nil, fmt.Errorf("parse certificate for kid %q: %w", kid, err)
		}
		certs[kid] = key
	}

	c.certMu.Lock()
	c.certs = certs
	c.certsExp = time.Now().Add(c.certsTTL)
	c.certMu.Unlock()

	return certs, nil
}

func parseCertPublicKey(pemCert string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemCert))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("certificate does not carry an RSA public key")
	}
	return key, nil
}

func containsAudience(audiences jwt.ClaimStrings, projectID string) bool {
	for _, aud := range audiences {
		if aud == projectID {
			return true
		}
	}
	return false
}
