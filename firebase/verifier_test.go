package firebase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProject = "pandora-test"

// testIssuer holds a generated RSA key plus an httptest server publishing
// the matching self-signed certificate the way Google does.
type testIssuer struct {
	key    *rsa.PrivateKey
	kid    string
	server *httptest.Server
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	pemCert := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))

	iss := &testIssuer{key: key, kid: "test-kid"}
	iss.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{iss.kid: pemCert})
	}))
	t.Cleanup(iss.server.Close)
	return iss
}

func (i *testIssuer) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = i.kid
	signed, err := tok.SignedString(i.key)
	require.NoError(t, err)
	return signed
}

func (i *testIssuer) defaultClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":       "https://securetoken.google.com/" + testProject,
		"aud":       testProject,
		"sub":       "firebase-uid-1",
		"user_id":   "firebase-uid-1",
		"email":     "someone@example.com",
		"name":      "Someone",
		"auth_time": now.Unix(),
		"iat":       now.Unix(),
		"exp":       now.Add(time.Hour).Unix(),
	}
}

func newTestClient(t *testing.T, iss *testIssuer, adminURL string, src TokenSource) *Client {
	t.Helper()
	client, err := NewClient(Config{
		ProjectID:   testProject,
		CertsURL:    iss.server.URL,
		AdminURL:    adminURL,
		TokenSource: src,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("missing project id fails fast", func(t *testing.T) {
		_, err := NewClient(Config{})
		assert.ErrorIs(t, err, ErrMisconfigured)
	})
}

func TestVerifyIDToken(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token yields its claims", func(t *testing.T) {
		iss := newTestIssuer(t)
		client := newTestClient(t, iss, "", nil)

		claims := iss.defaultClaims()
		claims["role"] = "admin"

		got, err := client.VerifyIDToken(ctx, iss.sign(t, claims), false)
		require.NoError(t, err)
		assert.Equal(t, "firebase-uid-1", got["sub"])
		assert.Equal(t, "someone@example.com", got["email"])
		assert.Equal(t, "admin", got["role"])
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		iss := newTestIssuer(t)
		client := newTestClient(t, iss, "", nil)

		claims := iss.defaultClaims()
		claims["exp"] = time.Now().Add(-time.Minute).Unix()

		_, err := client.VerifyIDToken(ctx, iss.sign(t, claims), false)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong issuer is rejected", func(t *testing.T) {
		iss := newTestIssuer(t)
		client := newTestClient(t, iss, "", nil)

		claims := iss.defaultClaims()
		claims["iss"] = "https://securetoken.google.com/another-project"

		_, err := client.VerifyIDToken(ctx, iss.sign(t, claims), false)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong audience is rejected", func(t *testing.T) {
		iss := newTestIssuer(t)
		client := newTestClient(t, iss, "", nil)

		claims := iss.defaultClaims()
		claims["aud"] = "another-project"

		_, err := client.VerifyIDToken(ctx, iss.sign(t, claims), false)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown kid is rejected", func(t *testing.T) {
		iss := newTestIssuer(t)
		client := newTestClient(t, iss, "", nil)

		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, iss.defaultClaims())
		tok.Header["kid"] = "other-kid"
		signed, err := tok.SignedString(iss.key)
		require.NoError(t, err)

		_, err = client.VerifyIDToken(ctx, signed, false)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("hs256 token cannot impersonate", func(t *testing.T) {
		iss := newTestIssuer(t)
		client := newTestClient(t, iss, "", nil)

		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, iss.defaultClaims())
		tok.Header["kid"] = iss.kid
		signed, err := tok.SignedString([]byte("guessable"))
		require.NoError(t, err)

		_, err = client.VerifyIDToken(ctx, signed, false)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("revoked token fails when checkRevoked is set", func(t *testing.T) {
		iss := newTestIssuer(t)

		// Directory reports every token older than now+1h as revoked.
		admin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"users": []map[string]any{{
					"localId":    "firebase-uid-1",
					"validSince": strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10),
				}},
			})
		}))
		t.Cleanup(admin.Close)

		client := newTestClient(t, iss, admin.URL, StaticTokenSource("admin-token"))

		_, err := client.VerifyIDToken(ctx, iss.sign(t, iss.defaultClaims()), true)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})
}
