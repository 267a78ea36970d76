package middleware

import (
	"context"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pandoralabs/pandora-api/firebase"
	"github.com/pandoralabs/pandora-api/models"
	"github.com/pandoralabs/pandora-api/token"
	"github.com/pandoralabs/pandora-api/utils"
)

// Verifier turns a bearer token into a principal. Implementations are tried
// in order by the auth middleware; the first success wins.
type Verifier interface {
	// Provider names the verification strategy ("local", "firebase")
	Provider() string

	// Verify validates the token and returns the principal it identifies
	Verify(ctx context.Context, bearer string) (*models.Principal, error)
}

// LocalVerifier verifies access tokens signed by this service
type LocalVerifier struct {
	codec *token.Codec
}

// NewLocalVerifier creates a verifier for locally signed access tokens
func NewLocalVerifier(codec *token.Codec) *LocalVerifier {
	return &LocalVerifier{codec: codec}
}

// Provider implements Verifier
func (v *LocalVerifier) Provider() string { return "local" }

// Verify implements Verifier. The principal carries the token payload
// verbatim in its claims.
func (v *LocalVerifier) Verify(ctx context.Context, bearer string) (*models.Principal, error) {
	claims, err := v.codec.VerifyAccess(bearer)
	if err != nil {
		return nil, err
	}

	id, _ := claims["id"].(string)
	email, _ := claims["email"].(string)

	return &models.Principal{
		ID:       id,
		Email:    email,
		Provider: v.Provider(),
		Claims:   claims,
	}, nil
}

// FirebaseVerifier verifies Firebase ID tokens
type FirebaseVerifier struct {
	client       *firebase.Client
	checkRevoked bool
}

// NewFirebaseVerifier creates a verifier for Firebase ID tokens. The revoked
// check adds a directory round trip per request and defaults off.
func NewFirebaseVerifier(client *firebase.Client, checkRevoked bool) *FirebaseVerifier {
	return &FirebaseVerifier{client: client, checkRevoked: checkRevoked}
}

// Provider implements Verifier
func (v *FirebaseVerifier) Provider() string { return "firebase" }

// Verify implements Verifier, mapping provider claims into the principal
// shape. Custom claims (role, roles, permissions, scope) pass through raw
// for the policy engine to normalize.
func (v *FirebaseVerifier) Verify(ctx context.Context, bearer string) (*models.Principal, error) {
	claims, err := v.client.VerifyIDToken(ctx, bearer, v.checkRevoked)
	if err != nil {
		return nil, err
	}

	id, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return &models.Principal{
		ID:       id,
		Email:    email,
		Name:     name,
		Provider: v.Provider(),
		Claims:   claims,
	}, nil
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	verifiers []Verifier
	logger    *zap.Logger
}

// NewAuthMiddleware creates an AuthMiddleware trying the given verifiers in
// order. Order is fixed at construction; the local verifier goes first when
// both are configured.
func NewAuthMiddleware(logger *zap.Logger, verifiers ...Verifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifiers: verifiers,
		logger:    logger,
	}
}

// RequireAuth is a middleware that requires a valid bearer token. Which
// verification path failed is never surfaced to the client.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := chimiddleware.GetReqID(ctx)

		bearer := ExtractBearerToken(r)
		if bearer == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authorization token missing")
			return
		}

		var principal *models.Principal
		for _, v := range m.verifiers {
			p, err := v.Verify(ctx, bearer)
			if err == nil {
				principal = p
				break
			}
			m.logger.Debug("verification failed",
				zap.String("request_id", requestID),
				zap.String("provider", v.Provider()),
				zap.Error(err))
		}

		if principal == nil {
			m.logger.Warn("token verification failed",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("user_id", principal.ID),
			zap.String("provider", principal.Provider))

		ctx = WithPrincipal(ctx, principal)
		ctx = WithBearerToken(ctx, bearer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ExtractBearerToken extracts the Bearer token from the Authorization header
func ExtractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
