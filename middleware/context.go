package middleware

import (
	"context"

	"github.com/pandoralabs/pandora-api/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// PrincipalKey is the context key for the authenticated principal
	PrincipalKey contextKey = "principal"

	// BearerTokenKey is the context key for the raw bearer token
	BearerTokenKey contextKey = "bearer_token"
)

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetPrincipalFromContext retrieves the authenticated principal from context
func GetPrincipalFromContext(ctx context.Context) *models.Principal {
	if val := ctx.Value(PrincipalKey); val != nil {
		if p, ok := val.(*models.Principal); ok {
			return p
		}
	}
	return nil
}

// WithBearerToken adds the raw bearer token to the context
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, BearerTokenKey, token)
}

// GetBearerTokenFromContext retrieves the raw bearer token from context
func GetBearerTokenFromContext(ctx context.Context) string {
	if val := ctx.Value(BearerTokenKey); val != nil {
		if token, ok := val.(string); ok {
			return token
		}
	}
	return ""
}
