package services

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pandoralabs/pandora-api/models"
	"github.com/pandoralabs/pandora-api/repositories"
	"github.com/pandoralabs/pandora-api/session"
	"github.com/pandoralabs/pandora-api/token"
)

// AuthResult represents a successful login or refresh. Token duplicates
// AccessToken for backward compatibility with older clients.
type AuthResult struct {
	Token        string              `json:"token"`
	AccessToken  string              `json:"accessToken"`
	RefreshToken string              `json:"refreshToken"`
	User         models.TokenPayload `json:"user"`
}

// FirebaseRevoker is the subset of the Firebase client used for global
// sign-out on logout.
type FirebaseRevoker interface {
	VerifyIDToken(ctx context.Context, idToken string, checkRevoked bool) (map[string]any, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// AuthService orchestrates login, token refresh and logout
type AuthService struct {
	users    repositories.UserRepository
	sessions session.Store
	codec    *token.Codec
	firebase FirebaseRevoker
	logger   *zap.Logger
}

// NewAuthService creates a new auth service. The firebase revoker may be nil
// when no external identity provider is configured.
func NewAuthService(users repositories.UserRepository, sessions session.Store, codec *token.Codec, fb FirebaseRevoker, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		codec:    codec,
		firebase: fb,
		logger:   logger,
	}
}

// Login verifies credentials and issues a fresh access/refresh token pair
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, ErrEmailPasswordRequired
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == repositories.ErrNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, NewDomainError(ErrorTypeInternal, "failed to look up user", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	result, err := s.issue(ctx, user.Payload(), nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return result, nil
}

// Refresh rotates a refresh session: the presented token's session is revoked
// and a new pair is issued. Reuse of an already-rotated token revokes every
// session for that user and fails with a generic unauthenticated error.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrRefreshTokenRequired
	}

	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	payload := models.TokenPayload{
		ID:    strClaim(claims, "id"),
		Email: strClaim(claims, "email"),
		Role:  strClaim(claims, "role"),
	}
	jti := strClaim(claims, "jti")
	if payload.ID == "" || jti == "" {
		return nil, ErrInvalidToken
	}

	won, err := s.sessions.Revoke(ctx, payload.ID, jti)
	if err != nil {
		return nil, NewDomainError(ErrorTypeInternal, "failed to revoke session", err)
	}
	if !won {
		// Replay of a rotated token. Revoke everything for this user but
		// report only a generic failure to the client.
		s.logger.Warn("refresh token replay detected, revoking all sessions",
			zap.String("user_id", payload.ID))
		if err := s.sessions.RevokeAll(ctx, payload.ID); err != nil {
			s.logger.Error("failed to revoke sessions after replay",
				zap.String("user_id", payload.ID), zap.Error(err))
		}
		return nil, ErrInvalidToken
	}

	// Reissue every claim of the presented token except the per-token
	// registered ones; the new pair gets fresh values for those.
	reissued := make(map[string]interface{}, len(claims))
	for name, value := range claims {
		switch name {
		case "iat", "exp", "nbf", "jti":
		default:
			reissued[name] = value
		}
	}

	result, err := s.issue(ctx, payload, reissued)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("refresh token rotated", zap.String("user_id", payload.ID))
	return result, nil
}

// Logout revokes the session of the presented refresh token. A token that is
// not one of our refresh tokens is tried as a Firebase ID token, revoking all
// of the subject's provider refresh tokens. With nothing to revoke it fails
// with a bad request error.
func (s *AuthService) Logout(ctx context.Context, refreshToken, bearerToken string) error {
	// The refresh token may arrive as the bearer header or in the body;
	// the header wins when both are present.
	logoutToken := bearerToken
	if logoutToken == "" {
		logoutToken = refreshToken
	}
	if logoutToken == "" {
		return ErrNothingToRevoke
	}

	if claims, err := s.codec.VerifyRefresh(logoutToken); err == nil {
		userID := strClaim(claims, "id")
		jti := strClaim(claims, "jti")
		if userID == "" || jti == "" {
			return ErrInvalidToken
		}
		if _, err := s.sessions.Revoke(ctx, userID, jti); err != nil {
			return NewDomainError(ErrorTypeInternal, "failed to revoke session", err)
		}
		s.logger.Info("user logged out", zap.String("user_id", userID))
		return nil
	}

	// Not one of our refresh tokens. Try it as a provider ID token for a
	// provider-level global sign-out.
	if s.firebase != nil {
		claims, err := s.firebase.VerifyIDToken(ctx, logoutToken, false)
		if err != nil {
			return ErrInvalidToken
		}
		uid, _ := claims["sub"].(string)
		if uid == "" {
			return ErrInvalidToken
		}
		if err := s.firebase.RevokeRefreshTokens(ctx, uid); err != nil {
			return NewDomainError(ErrorTypeInternal, "failed to revoke provider tokens", err)
		}
		s.logger.Info("provider sessions revoked", zap.String("uid", uid))
		return nil
	}

	return ErrInvalidToken
}

// issue creates a new refresh session and signs a token pair for the payload.
// Extra claims carried over from a rotated token ride along; the payload
// fields always win.
func (s *AuthService) issue(ctx context.Context, payload models.TokenPayload, extra map[string]interface{}) (*AuthResult, error) {
	sessionID, err := s.sessions.Create(ctx, payload.ID)
	if err != nil {
		return nil, NewDomainError(ErrorTypeInternal, "failed to create session", err)
	}

	claims := make(map[string]interface{}, len(extra)+3)
	for name, value := range extra {
		claims[name] = value
	}
	claims["id"] = payload.ID
	claims["email"] = payload.Email
	claims["role"] = payload.Role

	accessToken, err := s.codec.SignAccess(claims)
	if err != nil {
		return nil, NewDomainError(ErrorTypeInternal, "failed to sign access token", err)
	}

	refreshToken, err := s.codec.SignRefresh(claims, sessionID)
	if err != nil {
		return nil, NewDomainError(ErrorTypeInternal, "failed to sign refresh token", err)
	}

	return &AuthResult{
		Token:        accessToken,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         payload,
	}, nil
}

func strClaim(claims map[string]interface{}, name string) string {
	v, ok := claims[name].(string)
	if !ok {
		return ""
	}
	return v
}
