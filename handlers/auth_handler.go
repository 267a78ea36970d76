package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/pandoralabs/pandora-api/middleware"
	"github.com/pandoralabs/pandora-api/services"
	"github.com/pandoralabs/pandora-api/utils"
)

// LoginRequest is the request body for POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the request body for POST /auth/refresh and
// POST /auth/logout. Token is the legacy field name for the refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	Token        string `json:"token"`
}

// AuthHandler handles login, refresh and logout requests
type AuthHandler struct {
	service *services.AuthService
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service *services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Email and password are required")
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	_ = utils.WriteOK(w, result)
}

// HandleRefresh handles POST /auth/refresh. The refresh token arrives as a
// bearer header or in the body as refreshToken or token; the header wins
// when both are present.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := middleware.ExtractBearerToken(r)
	if refreshToken == "" {
		refreshToken = h.refreshTokenFrom(r)
	}
	if refreshToken == "" {
		_ = utils.WriteBadRequest(w, "Refresh token is required")
		return
	}

	result, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	_ = utils.WriteOK(w, result)
}

// HandleLogout handles POST /auth/logout. A refresh token logs out a single
// session; a bearer-only request falls back to provider-level sign-out.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	refreshToken := h.refreshTokenFrom(r)
	bearer := middleware.ExtractBearerToken(r)

	if err := h.service.Logout(r.Context(), refreshToken, bearer); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	utils.WriteNoContent(w)
}

// refreshTokenFrom reads the refresh token from the JSON body, falling back
// to the Authorization header. A missing or malformed body is not an error
// here; the caller decides what an absent token means.
func (h *AuthHandler) refreshTokenFrom(r *http.Request) string {
	var req RefreshRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	if req.Token != "" {
		return req.Token
	}
	return ""
}
