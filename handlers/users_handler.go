package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pandoralabs/pandora-api/firebase"
	"github.com/pandoralabs/pandora-api/middleware"
	"github.com/pandoralabs/pandora-api/utils"
)

// UserDirectory is the subset of the Firebase client the directory
// endpoints use.
type UserDirectory interface {
	ListUsers(ctx context.Context, maxResults int, pageToken string) (*firebase.ListUsersResult, error)
	GetUser(ctx context.Context, uid string) (*firebase.UserRecord, error)
	CreateUser(ctx context.Context, email, password string) (*firebase.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, params firebase.UpdateUserParams) (*firebase.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
	SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error
}

// DirectoryUser is the sanitized wire shape of a directory entry
type DirectoryUser struct {
	UID               string         `json:"uid"`
	Email             string         `json:"email"`
	DisplayName       string         `json:"displayName,omitempty"`
	Disabled          bool           `json:"disabled"`
	CustomClaims      map[string]any `json:"customClaims,omitempty"`
	CurrentActiveUser bool           `json:"currentActiveUser"`
}

// CreateUserRequest is the request body for POST /auth/users
type CreateUserRequest struct {
	Email    string         `json:"email" validate:"required,email"`
	Password string         `json:"password" validate:"required,min=6"`
	Claims   map[string]any `json:"claims"`
}

// UpdateUserRequest is the request body for PUT /auth/users/{uid}. A nil
// claim value deletes that claim; other claims merge over the existing set.
type UpdateUserRequest struct {
	Email    *string        `json:"email"`
	Password *string        `json:"password"`
	Claims   map[string]any `json:"claims"`
}

// UsersHandler exposes the external provider's user directory
type UsersHandler struct {
	directory UserDirectory
	logger    *zap.Logger
}

// NewUsersHandler creates a new UsersHandler
func NewUsersHandler(directory UserDirectory, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{
		directory: directory,
		logger:    logger,
	}
}

// HandleList handles GET /auth/users
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	maxResults := 0
	if raw := r.URL.Query().Get("maxResults"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid maxResults")
			return
		}
		maxResults = n
	}

	result, err := h.directory.ListUsers(r.Context(), maxResults, r.URL.Query().Get("pageToken"))
	if err != nil {
		h.writeDirectoryError(w, err)
		return
	}

	callerID := ""
	if p := middleware.GetPrincipalFromContext(r.Context()); p != nil {
		callerID = p.ID
	}

	users := make([]DirectoryUser, 0, len(result.Users))
	for i := range result.Users {
		users = append(users, sanitizeUser(&result.Users[i], callerID))
	}

	_ = utils.WriteOK(w, map[string]any{
		"users":         users,
		"nextPageToken": result.NextPageToken,
	})
}

// HandleCreate handles POST /auth/users
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Email and a password of at least 6 characters are required")
		return
	}

	record, err := h.directory.CreateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeDirectoryError(w, err)
		return
	}

	if len(req.Claims) > 0 {
		if err := h.directory.SetCustomClaims(r.Context(), record.UID, req.Claims); err != nil {
			h.writeDirectoryError(w, err)
			return
		}
		record.CustomClaims = req.Claims
	}

	h.logger.Info("directory user created", zap.String("uid", record.UID))
	user := sanitizeUser(record, "")
	_ = utils.WriteCreated(w, user)
}

// HandleUpdate handles PUT /auth/users/{uid}
func (h *UsersHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.Email != nil {
		if err := utils.ValidateEmail(*req.Email); err != nil {
			_ = utils.WriteBadRequest(w, "Invalid email")
			return
		}
	}

	record, err := h.directory.GetUser(r.Context(), uid)
	if err != nil {
		h.writeDirectoryError(w, err)
		return
	}

	if req.Email != nil || req.Password != nil {
		record, err = h.directory.UpdateUser(r.Context(), uid, firebase.UpdateUserParams{
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			h.writeDirectoryError(w, err)
			return
		}
	}

	if req.Claims != nil {
		merged := mergeClaims(record.CustomClaims, req.Claims)
		if err := h.directory.SetCustomClaims(r.Context(), uid, merged); err != nil {
			h.writeDirectoryError(w, err)
			return
		}
		record.CustomClaims = merged
	}

	callerID := ""
	if p := middleware.GetPrincipalFromContext(r.Context()); p != nil {
		callerID = p.ID
	}

	user := sanitizeUser(record, callerID)
	_ = utils.WriteOK(w, user)
}

// HandleDelete handles DELETE /auth/users/{uid}
func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	if err := h.directory.DeleteUser(r.Context(), uid); err != nil {
		h.writeDirectoryError(w, err)
		return
	}

	h.logger.Info("directory user deleted", zap.String("uid", uid))
	utils.WriteNoContent(w)
}

// mergeClaims applies updates over existing claims. A nil update value
// deletes the claim.
func mergeClaims(existing, updates map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(updates))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range updates {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}

func sanitizeUser(record *firebase.UserRecord, callerID string) DirectoryUser {
	return DirectoryUser{
		UID:               record.UID,
		Email:             record.Email,
		DisplayName:       record.DisplayName,
		Disabled:          record.Disabled,
		CustomClaims:      record.CustomClaims,
		CurrentActiveUser: callerID != "" && record.UID == callerID,
	}
}

func (h *UsersHandler) writeDirectoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, firebase.ErrUserNotFound):
		_ = utils.WriteNotFound(w, "User not found")
	case errors.Is(err, firebase.ErrMisconfigured):
		h.logger.Error("user directory not configured", zap.Error(err))
		_ = utils.WriteInternalServerError(w)
	default:
		h.logger.Error("user directory request failed", zap.Error(err))
		_ = utils.WriteInternalServerError(w)
	}
}
