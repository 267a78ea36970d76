package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pandoralabs/pandora-api/app"
	"github.com/pandoralabs/pandora-api/config"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{
		Auth: config.AuthConfig{
			Mode:         config.ModeLocal,
			AccessSecret: "test-secret",
			AccessTTL:    15 * time.Minute,
			RefreshTTL:   168 * time.Hour,
		},
		Session: config.SessionConfig{MaxPerUser: 3},
	}

	deps, err := app.NewDependencies(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close(context.Background()) })

	return SetupRoutes(deps)
}

func do(t *testing.T, router http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func login(t *testing.T, router http.Handler, email, password string) map[string]any {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	return decode(t, rec)
}

func TestLoginAndListProducts(t *testing.T) {
	router := newTestRouter(t)

	result := login(t, router, "test@example.com", "password")
	assert.NotEmpty(t, result["accessToken"])
	assert.NotEmpty(t, result["refreshToken"])
	assert.Equal(t, result["token"], result["accessToken"])

	user := result["user"].(map[string]any)
	assert.Equal(t, "test@example.com", user["email"])
	assert.Equal(t, "user", user["role"])

	rec := do(t, router, http.MethodGet, "/api/products", result["accessToken"].(string), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProductsRequireToken(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authorization token missing", decode(t, rec)["error"])

	rec = do(t, router, http.MethodGet, "/api/products", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired token", decode(t, rec)["error"])
}

func TestProductWritesRequireAdmin(t *testing.T) {
	router := newTestRouter(t)

	userToken := login(t, router, "test@example.com", "password")["accessToken"].(string)
	adminToken := login(t, router, "admin@example.com", "password")["accessToken"].(string)

	body := map[string]any{"name": "Gadget", "price": 9.99}

	rec := do(t, router, http.MethodPost, "/api/products", userToken, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", decode(t, rec)["error"])

	rec = do(t, router, http.MethodPost, "/api/products", adminToken, body)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRefreshRotation(t *testing.T) {
	router := newTestRouter(t)

	refresh := login(t, router, "test@example.com", "password")["refreshToken"].(string)

	rec := do(t, router, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode(t, rec)["refreshToken"].(string)
	assert.NotEqual(t, refresh, rotated)

	// Replaying the consumed token revokes the whole family.
	rec = do(t, router, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired token", decode(t, rec)["error"])

	rec = do(t, router, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": rotated})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRequiresToken(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/auth/refresh", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Refresh token is required", decode(t, rec)["error"])
}

func TestLogoutFlow(t *testing.T) {
	router := newTestRouter(t)

	refresh := login(t, router, "test@example.com", "password")["refreshToken"].(string)

	rec := do(t, router, http.MethodPost, "/auth/logout", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutViaBearerHeader(t *testing.T) {
	router := newTestRouter(t)

	refresh := login(t, router, "test@example.com", "password")["refreshToken"].(string)

	rec := do(t, router, http.MethodPost, "/auth/logout", refresh, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthAndNotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "endpoint not found", decode(t, rec)["error"])
}
