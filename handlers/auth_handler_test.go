package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pandoralabs/pandora-api/repositories"
	"github.com/pandoralabs/pandora-api/services"
	"github.com/pandoralabs/pandora-api/session"
	"github.com/pandoralabs/pandora-api/token"
)

func newTestAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()

	users, err := repositories.NewMemoryUserRepository(repositories.DefaultSeedUsers())
	require.NoError(t, err)

	codec, err := token.NewCodec(token.Config{AccessSecret: "test-secret"})
	require.NoError(t, err)

	svc := services.NewAuthService(users, session.NewMemoryStore(3), codec, nil, zap.NewNop())
	return NewAuthHandler(svc, zap.NewNop())
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestHandleLogin(t *testing.T) {
	t.Run("valid credentials return the token pair", func(t *testing.T) {
		h := newTestAuthHandler(t)

		w := postJSON(t, h.HandleLogin, "/auth/login", LoginRequest{
			Email:    "test@example.com",
			Password: "password",
		})

		assert.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.NotEmpty(t, body["accessToken"])
		assert.NotEmpty(t, body["refreshToken"])
		assert.Equal(t, body["accessToken"], body["token"])

		user := body["user"].(map[string]interface{})
		assert.Equal(t, "test@example.com", user["email"])
		assert.Equal(t, "user", user["role"])
	})

	t.Run("missing fields return 400", func(t *testing.T) {
		h := newTestAuthHandler(t)

		w := postJSON(t, h.HandleLogin, "/auth/login", LoginRequest{Email: "test@example.com"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Email and password are required", decodeBody(t, w)["error"])
	})

	t.Run("wrong password returns 401", func(t *testing.T) {
		h := newTestAuthHandler(t)

		w := postJSON(t, h.HandleLogin, "/auth/login", LoginRequest{
			Email:    "test@example.com",
			Password: "wrong",
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid email or password", decodeBody(t, w)["error"])
	})
}

func TestHandleRefresh(t *testing.T) {
	t.Run("body refresh token rotates the pair", func(t *testing.T) {
		h := newTestAuthHandler(t)

		login := postJSON(t, h.HandleLogin, "/auth/login", LoginRequest{
			Email:    "test@example.com",
			Password: "password",
		})
		require.Equal(t, http.StatusOK, login.Code)
		refreshToken := decodeBody(t, login)["refreshToken"].(string)

		w := postJSON(t, h.HandleRefresh, "/auth/refresh", RefreshRequest{RefreshToken: refreshToken})

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.NotEmpty(t, body["accessToken"])
		assert.NotEqual(t, refreshToken, body["refreshToken"])
	})

	t.Run("legacy token field works", func(t *testing.T) {
		h := newTestAuthHandler(t)

		login := postJSON(t, h.HandleLogin, "/auth/login", LoginRequest{
			Email:    "test@example.com",
			Password: "password",
		})
		refreshToken := decodeBody(t, login)["refreshToken"].(string)

		w := postJSON(t, h.HandleRefresh, "/auth/refresh", RefreshRequest{Token: refreshToken})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("bearer header works", func(t *testing.T) {
		h := newTestAuthHandler(t)

		login := postJSON(t, h.HandleLogin, "/auth/login", LoginRequest{
			Email:    "test@example.com",
			Password: "password",
		})
		refreshToken := decodeBody(t, login)["refreshToken"].(string)

		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.Header.Set("Authorization", "Bearer "+refreshToken)
		w := httptest.NewRecorder()
		h.HandleRefresh(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("bearer header wins over body token", func(t *testing.T) {
		h := newTestAuthHandler(t)

		login := postJSON(t, h.HandleLogin, "/auth/login", LoginRequest{
			Email:    "test@example.com",
			Password: "password",
		})
		refreshToken := decodeBody(t, login)["refreshToken"].(string)

		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(RefreshRequest{RefreshToken: "garbage"}))
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+refreshToken)
		w := httptest.NewRecorder()
		h.HandleRefresh(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("no token returns 400", func(t *testing.T) {
		h := newTestAuthHandler(t)

		w := postJSON(t, h.HandleRefresh, "/auth/refresh", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Refresh token is required", decodeBody(t, w)["error"])
	})

	t.Run("replayed token returns generic 401", func(t *testing.T) {
		h := newTestAuthHandler(t)

		login := postJSON(t, h.HandleLogin, "/auth/login", LoginRequest{
			Email:    "test@example.com",
			Password: "password",
		})
		refreshToken := decodeBody(t, login)["refreshToken"].(string)

		first := postJSON(t, h.HandleRefresh, "/auth/refresh", RefreshRequest{RefreshToken: refreshToken})
		require.Equal(t, http.StatusOK, first.Code)

		second := postJSON(t, h.HandleRefresh, "/auth/refresh", RefreshRequest{RefreshToken: refreshToken})
		assert.Equal(t, http.StatusUnauthorized, second.Code)
		assert.Equal(t, "Invalid or expired token", decodeBody(t, second)["error"])
	})
}

func TestHandleLogout(t *testing.T) {
	t.Run("refresh token logout returns 204", func(t *testing.T) {
		h := newTestAuthHandler(t)

		login := postJSON(t, h.HandleLogin, "/auth/login", LoginRequest{
			Email:    "test@example.com",
			Password: "password",
		})
		refreshToken := decodeBody(t, login)["refreshToken"].(string)

		w := postJSON(t, h.HandleLogout, "/auth/logout", RefreshRequest{RefreshToken: refreshToken})
		assert.Equal(t, http.StatusNoContent, w.Code)

		// The revoked session cannot be refreshed again.
		refresh := postJSON(t, h.HandleRefresh, "/auth/refresh", RefreshRequest{RefreshToken: refreshToken})
		assert.Equal(t, http.StatusUnauthorized, refresh.Code)
	})

	t.Run("bearer header logout returns 204", func(t *testing.T) {
		h := newTestAuthHandler(t)

		login := postJSON(t, h.HandleLogin, "/auth/login", LoginRequest{
			Email:    "test@example.com",
			Password: "password",
		})
		refreshToken := decodeBody(t, login)["refreshToken"].(string)

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer "+refreshToken)
		w := httptest.NewRecorder()
		h.HandleLogout(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)

		refresh := postJSON(t, h.HandleRefresh, "/auth/refresh", RefreshRequest{RefreshToken: refreshToken})
		assert.Equal(t, http.StatusUnauthorized, refresh.Code)
	})

	t.Run("invalid refresh token returns 401", func(t *testing.T) {
		h := newTestAuthHandler(t)

		w := postJSON(t, h.HandleLogout, "/auth/logout", RefreshRequest{RefreshToken: "garbage"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no token returns 400", func(t *testing.T) {
		h := newTestAuthHandler(t)

		w := postJSON(t, h.HandleLogout, "/auth/logout", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
