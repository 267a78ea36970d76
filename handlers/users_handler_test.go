package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pandoralabs/pandora-api/firebase"
	"github.com/pandoralabs/pandora-api/middleware"
	"github.com/pandoralabs/pandora-api/models"
)

// MockDirectory is a mock implementation of UserDirectory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) ListUsers(ctx context.Context, maxResults int, pageToken string) (*firebase.ListUsersResult, error) {
	args := m.Called(ctx, maxResults, pageToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firebase.ListUsersResult), args.Error(1)
}

func (m *MockDirectory) GetUser(ctx context.Context, uid string) (*firebase.UserRecord, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firebase.UserRecord), args.Error(1)
}

func (m *MockDirectory) CreateUser(ctx context.Context, email, password string) (*firebase.UserRecord, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firebase.UserRecord), args.Error(1)
}

func (m *MockDirectory) UpdateUser(ctx context.Context, uid string, params firebase.UpdateUserParams) (*firebase.UserRecord, error) {
	args := m.Called(ctx, uid, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firebase.UserRecord), args.Error(1)
}

func (m *MockDirectory) DeleteUser(ctx context.Context, uid string) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

func (m *MockDirectory) SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error {
	args := m.Called(ctx, uid, claims)
	return args.Error(0)
}

func newUsersRouter(directory UserDirectory, caller *models.Principal) chi.Router {
	h := NewUsersHandler(directory, zap.NewNop())

	r := chi.NewRouter()
	if caller != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.WithPrincipal(req.Context(), caller)))
			})
		})
	}
	r.Get("/auth/users", h.HandleList)
	r.Post("/auth/users", h.HandleCreate)
	r.Put("/auth/users/{uid}", h.HandleUpdate)
	r.Delete("/auth/users/{uid}", h.HandleDelete)
	return r
}

func TestUsersHandlerList(t *testing.T) {
	t.Run("marks the calling user", func(t *testing.T) {
		directory := new(MockDirectory)
		directory.On("ListUsers", mock.Anything, 0, "").Return(&firebase.ListUsersResult{
			Users: []firebase.UserRecord{
				{UID: "uid-1", Email: "a@example.com"},
				{UID: "uid-2", Email: "b@example.com", CustomClaims: map[string]any{"role": "admin"}},
			},
		}, nil)

		router := newUsersRouter(directory, &models.Principal{ID: "uid-2"})
		w := doJSON(t, router, http.MethodGet, "/auth/users", nil)

		assert.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		users := body["users"].([]interface{})
		require.Len(t, users, 2)

		first := users[0].(map[string]interface{})
		second := users[1].(map[string]interface{})
		assert.Equal(t, false, first["currentActiveUser"])
		assert.Equal(t, true, second["currentActiveUser"])
		directory.AssertExpectations(t)
	})

	t.Run("passes pagination through", func(t *testing.T) {
		directory := new(MockDirectory)
		directory.On("ListUsers", mock.Anything, 50, "next-page").
			Return(&firebase.ListUsersResult{NextPageToken: "after"}, nil)

		router := newUsersRouter(directory, nil)
		w := doJSON(t, router, http.MethodGet, "/auth/users?maxResults=50&pageToken=next-page", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "after", decodeBody(t, w)["nextPageToken"])
	})

	t.Run("rejects malformed maxResults", func(t *testing.T) {
		directory := new(MockDirectory)
		router := newUsersRouter(directory, nil)

		w := doJSON(t, router, http.MethodGet, "/auth/users?maxResults=lots", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUsersHandlerCreate(t *testing.T) {
	t.Run("creates the account and sets claims", func(t *testing.T) {
		directory := new(MockDirectory)
		record := &firebase.UserRecord{UID: "uid-9", Email: "new@example.com"}
		directory.On("CreateUser", mock.Anything, "new@example.com", "secret123").Return(record, nil)
		directory.On("SetCustomClaims", mock.Anything, "uid-9", map[string]any{"role": "admin"}).Return(nil)

		router := newUsersRouter(directory, nil)
		w := doJSON(t, router, http.MethodPost, "/auth/users", CreateUserRequest{
			Email:    "new@example.com",
			Password: "secret123",
			Claims:   map[string]any{"role": "admin"},
		})

		assert.Equal(t, http.StatusCreated, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "uid-9", body["uid"])
		claims := body["customClaims"].(map[string]interface{})
		assert.Equal(t, "admin", claims["role"])
		directory.AssertExpectations(t)
	})

	t.Run("rejects a short password", func(t *testing.T) {
		directory := new(MockDirectory)
		router := newUsersRouter(directory, nil)

		w := doJSON(t, router, http.MethodPost, "/auth/users", CreateUserRequest{
			Email:    "new@example.com",
			Password: "abc",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		directory.AssertNotCalled(t, "CreateUser")
	})
}

func TestUsersHandlerUpdate(t *testing.T) {
	t.Run("merges claims and deletes nulled keys", func(t *testing.T) {
		directory := new(MockDirectory)
		directory.On("GetUser", mock.Anything, "uid-1").Return(&firebase.UserRecord{
			UID:          "uid-1",
			Email:        "a@example.com",
			CustomClaims: map[string]any{"role": "user", "beta": true},
		}, nil)
		directory.On("SetCustomClaims", mock.Anything, "uid-1",
			map[string]any{"role": "admin", "beta": true}).Return(nil)

		router := newUsersRouter(directory, nil)
		w := doJSON(t, router, http.MethodPut, "/auth/users/uid-1", map[string]any{
			"claims": map[string]any{"role": "admin"},
		})

		assert.Equal(t, http.StatusOK, w.Code)
		directory.AssertExpectations(t)
	})

	t.Run("null claim value removes the claim", func(t *testing.T) {
		directory := new(MockDirectory)
		directory.On("GetUser", mock.Anything, "uid-1").Return(&firebase.UserRecord{
			UID:          "uid-1",
			CustomClaims: map[string]any{"role": "user", "beta": true},
		}, nil)
		directory.On("SetCustomClaims", mock.Anything, "uid-1",
			map[string]any{"role": "user"}).Return(nil)

		router := newUsersRouter(directory, nil)
		w := doJSON(t, router, http.MethodPut, "/auth/users/uid-1", map[string]any{
			"claims": map[string]any{"beta": nil},
		})

		assert.Equal(t, http.StatusOK, w.Code)
		directory.AssertExpectations(t)
	})

	t.Run("updates email and password through the directory", func(t *testing.T) {
		directory := new(MockDirectory)
		email := "renamed@example.com"
		password := "newsecret"
		directory.On("GetUser", mock.Anything, "uid-1").
			Return(&firebase.UserRecord{UID: "uid-1", Email: "a@example.com"}, nil)
		directory.On("UpdateUser", mock.Anything, "uid-1",
			firebase.UpdateUserParams{Email: &email, Password: &password}).
			Return(&firebase.UserRecord{UID: "uid-1", Email: email}, nil)

		router := newUsersRouter(directory, nil)
		w := doJSON(t, router, http.MethodPut, "/auth/users/uid-1", map[string]any{
			"email":    email,
			"password": password,
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, email, decodeBody(t, w)["email"])
		directory.AssertExpectations(t)
	})

	t.Run("unknown uid returns 404", func(t *testing.T) {
		directory := new(MockDirectory)
		directory.On("GetUser", mock.Anything, "missing").Return(nil, firebase.ErrUserNotFound)

		router := newUsersRouter(directory, nil)
		w := doJSON(t, router, http.MethodPut, "/auth/users/missing", map[string]any{
			"claims": map[string]any{"role": "admin"},
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUsersHandlerDelete(t *testing.T) {
	t.Run("deletes and returns 204", func(t *testing.T) {
		directory := new(MockDirectory)
		directory.On("DeleteUser", mock.Anything, "uid-1").Return(nil)

		router := newUsersRouter(directory, nil)
		w := doJSON(t, router, http.MethodDelete, "/auth/users/uid-1", nil)

		assert.Equal(t, http.StatusNoContent, w.Code)
		directory.AssertExpectations(t)
	})

	t.Run("unknown uid returns 404", func(t *testing.T) {
		directory := new(MockDirectory)
		directory.On("DeleteUser", mock.Anything, "missing").Return(firebase.ErrUserNotFound)

		router := newUsersRouter(directory, nil)
		w := doJSON(t, router, http.MethodDelete, "/auth/users/missing", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
