package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pandoralabs/pandora-api/app"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/", deps.HealthHandler.HandleHealth)
	r.Get("/health/ready", deps.HealthHandler.HandleReadiness)

	// Auth endpoints
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", deps.AuthHandler.HandleLogin)
		r.Post("/refresh", deps.AuthHandler.HandleRefresh)
		r.Post("/logout", deps.AuthHandler.HandleLogout)

		// Directory management is only mounted when a provider with
		// admin credentials is configured.
		if deps.UsersHandler != nil {
			r.Route("/users", func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireAuth)
				r.Use(deps.PolicyMiddleware.RequireRole("admin"))
				r.Get("/", deps.UsersHandler.HandleList)
				r.Post("/", deps.UsersHandler.HandleCreate)
				r.Put("/{uid}", deps.UsersHandler.HandleUpdate)
				r.Delete("/{uid}", deps.UsersHandler.HandleDelete)
			})
		}
	})

	// Product catalog
	r.Route("/api/products", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		r.Group(func(r chi.Router) {
			r.Use(deps.PolicyMiddleware.RequireAccess("products", "read"))
			r.Get("/", deps.ProductsHandler.HandleList)
			r.Get("/{id}", deps.ProductsHandler.HandleGet)
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.PolicyMiddleware.RequireAccess("products", "write"))
			r.Post("/", deps.ProductsHandler.HandleCreate)
			r.Put("/{id}", deps.ProductsHandler.HandleUpdate)
			r.Delete("/{id}", deps.ProductsHandler.HandleDelete)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
