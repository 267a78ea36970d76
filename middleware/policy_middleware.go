package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pandoralabs/pandora-api/policy"
	"github.com/pandoralabs/pandora-api/utils"
)

// PolicyMiddleware gates requests on capability and role checks.
// These middlewares must run after RequireAuth.
type PolicyMiddleware struct {
	engine *policy.Engine
	debug  bool
	logger *zap.Logger
}

// NewPolicyMiddleware creates a PolicyMiddleware. With debug enabled, 403
// responses include the resolved roles and permissions of the caller.
func NewPolicyMiddleware(engine *policy.Engine, debug bool, logger *zap.Logger) *PolicyMiddleware {
	return &PolicyMiddleware{
		engine: engine,
		debug:  debug,
		logger: logger,
	}
}

// RequireAccess is a middleware that requires the resource:action capability
func (m *PolicyMiddleware) RequireAccess(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := chimiddleware.GetReqID(ctx)

			principal := GetPrincipalFromContext(ctx)
			if principal == nil {
				m.logger.Error("principal not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Invalid or expired token")
				return
			}

			decision := m.engine.Authorize(principal, resource, action)
			if !decision.Allowed {
				m.logger.Warn("access denied",
					zap.String("request_id", requestID),
					zap.String("user_id", principal.ID),
					zap.String("required", decision.Required),
					zap.Strings("roles", decision.Roles))
				_ = utils.WriteForbidden(w, m.debugPayload(decision))
				return
			}

			m.logger.Debug("access granted",
				zap.String("request_id", requestID),
				zap.String("user_id", principal.ID),
				zap.String("required", decision.Required))

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole is a middleware that requires at least one of the given roles
func (m *PolicyMiddleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := chimiddleware.GetReqID(ctx)

			principal := GetPrincipalFromContext(ctx)
			if principal == nil {
				m.logger.Error("principal not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Invalid or expired token")
				return
			}

			if !m.engine.HasAnyRole(principal, roles...) {
				m.logger.Warn("role check failed",
					zap.String("request_id", requestID),
					zap.String("user_id", principal.ID),
					zap.Strings("required_roles", roles))
				_ = utils.WriteForbidden(w, nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *PolicyMiddleware) debugPayload(decision policy.Decision) interface{} {
	if !m.debug {
		return nil
	}
	return decision
}
