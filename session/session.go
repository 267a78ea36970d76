// Package session tracks server-side refresh sessions. Each issued refresh
// token is bound to a session id (the token's jti); revoking the session
// invalidates the token regardless of its own unexpired signature.
package session

import (
	"context"
	"time"
)

// Session is one refresh session for a user. A session moves from active to
// revoked exactly once; there is no transition back.
type Session struct {
	UserID    string
	ID        string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session has not been revoked
func (s *Session) Active() bool {
	return s.RevokedAt == nil
}

// Store is the server-side refresh-session registry. Implementations must
// serialize mutations to a single user's session collection: two concurrent
// refresh attempts with the same stale session id must not both observe it
// as active.
type Store interface {
	// Create registers a new active session for the user and returns its id.
	// When the per-user cap is exceeded, the oldest active sessions are
	// revoked until the active count is back within the limit.
	Create(ctx context.Context, userID string) (string, error)

	// IsActive reports whether a session with the given id exists for the
	// user and has not been revoked.
	IsActive(ctx context.Context, userID, sessionID string) (bool, error)

	// Revoke marks one session revoked and reports whether this call
	// performed the active→revoked transition. Revoking an already revoked
	// or unknown session is a no-op returning false. The returned flag is
	// what lets concurrent rotations on the same session id elect exactly
	// one winner.
	Revoke(ctx context.Context, userID, sessionID string) (bool, error)

	// RevokeAll revokes every session of the user. Invoked on detected
	// refresh-token replay.
	RevokeAll(ctx context.Context, userID string) error
}
