package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps refresh sessions in process memory. Sessions do not
// survive a restart.
type MemoryStore struct {
	mu         sync.Mutex
	byUser     map[string][]*Session
	maxPerUser int
}

// NewMemoryStore creates a MemoryStore enforcing at most maxPerUser active
// sessions per user. A non-positive max disables enforcement.
func NewMemoryStore(maxPerUser int) *MemoryStore {
	return &MemoryStore{
		byUser:     make(map[string][]*Session),
		maxPerUser: maxPerUser,
	}
}

// Create implements Store
func (s *MemoryStore) Create(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		UserID:    userID,
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
	s.byUser[userID] = append(s.byUser[userID], sess)
	s.revokeOldestToLimit(userID)
	return sess.ID, nil
}

// IsActive implements Store
func (s *MemoryStore) IsActive(_ context.Context, userID, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.byUser[userID] {
		if sess.ID == sessionID {
			return sess.Active(), nil
		}
	}
	return false, nil
}

// Revoke implements Store
func (s *MemoryStore) Revoke(_ context.Context, userID, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.byUser[userID] {
		if sess.ID == sessionID && sess.Active() {
			now := time.Now()
			sess.RevokedAt = &now
			return true, nil
		}
	}
	return false, nil
}

// RevokeAll implements Store
func (s *MemoryStore) RevokeAll(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, sess := range s.byUser[userID] {
		if sess.Active() {
			revokedAt := now
			sess.RevokedAt = &revokedAt
		}
	}
	return nil
}

// revokeOldestToLimit revokes oldest-created active sessions until the
// active count is within the cap. Caller must hold s.mu. Sessions are
// appended in creation order, so the first active entry is the oldest.
func (s *MemoryStore) revokeOldestToLimit(userID string) {
	if s.maxPerUser < 1 {
		return
	}

	sessions := s.byUser[userID]
	active := 0
	for _, sess := range sessions {
		if sess.Active() {
			active++
		}
	}
	for _, sess := range sessions {
		if active <= s.maxPerUser {
			break
		}
		if sess.Active() {
			now := time.Now()
			sess.RevokedAt = &now
			active--
		}
	}
}
