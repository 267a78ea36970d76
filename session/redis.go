package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps refresh sessions in a Redis sorted set per user, member =
// session id, score = creation time. Revocation removes the member, so
// "revoked" and "never existed" are indistinguishable — which is exactly
// what IsActive promises. The whole key expires after the refresh-token
// lifetime; by then every session id in it is unusable anyway.
type RedisStore struct {
	client     *redis.Client
	maxPerUser int
	ttl        time.Duration
}

// NewRedisStore creates a RedisStore. ttl should match the refresh-token
// lifetime. A non-positive maxPerUser disables the cap.
func NewRedisStore(client *redis.Client, maxPerUser int, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:     client,
		maxPerUser: maxPerUser,
		ttl:        ttl,
	}
}

func (s *RedisStore) key(userID string) string {
	return "refresh_sessions:" + userID
}

// Create implements Store
func (s *RedisStore) Create(ctx context.Context, userID string) (string, error) {
	id := uuid.NewString()
	key := s.key(userID)

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(time.Now().UnixNano()), Member: id})
	if s.maxPerUser >= 1 {
		// Trim oldest members beyond the cap. Rank -(max+1) keeps the max
		// newest members.
		pipe.ZRemRangeByRank(ctx, key, 0, int64(-(s.maxPerUser + 1)))
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("create refresh session: %w", err)
	}
	return id, nil
}

// IsActive implements Store
func (s *RedisStore) IsActive(ctx context.Context, userID, sessionID string) (bool, error) {
	err := s.client.ZScore(ctx, s.key(userID), sessionID).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check refresh session: %w", err)
	}
	return true, nil
}

// Revoke implements Store
func (s *RedisStore) Revoke(ctx context.Context, userID, sessionID string) (bool, error) {
	removed, err := s.client.ZRem(ctx, s.key(userID), sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("revoke refresh session: %w", err)
	}
	return removed > 0, nil
}

// RevokeAll implements Store
func (s *RedisStore) RevokeAll(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("revoke refresh sessions: %w", err)
	}
	return nil
}
