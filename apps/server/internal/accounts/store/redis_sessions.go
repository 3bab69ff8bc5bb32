package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tilsley/stockroom/apps/server/internal/accounts"
)

const sessionKeyPrefix = "stockroom:session:"

// Compile-time check: *RedisSessionStore implements accounts.SessionStore.
var _ accounts.SessionStore = (*RedisSessionStore)(nil)

// RedisSessionStore keeps sessions as JSON values that expire with the
// session.
type RedisSessionStore struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisSessionStore creates a new RedisSessionStore.
func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, now: time.Now}
}

// SaveSession stores s until s.ExpiresAt. An already expired session is not
// stored.
func (s *RedisSessionStore) SaveSession(ctx context.Context, sess accounts.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKeyPrefix+sess.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("save session %q: %w", sess.ID, err)
	}
	return nil
}

// GetSession returns the session, or nil when it is unknown or expired.
func (s *RedisSessionStore) GetSession(ctx context.Context, id string) (*accounts.Session, error) {
	val, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("get session %q: %w", id, err)
	}
	var sess accounts.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %q: %w", id, err)
	}
	return &sess, nil
}

// DeleteSession removes the session. Unknown IDs are ignored.
func (s *RedisSessionStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete session %q: %w", id, err)
	}
	return nil
}
