package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tilsley/stockroom/apps/server/internal/inventory"
	"github.com/tilsley/stockroom/pkg/api"
)

const partsCacheKey = "stockroom:parts"

// Compile-time check: *CachedStore implements inventory.Repository.
var _ inventory.Repository = (*CachedStore)(nil)

// CachedStore wraps a Repository and caches the parts listing in Redis. Any
// write that can change a part drops the cached listing. Redis failures are
// logged and fall through to the wrapped store.
type CachedStore struct {
	inventory.Repository

	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// NewCachedStore wraps backend with a listing cache of the given TTL.
func NewCachedStore(backend inventory.Repository, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *CachedStore {
	if log == nil {
		log = slog.Default()
	}
	return &CachedStore{Repository: backend, rdb: rdb, ttl: ttl, log: log}
}

// ListParts serves the listing from Redis when present.
func (s *CachedStore) ListParts(ctx context.Context) ([]api.Part, error) {
	val, err := s.rdb.Get(ctx, partsCacheKey).Bytes()
	switch {
	case err == nil:
		var parts []api.Part
		decodeErr := json.Unmarshal(val, &parts)
		if decodeErr == nil {
			return parts, nil
		}
		s.log.Warn("discarding unreadable parts cache", "error", decodeErr)
	case !errors.Is(err, redis.Nil):
		s.log.Warn("parts cache read failed", "error", err)
	}

	parts, err := s.Repository.ListParts(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(parts); err == nil {
		if err := s.rdb.Set(ctx, partsCacheKey, data, s.ttl).Err(); err != nil {
			s.log.Warn("parts cache write failed", "error", err)
		}
	}
	return parts, nil
}

// CreatePart writes through and invalidates the listing.
func (s *CachedStore) CreatePart(ctx context.Context, p api.Part, message string) (*api.Part, error) {
	defer s.invalidate(ctx)
	return s.Repository.CreatePart(ctx, p, message)
}

// UpdatePart writes through and invalidates the listing.
func (s *CachedStore) UpdatePart(ctx context.Context, p api.Part, version, message string) (*api.Part, error) {
	defer s.invalidate(ctx)
	return s.Repository.UpdatePart(ctx, p, version, message)
}

// DeletePart writes through and invalidates the listing.
func (s *CachedStore) DeletePart(ctx context.Context, id, version, message string) error {
	defer s.invalidate(ctx)
	return s.Repository.DeletePart(ctx, id, version, message)
}

// Apply writes through and invalidates the listing.
func (s *CachedStore) Apply(ctx context.Context, e inventory.LedgerEntry) (*inventory.LedgerResult, error) {
	defer s.invalidate(ctx)
	return s.Repository.Apply(ctx, e)
}

// Invalidate drops the cached listing.
func (s *CachedStore) invalidate(ctx context.Context) {
	if err := s.rdb.Del(context.WithoutCancel(ctx), partsCacheKey).Err(); err != nil {
		s.log.Warn("parts cache invalidation failed", "error", err)
	}
}
