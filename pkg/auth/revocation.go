package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// RevocationStore records revoked token IDs until their natural expiry
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revokedKeyPrefix = "auth:revoked:"

// RedisRevocationStore keeps revoked token IDs in Redis with a per-key TTL
type RedisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore creates a Redis-backed revocation store
func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

// Revoke stores the token ID with the given TTL
func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// IsRevoked checks whether the token ID is present
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

// MemoryRevocationStore keeps revoked token IDs in process memory. The store
// is unbounded by count: an entry is dropped only once the token it names has
// expired, so a revoked token can never become valid again through eviction.
// horizon is the longest TTL accepted, normally the refresh token lifetime.
type MemoryRevocationStore struct {
	entries *lru.LRU[string, time.Time]
	horizon time.Duration
	now     func() time.Time
}

// NewMemoryRevocationStore creates an in-process revocation store
func NewMemoryRevocationStore(horizon time.Duration) *MemoryRevocationStore {
	return &MemoryRevocationStore{
		// size 0 disables LRU eviction; the store TTL only purges expired entries
		entries: lru.NewLRU[string, time.Time](0, nil, horizon),
		horizon: horizon,
		now:     time.Now,
	}
}

// Revoke records the token ID until now+ttl. A TTL beyond the store horizon
// is refused, since the entry would be purged while the token is still valid.
func (s *MemoryRevocationStore) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if ttl > s.horizon {
		return fmt.Errorf("revocation ttl %s exceeds store horizon %s", ttl, s.horizon)
	}
	s.entries.Add(tokenID, s.now().Add(ttl))
	return nil
}

// IsRevoked checks whether the token ID is present and its token not yet expired
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	until, ok := s.entries.Get(tokenID)
	if !ok {
		return false, nil
	}
	if !s.now().Before(until) {
		s.entries.Remove(tokenID)
		return false, nil
	}
	return true, nil
}
