package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Store.Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// Store is a byte-oriented cache backend. Generation counters must not
// expire, since a reset counter could revive an entry written before an
// invalidation.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Generation(ctx context.Context, kind ResourceKind) (int64, error)
	BumpGeneration(ctx context.Context, kind ResourceKind) (int64, error)
}
