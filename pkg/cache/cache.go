package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/clubhub/pkg/async"
	"github.com/platinummonkey/clubhub/pkg/observability"
	"github.com/sirupsen/logrus"
)

// DefaultTTL bounds how long a collection entry may be served
const DefaultTTL = 5 * time.Minute

// Config configures the collection cache
type Config struct {
	Enabled bool
	TTL     time.Duration
	// RetryTimeout bounds the background retry of a failed invalidation
	RetryTimeout time.Duration
}

// Invalidator is implemented by anything that can drop collection caches.
// Services call it after every committed write.
type Invalidator interface {
	Invalidate(ctx context.Context, kinds ...ResourceKind)
}

// Cache serves list reads from a Store and invalidates them by kind
type Cache struct {
	store   Store
	config  Config
	logger  logrus.FieldLogger
	metrics *observability.Metrics
	retry   async.RetryPolicy
}

// New creates a cache over store. metrics may be nil.
func New(store Store, config Config, logger logrus.FieldLogger, metrics *observability.Metrics) *Cache {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.RetryTimeout <= 0 {
		config.RetryTimeout = 10 * time.Second
	}
	return &Cache{
		store:   store,
		config:  config,
		logger:  logger.WithField("component", "cache"),
		metrics: metrics,
		retry:   async.DefaultRetryPolicy(),
	}
}

// entry is the stored form of a collection; Gen is the kind's generation
// observed before the data was loaded
type entry struct {
	Gen  int64           `json:"gen"`
	Data json.RawMessage `json:"data"`
}

// Remember returns the cached collection for kind, calling loader on a miss.
// Backend failures degrade to calling loader; they never fail the read.
func Remember[T any](ctx context.Context, c *Cache, kind ResourceKind, loader func(context.Context) (T, error)) (T, error) {
	if c == nil || !c.config.Enabled || !kind.Cacheable() {
		return loader(ctx)
	}

	gen, err := c.store.Generation(ctx, kind)
	if err != nil {
		c.backendError("generation", err)
		return loader(ctx)
	}

	if raw, err := c.store.Get(ctx, kind.Key()); err == nil {
		var e entry
		if jsonErr := json.Unmarshal(raw, &e); jsonErr == nil && e.Gen == gen {
			var value T
			if jsonErr := json.Unmarshal(e.Data, &value); jsonErr == nil {
				c.hit(kind)
				return value, nil
			}
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		c.backendError("get", err)
	}
	c.miss(kind)

	value, err := loader(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.put(ctx, kind, gen, value)
	return value, nil
}

// put writes the loaded value unless an invalidation happened meanwhile
func (c *Cache) put(ctx context.Context, kind ResourceKind, gen int64, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("kind", kind).Warn("Failed to encode cache entry")
		return
	}

	current, err := c.store.Generation(ctx, kind)
	if err != nil {
		c.backendError("generation", err)
		return
	}
	if current != gen {
		return
	}

	raw, err := json.Marshal(entry{Gen: gen, Data: data})
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, kind.Key(), raw, c.config.TTL); err != nil {
		c.backendError("set", err)
	}
}

// Invalidate drops the collection caches of kinds. It must be called after the
// write has committed. Failures are logged and retried in the background.
func (c *Cache) Invalidate(ctx context.Context, kinds ...ResourceKind) {
	if c == nil || !c.config.Enabled {
		return
	}

	for _, kind := range dedupe(kinds) {
		if !kind.Cacheable() {
			continue
		}
		if c.metrics != nil {
			c.metrics.CacheInvalidationsTotal.WithLabelValues(kind.String()).Inc()
		}

		if err := c.invalidate(ctx, kind); err != nil {
			c.backendError("invalidate", err)
			kind := kind
			async.SafeGo(ctx, c.logger, c.config.RetryTimeout, "cache invalidation retry", func(ctx context.Context) error {
				return async.Retry(ctx, c.retry, func(ctx context.Context) error {
					return c.invalidate(ctx, kind)
				})
			})
		}
	}
}

// Clear drops every collection cache and reports the first failure
func (c *Cache) Clear(ctx context.Context) error {
	for _, kind := range AllKinds {
		if !kind.Cacheable() {
			continue
		}
		if err := c.invalidate(ctx, kind); err != nil {
			return fmt.Errorf("failed to clear %s cache: %w", kind, err)
		}
	}
	return nil
}

// invalidate bumps the generation before deleting so a reader holding
// pre-write data cannot repopulate the entry
func (c *Cache) invalidate(ctx context.Context, kind ResourceKind) error {
	if _, err := c.store.BumpGeneration(ctx, kind); err != nil {
		return err
	}
	return c.store.Delete(ctx, kind.Key())
}

func (c *Cache) hit(kind ResourceKind) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(kind.String()).Inc()
	}
}

func (c *Cache) miss(kind ResourceKind) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(kind.String()).Inc()
	}
}

func (c *Cache) backendError(op string, err error) {
	c.logger.WithError(err).WithField("operation", op).Warn("Cache backend error")
	if c.metrics != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues(op).Inc()
	}
}

func dedupe(kinds []ResourceKind) []ResourceKind {
	seen := make(map[ResourceKind]struct{}, len(kinds))
	out := kinds[:0:0]
	for _, k := range kinds {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
