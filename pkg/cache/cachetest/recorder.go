// Package cachetest provides a recording cache.Invalidator for service tests.
package cachetest

import (
	"context"
	"sync"

	"github.com/platinummonkey/clubhub/pkg/cache"
)

// Recorder records every invalidated kind in call order
type Recorder struct {
	mu    sync.Mutex
	kinds []cache.ResourceKind
}

// Invalidate implements cache.Invalidator
func (r *Recorder) Invalidate(_ context.Context, kinds ...cache.ResourceKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kinds...)
}

// Kinds returns the kinds invalidated so far
func (r *Recorder) Kinds() []cache.ResourceKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cache.ResourceKind(nil), r.kinds...)
}

// Reset forgets recorded calls
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = nil
}
