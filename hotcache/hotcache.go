// Package hotcache layers an optional read-through value cache over a
// talondb/btree.Index, backed by dgraph-io/ristretto/v2's W-TinyLFU
// admission cache. ristretto is a probabilistic admission cache with no
// pin/victim/size API, which rules it out as the buffer pool's core
// replacer (that needs exact pin-count-driven eviction) — but it fits
// naturally above GetValue, where an approximate, best-effort cache
// changes nothing about correctness, only about how often the underlying
// tree gets walked.
package hotcache

import (
	"github.com/dgraph-io/ristretto/v2"
)

// Source is the subset of btree.Index[K, V] this cache fronts.
type Source[K any, V any] interface {
	GetValue(key K) (V, bool, error)
}

// Cache wraps a Source with a bounded, best-effort read-through cache. Tree
// keys (K, typically []byte) are not necessarily `comparable` in Go's
// generic-constraint sense, so entries are addressed by a caller-supplied
// KeyFunc mapping K to a comparable cache key instead of K itself.
type Cache[K any, V any] struct {
	source    Source[K, V]
	keyFunc   func(K) string
	ristretto *ristretto.Cache[string, V]
}

// Config mirrors ristretto's constructor knobs, with defaults suited to a
// small-to-medium key space: NumCounters should be roughly 10x the number
// of items you expect to fit in MaxCost.
type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
}

// DefaultConfig is a reasonable starting point for a modestly sized index.
func DefaultConfig() Config {
	return Config{NumCounters: 1e5, MaxCost: 1 << 20, BufferItems: 64}
}

// New builds a hot-value cache in front of source, addressing entries by
// keyFunc(key).
func New[K any, V any](source Source[K, V], keyFunc func(K) string, cfg Config) (*Cache[K, V], error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Cache[K, V]{source: source, keyFunc: keyFunc, ristretto: rc}, nil
}

// GetValue returns the cached value for key if present, else consults the
// source and populates the cache on a hit there.
func (c *Cache[K, V]) GetValue(key K) (V, bool, error) {
	ck := c.keyFunc(key)
	if v, ok := c.ristretto.Get(ck); ok {
		return v, true, nil
	}
	v, found, err := c.source.GetValue(key)
	if err != nil {
		var zero V
		return zero, false, err
	}
	if found {
		c.ristretto.Set(ck, v, 1)
	}
	return v, found, nil
}

// Invalidate drops key from the cache, called after a Remove of that key on
// the underlying tree so a stale hit can never outlive the deletion.
func (c *Cache[K, V]) Invalidate(key K) {
	c.ristretto.Del(c.keyFunc(key))
}

// Close releases ristretto's background goroutines.
func (c *Cache[K, V]) Close() {
	c.ristretto.Close()
}
