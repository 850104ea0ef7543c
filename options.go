package talondb

import (
	"talondb/btree"
	"talondb/hotcache"
	"talondb/logger"
)

// Options configures Open. Grounded on alexhholmes-fredb/option.go's
// functional-options pattern (DBOption over DBOptions).
type Options struct {
	PoolSize int
	MaxSize  int
	Log      logger.Logger

	hotCache    bool
	hotCacheCfg hotcache.Config
}

// Option mutates Options at construction time.
type Option func(*Options)

// defaultOptions sets a 64-frame buffer pool and a shared leaf/internal
// fan-out (max_size) of 64.
func defaultOptions() Options {
	return Options{
		PoolSize: 64,
		MaxSize:  64,
		Log:      logger.Noop(),
	}
}

// WithPoolSize sets the number of frames the buffer pool holds resident.
func WithPoolSize(n int) Option {
	return func(o *Options) { o.PoolSize = n }
}

// WithMaxSize sets the B+ tree's leaf/internal fan-out (max_size, shared
// by both page kinds).
func WithMaxSize(n int) Option {
	return func(o *Options) { o.MaxSize = n }
}

// WithLogger attaches a structured logger, propagated to the buffer pool.
func WithLogger(l logger.Logger) Option {
	return func(o *Options) { o.Log = l }
}

// WithHotCache enables the optional ristretto-backed read-through value
// cache in front of GetValue. Disabled by default — every correctness
// invariant of the index holds identically with or without it.
func WithHotCache(cfg hotcache.Config) Option {
	return func(o *Options) {
		o.hotCache = true
		o.hotCacheCfg = cfg
	}
}

func (o Options) comparator() btree.Comparator[[]byte] { return btree.CompareBytes }
