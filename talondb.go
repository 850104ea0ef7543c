// Package talondb ties the disk manager, buffer pool, header page and B+
// tree index into the single-file, single-index storage engine the rest of
// this module implements: a bounded in-memory buffer pool over a paged
// file, and a disk-resident B+ tree keyed by raw bytes. Grounded on
// DaemonDB's top-level DB type (storage_engine's own constructor wires
// disk_manager -> bufferpool -> bplustree in exactly this order), narrowed
// to the single default index this module names "main".
package talondb

import (
	"fmt"
	"os"
	"sync"

	"talondb/btree"
	"talondb/buffer"
	"talondb/disk"
	"talondb/errs"
	"talondb/header"
	"talondb/hotcache"
)

// defaultIndexName is the header record the root B+ tree is stored under.
// A single DB currently exposes exactly one index; naming it lets the
// on-disk format grow additional named indexes later without a migration.
const defaultIndexName = "main"

// valueSource adapts *btree.Index[[]byte, []byte] to hotcache.Source so the
// cache never needs to know about the tree beyond GetValue.
type valueSource struct {
	ix *btree.Index[[]byte, []byte]
}

func (s valueSource) GetValue(key []byte) ([]byte, bool, error) { return s.ix.GetValue(key) }

// DB is an open talondb file: a disk manager, a buffer pool sized per
// Options, and a B+ tree index rooted at the header page's "main" record.
type DB struct {
	mu sync.Mutex

	disk  disk.Manager
	pool  *buffer.Pool
	heads *header.Store
	index *btree.Index[[]byte, []byte]
	cache *hotcache.Cache[[]byte, []byte]

	closed bool
}

// Open opens path, creating it if it does not exist, and wires up the
// buffer pool and B+ tree index per opts. The header page (page.HeaderID)
// is initialized on a fresh file and verified on an existing one.
func Open(path string, opts ...Option) (*DB, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	fresh := true
	if stat, err := os.Stat(path); err == nil {
		fresh = stat.Size() == 0
	}

	d, err := disk.NewFileManager(path)
	if err != nil {
		return nil, fmt.Errorf("talondb: open %s: %w", path, err)
	}

	pool := buffer.New(o.PoolSize, d, buffer.WithLogger(o.Log))
	heads := header.New(pool)

	if err := initOrVerifyHeader(heads, fresh); err != nil {
		d.Close()
		return nil, err
	}

	ix, err := btree.Open[[]byte, []byte](pool, heads, defaultIndexName, o.MaxSize, o.comparator(), btree.ByteCodec{}, btree.ByteCodec{})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("talondb: open index: %w", err)
	}

	db := &DB{disk: d, pool: pool, heads: heads, index: ix}
	if o.hotCache {
		c, err := hotcache.New[[]byte, []byte](valueSource{ix: ix}, byteKey, o.hotCacheCfg)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("talondb: init hot cache: %w", err)
		}
		db.cache = c
	}
	return db, nil
}

// initOrVerifyHeader initializes the header page on a brand-new file (page
// count zero, nothing yet allocated) or verifies an existing one's magic
// number and checksum on reopen. header.Store.Init must run before any
// other page is allocated so it claims page.HeaderID.
func initOrVerifyHeader(heads *header.Store, fresh bool) error {
	if fresh {
		if err := heads.Init(); err != nil {
			return fmt.Errorf("talondb: init header page: %w", err)
		}
		return nil
	}
	if err := heads.Verify(); err != nil {
		return fmt.Errorf("talondb: verify header page: %w", err)
	}
	return nil
}

func byteKey(b []byte) string { return string(b) }

// Get looks up key, returning (value, true) on a hit.
func (db *DB) Get(key []byte) ([]byte, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, false, errs.ErrClosed
	}
	if db.cache != nil {
		return db.cache.GetValue(key)
	}
	return db.index.GetValue(key)
}

// Insert adds (key, value), returning false without modification if key
// already exists.
func (db *DB) Insert(key, value []byte) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return false, errs.ErrClosed
	}
	return db.index.Insert(key, value)
}

// Remove deletes key if present. Removing an absent key is a no-op.
func (db *DB) Remove(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return errs.ErrClosed
	}
	if err := db.index.Remove(key); err != nil {
		return err
	}
	if db.cache != nil {
		db.cache.Invalidate(key)
	}
	return nil
}

// Cursor is a forward-only iterator over the index's key range.
type Cursor struct {
	it *btree.Iterator[[]byte, []byte]
}

// Begin returns a cursor positioned at the first entry.
func (db *DB) Begin() (*Cursor, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, errs.ErrClosed
	}
	it, err := db.index.Begin()
	if err != nil {
		return nil, err
	}
	return &Cursor{it: it}, nil
}

// BeginAt returns a cursor positioned at the first entry >= key.
func (db *DB) BeginAt(key []byte) (*Cursor, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, errs.ErrClosed
	}
	it, err := db.index.BeginAt(key)
	if err != nil {
		return nil, err
	}
	return &Cursor{it: it}, nil
}

func (c *Cursor) End() bool     { return c.it.End() }
func (c *Cursor) Key() []byte   { return c.it.Key() }
func (c *Cursor) Value() []byte { return c.it.Value() }
func (c *Cursor) Next()         { c.it.Next() }
func (c *Cursor) Close()        { c.it.Close() }

// Stats returns a snapshot of buffer pool occupancy.
func (db *DB) Stats() buffer.Stats {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.pool.Stats()
}

// Flush writes every dirty resident page back to disk without closing.
func (db *DB) Flush() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return errs.ErrClosed
	}
	return db.pool.FlushAll()
}

// Close flushes all resident pages and closes the underlying file. Close
// is idempotent; a second call returns nil.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	var firstErr error
	if err := db.pool.FlushAll(); err != nil {
		firstErr = err
	}
	if db.cache != nil {
		db.cache.Close()
	}
	if err := db.disk.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
