// Package replacer implements the eviction-policy oracle the buffer pool
// consults when it needs a frame back. Only LRU is implemented; other
// replacement policies are out of scope.
//
// In place of a hand-rolled intrusive doubly linked list, the replacer uses
// the standard library's container/list plus a side map from frame ID to
// list element, giving O(1) removal — alexhholmes-fredb/internal/cache
// pairs container/list with a side map the same way for its own LRU cache,
// which is the direct grounding for this implementation.
package replacer

import (
	"container/list"
	"sync"

	"talondb/page"
)

// LRU is a set of unpinned frames ordered by last-unpin time. The most
// recently unpinned frame sits at the front of the list; Victim evicts from
// the back. All operations are serialized by an internal mutex, so an LRU
// is safe to share across buffer pool callers independent of the buffer
// pool's own coarse latch.
type LRU struct {
	mu    sync.Mutex
	order *list.List // list.Element.Value is page.FrameID
	index map[page.FrameID]*list.Element
}

// New creates an empty LRU replacer.
func New() *LRU {
	return &LRU{
		order: list.New(),
		index: make(map[page.FrameID]*list.Element),
	}
}

// Victim returns and removes the least recently unpinned frame. ok is false
// iff the replacer holds no evictable frames.
func (r *LRU) Victim() (frame page.FrameID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	back := r.order.Back()
	if back == nil {
		return 0, false
	}
	r.order.Remove(back)
	frame = back.Value.(page.FrameID)
	delete(r.index, frame)
	return frame, true
}

// Pin removes a frame from the replacer, if present. No-op if the frame is
// not tracked — this is what a caller does when it starts using a frame
// that is not currently evictable (e.g. one just fetched from the free
// list).
func (r *LRU) Pin(frame page.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.index[frame]; ok {
		r.order.Remove(el)
		delete(r.index, frame)
	}
}

// Unpin inserts a frame at the head (most recently unpinned) if it is not
// already tracked. If the frame is already present, this is a no-op — it
// does NOT refresh recency: BusTub-lineage LRUReplacer::Unpin does not
// promote on a repeated unpin, and this implementation preserves that.
func (r *LRU) Unpin(frame page.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[frame]; ok {
		return
	}
	el := r.order.PushFront(frame)
	r.index[frame] = el
}

// Size returns the number of frames currently evictable.
func (r *LRU) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}
