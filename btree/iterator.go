package btree

import (
	"talondb/page"
)

// Iterator is a forward-only cursor over a leaf's key range, following
// next-sibling pointers across leaf boundaries. Grounded on DaemonDB's
// bplustree/iterator.go (SeekGE/Next/Close pinning exactly one leaf page at
// a time), generalized over K/V.
type Iterator[K any, V any] struct {
	ix   *Index[K, V]
	pg   *page.Page
	leaf *Leaf[K, V]
	i    int
	done bool
}

// Begin returns an iterator positioned at the first entry of the tree.
func (ix *Index[K, V]) Begin() (*Iterator[K, V], error) {
	if ix.IsEmpty() {
		return &Iterator[K, V]{ix: ix, done: true}, nil
	}
	id := ix.root
	for {
		pg, err := ix.pool.FetchPage(id)
		if err != nil {
			return nil, err
		}
		if readPageType(&pg.Data) == typeLeaf {
			l, err := DecodeLeaf[K, V](&pg.Data, ix.keyC, ix.valC)
			if err != nil {
				ix.pool.UnpinPage(id, false)
				return nil, err
			}
			return &Iterator[K, V]{ix: ix, pg: pg, leaf: l, i: 0, done: l.GetSize() == 0}, nil
		}
		n, err := DecodeInternal[K](&pg.Data, ix.keyC)
		if err != nil {
			ix.pool.UnpinPage(id, false)
			return nil, err
		}
		next := n.ValueAt(0)
		ix.pool.UnpinPage(id, false)
		id = next
	}
}

// BeginAt returns an iterator positioned at the first entry >= key
// — a mid-leaf seek.
func (ix *Index[K, V]) BeginAt(key K) (*Iterator[K, V], error) {
	if ix.IsEmpty() {
		return &Iterator[K, V]{ix: ix, done: true}, nil
	}
	pg, l, err := ix.FindLeafPage(key)
	if err != nil {
		return nil, err
	}
	i := l.KeyIndex(key, ix.cmp)
	it := &Iterator[K, V]{ix: ix, pg: pg, leaf: l, i: i}
	it.skipToNonEmpty()
	return it, nil
}

// skipToNonEmpty advances across empty/exhausted leaves until a valid
// entry is under the cursor or the chain is exhausted.
func (it *Iterator[K, V]) skipToNonEmpty() {
	for !it.done && it.i >= it.leaf.GetSize() {
		next := it.leaf.GetNextPageId()
		it.ix.pool.UnpinPage(it.pg.ID, false)
		if next == page.Invalid {
			it.pg, it.leaf = nil, nil
			it.done = true
			return
		}
		pg, err := it.ix.pool.FetchPage(next)
		if err != nil {
			it.pg, it.leaf = nil, nil
			it.done = true
			return
		}
		l, err := DecodeLeaf[K, V](&pg.Data, it.ix.keyC, it.ix.valC)
		if err != nil {
			it.ix.pool.UnpinPage(next, false)
			it.pg, it.leaf = nil, nil
			it.done = true
			return
		}
		it.pg, it.leaf, it.i = pg, l, 0
	}
}

// End reports whether the cursor has exhausted the tree.
func (it *Iterator[K, V]) End() bool { return it.done }

// Key returns the key under the cursor. Undefined if End().
func (it *Iterator[K, V]) Key() K {
	k, _ := it.leaf.GetItem(it.i)
	return k
}

// Value returns the value under the cursor. Undefined if End().
func (it *Iterator[K, V]) Value() V {
	_, v := it.leaf.GetItem(it.i)
	return v
}

// Next advances the cursor by one entry, releasing the current leaf's pin
// and fetching the next one when the current leaf is exhausted.
func (it *Iterator[K, V]) Next() {
	if it.done {
		return
	}
	it.i++
	it.skipToNonEmpty()
}

// Close releases the pin on the iterator's current leaf, if any. Safe to
// call multiple times and safe to omit once the iterator reaches End(),
// which already released its pin.
func (it *Iterator[K, V]) Close() {
	if it.pg != nil {
		it.ix.pool.UnpinPage(it.pg.ID, false)
		it.pg, it.leaf = nil, nil
	}
	it.done = true
}
