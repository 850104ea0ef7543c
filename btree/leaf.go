package btree

import (
	"encoding/binary"
	"sort"

	"talondb/page"
)

// Leaf is the in-memory view of a B+ tree leaf page: an ordered array of
// (key, value) entries plus a forward sibling pointer. Decoded from a
// page.Page's bytes on fetch, mutated in place, re-encoded on release —
// the same fetch/decode/mutate/encode/write cycle DaemonDB's
// fetchNode/writeNode pair uses, generalized over K/V via Codec instead of
// operating on [][]byte directly.
type Leaf[K any, V any] struct {
	pageID   page.ID
	parentID page.ID
	maxSize  int
	next     page.ID

	keys   []K
	values []V

	keyCodec Codec[K]
	valCodec Codec[V]
}

// NewLeaf allocates an empty, initialized in-memory leaf view. Corresponds
// to Init(page_id, parent_id, max_size).
func NewLeaf[K any, V any](pageID, parentID page.ID, maxSize int, kc Codec[K], vc Codec[V]) *Leaf[K, V] {
	return &Leaf[K, V]{
		pageID:   pageID,
		parentID: parentID,
		maxSize:  maxSize,
		next:     page.Invalid,
		keyCodec: kc,
		valCodec: vc,
	}
}

func (l *Leaf[K, V]) PageID() page.ID     { return l.pageID }
func (l *Leaf[K, V]) ParentID() page.ID   { return l.parentID }
func (l *Leaf[K, V]) SetParentID(p page.ID) { l.parentID = p }
func (l *Leaf[K, V]) GetSize() int        { return len(l.keys) }
func (l *Leaf[K, V]) GetMaxSize() int     { return l.maxSize }
func (l *Leaf[K, V]) GetNextPageId() page.ID { return l.next }
func (l *Leaf[K, V]) SetNextPageId(id page.ID) { l.next = id }
func (l *Leaf[K, V]) KeyAt(i int) K       { return l.keys[i] }

// GetItem returns the (key, value) pair at index i.
func (l *Leaf[K, V]) GetItem(i int) (K, V) { return l.keys[i], l.values[i] }

// KeyIndex returns the smallest index i such that keys[i] >= key.
func (l *Leaf[K, V]) KeyIndex(key K, cmp Comparator[K]) int {
	return sort.Search(len(l.keys), func(i int) bool { return cmp(l.keys[i], key) >= 0 })
}

// Lookup returns the value for an exact key match.
func (l *Leaf[K, V]) Lookup(key K, cmp Comparator[K]) (V, bool) {
	i := l.KeyIndex(key, cmp)
	if i < len(l.keys) && cmp(l.keys[i], key) == 0 {
		return l.values[i], true
	}
	var zero V
	return zero, false
}

// Insert inserts (key, value) in sorted position. The caller is responsible
// for rejecting duplicates via a prior Lookup.
func (l *Leaf[K, V]) Insert(key K, value V, cmp Comparator[K]) int {
	i := l.KeyIndex(key, cmp)
	l.keys = insertAt(l.keys, i, key)
	l.values = insertAt(l.values, i, value)
	return len(l.keys)
}

// RemoveAndDeleteRecord removes key if present and returns the resulting
// size.
func (l *Leaf[K, V]) RemoveAndDeleteRecord(key K, cmp Comparator[K]) int {
	i := l.KeyIndex(key, cmp)
	if i < len(l.keys) && cmp(l.keys[i], key) == 0 {
		l.keys = removeAt(l.keys, i)
		l.values = removeAt(l.values, i)
	}
	return len(l.keys)
}

// MoveHalfTo moves the upper ceil(maxSize/2) entries to recipient, a
// newly created empty sibling, and splices recipient into the next-page
// chain between self and self's old next.
func (l *Leaf[K, V]) MoveHalfTo(recipient *Leaf[K, V]) {
	total := len(l.keys)
	movedCount := total - total/2 // ceil(total/2), consistent with an insert-then-split at maxSize
	mid := total - movedCount

	recipient.keys = append(recipient.keys, l.keys[mid:]...)
	recipient.values = append(recipient.values, l.values[mid:]...)
	l.keys = l.keys[:mid]
	l.values = l.values[:mid]

	recipient.next = l.next
	l.next = recipient.pageID
}

// MoveAllTo appends all of self's entries onto recipient and rewires
// recipient.next = self.next, used when coalescing self into recipient.
func (l *Leaf[K, V]) MoveAllTo(recipient *Leaf[K, V]) {
	recipient.keys = append(recipient.keys, l.keys...)
	recipient.values = append(recipient.values, l.values...)
	recipient.next = l.next
	l.keys = nil
	l.values = nil
}

// MoveFirstToEndOf moves self's first entry onto the end of recipient
// (redistribution when recipient is self's left sibling).
func (l *Leaf[K, V]) MoveFirstToEndOf(recipient *Leaf[K, V]) {
	recipient.keys = append(recipient.keys, l.keys[0])
	recipient.values = append(recipient.values, l.values[0])
	l.keys = removeAt(l.keys, 0)
	l.values = removeAt(l.values, 0)
}

// MoveLastToFrontOf moves self's last entry onto the front of recipient
// (redistribution when recipient is self's right sibling).
func (l *Leaf[K, V]) MoveLastToFrontOf(recipient *Leaf[K, V]) {
	last := len(l.keys) - 1
	recipient.keys = insertAt(recipient.keys, 0, l.keys[last])
	recipient.values = insertAt(recipient.values, 0, l.values[last])
	l.keys = l.keys[:last]
	l.values = l.values[:last]
}

// Encode serializes the leaf into a page-sized buffer.
func (l *Leaf[K, V]) Encode(buf *[page.Size]byte) error {
	writeCommonHeader(buf, typeLeaf, len(l.keys), l.maxSize, l.parentID, l.pageID)
	binary.LittleEndian.PutUint32(buf[offNextPageID:], uint32(l.next))

	off := leafHeader
	for i := range l.keys {
		if err := putSlot(buf, &off, l.keyCodec.Encode(l.keys[i])); err != nil {
			return err
		}
		if err := putSlot(buf, &off, l.valCodec.Encode(l.values[i])); err != nil {
			return err
		}
	}
	return nil
}

// DecodeLeaf parses a leaf page's bytes into an in-memory Leaf view.
func DecodeLeaf[K any, V any](buf *[page.Size]byte, kc Codec[K], vc Codec[V]) (*Leaf[K, V], error) {
	size, maxSize, parentID, pageID := readCommonHeader(buf)
	next := page.ID(int32(binary.LittleEndian.Uint32(buf[offNextPageID:])))

	l := &Leaf[K, V]{
		pageID:   pageID,
		parentID: parentID,
		maxSize:  maxSize,
		next:     next,
		keys:     make([]K, 0, size),
		values:   make([]V, 0, size),
		keyCodec: kc,
		valCodec: vc,
	}

	off := leafHeader
	for i := 0; i < size; i++ {
		kb, err := getSlot(buf, &off)
		if err != nil {
			return nil, err
		}
		vb, err := getSlot(buf, &off)
		if err != nil {
			return nil, err
		}
		l.keys = append(l.keys, kc.Decode(kb))
		l.values = append(l.values, vc.Decode(vb))
	}
	return l, nil
}
