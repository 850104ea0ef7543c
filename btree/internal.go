package btree

import (
	"encoding/binary"

	"talondb/page"
)

// Internal is the in-memory view of a B+ tree internal page: array[0]'s key
// is a dummy (compared only by Lookup's fromInsert check) whose value is
// the leftmost child; for i>=1,
// array[i] is (separator_i, child_i).
type Internal[K any] struct {
	pageID   page.ID
	parentID page.ID
	maxSize  int

	keys     []K
	children []page.ID

	keyCodec Codec[K]
}

// NewInternal allocates an empty, initialized in-memory internal view.
func NewInternal[K any](pageID, parentID page.ID, maxSize int, kc Codec[K]) *Internal[K] {
	return &Internal[K]{
		pageID:   pageID,
		parentID: parentID,
		maxSize:  maxSize,
		keyCodec: kc,
	}
}

func (n *Internal[K]) PageID() page.ID       { return n.pageID }
func (n *Internal[K]) ParentID() page.ID     { return n.parentID }
func (n *Internal[K]) SetParentID(p page.ID) { n.parentID = p }
func (n *Internal[K]) GetSize() int          { return len(n.keys) }
func (n *Internal[K]) GetMaxSize() int       { return n.maxSize }
func (n *Internal[K]) KeyAt(i int) K         { return n.keys[i] }
func (n *Internal[K]) SetKeyAt(i int, k K)   { n.keys[i] = k }
func (n *Internal[K]) ValueAt(i int) page.ID { return n.children[i] }

// ValueIndex returns the slot holding child, or -1 if absent.
func (n *Internal[K]) ValueIndex(child page.ID) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// Lookup scans slots 1..size for the child that should contain key.
// fromInsert enables the sentinel-underflow check against
// slot 0's dummy key, used while routing an insertion — this path is only
// well-defined when slot 0's key has been given a meaningful value by a
// prior InsertNodeAfter/PopulateNewRoot call.
func (n *Internal[K]) Lookup(key K, cmp Comparator[K], fromInsert bool) page.ID {
	for i := 1; i < len(n.keys); i++ {
		c := cmp(key, n.keys[i])
		if c == 0 {
			return n.children[i]
		}
		if c < 0 {
			return n.children[i-1]
		}
	}
	if fromInsert && len(n.keys) > 0 && cmp(key, n.keys[0]) < 0 {
		return page.Invalid
	}
	return n.children[len(n.children)-1]
}

// PopulateNewRoot initializes a two-entry root over oldChild/newChild,
// reparenting both.
func (n *Internal[K]) PopulateNewRoot(oldChild page.ID, newKey K, newChild page.ID, reparent func(page.ID) error) error {
	var dummy K
	n.keys = []K{dummy, newKey}
	n.children = []page.ID{oldChild, newChild}
	if err := reparent(oldChild); err != nil {
		return err
	}
	return reparent(newChild)
}

// InsertNodeAfter reparents newValue to self, then inserts (newKey,
// newValue) immediately after the slot whose value equals oldValue.
//
// Precondition when oldValue == page.Invalid: the page was just
// initialized and holds exactly one entry (an empty page panics, since
// slot 0 is read). This branch rotates slot 0 into
// slot 1 and places the new entry at slot 0, which only produces a valid
// separator layout starting from that fresh state.
func (n *Internal[K]) InsertNodeAfter(oldValue page.ID, newKey K, newValue page.ID, reparent func(page.ID) error) (int, error) {
	if err := reparent(newValue); err != nil {
		return 0, err
	}
	if oldValue == page.Invalid {
		n.keys = insertAt(n.keys, 1, n.keys[0])
		n.children = insertAt(n.children, 1, n.children[0])
		n.keys[0] = newKey
		n.children[0] = newValue
		return len(n.children), nil
	}
	idx := n.ValueIndex(oldValue)
	n.keys = insertAt(n.keys, idx+1, newKey)
	n.children = insertAt(n.children, idx+1, newValue)
	return len(n.children), nil
}

// MoveHalfTo moves a suffix of entries to recipient, a newly created empty
// sibling with the same parent. insertionIndex is the slot of the entry
// whose insertion overflowed the page. The split point is ceil((size+1)/2),
// adjusted down by one when insertionIndex < min_size.
func (n *Internal[K]) MoveHalfTo(recipient *Internal[K], insertionIndex int, reparent func(page.ID) error) error {
	mid := (len(n.keys) + 2) / 2
	if insertionIndex < InternalMinSize(n.maxSize) {
		mid--
	}

	moved := append([]page.ID(nil), n.children[mid:]...)
	recipient.keys = append(recipient.keys, n.keys[mid:]...)
	recipient.children = append(recipient.children, moved...)
	n.keys = n.keys[:mid]
	n.children = n.children[:mid]

	for _, c := range moved {
		if err := reparent(c); err != nil {
			return err
		}
	}
	return nil
}

// MoveAllTo overwrites self's slot-0 key with the separator inherited from
// the parent, then appends all of self's entries onto recipient,
// reparenting the moved children.
func (n *Internal[K]) MoveAllTo(recipient *Internal[K], middleKey K, reparent func(page.ID) error) error {
	if len(n.keys) > 0 {
		n.keys[0] = middleKey
	}
	recipient.keys = append(recipient.keys, n.keys...)
	recipient.children = append(recipient.children, n.children...)
	for _, c := range n.children {
		if err := reparent(c); err != nil {
			return err
		}
	}
	n.keys = nil
	n.children = nil
	return nil
}

// MoveFirstToEndOf moves self's first child to the end of recipient (self's
// left sibling), using middleKey as the new separator recipient inherits
// from the parent. Returns the new parent separator between recipient and
// self — self's key[1] before the move, which lands in self's slot 0 by the
// same shift that drops the moved child, so it doubles as the correct
// boundary key without a second pass.
func (n *Internal[K]) MoveFirstToEndOf(recipient *Internal[K], middleKey K, reparent func(page.ID) error) (K, error) {
	child := n.children[0]
	recipient.keys = append(recipient.keys, middleKey)
	recipient.children = append(recipient.children, child)
	n.keys = removeAt(n.keys, 0)
	n.children = removeAt(n.children, 0)
	if err := reparent(child); err != nil {
		var zero K
		return zero, err
	}
	return n.keys[0], nil
}

// MoveLastToFrontOf moves self's last child to the front of recipient
// (self's right sibling), using middleKey as the separator recipient
// inherits from the parent for the newly prepended child. Returns the new
// parent separator between self and recipient — self's last key before the
// move, which described exactly the boundary the departing child leaves
// behind.
func (n *Internal[K]) MoveLastToFrontOf(recipient *Internal[K], middleKey K, reparent func(page.ID) error) (K, error) {
	last := len(n.children) - 1
	newSep := n.keys[last]
	child := n.children[last]
	n.keys = n.keys[:last]
	n.children = n.children[:last]

	recipient.children = insertAt(recipient.children, 0, child)
	recipient.keys = insertAt(recipient.keys, 1, middleKey)
	if err := reparent(child); err != nil {
		var zero K
		return zero, err
	}
	return newSep, nil
}

// Remove deletes slot index, shifting the tail left.
func (n *Internal[K]) Remove(index int) {
	n.keys = removeAt(n.keys, index)
	n.children = removeAt(n.children, index)
}

// RemoveAndReturnOnlyChild returns the sole remaining child, used when
// AdjustRoot collapses a root with a single child.
func (n *Internal[K]) RemoveAndReturnOnlyChild() page.ID {
	child := n.children[0]
	n.keys = nil
	n.children = nil
	return child
}

// Encode serializes the internal page into a page-sized buffer.
func (n *Internal[K]) Encode(buf *[page.Size]byte) error {
	writeCommonHeader(buf, typeInternal, len(n.keys), n.maxSize, n.parentID, n.pageID)

	off := commonHeader
	for i := range n.keys {
		if err := putSlot(buf, &off, n.keyCodec.Encode(n.keys[i])); err != nil {
			return err
		}
		if off+4 > page.Size {
			return errPageOverflow
		}
		binary.LittleEndian.PutUint32(buf[off:], uint32(n.children[i]))
		off += 4
	}
	return nil
}

// DecodeInternal parses an internal page's bytes into an in-memory view.
func DecodeInternal[K any](buf *[page.Size]byte, kc Codec[K]) (*Internal[K], error) {
	size, maxSize, parentID, pageID := readCommonHeader(buf)

	n := &Internal[K]{
		pageID:   pageID,
		parentID: parentID,
		maxSize:  maxSize,
		keys:     make([]K, 0, size),
		children: make([]page.ID, 0, size),
		keyCodec: kc,
	}

	off := commonHeader
	for i := 0; i < size; i++ {
		kb, err := getSlot(buf, &off)
		if err != nil {
			return nil, err
		}
		if off+4 > page.Size {
			return nil, errPageOverflow
		}
		child := page.ID(int32(binary.LittleEndian.Uint32(buf[off:])))
		off += 4
		n.keys = append(n.keys, kc.Decode(kb))
		n.children = append(n.children, child)
	}
	return n, nil
}
