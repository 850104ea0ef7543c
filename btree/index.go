package btree

import (
	"fmt"

	"talondb/buffer"
	"talondb/errs"
	"talondb/header"
	"talondb/page"
)

// Index is a disk-resident B+ tree keyed by K with values V, materialized
// through a shared buffer.Pool and rooted at a named record in a
// header.Store. Grounded on DaemonDB's BPlusTree type (OpenBPlusTree,
// Insertion, FindLeaf, deleteRecursive), generalized over K/V via
// Comparator/Codec.
type Index[K any, V any] struct {
	pool  *buffer.Pool
	heads *header.Store
	name  string

	cmp     Comparator[K]
	keyC    Codec[K]
	valC    Codec[V]
	maxSize int

	root page.ID
}

// Open opens or creates the named index. If no record named name exists in
// heads, the tree starts empty (root == page.Invalid) and the first Insert
// calls StartNewTree.
func Open[K any, V any](pool *buffer.Pool, heads *header.Store, name string, maxSize int, cmp Comparator[K], keyC Codec[K], valC Codec[V]) (*Index[K, V], error) {
	root, err := heads.GetRecord(name)
	if err == errs.ErrRecordNotFound {
		root = page.Invalid
	} else if err != nil {
		return nil, fmt.Errorf("btree: open index %q: %w", name, err)
	}
	return &Index[K, V]{
		pool:    pool,
		heads:   heads,
		name:    name,
		cmp:     cmp,
		keyC:    keyC,
		valC:    valC,
		maxSize: maxSize,
		root:    root,
	}, nil
}

// IsEmpty reports whether the tree has no root yet.
func (ix *Index[K, V]) IsEmpty() bool { return ix.root == page.Invalid }

func (ix *Index[K, V]) fetchLeaf(id page.ID) (*page.Page, *Leaf[K, V], error) {
	pg, err := ix.pool.FetchPage(id)
	if err != nil {
		return nil, nil, err
	}
	l, err := DecodeLeaf[K, V](&pg.Data, ix.keyC, ix.valC)
	if err != nil {
		ix.pool.UnpinPage(id, false)
		return nil, nil, err
	}
	return pg, l, nil
}

func (ix *Index[K, V]) fetchInternal(id page.ID) (*page.Page, *Internal[K], error) {
	pg, err := ix.pool.FetchPage(id)
	if err != nil {
		return nil, nil, err
	}
	n, err := DecodeInternal[K](&pg.Data, ix.keyC)
	if err != nil {
		ix.pool.UnpinPage(id, false)
		return nil, nil, err
	}
	return pg, n, nil
}

func (ix *Index[K, V]) writeLeaf(pg *page.Page, l *Leaf[K, V]) error {
	if err := l.Encode(&pg.Data); err != nil {
		return err
	}
	if !ix.pool.UnpinPage(pg.ID, true) {
		return fmt.Errorf("btree: failed to unpin leaf page %d", pg.ID)
	}
	return nil
}

func (ix *Index[K, V]) writeInternal(pg *page.Page, n *Internal[K]) error {
	if err := n.Encode(&pg.Data); err != nil {
		return err
	}
	if !ix.pool.UnpinPage(pg.ID, true) {
		return fmt.Errorf("btree: failed to unpin internal page %d", pg.ID)
	}
	return nil
}

// deletePage removes and deallocates a page the tree no longer needs
// (post-merge leaf/internal pages, a collapsed root). The page must already
// be unpinned.
func (ix *Index[K, V]) deletePage(id page.ID) error {
	ok, err := ix.pool.DeletePage(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("btree: failed to delete page %d", id)
	}
	return nil
}

// FindLeafPage descends from root to the leaf that would contain key,
// pinning only that leaf on return.
func (ix *Index[K, V]) FindLeafPage(key K) (*page.Page, *Leaf[K, V], error) {
	if ix.IsEmpty() {
		return nil, nil, errs.ErrEmptyTree
	}

	id := ix.root
	for {
		pg, err := ix.pool.FetchPage(id)
		if err != nil {
			return nil, nil, err
		}
		if readPageType(&pg.Data) == typeLeaf {
			l, err := DecodeLeaf[K, V](&pg.Data, ix.keyC, ix.valC)
			if err != nil {
				ix.pool.UnpinPage(id, false)
				return nil, nil, err
			}
			return pg, l, nil
		}

		n, err := DecodeInternal[K](&pg.Data, ix.keyC)
		if err != nil {
			ix.pool.UnpinPage(id, false)
			return nil, nil, err
		}
		next := n.Lookup(key, ix.cmp, false)
		ix.pool.UnpinPage(id, false)
		if next == page.Invalid {
			return nil, nil, errs.ErrCorruption
		}
		id = next
	}
}

// GetValue looks up key, returning (value, true) if present.
func (ix *Index[K, V]) GetValue(key K) (V, bool, error) {
	var zero V
	if ix.IsEmpty() {
		return zero, false, nil
	}
	pg, l, err := ix.FindLeafPage(key)
	if err != nil {
		return zero, false, err
	}
	defer ix.pool.UnpinPage(pg.ID, false)

	v, ok := l.Lookup(key, ix.cmp)
	return v, ok, nil
}

// Insert inserts (key, value), returning false without modification if key
// already exists — duplicate keys are rejected.
func (ix *Index[K, V]) Insert(key K, value V) (bool, error) {
	if ix.IsEmpty() {
		return true, ix.startNewTree(key, value)
	}

	pg, l, err := ix.FindLeafPage(key)
	if err != nil {
		return false, err
	}
	if _, ok := l.Lookup(key, ix.cmp); ok {
		ix.pool.UnpinPage(pg.ID, false)
		return false, nil
	}

	size := l.Insert(key, value, ix.cmp)
	if size < l.GetMaxSize() {
		return true, ix.writeLeaf(pg, l)
	}

	sibling, sibPg, err := ix.newLeaf(l.ParentID())
	if err != nil {
		ix.pool.UnpinPage(pg.ID, false)
		return false, err
	}
	l.MoveHalfTo(sibling)
	upKey := sibling.KeyAt(0)

	if err := ix.writeLeaf(pg, l); err != nil {
		return false, err
	}
	if err := ix.writeLeaf(sibPg, sibling); err != nil {
		return false, err
	}
	return true, ix.insertIntoParent(l.PageID(), upKey, sibling.PageID(), l.ParentID())
}

func (ix *Index[K, V]) startNewTree(key K, value V) error {
	pg, err := ix.pool.NewPage()
	if err != nil {
		return fmt.Errorf("btree: start new tree: %w", err)
	}
	l := NewLeaf[K, V](pg.ID, page.Invalid, ix.maxSize, ix.keyC, ix.valC)
	l.Insert(key, value, ix.cmp)
	if err := ix.writeLeaf(pg, l); err != nil {
		return err
	}
	ix.root = pg.ID
	return ix.heads.InsertRecord(ix.name, ix.root)
}

func (ix *Index[K, V]) newLeaf(parentID page.ID) (*Leaf[K, V], *page.Page, error) {
	pg, err := ix.pool.NewPage()
	if err != nil {
		return nil, nil, err
	}
	return NewLeaf[K, V](pg.ID, parentID, ix.maxSize, ix.keyC, ix.valC), pg, nil
}

func (ix *Index[K, V]) newInternal(parentID page.ID) (*Internal[K], *page.Page, error) {
	pg, err := ix.pool.NewPage()
	if err != nil {
		return nil, nil, err
	}
	return NewInternal[K](pg.ID, parentID, ix.maxSize, ix.keyC), pg, nil
}

// reparentTo returns a closure that fetches child, updates its parent
// pointer, and writes it back — the callback InsertNodeAfter/MoveHalfTo and
// friends use to keep child->parent pointers consistent without embedding
// buffer-pool access in the page-layout types.
func (ix *Index[K, V]) reparentTo(newParent page.ID) func(page.ID) error {
	return func(child page.ID) error {
		pg, err := ix.pool.FetchPage(child)
		if err != nil {
			return err
		}
		switch readPageType(&pg.Data) {
		case typeLeaf:
			l, err := DecodeLeaf[K, V](&pg.Data, ix.keyC, ix.valC)
			if err != nil {
				ix.pool.UnpinPage(child, false)
				return err
			}
			l.SetParentID(newParent)
			return ix.writeLeaf(pg, l)
		case typeInternal:
			n, err := DecodeInternal[K](&pg.Data, ix.keyC)
			if err != nil {
				ix.pool.UnpinPage(child, false)
				return err
			}
			n.SetParentID(newParent)
			return ix.writeInternal(pg, n)
		default:
			ix.pool.UnpinPage(child, false)
			return errs.ErrCorruption
		}
	}
}

// insertIntoParent inserts (upKey, right) into left's parent, creating a
// new root or recursively splitting the parent if it overflows.
func (ix *Index[K, V]) insertIntoParent(left page.ID, upKey K, right page.ID, parentID page.ID) error {
	if parentID == page.Invalid {
		n, pg, err := ix.newInternal(page.Invalid)
		if err != nil {
			return err
		}
		if err := n.PopulateNewRoot(left, upKey, right, ix.reparentTo(pg.ID)); err != nil {
			ix.pool.UnpinPage(pg.ID, false)
			return err
		}
		if err := ix.writeInternal(pg, n); err != nil {
			return err
		}
		ix.root = pg.ID
		return ix.heads.UpdateRecord(ix.name, ix.root)
	}

	pg, n, err := ix.fetchInternal(parentID)
	if err != nil {
		return err
	}
	size, err := n.InsertNodeAfter(left, upKey, right, ix.reparentTo(parentID))
	if err != nil {
		ix.pool.UnpinPage(parentID, false)
		return err
	}
	if size <= n.GetMaxSize() {
		return ix.writeInternal(pg, n)
	}

	sibling, sibPg, err := ix.newInternal(n.ParentID())
	if err != nil {
		ix.pool.UnpinPage(parentID, false)
		return err
	}
	insertionIdx := n.ValueIndex(right)
	if err := n.MoveHalfTo(sibling, insertionIdx, ix.reparentTo(sibling.PageID())); err != nil {
		return err
	}
	midKey := sibling.KeyAt(0)

	if err := ix.writeInternal(pg, n); err != nil {
		return err
	}
	if err := ix.writeInternal(sibPg, sibling); err != nil {
		return err
	}
	return ix.insertIntoParent(n.PageID(), midKey, sibling.PageID(), n.ParentID())
}

// Remove deletes key if present, propagating coalesce/redistribute up the
// tree as needed. The target leaf's page is fetched once and stays pinned
// until its fix-up writes it back — coalesceOrRedistributeLeaf and its
// internal-page counterparts thread the caller's own already-pinned page
// down instead of re-fetching it, fetching only the sibling fresh.
func (ix *Index[K, V]) Remove(key K) error {
	if ix.IsEmpty() {
		return nil
	}
	pg, l, err := ix.FindLeafPage(key)
	if err != nil {
		return err
	}
	l.RemoveAndDeleteRecord(key, ix.cmp)

	if l.ParentID() == page.Invalid {
		if l.GetSize() == 0 {
			ix.pool.UnpinPage(pg.ID, false)
			return ix.clearRoot(pg.ID)
		}
		return ix.writeLeaf(pg, l)
	}
	if l.GetSize() >= LeafMinSize(l.GetMaxSize()) {
		return ix.writeLeaf(pg, l)
	}
	return ix.coalesceOrRedistributeLeaf(pg, l)
}

// clearRoot drops the root pointer entirely, used when the last key is
// removed from a single-leaf tree.
func (ix *Index[K, V]) clearRoot(rootPage page.ID) error {
	if err := ix.deletePage(rootPage); err != nil {
		return err
	}
	ix.root = page.Invalid
	return ix.heads.UpdateRecord(ix.name, ix.root)
}

// leftRight returns, for a child at idx within parent, the (leftIdx,
// rightIdx, sepIdx) triple identifying its adjacent sibling to merge with
// or borrow from: the left neighbor when one exists, else the right one.
// sepIdx is always rightIdx — the parent slot separating the pair.
func leftRight(idx int) (left, right, sep int) {
	if idx == 0 {
		return idx, idx + 1, idx + 1
	}
	return idx - 1, idx, idx
}

func (ix *Index[K, V]) coalesceOrRedistributeLeaf(pg *page.Page, l *Leaf[K, V]) error {
	parentPg, parent, err := ix.fetchInternal(l.ParentID())
	if err != nil {
		ix.writeLeaf(pg, l)
		return err
	}

	idx := parent.ValueIndex(l.PageID())
	leftIdx, rightIdx, sepIdx := leftRight(idx)

	var leftPg, rightPg *page.Page
	var left, right *Leaf[K, V]
	if idx == leftIdx {
		leftPg, left = pg, l
		rightPg, right, err = ix.fetchLeaf(parent.ValueAt(rightIdx))
	} else {
		rightPg, right = pg, l
		leftPg, left, err = ix.fetchLeaf(parent.ValueAt(leftIdx))
	}
	if err != nil {
		ix.pool.UnpinPage(parentPg.ID, false)
		ix.writeLeaf(pg, l)
		return err
	}

	if right.GetSize()+left.GetSize() < left.GetMaxSize() {
		right.MoveAllTo(left)
		if err := ix.writeLeaf(leftPg, left); err != nil {
			return err
		}
		if err := ix.writeLeaf(rightPg, right); err != nil {
			return err
		}
		if err := ix.deletePage(right.PageID()); err != nil {
			return err
		}
		parent.Remove(sepIdx)
		return ix.coalesceOrRedistributeInternalParent(parentPg, parent)
	}

	if idx == leftIdx {
		right.MoveFirstToEndOf(left)
	} else {
		left.MoveLastToFrontOf(right)
	}
	parent.SetKeyAt(sepIdx, right.KeyAt(0))
	if err := ix.writeLeaf(leftPg, left); err != nil {
		return err
	}
	if err := ix.writeLeaf(rightPg, right); err != nil {
		return err
	}
	return ix.writeInternal(parentPg, parent)
}

// coalesceOrRedistributeInternalParent checks parent (already pinned via
// pg) for underflow after one of its children was removed by a coalesce,
// writing it back and adjusting the root or recursing up as needed.
func (ix *Index[K, V]) coalesceOrRedistributeInternalParent(pg *page.Page, parent *Internal[K]) error {
	if parent.ParentID() == page.Invalid {
		if parent.GetSize() <= 1 {
			return ix.adjustRoot(pg, parent)
		}
		return ix.writeInternal(pg, parent)
	}
	if parent.GetSize() >= InternalMinSize(parent.GetMaxSize()) {
		return ix.writeInternal(pg, parent)
	}
	return ix.coalesceOrRedistributeInternal(pg, parent)
}

func (ix *Index[K, V]) coalesceOrRedistributeInternal(pg *page.Page, n *Internal[K]) error {
	parentPg, parent, err := ix.fetchInternal(n.ParentID())
	if err != nil {
		ix.writeInternal(pg, n)
		return err
	}

	idx := parent.ValueIndex(n.PageID())
	leftIdx, rightIdx, sepIdx := leftRight(idx)

	var leftPg, rightPg *page.Page
	var left, right *Internal[K]
	if idx == leftIdx {
		leftPg, left = pg, n
		rightPg, right, err = ix.fetchInternal(parent.ValueAt(rightIdx))
	} else {
		rightPg, right = pg, n
		leftPg, left, err = ix.fetchInternal(parent.ValueAt(leftIdx))
	}
	if err != nil {
		ix.pool.UnpinPage(parentPg.ID, false)
		ix.writeInternal(pg, n)
		return err
	}

	sep := parent.KeyAt(sepIdx)

	if right.GetSize()+left.GetSize() <= left.GetMaxSize() {
		if err := right.MoveAllTo(left, sep, ix.reparentTo(left.PageID())); err != nil {
			return err
		}
		if err := ix.writeInternal(leftPg, left); err != nil {
			return err
		}
		if err := ix.writeInternal(rightPg, right); err != nil {
			return err
		}
		if err := ix.deletePage(right.PageID()); err != nil {
			return err
		}
		parent.Remove(sepIdx)
		return ix.coalesceOrRedistributeInternalParent(parentPg, parent)
	}

	var newSep K
	if idx == leftIdx {
		newSep, err = right.MoveFirstToEndOf(left, sep, ix.reparentTo(left.PageID()))
	} else {
		newSep, err = left.MoveLastToFrontOf(right, sep, ix.reparentTo(right.PageID()))
	}
	if err != nil {
		return err
	}
	parent.SetKeyAt(sepIdx, newSep)

	if err := ix.writeInternal(leftPg, left); err != nil {
		return err
	}
	if err := ix.writeInternal(rightPg, right); err != nil {
		return err
	}
	return ix.writeInternal(parentPg, parent)
}

// adjustRoot handles a root whose size dropped to at most one child after a
// coalesce: it collapses to that lone child, becoming the new root. A leaf
// root is never collapsed here — Remove handles the empty-leaf case
// directly, since a leaf root has no "only child" to promote.
func (ix *Index[K, V]) adjustRoot(pg *page.Page, root *Internal[K]) error {
	if root.GetSize() > 1 {
		return ix.writeInternal(pg, root)
	}
	child := root.RemoveAndReturnOnlyChild()
	if err := ix.reparentTo(page.Invalid)(child); err != nil {
		ix.pool.UnpinPage(pg.ID, false)
		return err
	}
	ix.pool.UnpinPage(pg.ID, false)
	if err := ix.deletePage(root.PageID()); err != nil {
		return err
	}
	ix.root = child
	return ix.heads.UpdateRecord(ix.name, ix.root)
}
