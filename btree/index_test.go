package btree

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"talondb/buffer"
	"talondb/disk"
	"talondb/header"
)

func newTestIndex(t *testing.T, poolSize, maxSize int) *Index[[]byte, []byte] {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	d, err := disk.NewFileManager(path)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	pool := buffer.New(poolSize, d)
	heads := header.New(pool)
	require.NoError(t, heads.Init())

	ix, err := Open[[]byte, []byte](pool, heads, "test-index", maxSize, CompareBytes, ByteCodec{}, ByteCodec{})
	require.NoError(t, err)
	return ix
}

func kv(i int) ([]byte, []byte) {
	return []byte(fmt.Sprintf("key%02d", i)), []byte(fmt.Sprintf("val%02d", i))
}

func TestIndexInsertAndGetValue(t *testing.T) {
	ix := newTestIndex(t, 16, 4)

	k, v := kv(1)
	ok, err := ix.Insert(k, v)
	require.NoError(t, err)
	require.True(t, ok)

	got, found, err := ix.GetValue(k)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, v, got)
}

func TestIndexDuplicateInsertRejected(t *testing.T) {
	ix := newTestIndex(t, 16, 4)
	k, v := kv(1)

	ok, err := ix.Insert(k, v)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ix.Insert(k, []byte("different"))
	require.NoError(t, err)
	require.False(t, ok)

	got, _, err := ix.GetValue(k)
	require.NoError(t, err)
	require.Equal(t, v, got)
}

func TestIndexSplitPropagatesNewRoot(t *testing.T) {
	ix := newTestIndex(t, 16, 4)

	for i := 0; i < 4; i++ {
		k, v := kv(i)
		ok, err := ix.Insert(k, v)
		require.NoError(t, err)
		require.True(t, ok)
	}

	// Inserting the 4th key overflows a max_size=4 leaf, forcing a split
	// and promoting a new internal root.
	for i := 0; i < 4; i++ {
		k, v := kv(i)
		got, found, err := ix.GetValue(k)
		require.NoError(t, err)
		require.True(t, found, "key %d", i)
		require.Equal(t, v, got)
	}

	rootPg, root, err := ix.fetchInternal(ix.root)
	require.NoError(t, err)
	require.Equal(t, 2, root.GetSize())
	sep, _ := kv(2)
	require.Equal(t, sep, root.KeyAt(1))
	ix.pool.UnpinPage(rootPg.ID, false)
}

func TestIndexRemoveCausesCoalesceCollapsesRoot(t *testing.T) {
	ix := newTestIndex(t, 16, 4)

	for i := 0; i < 4; i++ {
		k, v := kv(i)
		_, err := ix.Insert(k, v)
		require.NoError(t, err)
	}

	// Removing one key from a two-leaf tree (2+2 entries) underflows a
	// leaf below LeafMinSize(4)=2, triggering a coalesce that merges both
	// leaves and collapses the internal root back to a lone leaf.
	removed, _ := kv(0)
	require.NoError(t, ix.Remove(removed))

	_, found, err := ix.GetValue(removed)
	require.NoError(t, err)
	require.False(t, found)

	for i := 1; i < 4; i++ {
		k, v := kv(i)
		got, found, err := ix.GetValue(k)
		require.NoError(t, err)
		require.True(t, found, "key %d", i)
		require.Equal(t, v, got)
	}
}

func TestIndexRemoveAllEmptiesRoot(t *testing.T) {
	ix := newTestIndex(t, 16, 4)
	k, v := kv(0)
	_, err := ix.Insert(k, v)
	require.NoError(t, err)

	require.NoError(t, ix.Remove(k))
	require.True(t, ix.IsEmpty())

	_, found, err := ix.GetValue(k)
	require.NoError(t, err)
	require.False(t, found)
}

func TestIndexGetValueOnEmptyTree(t *testing.T) {
	ix := newTestIndex(t, 16, 4)
	_, found, err := ix.GetValue([]byte("anything"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestIteratorAcrossLeaves(t *testing.T) {
	ix := newTestIndex(t, 16, 4)

	const n = 12
	for i := 0; i < n; i++ {
		k, v := kv(i)
		_, err := ix.Insert(k, v)
		require.NoError(t, err)
	}

	it, err := ix.Begin()
	require.NoError(t, err)
	defer it.Close()

	count := 0
	for !it.End() {
		wantK, wantV := kv(count)
		require.Equal(t, wantK, it.Key())
		require.Equal(t, wantV, it.Value())
		count++
		it.Next()
	}
	require.Equal(t, n, count)
}

func TestIndexRemoveTriggersLeafRedistribute(t *testing.T) {
	ix := newTestIndex(t, 16, 6)

	// Six sequential inserts split the sole leaf 3/3: L1=[10,20,30],
	// L2=[40,50,60], under a two-child root.
	for _, s := range []string{"k10", "k20", "k30", "k40", "k50", "k60"} {
		ok, err := ix.Insert([]byte(s), []byte("v-"+s))
		require.NoError(t, err)
		require.True(t, ok)
	}
	// Grow L2 to 5 entries (still under max_size=6) without splitting it,
	// so it has enough to lend without triggering a merge.
	for _, s := range []string{"k45", "k55"} {
		ok, err := ix.Insert([]byte(s), []byte("v-"+s))
		require.NoError(t, err)
		require.True(t, ok)
	}

	// Removing k10 drops L1 to size 2, below LeafMinSize(6)=3. L1+L2's
	// combined size (2+5=7) is not below max_size(6), so this must
	// redistribute L2's first entry into L1 rather than merge the leaves.
	require.NoError(t, ix.Remove([]byte("k10")))

	rootPg, root, err := ix.fetchInternal(ix.root)
	require.NoError(t, err)
	require.Equal(t, 2, root.GetSize())
	l1ID, l2ID := root.ValueAt(0), root.ValueAt(1)
	ix.pool.UnpinPage(rootPg.ID, false)

	l1Pg, l1, err := ix.fetchLeaf(l1ID)
	require.NoError(t, err)
	l2Pg, l2, err := ix.fetchLeaf(l2ID)
	require.NoError(t, err)

	require.GreaterOrEqual(t, l1.GetSize(), LeafMinSize(6))
	require.GreaterOrEqual(t, l2.GetSize(), LeafMinSize(6))
	require.Equal(t, 3, l1.GetSize())
	require.Equal(t, 4, l2.GetSize())

	ix.pool.UnpinPage(l1Pg.ID, false)
	ix.pool.UnpinPage(l2Pg.ID, false)

	_, found, err := ix.GetValue([]byte("k10"))
	require.NoError(t, err)
	require.False(t, found)

	for _, s := range []string{"k20", "k30", "k40", "k45", "k50", "k55", "k60"} {
		got, found, err := ix.GetValue([]byte(s))
		require.NoError(t, err)
		require.True(t, found, "key %s", s)
		require.Equal(t, []byte("v-"+s), got)
	}
}

func TestIndexRemoveTriggersInternalRedistribute(t *testing.T) {
	ix := newTestIndex(t, 32, 6)

	// 21 sequential inserts with max_size=6 build a three-level tree: a
	// fresh root over two internal nodes (sizes 4 and 3), each pointing
	// at leaves of exactly 3 keys (7 leaves, 21 keys total).
	const n = 21
	for i := 0; i < n; i++ {
		k, v := kv(i)
		ok, err := ix.Insert(k, v)
		require.NoError(t, err)
		require.True(t, ok)
	}

	// Grow the left internal node from 4 to 5 children: three keys that
	// sort inside the leaf [key03,key04,key05] fill it to max_size(6), so
	// it splits and the left internal node gains one child.
	for _, s := range []string{"key03a", "key04a", "key05a"} {
		ok, err := ix.Insert([]byte(s), []byte("v-"+s))
		require.NoError(t, err)
		require.True(t, ok)
	}

	// key12 is the first key of the leftmost leaf under the right
	// internal node. Removing it underflows that leaf, which coalesces
	// with its leaf neighbor and drops the right internal node's child
	// count from 3 to 2 — below InternalMinSize(6)=3. That node's only
	// sibling (the left internal node, size 5) sums to 5+2=7, above
	// max_size(6), so this must redistribute one child across (left 4,
	// right 3) rather than merge the two internal nodes.
	removed, _ := kv(12)
	require.NoError(t, ix.Remove(removed))

	rootPg, root, err := ix.fetchInternal(ix.root)
	require.NoError(t, err)
	require.Equal(t, 2, root.GetSize())
	leftID, rightID := root.ValueAt(0), root.ValueAt(1)
	ix.pool.UnpinPage(rootPg.ID, false)

	leftPg, left, err := ix.fetchInternal(leftID)
	require.NoError(t, err)
	rightPg, right, err := ix.fetchInternal(rightID)
	require.NoError(t, err)

	require.GreaterOrEqual(t, left.GetSize(), InternalMinSize(6))
	require.GreaterOrEqual(t, right.GetSize(), InternalMinSize(6))
	require.Equal(t, 4, left.GetSize())
	require.Equal(t, 3, right.GetSize())

	ix.pool.UnpinPage(leftPg.ID, false)
	ix.pool.UnpinPage(rightPg.ID, false)

	_, found, err := ix.GetValue(removed)
	require.NoError(t, err)
	require.False(t, found)

	for i := 0; i < n; i++ {
		if i == 12 {
			continue
		}
		k, v := kv(i)
		got, found, err := ix.GetValue(k)
		require.NoError(t, err)
		require.True(t, found, "key %d", i)
		require.Equal(t, v, got)
	}
}

func TestIteratorBeginAtMidLeaf(t *testing.T) {
	ix := newTestIndex(t, 16, 4)

	const n = 8
	for i := 0; i < n; i++ {
		k, v := kv(i)
		_, err := ix.Insert(k, v)
		require.NoError(t, err)
	}

	seek, _ := kv(3)
	it, err := ix.BeginAt(seek)
	require.NoError(t, err)
	defer it.Close()

	require.False(t, it.End())
	require.Equal(t, seek, it.Key())

	count := 0
	for !it.End() {
		count++
		it.Next()
	}
	require.Equal(t, n-3, count)
}
