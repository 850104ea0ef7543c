package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"talondb/errs"
	"talondb/page"
)

// memDisk is an in-memory disk.Manager stand-in for buffer pool tests. It
// also records the order of WritePage calls so writeback-before-eviction
// can be asserted.
type memDisk struct {
	pages      map[page.ID][page.Size]byte
	nextID     int32
	writeOrder []page.ID
}

func newMemDisk() *memDisk {
	return &memDisk{pages: make(map[page.ID][page.Size]byte)}
}

func (m *memDisk) ReadPage(id page.ID, buf *[page.Size]byte) error {
	data, ok := m.pages[id]
	if !ok {
		data = [page.Size]byte{}
	}
	*buf = data
	return nil
}

func (m *memDisk) WritePage(id page.ID, buf *[page.Size]byte) error {
	m.pages[id] = *buf
	m.writeOrder = append(m.writeOrder, id)
	return nil
}

func (m *memDisk) AllocatePage() (page.ID, error) {
	id := page.ID(m.nextID)
	m.nextID++
	return id, nil
}

func (m *memDisk) DeallocatePage(page.ID) error { return nil }
func (m *memDisk) Sync() error                  { return nil }
func (m *memDisk) Close() error                 { return nil }
func (m *memDisk) NumWrites() uint64            { return uint64(len(m.writeOrder)) }
func (m *memDisk) NumReads() uint64             { return 0 }

func TestInvariantFreePlusReplacerPlusPinnedEqualsPoolSize(t *testing.T) {
	d := newMemDisk()
	p := New(4, d)

	check := func() {
		s := p.Stats()
		require.Equal(t, p.Size(), s.Free+s.ReplacerSize+s.Pinned)
	}
	check()

	pg1, err := p.NewPage()
	require.NoError(t, err)
	check()

	pg2, err := p.NewPage()
	require.NoError(t, err)
	check()

	require.True(t, p.UnpinPage(pg1.ID, false))
	check()
	require.True(t, p.UnpinPage(pg2.ID, true))
	check()
}

// Dirty writeback before frame reuse.
func TestDirtyWritebackBeforeNextAllocation(t *testing.T) {
	d := newMemDisk()
	p := New(1, d)

	p0, err := p.NewPage()
	require.NoError(t, err)
	p0.Data[0] = 0xAB
	p0ID := p0.ID
	require.True(t, p.UnpinPage(p0ID, true))

	_, err = p.NewPage()
	require.NoError(t, err)

	require.Contains(t, d.writeOrder, p0ID, "dirty page must be written back before its frame is reused")
}

func TestExhaustionThenUnpinFreesOneFrame(t *testing.T) {
	d := newMemDisk()
	p := New(2, d)

	pg1, err := p.NewPage()
	require.NoError(t, err)
	pg2, err := p.NewPage()
	require.NoError(t, err)

	_, err = p.NewPage()
	require.ErrorIs(t, err, errs.ErrNoFreeFrames)

	require.True(t, p.UnpinPage(pg1.ID, false))

	pg3, err := p.NewPage()
	require.NoError(t, err)
	require.NotNil(t, pg3)

	_ = pg2
}

func TestUnpinAtZeroPinCountFails(t *testing.T) {
	d := newMemDisk()
	p := New(1, d)

	pg, err := p.NewPage()
	require.NoError(t, err)
	require.True(t, p.UnpinPage(pg.ID, false))
	require.False(t, p.UnpinPage(pg.ID, false), "unpinning an already-unpinned frame must return false")
}

func TestUnpinMissReturnsFalse(t *testing.T) {
	d := newMemDisk()
	p := New(1, d)
	require.False(t, p.UnpinPage(page.ID(999), false))
}

func TestDeletePinnedPageFails(t *testing.T) {
	d := newMemDisk()
	p := New(1, d)

	pg, err := p.NewPage()
	require.NoError(t, err)

	ok, err := p.DeletePage(pg.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteAbsentPageIsVacuouslySuccessful(t *testing.T) {
	d := newMemDisk()
	p := New(1, d)

	ok, err := p.DeletePage(page.ID(1234))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDeleteFreesFrameForReuse(t *testing.T) {
	d := newMemDisk()
	p := New(1, d)

	pg, err := p.NewPage()
	require.NoError(t, err)
	id := pg.ID
	require.True(t, p.UnpinPage(id, false))

	ok, err := p.DeletePage(id)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = p.FetchPage(id)
	require.NoError(t, err, "fetching a deleted page re-reads zeroed bytes rather than failing")
}

func TestDirtyMonotonicAcrossMultipleUnpins(t *testing.T) {
	d := newMemDisk()
	p := New(1, d)

	pg, err := p.NewPage()
	require.NoError(t, err)
	// pin again to allow two unpins
	_, err = p.FetchPage(pg.ID)
	require.NoError(t, err)

	require.True(t, p.UnpinPage(pg.ID, true))  // marks dirty, pin count now 1
	require.True(t, p.UnpinPage(pg.ID, false)) // must NOT clear dirty
	require.Equal(t, 1, p.Stats().Dirty)

	ok, err := p.FlushPage(pg.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, d.writeOrder, pg.ID)
}

func TestFlushAllFlushesEveryResidentPage(t *testing.T) {
	d := newMemDisk()
	p := New(3, d)

	var ids []page.ID
	for i := 0; i < 3; i++ {
		pg, err := p.NewPage()
		require.NoError(t, err)
		ids = append(ids, pg.ID)
		require.True(t, p.UnpinPage(pg.ID, true))
	}

	require.NoError(t, p.FlushAll())
	for _, id := range ids {
		require.Contains(t, d.writeOrder, id)
	}
}

func TestFetchPageHitIncrementsPinAndRemovesFromReplacer(t *testing.T) {
	d := newMemDisk()
	p := New(2, d)

	pg, err := p.NewPage()
	require.NoError(t, err)
	require.True(t, p.UnpinPage(pg.ID, false))
	require.Equal(t, 1, p.Stats().ReplacerSize)

	got, err := p.FetchPage(pg.ID)
	require.NoError(t, err)
	require.Equal(t, pg.ID, got.ID)
	require.Equal(t, 0, p.Stats().ReplacerSize)
	require.Equal(t, 1, p.Stats().Pinned)
}
