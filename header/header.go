// Package header implements the well-known header page (page ID 0) that
// persists named root-pointer records across reopenings: process-wide state
// whose lifecycle matches the database instance, never cached across
// reopens — every InsertRecord/UpdateRecord/GetRecord round-trips through
// the buffer pool so the usual pin/dirty/writeback discipline applies to it
// exactly as it does to any other page.
//
// The on-disk record format and its xxhash trailer checksum are grounded on
// alexhholmes-fredb/internal/base/page.go's MetaPage: magic number, a
// checksum computed over everything but itself, validated on every read.
package header

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"talondb/buffer"
	"talondb/errs"
	"talondb/page"
)

const (
	magicNumber   uint32 = 0x74616c6e // "taln"
	checksumBytes        = 8
)

// Store is the named root-pointer registry backed by the buffer pool's
// header page.
type Store struct {
	pool *buffer.Pool
}

// New wraps an existing buffer pool. Call Init on a fresh database file
// before using a Store, or Verify when reopening an existing one.
func New(pool *buffer.Pool) *Store {
	return &Store{pool: pool}
}

// Init allocates and initializes the header page. Must be called exactly
// once, before any other page is allocated, so the buffer pool's monotonic
// disk allocator hands out page.HeaderID.
func (s *Store) Init() error {
	pg, err := s.pool.NewPage()
	if err != nil {
		return fmt.Errorf("header: allocate header page: %w", err)
	}
	if pg.ID != page.HeaderID {
		return fmt.Errorf("header: expected page id %d for header page, got %d (must be the first page allocated)", page.HeaderID, pg.ID)
	}
	encodeRecords(&pg.Data, nil)
	return unpinDirty(s.pool, pg.ID)
}

// Verify fetches the header page and checks its magic number and checksum,
// without modifying anything.
func (s *Store) Verify() error {
	pg, err := s.pool.FetchPage(page.HeaderID)
	if err != nil {
		return fmt.Errorf("header: fetch header page: %w", err)
	}
	defer s.pool.UnpinPage(page.HeaderID, false)

	_, err = decodeRecords(&pg.Data)
	return err
}

// record is one name → root page ID entry.
type record struct {
	name string
	root page.ID
}

// GetRecord looks up the root page ID for name.
func (s *Store) GetRecord(name string) (page.ID, error) {
	pg, err := s.pool.FetchPage(page.HeaderID)
	if err != nil {
		return page.Invalid, fmt.Errorf("header: fetch header page: %w", err)
	}
	defer s.pool.UnpinPage(page.HeaderID, false)

	recs, err := decodeRecords(&pg.Data)
	if err != nil {
		return page.Invalid, err
	}
	for _, r := range recs {
		if r.name == name {
			return r.root, nil
		}
	}
	return page.Invalid, errs.ErrRecordNotFound
}

// InsertRecord creates a new name → root page ID record. Overwrites any
// existing record of the same name (idempotent insert), matching the
// "insert=true" persistence call a fresh tree issues on its first root.
func (s *Store) InsertRecord(name string, root page.ID) error {
	return s.mutate(name, root)
}

// UpdateRecord overwrites an existing record's root page ID, creating it if
// absent. On-disk, insert and update are the same operation — the
// distinction drawn at the caller level (insert on a fresh tree, update on every
// later root change) is about caller intent, not storage format.
func (s *Store) UpdateRecord(name string, root page.ID) error {
	return s.mutate(name, root)
}

func (s *Store) mutate(name string, root page.ID) error {
	pg, err := s.pool.FetchPage(page.HeaderID)
	if err != nil {
		return fmt.Errorf("header: fetch header page: %w", err)
	}

	recs, err := decodeRecords(&pg.Data)
	if err != nil {
		s.pool.UnpinPage(page.HeaderID, false)
		return err
	}

	found := false
	for i := range recs {
		if recs[i].name == name {
			recs[i].root = root
			found = true
			break
		}
	}
	if !found {
		recs = append(recs, record{name: name, root: root})
	}

	if err := encodeRecords(&pg.Data, recs); err != nil {
		s.pool.UnpinPage(page.HeaderID, false)
		return err
	}
	return unpinDirty(s.pool, page.HeaderID)
}

func unpinDirty(pool *buffer.Pool, id page.ID) error {
	if !pool.UnpinPage(id, true) {
		return fmt.Errorf("header: failed to unpin header page %d", id)
	}
	return nil
}

// encodeRecords writes magic + count + entries + trailer checksum into buf.
func encodeRecords(buf *[page.Size]byte, recs []record) error {
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], magicNumber)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(recs)))
	off += 2

	for _, r := range recs {
		nameBytes := []byte(r.name)
		if off+2+len(nameBytes)+4+checksumBytes > page.Size {
			return fmt.Errorf("header: too many records to fit in one page")
		}
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(nameBytes)))
		off += 2
		copy(buf[off:], nameBytes)
		off += len(nameBytes)
		binary.LittleEndian.PutUint32(buf[off:], uint32(r.root))
		off += 4
	}

	// Zero the gap between the last entry and the trailer so re-decoding
	// after a shrink doesn't see stale bytes.
	for i := off; i < page.Size-checksumBytes; i++ {
		buf[i] = 0
	}

	sum := xxhash.Sum64(buf[:page.Size-checksumBytes])
	binary.LittleEndian.PutUint64(buf[page.Size-checksumBytes:], sum)
	return nil
}

// decodeRecords validates the checksum and magic number, then parses out
// the record list.
func decodeRecords(buf *[page.Size]byte) ([]record, error) {
	want := binary.LittleEndian.Uint64(buf[page.Size-checksumBytes:])
	got := xxhash.Sum64(buf[:page.Size-checksumBytes])
	if want != got {
		return nil, errs.ErrInvalidChecksum
	}

	off := 0
	magic := binary.LittleEndian.Uint32(buf[off:])
	if magic != magicNumber {
		return nil, errs.ErrInvalidMagicNumber
	}
	off += 4

	count := binary.LittleEndian.Uint16(buf[off:])
	off += 2

	recs := make([]record, 0, count)
	for i := uint16(0); i < count; i++ {
		if off+2 > page.Size {
			return nil, errs.ErrCorruption
		}
		nameLen := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		if off+nameLen+4 > page.Size {
			return nil, errs.ErrCorruption
		}
		name := string(buf[off : off+nameLen])
		off += nameLen
		root := page.ID(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		recs = append(recs, record{name: name, root: root})
	}
	return recs, nil
}
