// Package btree implements the disk-resident B+ tree index: leaf and
// internal page layouts, point lookup, insertion with split propagation,
// deletion with coalesce/redistribute propagation, and a forward leaf
// iterator, all materialized through a talondb/buffer.Pool.
//
// Grounded on DaemonDB's storage_engine/access/indexfile_manager/bplustree
// package (fetchNode/writeNode/releaseNode around a shared BufferPool,
// SerializeNode/DeserializeNode as the on-disk codec, lowerBound/binarySearch
// as the slot-search primitives), generalized from that package's concrete
// []byte keys and values into a comparator- and codec-parameterized index:
// parameterized by key type, value type, and a three-way comparator.
package btree

import (
	"encoding/binary"
	"errors"
	"fmt"

	"talondb/page"
)

// errPageOverflow is returned by the internal page's Encode/DecodeInternal
// when a child page ID would run past the page boundary.
var errPageOverflow = errors.New("btree: page overflow")

// Comparator returns the sign of a-b: negative if a<b, zero if equal,
// positive if a>b.
type Comparator[K any] func(a, b K) int

// Codec encodes/decodes a key or value to/from the length-prefixed byte
// slots the leaf and internal page layouts use. Grounded on
// node_to_index_page.go's [keyLen uint16 | key bytes] slot format,
// generalized to arbitrary K/V via this interface instead of []byte.
type Codec[T any] interface {
	Encode(v T) []byte
	Decode(b []byte) T
}

// pageType distinguishes leaf pages from internal pages in the common
// header prefix.
type pageType uint8

const (
	typeInvalid pageType = iota
	typeLeaf
	typeInternal
)

// Common header layout, shared by leaf and internal pages:
//
//	offset 0:  page_type  (1 byte)
//	offset 1:  size       (2 bytes, uint16)
//	offset 3:  max_size   (2 bytes, uint16)
//	offset 5:  parent_id  (4 bytes, int32)
//	offset 9:  page_id    (4 bytes, int32)
//
// Leaf pages append next_page_id (4 bytes, int32) at offset 13, so the
// body begins at offset 17. Internal pages' body begins at offset 13.
const (
	offPageType  = 0
	offSize      = 1
	offMaxSize   = 3
	offParentID  = 5
	offPageID    = 9
	commonHeader = 13

	offNextPageID = 13
	leafHeader    = 17
)

func readPageType(buf *[page.Size]byte) pageType {
	return pageType(buf[offPageType])
}

func writeCommonHeader(buf *[page.Size]byte, t pageType, size int, maxSize int, parentID, pageID page.ID) {
	buf[offPageType] = byte(t)
	binary.LittleEndian.PutUint16(buf[offSize:], uint16(size))
	binary.LittleEndian.PutUint16(buf[offMaxSize:], uint16(maxSize))
	binary.LittleEndian.PutUint32(buf[offParentID:], uint32(parentID))
	binary.LittleEndian.PutUint32(buf[offPageID:], uint32(pageID))
}

func readCommonHeader(buf *[page.Size]byte) (size, maxSize int, parentID, pageID page.ID) {
	size = int(binary.LittleEndian.Uint16(buf[offSize:]))
	maxSize = int(binary.LittleEndian.Uint16(buf[offMaxSize:]))
	parentID = page.ID(int32(binary.LittleEndian.Uint32(buf[offParentID:])))
	pageID = page.ID(int32(binary.LittleEndian.Uint32(buf[offPageID:])))
	return
}

// putSlot writes a uint16 length prefix followed by b at *off, advancing
// *off past it. Returns an error if it would overflow the page.
func putSlot(buf *[page.Size]byte, off *int, b []byte) error {
	if *off+2+len(b) > page.Size {
		return fmt.Errorf("btree: page overflow writing %d-byte slot at offset %d", len(b), *off)
	}
	binary.LittleEndian.PutUint16(buf[*off:], uint16(len(b)))
	*off += 2
	copy(buf[*off:], b)
	*off += len(b)
	return nil
}

// getSlot reads a length-prefixed byte slot at *off, advancing *off past
// it.
func getSlot(buf *[page.Size]byte, off *int) ([]byte, error) {
	if *off+2 > page.Size {
		return nil, fmt.Errorf("btree: page overflow reading slot length at offset %d", *off)
	}
	n := int(binary.LittleEndian.Uint16(buf[*off:]))
	*off += 2
	if *off+n > page.Size {
		return nil, fmt.Errorf("btree: page overflow reading %d-byte slot at offset %d", n, *off)
	}
	b := make([]byte, n)
	copy(b, buf[*off:*off+n])
	*off += n
	return b, nil
}

// LeafMinSize returns the minimum occupancy for a non-root leaf page per
// ceil((maxSize-1)/2).
func LeafMinSize(maxSize int) int {
	return (maxSize - 1 + 1) / 2
}

// InternalMinSize returns the minimum occupancy for a non-root internal
// page: ceil(maxSize/2).
func InternalMinSize(maxSize int) int {
	return (maxSize + 1) / 2
}

// insertAt inserts elem at index i, shifting the tail right by one.
func insertAt[T any](s []T, i int, elem T) []T {
	var zero T
	s = append(s, zero)
	copy(s[i+1:], s[i:len(s)-1])
	s[i] = elem
	return s
}

// removeAt deletes the element at index i, shifting the tail left by one.
func removeAt[T any](s []T, i int) []T {
	return append(s[:i], s[i+1:]...)
}
