// Package errs collects the sentinel errors shared across talondb's storage
// layers. Boolean-vs-error is a deliberate split: pool misses, duplicate
// keys and not-found key lookups are expected control flow and are reported
// as plain bool returns by their callers. These sentinels cover disk I/O and
// data-integrity failures, plus a few conditions callers match on: no free
// frame, an empty tree, a missing header record and a closed handle.
package errs

import "errors"

var (
	// ErrNoFreeFrames is returned by the buffer pool when every frame is
	// pinned and the free list and replacer are both empty.
	ErrNoFreeFrames = errors.New("talondb: no free frames available")

	// ErrFrameOutOfRange is a programmer-error guard: returned by
	// disk.FileManager.DeallocatePage for a page ID that was never
	// allocated.
	ErrFrameOutOfRange = errors.New("talondb: frame id out of range")

	// ErrEmptyTree is returned by FindLeafPage when called on an index
	// with no root yet.
	ErrEmptyTree = errors.New("talondb: tree is empty")

	// ErrCorruption reports page bytes that fail structural validation: an
	// unknown B+ tree page type tag, an internal page lookup that yields no
	// child, or a header record running past the page end. Slot overflows in
	// the B+ tree page codec are reported by separate, non-sentinel errors.
	ErrCorruption = errors.New("talondb: page corruption detected")

	// ErrInvalidChecksum is returned when a page's trailer checksum does
	// not match its computed value.
	ErrInvalidChecksum = errors.New("talondb: page checksum mismatch")

	// ErrInvalidMagicNumber is returned when the header page's magic
	// number does not match, indicating the file is not a talondb file.
	ErrInvalidMagicNumber = errors.New("talondb: invalid magic number")

	// ErrRecordNotFound is returned by the header page store when a named
	// root-pointer record does not exist.
	ErrRecordNotFound = errors.New("talondb: header record not found")

	// ErrClosed is returned by operations attempted after the owning
	// component has been closed.
	ErrClosed = errors.New("talondb: closed")
)
