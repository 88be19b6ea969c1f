// Package pagestore is the external page store collaborator the core
// B-tree engine is built against: it supplies fixed-size pages addressed
// by opaque page numbers, distinguishes committed from uncommitted pages,
// and exposes allocate/get/get-mut/free/free-if-uncommitted.
//
// The core engine (internal/btree) only ever talks to the Store interface.
// This package's two implementations — MemStore for tests and the core
// engine's own test harness, FileStore for the CLI and integration tests —
// are the "external, out of scope" collaborator from the spec's point of
// view, made concrete so the rest of the module has something to run
// against.
package pagestore

import "encoding/binary"

// PageNumber is the store's opaque page address. It serializes to a
// fixed-width little-endian byte string of length PageNumberSize.
type PageNumber uint64

// PageNumberSize is the on-disk width of a serialized PageNumber.
const PageNumberSize = 8

// PutBytes writes n as PageNumberSize little-endian bytes into dst.
func (n PageNumber) PutBytes(dst []byte) {
	binary.LittleEndian.PutUint64(dst, uint64(n))
}

// PageNumberFromBytes reads a PageNumber written by PutBytes.
func PageNumberFromBytes(src []byte) PageNumber {
	return PageNumber(binary.LittleEndian.Uint64(src))
}

// InvalidPageNumber never denotes a real page; used for empty-tree roots.
const InvalidPageNumber PageNumber = 0

// Page is a handle to a fixed-size page's bytes. The same type backs both
// read-only and mutable access; callers obtain one or the other through
// Store.Get / Store.GetMut and are expected to respect that contract, the
// same way the teacher's BNode carries a single []byte for both purposes.
type Page struct {
	Number PageNumber
	Bytes  []byte
}

// Store is the external page store interface the core engine is built
// against (spec §6.1).
type Store interface {
	// PageSize returns the constant page size S for this store instance.
	PageSize() int

	// Allocate returns a zero-initialized mutable page of at least
	// minBytes. The spec permits a single oversized leaf to request more
	// than PageSize (§9 Open Question a); stores must accept that.
	Allocate(minBytes int) (Page, error)

	// Get returns a read-only handle; it remains valid until the caller
	// is done with it. Never call Free on a page a live Get result still
	// references.
	Get(n PageNumber) (Page, error)

	// GetMut returns an exclusive mutable handle. The caller must
	// guarantee no other references to n exist.
	GetMut(n PageNumber) (Page, error)

	// Uncommitted reports whether n was allocated by the current
	// transaction and has not yet been committed.
	Uncommitted(n PageNumber) bool

	// Free unconditionally frees n. The caller must prove no references
	// to n remain.
	Free(n PageNumber)

	// FreeIfUncommitted frees n and returns true iff n was uncommitted.
	// A false return leaves n untouched (it is committed and must be
	// reclaimed through the freed list instead).
	FreeIfUncommitted(n PageNumber) bool
}
