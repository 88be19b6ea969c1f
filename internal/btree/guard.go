package btree

import (
	"github.com/govetachun/redbtree/internal/pagestore"
	"github.com/govetachun/redbtree/pkg/dbg"
)

// dropAction tags what an AccessGuard does when it is closed (spec §4.7,
// §9 "Access-guard on-drop action"). Go has no destructors, so guards
// require an explicit Close and disallow use after it.
type dropAction int

const (
	dropNone dropAction = iota
	dropFree
	dropRemoveEntry
)

// ReadGuard is a scoped, read-only handle into a page's byte range. Its
// on-drop action is one of None, Free(page), or RemoveEntry(position) —
// the last completes a deferred leaf delete once the caller is done
// reading the removed value.
type ReadGuard struct {
	store    pagestore.Store
	page     pagestore.Page
	start    uint32
	end      uint32
	action   dropAction
	freeNum  pagestore.PageNumber
	removeAt uint16
	closed   bool
}

func newReadGuardNone(page pagestore.Page, start, end uint32) *ReadGuard {
	return &ReadGuard{page: page, start: start, end: end, action: dropNone}
}

func newReadGuardFree(store pagestore.Store, page pagestore.Page, start, end uint32, toFree pagestore.PageNumber) *ReadGuard {
	return &ReadGuard{store: store, page: page, start: start, end: end, action: dropFree, freeNum: toFree}
}

func newReadGuardRemoveEntry(store pagestore.Store, page pagestore.Page, start, end uint32, position uint16) *ReadGuard {
	return &ReadGuard{store: store, page: page, start: start, end: end, action: dropRemoveEntry, removeAt: position}
}

// Bytes returns the borrowed byte range. Valid until Close.
func (g *ReadGuard) Bytes() []byte {
	dbg.Assert(!g.closed, "ReadGuard: use after Close")
	return g.page.Bytes[g.start:g.end]
}

// Close runs the guard's on-drop action exactly once.
func (g *ReadGuard) Close() {
	if g.closed {
		return
	}
	g.closed = true
	switch g.action {
	case dropNone:
	case dropFree:
		g.store.Free(g.freeNum)
	case dropRemoveEntry:
		leafRemoveInPlace(g.page.Bytes, g.removeAt)
	}
}

// MutGuard is a write-through slice into a leaf's value region, used by
// Insert to let the caller overwrite the value bytes directly. It has no
// on-drop action (spec §4.7).
type MutGuard struct {
	page   pagestore.Page
	start  uint32
	end    uint32
	closed bool
}

func newMutGuard(page pagestore.Page, start, end uint32) *MutGuard {
	return &MutGuard{page: page, start: start, end: end}
}

// Bytes returns the mutable value slice. Valid until Close.
func (g *MutGuard) Bytes() []byte {
	dbg.Assert(!g.closed, "MutGuard: use after Close")
	return g.page.Bytes[g.start:g.end]
}

// Close marks the guard as no longer usable. MutGuard has no on-drop
// obligation; Close exists so callers follow the same discipline as
// ReadGuard and use-after-close is still caught.
func (g *MutGuard) Close() {
	g.closed = true
}
