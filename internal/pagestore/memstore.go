package pagestore

import "fmt"

// MemStore is an in-memory Store used by the core engine's own tests and
// by callers that don't need durability. Grounded on the teacher's
// test_btree.go newC() harness (a map[uint64]BNode keyed by pointer),
// generalized with an explicit uncommitted set so the free-policy paths
// in spec §4.6 can be exercised without a real file.
type MemStore struct {
	pageSize    int
	nextPage    PageNumber
	pages       map[PageNumber][]byte
	uncommitted map[PageNumber]bool
}

// NewMemStore creates an empty store with the given page size.
func NewMemStore(pageSize int) *MemStore {
	return &MemStore{
		pageSize:    pageSize,
		nextPage:    1, // 0 is reserved as InvalidPageNumber
		pages:       map[PageNumber][]byte{},
		uncommitted: map[PageNumber]bool{},
	}
}

func (m *MemStore) PageSize() int { return m.pageSize }

func (m *MemStore) Allocate(minBytes int) (Page, error) {
	size := m.pageSize
	if minBytes > size {
		size = minBytes // oversized single-pair leaf, spec §9 Open Question (a)
	}
	n := m.nextPage
	m.nextPage++
	buf := make([]byte, size)
	m.pages[n] = buf
	m.uncommitted[n] = true
	return Page{Number: n, Bytes: buf}, nil
}

func (m *MemStore) Get(n PageNumber) (Page, error) {
	buf, ok := m.pages[n]
	if !ok {
		return Page{}, fmt.Errorf("pagestore: page %d not found", n)
	}
	return Page{Number: n, Bytes: buf}, nil
}

func (m *MemStore) GetMut(n PageNumber) (Page, error) {
	return m.Get(n)
}

func (m *MemStore) Uncommitted(n PageNumber) bool {
	return m.uncommitted[n]
}

func (m *MemStore) Free(n PageNumber) {
	delete(m.pages, n)
	delete(m.uncommitted, n)
}

func (m *MemStore) FreeIfUncommitted(n PageNumber) bool {
	if !m.uncommitted[n] {
		return false
	}
	m.Free(n)
	return true
}

// Commit demotes every currently-uncommitted page to committed, and frees
// the pages in freed (the caller's freed list accumulated under the Never
// policy during the transaction). Mirrors concurrent-reader-writer's
// commit-time freelist reclamation.
func (m *MemStore) Commit(freed []PageNumber) {
	for n := range m.uncommitted {
		delete(m.uncommitted, n)
	}
	for _, n := range freed {
		delete(m.pages, n)
	}
}

// PageCount returns the number of live pages, for balance/leak assertions
// in tests (spec §8's "pages reachable... equals pages allocated minus
// freed" property).
func (m *MemStore) PageCount() int {
	return len(m.pages)
}
