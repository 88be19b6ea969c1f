package btree

import "github.com/govetachun/redbtree/internal/pagestore"

// Tree is the recursive mutation driver wrapped around a root pointer
// (spec §4.8, §4.9). It owns no transaction semantics of its own — the
// caller supplies the store, the free policy, and the freed-page
// accumulator for the enclosing transaction, mirroring how
// kv-store/define.go's BTree threads a page manager through every call
// rather than holding one statically.
type Tree struct {
	root   pagestore.PageNumber
	store  pagestore.Store
	policy pagestore.FreePolicy
	freed  *[]pagestore.PageNumber
	cmp    Comparator
}

// NewTree wraps an existing root (pagestore.InvalidPageNumber for an empty
// tree). freed accumulates pages the free policy did not free immediately
// (every released page under Never, committed pages under Uncommitted);
// the caller is responsible for reclaiming them after commit.
func NewTree(root pagestore.PageNumber, store pagestore.Store, policy pagestore.FreePolicy, freed *[]pagestore.PageNumber, cmp Comparator) *Tree {
	if cmp == nil {
		cmp = DefaultComparator
	}
	return &Tree{root: root, store: store, policy: policy, freed: freed, cmp: cmp}
}

// Root returns the current root page number, or InvalidPageNumber if the
// tree is empty.
func (t *Tree) Root() pagestore.PageNumber { return t.root }

// IsEmpty reports whether the tree holds no entries.
func (t *Tree) IsEmpty() bool { return t.root == pagestore.InvalidPageNumber }

// splitResult carries a child's split sibling back up the insert
// recursion as (split_key, right_page) (spec §4.8). The delete driver does
// not use it; finishBranchRebuild wraps a rebalance-time split instead.
type splitResult struct {
	splitKey  []byte
	rightPage pagestore.PageNumber
}

// Get performs a point lookup, returning a read guard with no on-drop
// action over the matching value, or ok=false if the key is absent.
func (t *Tree) Get(key []byte) (guard *ReadGuard, ok bool, err error) {
	if t.IsEmpty() {
		return nil, false, nil
	}
	pageNum := t.root
	for {
		page, err := t.store.Get(pageNum)
		if err != nil {
			return nil, false, err
		}
		switch pageKind(page.Bytes) {
		case pageKindLeaf:
			acc := NewLeafAccessor(page.Bytes)
			idx, found := acc.Position(key, t.cmp)
			if !found {
				return nil, false, nil
			}
			start, end := acc.ValueRange(idx)
			return newReadGuardNone(page, start, end), true, nil
		case pageKindBranch:
			acc := NewBranchAccessor(page.Bytes)
			_, child := acc.ChildForKey(key, t.cmp)
			pageNum = child
		default:
			return nil, false, ErrCorrupt
		}
	}
}
