package btree

import (
	"github.com/govetachun/redbtree/internal/pagestore"
	"github.com/govetachun/redbtree/pkg/dbg"
)

// BranchBuilder holds a vector of child page numbers and a vector of
// separator key slices, mirroring LeafBuilder (spec §4.5).
type BranchBuilder struct {
	children []pagestore.PageNumber
	keys     [][]byte
}

func NewBranchBuilder() *BranchBuilder { return &BranchBuilder{} }

// NewBranchBuilderFrom seeds a builder directly from already-assembled
// children/keys slices — the common case in the mutation driver, which
// builds the new arrays by splicing an accessor's contents around an
// inserted or removed child.
func NewBranchBuilderFrom(children []pagestore.PageNumber, keys [][]byte) *BranchBuilder {
	return &BranchBuilder{children: children, keys: keys}
}

// branchChildrenAndKeys decodes every child pointer and separator key out
// of an existing branch page, for splicing into a rebuilt branch.
func branchChildrenAndKeys(acc BranchAccessor) (children []pagestore.PageNumber, keys [][]byte) {
	n := acc.NumKeys()
	children = make([]pagestore.PageNumber, n+1)
	for i := uint16(0); i <= n; i++ {
		children[i] = acc.Child(i)
	}
	keys = make([][]byte, n)
	for i := uint16(0); i < n; i++ {
		keys[i] = append([]byte(nil), acc.KeyUnchecked(i)...)
	}
	return children, keys
}

// PushChild appends the next child pointer. The first call sets the
// leftmost child; every subsequent call must be preceded by a PushKey
// call supplying the separator between the previous child and this one.
func (b *BranchBuilder) PushChild(c pagestore.PageNumber) {
	b.children = append(b.children, c)
}

// PushKey appends the next separator key.
func (b *BranchBuilder) PushKey(key []byte) {
	b.keys = append(b.keys, key)
}

func (b *BranchBuilder) NumKeys() int { return len(b.keys) }

// ToSingleChild returns the only child when there are no keys — used by
// the driver to collapse a branch with a single remaining subtree (spec
// §4.5).
func (b *BranchBuilder) ToSingleChild() (pagestore.PageNumber, bool) {
	if len(b.keys) == 0 && len(b.children) == 1 {
		return b.children[0], true
	}
	return 0, false
}

func (b *BranchBuilder) requiredSize() int {
	return requiredBranchSize(b.children, b.keys)
}

// ShouldSplit requires num_keys >= 3 in addition to exceeding the page
// size (spec §4.5).
func (b *BranchBuilder) ShouldSplit(pageSize int) bool {
	return b.requiredSize() > pageSize && len(b.keys) >= 3
}

func (b *BranchBuilder) Build(store pagestore.Store) (pagestore.Page, error) {
	dbg.Assert(len(b.children) == len(b.keys)+1, "BranchBuilder.Build: %d children, %d keys", len(b.children), len(b.keys))
	page, err := store.Allocate(b.requiredSize())
	if err != nil {
		return pagestore.Page{}, err
	}
	writeBranchPairs(page.Bytes, b.children, b.keys)
	return page, nil
}

// BuildSplit halves around division = num_keys/2; the key at that index
// becomes the separator promoted upward and is not stored on either side
// (spec §4.5).
func (b *BranchBuilder) BuildSplit(store pagestore.Store) (left pagestore.Page, sepKey []byte, right pagestore.Page, err error) {
	dbg.Assert(len(b.keys) >= 3, "BuildSplit requires num_keys >= 3, got %d", len(b.keys))

	division := len(b.keys) / 2
	leftChildren := b.children[:division+1]
	leftKeys := b.keys[:division]
	sepKey = b.keys[division]
	rightChildren := b.children[division+1:]
	rightKeys := b.keys[division+1:]

	leftPage, err := store.Allocate(requiredBranchSize(leftChildren, leftKeys))
	if err != nil {
		return pagestore.Page{}, nil, pagestore.Page{}, err
	}
	writeBranchPairs(leftPage.Bytes, leftChildren, leftKeys)

	rightPage, err := store.Allocate(requiredBranchSize(rightChildren, rightKeys))
	if err != nil {
		return pagestore.Page{}, nil, pagestore.Page{}, err
	}
	writeBranchPairs(rightPage.Bytes, rightChildren, rightKeys)

	return leftPage, sepKey, rightPage, nil
}
