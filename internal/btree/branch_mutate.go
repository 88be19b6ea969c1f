package btree

import "github.com/govetachun/redbtree/internal/pagestore"

// branchWriteChildPage rewrites one child pointer in place. Structural
// edits (inserting/removing a key+child) always go through a rebuild via
// BranchBuilder (spec §4.5).
func branchWriteChildPage(data []byte, index uint16, child pagestore.PageNumber) {
	acc := NewBranchAccessor(data)
	child.PutBytes(data[acc.childPos(index):])
}
