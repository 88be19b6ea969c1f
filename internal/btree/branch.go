package btree

import (
	"encoding/binary"

	"github.com/govetachun/redbtree/internal/pagestore"
	"github.com/govetachun/redbtree/pkg/dbg"
)

// Branch page layout (spec §3, bit-exact, little-endian):
//
//	offset 0  : u8   kind = 2
//	offset 1  : u8   reserved
//	offset 2  : u16  num_keys
//	offset 4  : page_number[num_keys + 1]  children
//	offset ...: u32[num_keys]              key_end
//	offset ...: bytes                      concatenated keys
const branchHeaderSize = 4

// BranchAccessor is the read side of a branch page (spec §4.5, mirroring
// §4.1's leaf accessor).
type BranchAccessor struct {
	data []byte
}

func NewBranchAccessor(data []byte) BranchAccessor { return BranchAccessor{data} }

func (a BranchAccessor) NumKeys() uint16 {
	return binary.LittleEndian.Uint16(a.data[2:4])
}

func (a BranchAccessor) childPos(i uint16) int {
	return branchHeaderSize + pagestore.PageNumberSize*int(i)
}

// Child returns the i-th child page number; i ranges over [0, NumKeys()].
func (a BranchAccessor) Child(i uint16) pagestore.PageNumber {
	dbg.Assert(i <= a.NumKeys(), "BranchAccessor.Child: index %d out of range (n=%d)", i, a.NumKeys())
	return pagestore.PageNumberFromBytes(a.data[a.childPos(i):])
}

func (a BranchAccessor) keyEndOffsetPos(i uint16) int {
	n := a.NumKeys()
	return branchHeaderSize + pagestore.PageNumberSize*(int(n)+1) + 4*int(i)
}

func (a BranchAccessor) keyEnd(i uint16) uint32 {
	return binary.LittleEndian.Uint32(a.data[a.keyEndOffsetPos(i):])
}

func (a BranchAccessor) keyAreaStart() uint32 {
	n := a.NumKeys()
	return uint32(branchHeaderSize + pagestore.PageNumberSize*(int(n)+1) + 4*int(n))
}

func (a BranchAccessor) keyStart(i uint16) uint32 {
	if i == 0 {
		return a.keyAreaStart()
	}
	return a.keyEnd(i - 1)
}

// KeyUnchecked returns key i (0 <= i < NumKeys()) without bounds checking.
func (a BranchAccessor) KeyUnchecked(i uint16) []byte {
	return a.data[a.keyStart(i):a.keyEnd(i)]
}

// ChildForKey performs the binary search spec §4.5 requires: on an exact
// match at keys[mid] (which is, by construction, the greatest key of
// child mid — see Leaf Builder's split-key convention), descend into
// children[mid]; otherwise descend into the child at the insertion index.
func (a BranchAccessor) ChildForKey(query []byte, cmp Comparator) (childIndex uint16, child pagestore.PageNumber) {
	n := a.NumKeys()
	lo, hi := 0, int(n)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		c := cmp(a.KeyUnchecked(uint16(mid)), query)
		switch {
		case c == 0:
			return uint16(mid), a.Child(uint16(mid))
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return uint16(lo), a.Child(uint16(lo))
}

// TotalLength mirrors LeafAccessor.TotalLength: the used payload size.
func (a BranchAccessor) TotalLength() uint32 {
	n := a.NumKeys()
	if n == 0 {
		return uint32(branchHeaderSize + pagestore.PageNumberSize)
	}
	return a.keyEnd(n - 1)
}

// --- raw branch writer ---

type branchEntry struct {
	child pagestore.PageNumber
	key   []byte // separator key following this child; empty for the last child
}

// writeBranchPairs writes a branch page given its children (len = n+1)
// and separator keys (len = n). Mirrors writeLeafPairs for leaves.
func writeBranchPairs(data []byte, children []pagestore.PageNumber, keys [][]byte) {
	dbg.Assert(len(children) == len(keys)+1, "writeBranchPairs: %d children, %d keys", len(children), len(keys))
	n := uint16(len(keys))
	data[0] = pageKindBranch
	data[1] = 0
	binary.LittleEndian.PutUint16(data[2:4], n)

	if DebugPoison {
		for i := branchHeaderSize; i < branchHeaderSize+pagestore.PageNumberSize*(int(n)+1)+4*int(n); i++ {
			data[i] = 0xFF
		}
	}

	for i, c := range children {
		c.PutBytes(data[branchHeaderSize+pagestore.PageNumberSize*i:])
	}

	keyAreaStart := branchHeaderSize + pagestore.PageNumberSize*(int(n)+1) + 4*int(n)
	written := 0
	for i, k := range keys {
		start := keyAreaStart + written
		end := start + len(k)
		copy(data[start:end], k)
		binary.LittleEndian.PutUint32(data[branchHeaderSize+pagestore.PageNumberSize*(int(n)+1)+4*i:], uint32(end))
		written += len(k)
	}
}

func requiredBranchSize(children []pagestore.PageNumber, keys [][]byte) int {
	size := branchHeaderSize + pagestore.PageNumberSize*len(children) + 4*len(keys)
	for _, k := range keys {
		size += len(k)
	}
	return size
}
