package pagestore

import "encoding/binary"

// diskFreeList is a persistent chain of reclaimed page numbers, written as
// its own page kind. Grounded bit-for-bit on kv-store/free_list.go's
// node-chain free list:
//
//	| node1 |        | node2 |        | node3 |
//	+-----------+    +-----------+    +-----------+
//	| total=xxx |    |           |    |           |
//	| next=yyy  | => | next=qqq  | => | next=eee  | => ...
//	| size=zzz  |    | size=ppp  |    | size=rrr  |
//	| pointers  |    | pointers  |    | pointers  |
//
// node format: | kind(2B) | size(2B) | total(8B) | next(8B) | pointers (size*8B) |
const (
	freeListNodeKind   = 0xFF // never collides with btree's leaf(1)/branch(2) kinds
	freeListHeaderSize = 2 + 2 + 8 + 8
)

func freeListCapForSize(pageSize int) int { return (pageSize - freeListHeaderSize) / 8 }

type diskFreeList struct {
	head     PageNumber
	pageSize int
	get      func(PageNumber) []byte
	alloc    func() PageNumber // append a fresh page, returns its number
}

func flnSize(node []byte) int       { return int(binary.LittleEndian.Uint16(node[2:4])) }
func flnTotal(node []byte) uint64   { return binary.LittleEndian.Uint64(node[4:12]) }
func flnNext(node []byte) PageNumber {
	return PageNumber(binary.LittleEndian.Uint64(node[12:20]))
}
func flnPtr(node []byte, idx int) PageNumber {
	pos := freeListHeaderSize + idx*8
	return PageNumber(binary.LittleEndian.Uint64(node[pos:]))
}
func flnSetHeader(node []byte, size int, total uint64, next PageNumber) {
	binary.LittleEndian.PutUint16(node[0:2], freeListNodeKind)
	binary.LittleEndian.PutUint16(node[2:4], uint16(size))
	binary.LittleEndian.PutUint64(node[4:12], total)
	binary.LittleEndian.PutUint64(node[12:20], uint64(next))
}
func flnSetPtr(node []byte, idx int, ptr PageNumber) {
	pos := freeListHeaderSize + idx*8
	binary.LittleEndian.PutUint64(node[pos:], uint64(ptr))
}

// total returns the number of reclaimable pointers in the list.
func (fl *diskFreeList) total() int {
	if fl.head == InvalidPageNumber {
		return 0
	}
	return int(flnTotal(fl.get(fl.head)))
}

// pop removes and returns one reclaimable page number, or InvalidPageNumber
// if the list is empty.
func (fl *diskFreeList) pop() PageNumber {
	if fl.head == InvalidPageNumber {
		return InvalidPageNumber
	}
	node := fl.get(fl.head)
	size := flnSize(node)
	if size == 0 {
		next := flnNext(node)
		fl.head = next
		return fl.pop()
	}
	ptr := flnPtr(node, size-1)
	flnSetHeader(node, size-1, flnTotal(node)-1, flnNext(node))
	return ptr
}

// push prepends freed page numbers as new free-list nodes.
func (fl *diskFreeList) push(freed []PageNumber) {
	if len(freed) == 0 {
		return
	}
	total := uint64(fl.total())
	cap := freeListCapForSize(fl.pageSize)
	for len(freed) > 0 {
		size := len(freed)
		if size > cap {
			size = cap
		}
		n := fl.alloc()
		node := fl.get(n)
		total += uint64(size)
		flnSetHeader(node, size, total, fl.head)
		for i, ptr := range freed[:size] {
			flnSetPtr(node, i, ptr)
		}
		fl.head = n
		freed = freed[size:]
	}
}
