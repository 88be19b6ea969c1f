package btree

import (
	"github.com/govetachun/redbtree/internal/pagestore"
	"github.com/govetachun/redbtree/pkg/dbg"
)

// LeafBuilder collects (key,value) pairs in push order and emits one or
// two pages (spec §4.2). It performs no ordering enforcement itself — the
// mutation driver is responsible for pushing in sorted order.
type LeafBuilder struct {
	pairs           []leafPair
	totalKeyBytes   int
	totalValueBytes int
}

func NewLeafBuilder() *LeafBuilder { return &LeafBuilder{} }

// Push appends one pair in builder order.
func (b *LeafBuilder) Push(key, val []byte) {
	b.pairs = append(b.pairs, leafPair{key, val})
	b.totalKeyBytes += len(key)
	b.totalValueBytes += len(val)
}

// PushAllExcept copies every pair from an existing leaf, skipping the pair
// at `except` if except >= 0.
func (b *LeafBuilder) PushAllExcept(acc LeafAccessor, except int) {
	n := acc.NumPairs()
	for i := uint16(0); i < n; i++ {
		if except >= 0 && i == uint16(except) {
			continue
		}
		k, v, _ := acc.Entry(i)
		b.Push(k, v)
	}
}

func (b *LeafBuilder) numPairs() int { return len(b.pairs) }

func (b *LeafBuilder) requiredSize() int {
	return leafHeaderSize + 8*len(b.pairs) + b.totalKeyBytes + b.totalValueBytes
}

// ShouldSplit is true iff the required page size exceeds pageSize and
// there are at least two pairs. A single oversized pair is legal (spec
// §4.2, §9 Open Question a).
func (b *LeafBuilder) ShouldSplit(pageSize int) bool {
	return b.requiredSize() > pageSize && len(b.pairs) >= 2
}

// Build allocates one page of exactly the required size and writes it.
func (b *LeafBuilder) Build(store pagestore.Store) (pagestore.Page, error) {
	page, err := store.Allocate(b.requiredSize())
	if err != nil {
		return pagestore.Page{}, err
	}
	writeLeafPairs(page.Bytes, b.pairs)
	return page, nil
}

// BuildSplit allocates two pages and a split key. The split picks the
// smallest prefix whose key+value byte sum is >= total/2, guaranteeing at
// least one pair on each side; ties favor the left side getting the
// median pair (spec §4.2).
func (b *LeafBuilder) BuildSplit(store pagestore.Store) (left pagestore.Page, splitKey []byte, right pagestore.Page, leftCount int, err error) {
	dbg.Assert(len(b.pairs) >= 2, "BuildSplit requires at least two pairs, got %d", len(b.pairs))

	total := b.totalKeyBytes + b.totalValueBytes
	division := leafSplitDivision(b.pairs, total)

	leftPairs := b.pairs[:division]
	rightPairs := b.pairs[division:]

	leftPage, err := store.Allocate(requiredLeafSize(leftPairs))
	if err != nil {
		return pagestore.Page{}, nil, pagestore.Page{}, 0, err
	}
	writeLeafPairs(leftPage.Bytes, leftPairs)

	rightPage, err := store.Allocate(requiredLeafSize(rightPairs))
	if err != nil {
		return pagestore.Page{}, nil, pagestore.Page{}, 0, err
	}
	writeLeafPairs(rightPage.Bytes, rightPairs)

	splitKeyBytes := leftPairs[len(leftPairs)-1].key
	return leftPage, splitKeyBytes, rightPage, division, nil
}

// leafSplitDivision returns the smallest prefix count k (1 <= k < len)
// such that the prefix's key+value bytes sum to at least half of total.
func leafSplitDivision(pairs []leafPair, total int) int {
	cum := 0
	division := 1
	for i, p := range pairs {
		cum += len(p.key) + len(p.val)
		if 2*cum >= total {
			division = i + 1
			break
		}
		division = i + 1
	}
	if division >= len(pairs) {
		division = len(pairs) - 1
	}
	if division < 1 {
		division = 1
	}
	return division
}
