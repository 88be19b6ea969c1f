package btree

import "github.com/govetachun/redbtree/internal/pagestore"

// Iterator walks leaf pairs in key order over a root-to-leaf path, the
// same path/position stack design as refactor_code/internal/storage/btree
// iterator.go's BIter, adapted from that package's single-pointer BNode
// to this package's leaf/branch accessors.
type Iterator struct {
	store pagestore.Store
	cmp   Comparator
	path  []pagestore.Page
	pos   []uint16
	end   []byte // exclusive upper bound, nil for unbounded
}

// Range returns an iterator starting at the first key >= start (nil means
// "from the beginning") and running until it reaches end (nil means "to
// the end"), exclusive of end.
func (t *Tree) Range(start, end []byte) (*Iterator, error) {
	it := &Iterator{store: t.store, cmp: t.cmp, end: end}
	if t.IsEmpty() {
		return it, nil
	}
	pageNum := t.root
	for {
		page, err := t.store.Get(pageNum)
		if err != nil {
			return nil, err
		}
		it.path = append(it.path, page)
		switch pageKind(page.Bytes) {
		case pageKindLeaf:
			acc := NewLeafAccessor(page.Bytes)
			var idx uint16
			if start == nil {
				idx = 0
			} else {
				idx, _ = acc.Position(start, t.cmp)
			}
			it.pos = append(it.pos, idx)
			// start sorts after every key left in this leaf: move on to
			// the first pair of the next leaf.
			if idx >= acc.NumPairs() {
				if err := it.advance(len(it.path) - 1); err != nil {
					return nil, err
				}
			}
			return it, nil
		case pageKindBranch:
			acc := NewBranchAccessor(page.Bytes)
			var child pagestore.PageNumber
			var idx uint16
			if start == nil {
				idx, child = 0, acc.Child(0)
			} else {
				idx, child = acc.ChildForKey(start, t.cmp)
			}
			it.pos = append(it.pos, idx)
			pageNum = child
		default:
			return nil, ErrCorrupt
		}
	}
}

// Valid reports whether Key/Value can be called.
func (it *Iterator) Valid() bool {
	if len(it.path) == 0 {
		return false
	}
	leaf := it.path[len(it.path)-1]
	idx := it.pos[len(it.pos)-1]
	acc := NewLeafAccessor(leaf.Bytes)
	if idx >= acc.NumPairs() {
		return false
	}
	if it.end != nil {
		k, _, _ := acc.Entry(idx)
		if it.cmp(k, it.end) >= 0 {
			return false
		}
	}
	return true
}

// Key and Value return the current pair. Only valid while Valid() holds.
func (it *Iterator) Key() []byte {
	leaf := it.path[len(it.path)-1]
	idx := it.pos[len(it.pos)-1]
	k, _, _ := NewLeafAccessor(leaf.Bytes).Entry(idx)
	return k
}

func (it *Iterator) Value() []byte {
	leaf := it.path[len(it.path)-1]
	idx := it.pos[len(it.pos)-1]
	_, v, _ := NewLeafAccessor(leaf.Bytes).Entry(idx)
	return v
}

// Next advances to the next pair. Mirrors iterNext's recursive
// sibling-climb, rewalking down from the first ancestor with room left.
func (it *Iterator) Next() error {
	return it.advance(len(it.path) - 1)
}

func (it *Iterator) advance(level int) error {
	if level < 0 {
		it.path = nil
		it.pos = nil
		return nil
	}
	page := it.path[level]
	if pageKind(page.Bytes) == pageKindLeaf {
		acc := NewLeafAccessor(page.Bytes)
		if it.pos[level]+1 < acc.NumPairs() {
			it.pos[level]++
			it.path = it.path[:level+1]
			it.pos = it.pos[:level+1]
			return nil
		}
		return it.advance(level - 1)
	}

	acc := NewBranchAccessor(page.Bytes)
	if it.pos[level]+1 <= acc.NumKeys() {
		it.pos[level]++
		it.path = it.path[:level+1]
		it.pos = it.pos[:level+1]
		return it.descendLeftmost(level)
	}
	return it.advance(level - 1)
}

// descendLeftmost rewalks from path[level]'s current child down to the
// leftmost leaf, used after climbing to a new sibling subtree.
func (it *Iterator) descendLeftmost(level int) error {
	parent := it.path[level]
	acc := NewBranchAccessor(parent.Bytes)
	child := acc.Child(it.pos[level])
	for {
		page, err := it.store.Get(child)
		if err != nil {
			return err
		}
		it.path = append(it.path, page)
		if pageKind(page.Bytes) == pageKindLeaf {
			it.pos = append(it.pos, 0)
			return nil
		}
		cacc := NewBranchAccessor(page.Bytes)
		it.pos = append(it.pos, 0)
		child = cacc.Child(0)
	}
}
