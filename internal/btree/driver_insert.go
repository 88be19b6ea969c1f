package btree

import "github.com/govetachun/redbtree/internal/pagestore"

// Insert is the spec §4.8 entry point. On an empty tree it allocates a
// single-pair leaf as the new root; otherwise it recurses via
// insertHelper and, if the recursion reports a split, wraps both halves
// under a brand-new two-child branch installed as the new root.
func (t *Tree) Insert(key, val []byte) (*MutGuard, error) {
	if err := checkLimit(key, val); err != nil {
		return nil, err
	}
	if t.IsEmpty() {
		b := NewLeafBuilder()
		b.Push(key, val)
		page, err := b.Build(t.store)
		if err != nil {
			return nil, err
		}
		t.root = page.Number
		acc := NewLeafAccessor(page.Bytes)
		start, end := acc.ValueRange(0)
		return newMutGuard(page, start, end), nil
	}

	newPage, more, guard, err := t.insertHelper(t.root, key, val)
	if err != nil {
		return nil, err
	}
	if more != nil {
		b := NewBranchBuilder()
		b.PushChild(newPage)
		b.PushKey(more.splitKey)
		b.PushChild(more.rightPage)
		rootPage, err := b.Build(t.store)
		if err != nil {
			return nil, err
		}
		t.root = rootPage.Number
	} else {
		t.root = newPage
	}
	return guard, nil
}

// insertHelper recurses down to a leaf, inserts or overwrites the pair,
// and propagates split information back up (spec §4.8). It returns the
// (possibly new) page number standing in for the subtree rooted here, an
// optional split sibling, and a guard over the inserted/overwritten
// value.
func (t *Tree) insertHelper(pageNum pagestore.PageNumber, key, val []byte) (pagestore.PageNumber, *splitResult, *MutGuard, error) {
	page, err := t.store.Get(pageNum)
	if err != nil {
		return 0, nil, nil, err
	}
	switch pageKind(page.Bytes) {
	case pageKindLeaf:
		return t.insertLeaf(page, key, val)
	case pageKindBranch:
		return t.insertBranch(page, key, val)
	default:
		return 0, nil, nil, ErrCorrupt
	}
}

func (t *Tree) insertLeaf(page pagestore.Page, key, val []byte) (pagestore.PageNumber, *splitResult, *MutGuard, error) {
	acc := NewLeafAccessor(page.Bytes)
	position, found := acc.Position(key, t.cmp)

	// Single-large-value fast path (spec §4.8, §9 Open Question a): a leaf
	// holding exactly one oversized pair is left untouched; the new key
	// gets its own one-pair leaf and the two are reported as a split
	// without ever reading the oversized value.
	if !found && acc.NumPairs() == 1 && int(acc.pairBytes(0)) >= t.store.PageSize() {
		nb := NewLeafBuilder()
		nb.Push(key, val)
		newPage, err := nb.Build(t.store)
		if err != nil {
			return 0, nil, nil, err
		}
		newAcc := NewLeafAccessor(newPage.Bytes)
		s, e := newAcc.ValueRange(0)
		guard := newMutGuard(newPage, s, e)

		if position == 0 {
			splitKey := append([]byte(nil), key...)
			return newPage.Number, &splitResult{splitKey: splitKey, rightPage: page.Number}, guard, nil
		}
		lastKey, _, _ := acc.LastEntry()
		splitKey := append([]byte(nil), lastKey...)
		return page.Number, &splitResult{splitKey: splitKey, rightPage: newPage.Number}, guard, nil
	}

	// In-place fast path: only available on a page this transaction
	// already owns, and only when the edit fits in the page's slack.
	if t.store.Uncommitted(page.Number) && leafSufficientInsertInplaceSpace(page.Bytes, len(page.Bytes), position, found, key, val) {
		mutPage, err := t.store.GetMut(page.Number)
		if err != nil {
			return 0, nil, nil, err
		}
		leafInsertInPlace(mutPage.Bytes, position, found, key, val)
		newAcc := NewLeafAccessor(mutPage.Bytes)
		s, e := newAcc.ValueRange(position)
		return mutPage.Number, nil, newMutGuard(mutPage, s, e), nil
	}

	// Rebuild path: assemble the merged pair sequence in sorted order and
	// build one or two fresh pages.
	lb := NewLeafBuilder()
	for i := uint16(0); i < position; i++ {
		k, v, _ := acc.Entry(i)
		lb.Push(k, v)
	}
	lb.Push(key, val)
	after := position
	if found {
		after = position + 1
	}
	for i := after; i < acc.NumPairs(); i++ {
		k, v, _ := acc.Entry(i)
		lb.Push(k, v)
	}

	if !lb.ShouldSplit(t.store.PageSize()) {
		newPage, err := lb.Build(t.store)
		if err != nil {
			return 0, nil, nil, err
		}
		t.policy.Release(t.store, t.freed, page.Number)
		newAcc := NewLeafAccessor(newPage.Bytes)
		s, e := newAcc.ValueRange(position)
		return newPage.Number, nil, newMutGuard(newPage, s, e), nil
	}

	leftPage, splitKey, rightPage, leftCount, err := lb.BuildSplit(t.store)
	if err != nil {
		return 0, nil, nil, err
	}
	t.policy.Release(t.store, t.freed, page.Number)

	var guard *MutGuard
	if int(position) < leftCount {
		lacc := NewLeafAccessor(leftPage.Bytes)
		s, e := lacc.ValueRange(position)
		guard = newMutGuard(leftPage, s, e)
	} else {
		racc := NewLeafAccessor(rightPage.Bytes)
		s, e := racc.ValueRange(position - uint16(leftCount))
		guard = newMutGuard(rightPage, s, e)
	}
	return leftPage.Number, &splitResult{splitKey: splitKey, rightPage: rightPage.Number}, guard, nil
}

func (t *Tree) insertBranch(page pagestore.Page, key, val []byte) (pagestore.PageNumber, *splitResult, *MutGuard, error) {
	acc := NewBranchAccessor(page.Bytes)
	childIndex, childPage := acc.ChildForKey(key, t.cmp)

	newChildPage, more, guard, err := t.insertHelper(childPage, key, val)
	if err != nil {
		return 0, nil, nil, err
	}

	if more == nil {
		// Transparent no-op: the child reported back its own page
		// unchanged, propagate through without touching this branch.
		if newChildPage == childPage {
			return page.Number, nil, guard, nil
		}
		if t.store.Uncommitted(page.Number) {
			mutPage, err := t.store.GetMut(page.Number)
			if err != nil {
				return 0, nil, nil, err
			}
			branchWriteChildPage(mutPage.Bytes, childIndex, newChildPage)
			return mutPage.Number, nil, guard, nil
		}
		children, keys := branchChildrenAndKeys(acc)
		children[childIndex] = newChildPage
		bb := NewBranchBuilderFrom(children, keys)
		newPage, err := bb.Build(t.store)
		if err != nil {
			return 0, nil, nil, err
		}
		t.policy.Release(t.store, t.freed, page.Number)
		return newPage.Number, nil, guard, nil
	}

	// Split below: splice the new separator key at child_index and the
	// new right-hand pointer at child_index + 1, replacing the stale
	// pointer the split child used to occupy.
	children, keys := branchChildrenAndKeys(acc)

	newChildren := make([]pagestore.PageNumber, 0, len(children)+1)
	newChildren = append(newChildren, children[:childIndex]...)
	newChildren = append(newChildren, newChildPage, more.rightPage)
	newChildren = append(newChildren, children[childIndex+1:]...)

	newKeys := make([][]byte, 0, len(keys)+1)
	newKeys = append(newKeys, keys[:childIndex]...)
	newKeys = append(newKeys, more.splitKey)
	newKeys = append(newKeys, keys[childIndex:]...)

	bb := NewBranchBuilderFrom(newChildren, newKeys)
	t.policy.Release(t.store, t.freed, page.Number)

	if !bb.ShouldSplit(t.store.PageSize()) {
		newPage, err := bb.Build(t.store)
		if err != nil {
			return 0, nil, nil, err
		}
		return newPage.Number, nil, guard, nil
	}

	leftPage, sepKey, rightPage, err := bb.BuildSplit(t.store)
	if err != nil {
		return 0, nil, nil, err
	}
	return leftPage.Number, &splitResult{splitKey: sepKey, rightPage: rightPage.Number}, guard, nil
}
