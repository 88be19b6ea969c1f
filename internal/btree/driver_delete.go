package btree

import (
	"github.com/govetachun/redbtree/internal/pagestore"
	"github.com/govetachun/redbtree/pkg/dbg"
)

// deletionKind tags the five-variant DeletionResult sum type (spec §4.9).
type deletionKind int

const (
	delSubtree deletionKind = iota
	delDeletedLeaf
	delPartialLeaf
	delPartialBranch
	delDeletedBranch
)

// DeletionResult is the delete driver's recursive return value. Only the
// fields relevant to `kind` are meaningful:
//
//   - Subtree:        page
//   - DeletedLeaf:    (no extra fields)
//   - PartialLeaf:    leaf (the original, still-intact leaf page), delPos
//   - PartialBranch:  page (the rebuilt, under-full branch)
//   - DeletedBranch:  page (the sole surviving child to splice upward)
type DeletionResult struct {
	kind   deletionKind
	page   pagestore.PageNumber
	leaf   pagestore.PageNumber
	delPos uint16
}

// Delete is the spec §4.9 entry point.
func (t *Tree) Delete(key []byte) (*ReadGuard, error) {
	if err := checkLimit(key, nil); err != nil {
		return nil, err
	}
	if t.IsEmpty() {
		return nil, nil
	}
	result, guard, err := t.deleteHelper(t.root, key)
	if err != nil {
		return nil, err
	}

	switch result.kind {
	case delSubtree, delPartialBranch, delDeletedBranch:
		t.root = result.page
	case delDeletedLeaf:
		t.root = pagestore.InvalidPageNumber
	case delPartialLeaf:
		leafPage, err := t.store.Get(result.leaf)
		if err != nil {
			return nil, err
		}
		lb := NewLeafBuilder()
		lb.PushAllExcept(NewLeafAccessor(leafPage.Bytes), int(result.delPos))
		newLeaf, err := lb.Build(t.store)
		if err != nil {
			return nil, err
		}
		t.root = newLeaf.Number
	}
	return guard, nil
}

// SafeDelete requires the Never free policy, guaranteeing the returned
// guard's bytes stay valid until the enclosing transaction commits —
// callers that hand the removed value back to a user-visible API must use
// this entry point rather than Delete (spec §4.6).
func (t *Tree) SafeDelete(key []byte) (*ReadGuard, error) {
	dbg.Assert(t.policy == pagestore.Never, "SafeDelete requires the Never free policy")
	return t.Delete(key)
}

func (t *Tree) deleteHelper(pageNum pagestore.PageNumber, key []byte) (DeletionResult, *ReadGuard, error) {
	page, err := t.store.Get(pageNum)
	if err != nil {
		return DeletionResult{}, nil, err
	}
	switch pageKind(page.Bytes) {
	case pageKindLeaf:
		return t.deleteLeaf(page, key)
	case pageKindBranch:
		return t.deleteBranch(page, key)
	default:
		return DeletionResult{}, nil, ErrCorrupt
	}
}

// leafDeleteGuard implements spec §4.9 step 4: the guard over the removed
// value's bytes frees the original leaf page on Close iff the page was
// uncommitted and the policy is Uncommitted; otherwise the page is
// deferred to the freed list and the guard performs no free, keeping the
// bytes readable until the enclosing transaction commits.
func (t *Tree) leafDeleteGuard(page pagestore.Page, start, end uint32) *ReadGuard {
	if t.policy == pagestore.Uncommitted && t.store.Uncommitted(page.Number) {
		return newReadGuardFree(t.store, page, start, end, page.Number)
	}
	*t.freed = append(*t.freed, page.Number)
	return newReadGuardNone(page, start, end)
}

func (t *Tree) deleteLeaf(page pagestore.Page, key []byte) (DeletionResult, *ReadGuard, error) {
	acc := NewLeafAccessor(page.Bytes)
	position, found := acc.Position(key, t.cmp)
	if !found {
		return DeletionResult{kind: delSubtree, page: page.Number}, nil, nil
	}

	wouldBe := int(acc.TotalLength()) - 8 - int(acc.pairBytes(position))

	// Dirty fast path: defer the physical removal to the guard's Close,
	// so repeated deletes against an uncommitted page never rebuild it.
	if t.store.Uncommitted(page.Number) && wouldBe >= t.store.PageSize()/2 && acc.NumPairs() > 1 {
		s, e := acc.ValueRange(position)
		guard := newReadGuardRemoveEntry(t.store, page, s, e, position)
		return DeletionResult{kind: delSubtree, page: page.Number}, guard, nil
	}

	s, e := acc.ValueRange(position)

	if acc.NumPairs() == 1 {
		guard := t.leafDeleteGuard(page, s, e)
		return DeletionResult{kind: delDeletedLeaf}, guard, nil
	}

	if wouldBe < t.store.PageSize()/3 {
		guard := t.leafDeleteGuard(page, s, e)
		return DeletionResult{kind: delPartialLeaf, leaf: page.Number, delPos: position}, guard, nil
	}

	lb := NewLeafBuilder()
	lb.PushAllExcept(acc, int(position))
	newPage, err := lb.Build(t.store)
	if err != nil {
		return DeletionResult{}, nil, err
	}
	guard := t.leafDeleteGuard(page, s, e)
	return DeletionResult{kind: delSubtree, page: newPage.Number}, guard, nil
}

// finishBranchRebuild applies spec §4.9 step 5's reclassification. A
// merge that still exceeds the page size (the "split if required" clause
// on the DeletedBranch/PartialBranch sub-cases) is wrapped under a fresh
// two-child branch, the same idiom §4.8 uses to promote an insert split —
// this keeps the five-variant DeletionResult contract intact instead of
// growing a sixth variant for a rebalance-time split.
func (t *Tree) finishBranchRebuild(bb *BranchBuilder) (DeletionResult, error) {
	if only, ok := bb.ToSingleChild(); ok {
		return DeletionResult{kind: delDeletedBranch, page: only}, nil
	}
	if bb.ShouldSplit(t.store.PageSize()) {
		left, sepKey, right, err := bb.BuildSplit(t.store)
		if err != nil {
			return DeletionResult{}, err
		}
		wrap := NewBranchBuilder()
		wrap.PushChild(left.Number)
		wrap.PushKey(sepKey)
		wrap.PushChild(right.Number)
		wrapped, err := wrap.Build(t.store)
		if err != nil {
			return DeletionResult{}, err
		}
		return DeletionResult{kind: delSubtree, page: wrapped.Number}, nil
	}
	p, err := bb.Build(t.store)
	if err != nil {
		return DeletionResult{}, err
	}
	if int(NewBranchAccessor(p.Bytes).TotalLength()) < t.store.PageSize()/3 {
		return DeletionResult{kind: delPartialBranch, page: p.Number}, nil
	}
	return DeletionResult{kind: delSubtree, page: p.Number}, nil
}

func spliceOut(children []pagestore.PageNumber, keys [][]byte, at uint16, dropLastSeparator bool) ([]pagestore.PageNumber, [][]byte) {
	n := uint16(len(keys))
	newChildren := make([]pagestore.PageNumber, 0, len(children)-1)
	newChildren = append(newChildren, children[:at]...)
	newChildren = append(newChildren, children[at+1:]...)

	var newKeys [][]byte
	if dropLastSeparator {
		newKeys = append([][]byte{}, keys[:n-1]...)
	} else {
		newKeys = make([][]byte, 0, len(keys)-1)
		newKeys = append(newKeys, keys[:at]...)
		newKeys = append(newKeys, keys[at+1:]...)
	}
	return newChildren, newKeys
}

func (t *Tree) deleteBranch(page pagestore.Page, key []byte) (DeletionResult, *ReadGuard, error) {
	acc := NewBranchAccessor(page.Bytes)
	childIndex, childPage := acc.ChildForKey(key, t.cmp)

	childResult, guard, err := t.deleteHelper(childPage, key)
	if err != nil {
		return DeletionResult{}, nil, err
	}

	if childResult.kind == delSubtree {
		newChild := childResult.page
		if newChild == childPage {
			return DeletionResult{kind: delSubtree, page: page.Number}, guard, nil
		}
		if t.store.Uncommitted(page.Number) {
			mutPage, err := t.store.GetMut(page.Number)
			if err != nil {
				return DeletionResult{}, nil, err
			}
			branchWriteChildPage(mutPage.Bytes, childIndex, newChild)
			return DeletionResult{kind: delSubtree, page: mutPage.Number}, guard, nil
		}
		children, keys := branchChildrenAndKeys(acc)
		children[childIndex] = newChild
		bb := NewBranchBuilderFrom(children, keys)
		newPage, err := bb.Build(t.store)
		if err != nil {
			return DeletionResult{}, nil, err
		}
		t.policy.Release(t.store, t.freed, page.Number)
		return DeletionResult{kind: delSubtree, page: newPage.Number}, guard, nil
	}

	// Merge/rebalance: child_index's subtree shrank below threshold.
	var mergeWith uint16
	if childIndex == 0 {
		mergeWith = 1
	} else {
		mergeWith = childIndex - 1
	}
	siblingPageNum := acc.Child(mergeWith)
	siblingPage, err := t.store.Get(siblingPageNum)
	if err != nil {
		return DeletionResult{}, nil, err
	}
	partialFirst := childIndex < mergeWith
	sepIndex := childIndex
	if mergeWith < childIndex {
		sepIndex = mergeWith
	}

	var bb *BranchBuilder

	switch childResult.kind {
	case delDeletedLeaf:
		numKeys := acc.NumKeys()
		children, keys := branchChildrenAndKeys(acc)
		dropLast := childIndex == numKeys
		newChildren, newKeys := spliceOut(children, keys, childIndex, dropLast)
		bb = NewBranchBuilderFrom(newChildren, newKeys)

	case delPartialLeaf:
		sibAcc := NewLeafAccessor(siblingPage.Bytes)
		origLeafPage, err := t.store.Get(childResult.leaf)
		if err != nil {
			return DeletionResult{}, nil, err
		}
		origAcc := NewLeafAccessor(origLeafPage.Bytes)

		// Oversized-sibling fast path: don't merge, just replace this
		// child's pointer with the partial leaf minus the deleted pair.
		if sibAcc.NumPairs() == 1 && int(sibAcc.TotalLength()) >= t.store.PageSize() {
			lb := NewLeafBuilder()
			lb.PushAllExcept(origAcc, int(childResult.delPos))
			newLeaf, err := lb.Build(t.store)
			if err != nil {
				return DeletionResult{}, nil, err
			}
			children, keys := branchChildrenAndKeys(acc)
			children[childIndex] = newLeaf.Number
			bb = NewBranchBuilderFrom(children, keys)
			break
		}

		lb := NewLeafBuilder()
		if partialFirst {
			lb.PushAllExcept(origAcc, int(childResult.delPos))
			for i := uint16(0); i < sibAcc.NumPairs(); i++ {
				k, v, _ := sibAcc.Entry(i)
				lb.Push(k, v)
			}
		} else {
			for i := uint16(0); i < sibAcc.NumPairs(); i++ {
				k, v, _ := sibAcc.Entry(i)
				lb.Push(k, v)
			}
			lb.PushAllExcept(origAcc, int(childResult.delPos))
		}
		// The partial child's own page is freed by the removal guard;
		// only the sibling is consumed here.
		t.policy.Release(t.store, t.freed, siblingPageNum)

		lo, hi := childIndex, mergeWith
		if lo > hi {
			lo, hi = hi, lo
		}
		children, keys := branchChildrenAndKeys(acc)
		head, tail := children[:lo], children[hi+1:]
		keyHead, keyTail := keys[:lo], keys[hi:]

		if !lb.ShouldSplit(t.store.PageSize()) {
			merged, err := lb.Build(t.store)
			if err != nil {
				return DeletionResult{}, nil, err
			}
			newChildren := append(append([]pagestore.PageNumber{}, head...), merged.Number)
			newChildren = append(newChildren, tail...)
			newKeys := append(append([][]byte{}, keyHead...), keyTail...)
			bb = NewBranchBuilderFrom(newChildren, newKeys)
		} else {
			left, sepKey, right, _, err := lb.BuildSplit(t.store)
			if err != nil {
				return DeletionResult{}, nil, err
			}
			newChildren := append(append([]pagestore.PageNumber{}, head...), left.Number, right.Number)
			newChildren = append(newChildren, tail...)
			newKeys := append(append([][]byte{}, keyHead...), sepKey)
			newKeys = append(newKeys, keyTail...)
			bb = NewBranchBuilderFrom(newChildren, newKeys)
		}

	case delDeletedBranch:
		sep := append([]byte(nil), acc.KeyUnchecked(sepIndex)...)
		sibAcc := NewBranchAccessor(siblingPage.Bytes)
		sibChildren, sibKeys := branchChildrenAndKeys(sibAcc)
		var mergedChildren []pagestore.PageNumber
		var mergedKeys [][]byte
		if partialFirst {
			mergedChildren = append([]pagestore.PageNumber{childResult.page}, sibChildren...)
			mergedKeys = append([][]byte{sep}, sibKeys...)
		} else {
			mergedChildren = append(append([]pagestore.PageNumber{}, sibChildren...), childResult.page)
			mergedKeys = append(append([][]byte{}, sibKeys...), sep)
		}
		t.policy.Release(t.store, t.freed, siblingPageNum)
		bb = NewBranchBuilderFrom(mergedChildren, mergedKeys)

	case delPartialBranch:
		sep := append([]byte(nil), acc.KeyUnchecked(sepIndex)...)
		sibAcc := NewBranchAccessor(siblingPage.Bytes)
		partialPage, err := t.store.Get(childResult.page)
		if err != nil {
			return DeletionResult{}, nil, err
		}
		partialAcc := NewBranchAccessor(partialPage.Bytes)
		sibChildren, sibKeys := branchChildrenAndKeys(sibAcc)
		partialChildren, partialKeys := branchChildrenAndKeys(partialAcc)
		var mergedChildren []pagestore.PageNumber
		var mergedKeys [][]byte
		if partialFirst {
			mergedChildren = append(append([]pagestore.PageNumber{}, partialChildren...), sibChildren...)
			mergedKeys = append(append(append([][]byte{}, partialKeys...), sep), sibKeys...)
		} else {
			mergedChildren = append(append([]pagestore.PageNumber{}, sibChildren...), partialChildren...)
			mergedKeys = append(append(append([][]byte{}, sibKeys...), sep), partialKeys...)
		}
		t.policy.Release(t.store, t.freed, siblingPageNum)
		t.policy.Release(t.store, t.freed, childResult.page)
		bb = NewBranchBuilderFrom(mergedChildren, mergedKeys)

	default:
		panic("btree: unexpected deletion result kind from child")
	}

	t.policy.Release(t.store, t.freed, page.Number)
	result, err := t.finishBranchRebuild(bb)
	if err != nil {
		return DeletionResult{}, nil, err
	}
	return result, guard, nil
}
