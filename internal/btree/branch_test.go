package btree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govetachun/redbtree/internal/pagestore"
)

func TestBranchBuilderBuildRoundtrip(t *testing.T) {
	store := pagestore.NewMemStore(256)
	b := NewBranchBuilder()
	b.PushChild(pagestore.PageNumber(10))
	b.PushKey([]byte("m"))
	b.PushChild(pagestore.PageNumber(20))

	page, err := b.Build(store)
	require.NoError(t, err)

	acc := NewBranchAccessor(page.Bytes)
	require.Equal(t, uint16(1), acc.NumKeys())
	assert.Equal(t, pagestore.PageNumber(10), acc.Child(0))
	assert.Equal(t, pagestore.PageNumber(20), acc.Child(1))
	assert.Equal(t, "m", string(acc.KeyUnchecked(0)))
}

func TestBranchAccessorChildForKeyEqualityRoutesLeft(t *testing.T) {
	store := pagestore.NewMemStore(256)
	b := NewBranchBuilder()
	b.PushChild(pagestore.PageNumber(1))
	b.PushKey([]byte("m")) // separator = greatest key of child 1's subtree
	b.PushChild(pagestore.PageNumber(2))
	b.PushKey([]byte("t"))
	b.PushChild(pagestore.PageNumber(3))
	page, err := b.Build(store)
	require.NoError(t, err)

	acc := NewBranchAccessor(page.Bytes)

	idx, child := acc.ChildForKey([]byte("m"), DefaultComparator)
	assert.Equal(t, uint16(0), idx)
	assert.Equal(t, pagestore.PageNumber(1), child)

	idx, child = acc.ChildForKey([]byte("n"), DefaultComparator)
	assert.Equal(t, uint16(1), idx)
	assert.Equal(t, pagestore.PageNumber(2), child)

	idx, child = acc.ChildForKey([]byte("a"), DefaultComparator)
	assert.Equal(t, uint16(0), idx)
	assert.Equal(t, pagestore.PageNumber(1), child)

	idx, child = acc.ChildForKey([]byte("zz"), DefaultComparator)
	assert.Equal(t, uint16(2), idx)
	assert.Equal(t, pagestore.PageNumber(3), child)
}

func TestBranchBuilderShouldSplitRequiresThreeKeys(t *testing.T) {
	b := NewBranchBuilder()
	b.PushChild(pagestore.PageNumber(1))
	b.PushKey(make([]byte, 1000))
	b.PushChild(pagestore.PageNumber(2))
	assert.False(t, b.ShouldSplit(256))
}

func TestBranchBuilderBuildSplitDividesAndPromotesSeparator(t *testing.T) {
	store := pagestore.NewMemStore(256)
	b := NewBranchBuilder()
	b.PushChild(pagestore.PageNumber(1))
	b.PushKey([]byte("b"))
	b.PushChild(pagestore.PageNumber(2))
	b.PushKey([]byte("d"))
	b.PushChild(pagestore.PageNumber(3))
	b.PushKey([]byte("f"))
	b.PushChild(pagestore.PageNumber(4))

	left, sepKey, right, err := b.BuildSplit(store)
	require.NoError(t, err)
	assert.Equal(t, "d", string(sepKey))

	lacc := NewBranchAccessor(left.Bytes)
	require.Equal(t, uint16(1), lacc.NumKeys())
	assert.Equal(t, "b", string(lacc.KeyUnchecked(0)))
	assert.Equal(t, pagestore.PageNumber(1), lacc.Child(0))
	assert.Equal(t, pagestore.PageNumber(2), lacc.Child(1))

	racc := NewBranchAccessor(right.Bytes)
	require.Equal(t, uint16(1), racc.NumKeys())
	assert.Equal(t, "f", string(racc.KeyUnchecked(0)))
	assert.Equal(t, pagestore.PageNumber(3), racc.Child(0))
	assert.Equal(t, pagestore.PageNumber(4), racc.Child(1))
}

func TestBranchBuilderToSingleChild(t *testing.T) {
	b := NewBranchBuilder()
	b.PushChild(pagestore.PageNumber(7))
	child, ok := b.ToSingleChild()
	assert.True(t, ok)
	assert.Equal(t, pagestore.PageNumber(7), child)

	b.PushKey([]byte("x"))
	b.PushChild(pagestore.PageNumber(8))
	_, ok = b.ToSingleChild()
	assert.False(t, ok)
}
