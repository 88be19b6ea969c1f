package btree

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govetachun/redbtree/internal/pagestore"
)

func TestTreeInsertGetSingle(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tr := NewTree(pagestore.InvalidPageNumber, store, pagestore.Never, &freed, nil)

	guard, err := tr.Insert([]byte("hello"), []byte("world"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(guard.Bytes()))
	guard.Close()

	g, ok, err := tr.Get([]byte("hello"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "world", string(g.Bytes()))
	g.Close()

	_, ok, err = tr.Get([]byte("missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTreeInsertManyForcesSplitsAndGetFindsAll(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tr := NewTree(pagestore.InvalidPageNumber, store, pagestore.Never, &freed, nil)

	const n = 500
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%05d", i))
		val := []byte(fmt.Sprintf("value-%05d", i))
		guard, err := tr.Insert(key, val)
		require.NoError(t, err)
		guard.Close()
	}

	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%05d", i))
		wantVal := fmt.Sprintf("value-%05d", i)
		g, ok, err := tr.Get(key)
		require.NoError(t, err)
		require.True(t, ok, "missing key %s", key)
		assert.Equal(t, wantVal, string(g.Bytes()))
		g.Close()
	}
}

func TestTreeInsertOverwritesExistingKey(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tr := NewTree(pagestore.InvalidPageNumber, store, pagestore.Never, &freed, nil)

	guard, err := tr.Insert([]byte("k"), []byte("v1"))
	require.NoError(t, err)
	guard.Close()

	guard, err = tr.Insert([]byte("k"), []byte("v2-longer-value"))
	require.NoError(t, err)
	assert.Equal(t, "v2-longer-value", string(guard.Bytes()))
	guard.Close()

	g, ok, err := tr.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2-longer-value", string(g.Bytes()))
	g.Close()
}

func TestTreeDeleteRemovesKeyAndRebalances(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tr := NewTree(pagestore.InvalidPageNumber, store, pagestore.Never, &freed, nil)

	const n = 300
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%05d", i))
		val := []byte(fmt.Sprintf("value-%05d", i))
		guard, err := tr.Insert(key, val)
		require.NoError(t, err)
		guard.Close()
	}

	// Delete every third key.
	for i := 0; i < n; i += 3 {
		key := []byte(fmt.Sprintf("key-%05d", i))
		guard, err := tr.SafeDelete(key)
		require.NoError(t, err)
		require.NotNil(t, guard, "expected a guard for present key %s", key)
		assert.Equal(t, fmt.Sprintf("value-%05d", i), string(guard.Bytes()))
		guard.Close()
	}

	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%05d", i))
		g, ok, err := tr.Get(key)
		require.NoError(t, err)
		if i%3 == 0 {
			assert.False(t, ok, "expected key %s to be deleted", key)
		} else {
			require.True(t, ok, "expected key %s to survive", key)
			assert.Equal(t, fmt.Sprintf("value-%05d", i), string(g.Bytes()))
			g.Close()
		}
	}
}

func TestTreeDeleteAllEmptiesTree(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tr := NewTree(pagestore.InvalidPageNumber, store, pagestore.Never, &freed, nil)

	const n = 50
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		guard, err := tr.Insert(key, []byte("v"))
		require.NoError(t, err)
		guard.Close()
	}
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		guard, err := tr.SafeDelete(key)
		require.NoError(t, err)
		require.NotNil(t, guard)
		guard.Close()
	}
	assert.True(t, tr.IsEmpty())
}

func TestTreeDeleteMissingKeyIsNoop(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tr := NewTree(pagestore.InvalidPageNumber, store, pagestore.Never, &freed, nil)

	guard, err := tr.Insert([]byte("k"), []byte("v"))
	require.NoError(t, err)
	guard.Close()

	g, err := tr.SafeDelete([]byte("absent"))
	require.NoError(t, err)
	assert.Nil(t, g)

	_, ok, err := tr.Get([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTreeRangeIteratesInOrder(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tr := NewTree(pagestore.InvalidPageNumber, store, pagestore.Never, &freed, nil)

	const n = 200
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%05d", i))
		val := []byte(fmt.Sprintf("value-%05d", i))
		guard, err := tr.Insert(key, val)
		require.NoError(t, err)
		guard.Close()
	}

	it, err := tr.Range(nil, nil)
	require.NoError(t, err)

	count := 0
	var lastKey []byte
	for it.Valid() {
		k := append([]byte(nil), it.Key()...)
		if lastKey != nil {
			assert.True(t, DefaultComparator(lastKey, k) < 0, "keys must be strictly increasing")
		}
		lastKey = k
		count++
		require.NoError(t, it.Next())
	}
	assert.Equal(t, n, count)
}

func TestTreeInsertRejectsOversizedKey(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tr := NewTree(pagestore.InvalidPageNumber, store, pagestore.Never, &freed, nil)

	key := []byte(strings.Repeat("k", MaxKeySize+1))
	_, err := tr.Insert(key, []byte("v"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyTooLarge))
}

func TestTreeInsertRejectsOversizedValue(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tr := NewTree(pagestore.InvalidPageNumber, store, pagestore.Never, &freed, nil)

	val := []byte(strings.Repeat("v", MaxValueSize+1))
	_, err := tr.Insert([]byte("k"), val)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValueTooLarge))
}

func TestTreeDeleteRejectsOversizedKey(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tr := NewTree(pagestore.InvalidPageNumber, store, pagestore.Never, &freed, nil)

	key := []byte(strings.Repeat("k", MaxKeySize+1))
	_, err := tr.SafeDelete(key)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyTooLarge))
}

func TestTreeRangeRespectsStartAndEndBounds(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tr := NewTree(pagestore.InvalidPageNumber, store, pagestore.Never, &freed, nil)

	const n = 100
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%05d", i))
		guard, err := tr.Insert(key, []byte("v"))
		require.NoError(t, err)
		guard.Close()
	}

	start := []byte(fmt.Sprintf("key-%05d", 20))
	end := []byte(fmt.Sprintf("key-%05d", 30))
	it, err := tr.Range(start, end)
	require.NoError(t, err)

	var got []string
	for it.Valid() {
		got = append(got, string(it.Key()))
		require.NoError(t, it.Next())
	}
	assert.Len(t, got, 10)
	assert.Equal(t, "key-00020", got[0])
	assert.Equal(t, "key-00029", got[len(got)-1])
}
