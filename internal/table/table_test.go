package table_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govetachun/redbtree/internal/pagestore"
	"github.com/govetachun/redbtree/internal/table"
)

func TestTableInsertGetRemoveRoundtrip(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tbl := table.Open("default", pagestore.InvalidPageNumber, store, pagestore.Never, &freed)

	guard, err := tbl.Insert([]byte("hello"), []byte("world"))
	require.NoError(t, err)
	guard.Close()

	g, ok, err := tbl.Get([]byte("hello"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "world", string(g.Bytes()))
	g.Close()

	removed, ok, err := tbl.Remove([]byte("hello"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "world", string(removed.Bytes()))
	removed.Close()

	_, ok, err = tbl.Get([]byte("hello"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTableRemoveMissingKeyReportsNotOK(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tbl := table.Open("default", pagestore.InvalidPageNumber, store, pagestore.Never, &freed)

	_, ok, err := tbl.Remove([]byte("absent"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTableRequireKeyWidthRejectsMismatch(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tbl := table.Open("ints", pagestore.InvalidPageNumber, store, pagestore.Never, &freed)
	tbl.RequireKeyWidth(4)

	_, err := tbl.Insert(table.PutUint32Key(42), []byte("v"))
	require.NoError(t, err)

	_, err = tbl.Insert(table.PutUint64Key(42), []byte("v"))
	require.Error(t, err)
	var mismatch *table.ErrKeyWidthMismatch
	assert.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "ints", mismatch.Table)
	assert.Equal(t, 4, mismatch.Expected)
	assert.Equal(t, 8, mismatch.Got)
	assert.True(t, errors.Is(err, table.ErrTypeMismatch))
}

func TestTableRangeScansInOrder(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	tbl := table.Open("default", pagestore.InvalidPageNumber, store, pagestore.Never, &freed)

	for _, k := range []string{"b", "a", "d", "c"} {
		guard, err := tbl.Insert([]byte(k), []byte(k))
		require.NoError(t, err)
		guard.Close()
	}

	it, err := tbl.Range(nil, nil)
	require.NoError(t, err)

	var got []string
	for it.Valid() {
		got = append(got, string(it.Key()))
		require.NoError(t, it.Next())
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestMultimapInsertOrderedAndDeduplicated(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	mm := table.OpenMultimap("greetings", pagestore.InvalidPageNumber, store, pagestore.Never, &freed)

	require.NoError(t, mm.Insert([]byte("hello"), []byte("world")))
	require.NoError(t, mm.Insert([]byte("hello"), []byte("world2")))
	require.NoError(t, mm.Insert([]byte("hello"), []byte("world"))) // duplicate, no-op

	values, err := mm.Get([]byte("hello"))
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "world", string(values[0]))
	assert.Equal(t, "world2", string(values[1]))
}

func TestMultimapRemoveOneValueKeepsRest(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	mm := table.OpenMultimap("greetings", pagestore.InvalidPageNumber, store, pagestore.Never, &freed)

	require.NoError(t, mm.Insert([]byte("hello"), []byte("world")))
	require.NoError(t, mm.Insert([]byte("hello"), []byte("world2")))

	removed, err := mm.Remove([]byte("hello"), []byte("world"))
	require.NoError(t, err)
	assert.True(t, removed)

	values, err := mm.Get([]byte("hello"))
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "world2", string(values[0]))
}

func TestMultimapRemoveAllDeletesKey(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	mm := table.OpenMultimap("greetings", pagestore.InvalidPageNumber, store, pagestore.Never, &freed)

	require.NoError(t, mm.Insert([]byte("hello"), []byte("world")))
	require.NoError(t, mm.Insert([]byte("hello"), []byte("world2")))

	ok, err := mm.RemoveAll([]byte("hello"))
	require.NoError(t, err)
	assert.True(t, ok)

	values, err := mm.Get([]byte("hello"))
	require.NoError(t, err)
	assert.Nil(t, values)
}

// TestTwoNamedTablesDoNotAlias exercises SPEC_FULL.md §4.12/§8 scenario 5:
// two distinct named tables in one file persist and reopen through
// independent root pointers instead of silently sharing one root.
func TestTwoNamedTablesDoNotAlias(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	store, err := pagestore.OpenFile(path, 256)
	require.NoError(t, err)
	defer store.Close()

	peopleRoot, err := store.TableRoot("people")
	require.NoError(t, err)
	var peopleFreed []pagestore.PageNumber
	people := table.Open("people", peopleRoot, store, pagestore.Uncommitted, &peopleFreed)
	g, err := people.Insert([]byte("alice"), []byte("engineer"))
	require.NoError(t, err)
	g.Close()
	require.NoError(t, store.SetTableRoot("people", people.Root()))

	ordersRoot, err := store.TableRoot("orders")
	require.NoError(t, err)
	var ordersFreed []pagestore.PageNumber
	orders := table.Open("orders", ordersRoot, store, pagestore.Uncommitted, &ordersFreed)
	g, err = orders.Insert([]byte("alice"), []byte("order-42"))
	require.NoError(t, err)
	g.Close()
	require.NoError(t, store.SetTableRoot("orders", orders.Root()))

	require.NoError(t, store.Commit())

	reopenedPeopleRoot, err := store.TableRoot("people")
	require.NoError(t, err)
	reopenedOrdersRoot, err := store.TableRoot("orders")
	require.NoError(t, err)
	require.NotEqual(t, reopenedPeopleRoot, reopenedOrdersRoot)

	var freed []pagestore.PageNumber
	peopleAgain := table.Open("people", reopenedPeopleRoot, store, pagestore.Uncommitted, &freed)
	val, ok, err := peopleAgain.Get([]byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "engineer", string(val.Bytes()))
	val.Close()

	ordersAgain := table.Open("orders", reopenedOrdersRoot, store, pagestore.Uncommitted, &freed)
	val, ok, err = ordersAgain.Get([]byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "order-42", string(val.Bytes()))
	val.Close()
}

// TestReopeningSameNamedTableSeesSameRoot exercises the "two-handle-same
// -table" open path: two Table handles opened against the same persisted
// name after a commit both see the same data.
func TestReopeningSameNamedTableSeesSameRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	store, err := pagestore.OpenFile(path, 256)
	require.NoError(t, err)
	defer store.Close()

	root, err := store.TableRoot("people")
	require.NoError(t, err)
	var freed []pagestore.PageNumber
	first := table.Open("people", root, store, pagestore.Uncommitted, &freed)
	g, err := first.Insert([]byte("bob"), []byte("designer"))
	require.NoError(t, err)
	g.Close()
	require.NoError(t, store.SetTableRoot("people", first.Root()))
	require.NoError(t, store.Commit())

	root, err = store.TableRoot("people")
	require.NoError(t, err)
	second := table.Open("people", root, store, pagestore.Uncommitted, &freed)
	val, ok, err := second.Get([]byte("bob"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "designer", string(val.Bytes()))
	val.Close()
}

func TestMultimapRemoveLastValueDeletesKey(t *testing.T) {
	store := pagestore.NewMemStore(256)
	var freed []pagestore.PageNumber
	mm := table.OpenMultimap("greetings", pagestore.InvalidPageNumber, store, pagestore.Never, &freed)

	require.NoError(t, mm.Insert([]byte("hello"), []byte("world")))
	removed, err := mm.Remove([]byte("hello"), []byte("world"))
	require.NoError(t, err)
	assert.True(t, removed)

	values, err := mm.Get([]byte("hello"))
	require.NoError(t, err)
	assert.Nil(t, values)
}
