package bptree

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relstore/pagedengine/internal/pageio"
	"github.com/relstore/pagedengine/internal/value"
)

func newTree(t *testing.T) *BTree {
	t.Helper()
	cache := pageio.NewCache(64)
	path := filepath.Join(t.TempDir(), "idx.db")
	tr, err := Create(path, value.IntType, cache, nil)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func key(v int32, page int32, slot uint16) value.CompositeKey {
	return value.CompositeKey{Value: value.IntValue(v), RID: value.RID{Page: page, Slot: slot}}
}

func TestInsertAndRangeScanOrdered(t *testing.T) {
	tr := newTree(t)
	for i := int32(0); i < 500; i++ {
		require.NoError(t, tr.Insert(key(i, i, 0)))
	}

	it := tr.RangeScan(nil, true, nil, true)
	var got []int32
	for it.Next() {
		got = append(got, it.Key().Value.Int)
	}
	require.NoError(t, it.Err())
	require.Len(t, got, 500)
	for i, v := range got {
		require.Equal(t, int32(i), v)
	}
}

func TestRangeScanBounds(t *testing.T) {
	tr := newTree(t)
	for i := int32(0); i < 100; i++ {
		require.NoError(t, tr.Insert(key(i, i, 0)))
	}

	lo := value.IntValue(10)
	hi := value.IntValue(20)
	it := tr.RangeScan(&lo, true, &hi, false)
	var got []int32
	for it.Next() {
		got = append(got, it.Key().Value.Int)
	}
	require.NoError(t, it.Err())
	require.Equal(t, int32(10), got[0])
	require.Equal(t, int32(19), got[len(got)-1])
	require.Len(t, got, 10)
}

func TestDeleteRemovesExactEntry(t *testing.T) {
	tr := newTree(t)
	for i := int32(0); i < 50; i++ {
		require.NoError(t, tr.Insert(key(i, i, 0)))
	}
	require.NoError(t, tr.Delete(key(25, 25, 0)))

	it := tr.RangeScan(nil, true, nil, true)
	count := 0
	for it.Next() {
		require.NotEqual(t, int32(25), it.Key().Value.Int)
		count++
	}
	require.Equal(t, 49, count)
}

func TestDeleteMissingKeyFails(t *testing.T) {
	tr := newTree(t)
	require.NoError(t, tr.Insert(key(1, 1, 0)))
	err := tr.Delete(key(2, 2, 0))
	require.Error(t, err)
}

func TestDeleteAllEntriesEmptiesTree(t *testing.T) {
	tr := newTree(t)
	keys := make([]value.CompositeKey, 0, 200)
	for i := int32(0); i < 200; i++ {
		k := key(i, i, 0)
		keys = append(keys, k)
		require.NoError(t, tr.Insert(k))
	}
	for _, k := range keys {
		require.NoError(t, tr.Delete(k))
	}
	require.Equal(t, int32(emptyRoot), tr.rootPage())

	it := tr.RangeScan(nil, true, nil, true)
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestDuplicateValuesDistinguishedByRID(t *testing.T) {
	tr := newTree(t)
	require.NoError(t, tr.Insert(key(7, 1, 0)))
	require.NoError(t, tr.Insert(key(7, 2, 0)))
	require.NoError(t, tr.Insert(key(7, 3, 0)))

	it := tr.RangeScan(nil, true, nil, true)
	count := 0
	for it.Next() {
		require.Equal(t, int32(7), it.Key().Value.Int)
		count++
	}
	require.Equal(t, 3, count)
}

func TestReopenPreservesKeyType(t *testing.T) {
	cache := pageio.NewCache(64)
	path := filepath.Join(t.TempDir(), "idx.db")
	tr, err := Create(path, value.VarCharType, cache, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Insert(value.CompositeKey{Value: value.TextValue([]byte("a")), RID: value.RID{Page: 1}}))
	require.NoError(t, tr.Close())

	tr2, err := Open(path, cache, nil)
	require.NoError(t, err)
	defer tr2.Close()
	require.Equal(t, value.VarCharType, tr2.keyType)

	it := tr2.RangeScan(nil, true, nil, true)
	require.True(t, it.Next())
	require.Equal(t, "a", it.Key().Value.String())
}
