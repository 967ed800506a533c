package query

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relstore/pagedengine/internal/bptree"
	"github.com/relstore/pagedengine/internal/pageio"
	"github.com/relstore/pagedengine/internal/value"
)

func buildIndex(t *testing.T, cache *pageio.Cache, vt value.Type) *bptree.BTree {
	t.Helper()
	path := filepath.Join(t.TempDir(), "join_inl_idx.db")
	tr, err := bptree.Create(path, vt, cache, nil)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestIndexNestedLoopJoinEquality(t *testing.T) {
	cache := pageio.NewCache(64)
	leftFile, _, _ := newRecordFile(t, "orders_inl", []value.Attribute{
		{Name: "order_id", Type: value.IntType},
		{Name: "cust_id", Type: value.IntType},
	})
	for i := 0; i < 6; i++ {
		_, err := leftFile.Insert([]value.Value{value.IntValue(int32(i)), value.IntValue(int32(i % 3))})
		require.NoError(t, err)
	}

	rightFile, _, _ := newRecordFile(t, "customers_inl", []value.Attribute{
		{Name: "cust_id", Type: value.IntType},
		{Name: "name", Type: value.VarCharType},
	})
	idx := buildIndex(t, cache, value.IntType)
	for i := 0; i < 3; i++ {
		rid, err := rightFile.Insert([]value.Value{value.IntValue(int32(i)), value.TextValue([]byte("c"))})
		require.NoError(t, err)
		require.NoError(t, idx.Insert(value.CompositeKey{Value: value.IntValue(int32(i)), RID: rid}))
	}

	left, err := NewTableScan(leftFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	right, err := NewIndexScan(idx, rightFile, nil, true, nil, true)
	require.NoError(t, err)

	j, err := NewIndexNestedLoopJoin(left, right, "cust_id", "cust_id", value.OpEQ)
	require.NoError(t, err)
	defer j.Close()

	rows := drain(t, j)
	require.Len(t, rows, 6)
}

func TestIndexNestedLoopJoinReChecksNonEqualityComparator(t *testing.T) {
	cache := pageio.NewCache(64)
	leftFile, _, _ := newRecordFile(t, "orders_inl_lt", []value.Attribute{
		{Name: "order_id", Type: value.IntType},
		{Name: "threshold", Type: value.IntType},
	})
	_, err := leftFile.Insert([]value.Value{value.IntValue(1), value.IntValue(2)})
	require.NoError(t, err)

	rightFile, _, _ := newRecordFile(t, "scores_inl_lt", []value.Attribute{
		{Name: "score", Type: value.IntType},
	})
	idx := buildIndex(t, cache, value.IntType)
	for _, v := range []int32{1, 2, 3, 4} {
		rid, err := rightFile.Insert([]value.Value{value.IntValue(v)})
		require.NoError(t, err)
		require.NoError(t, idx.Insert(value.CompositeKey{Value: value.IntValue(v), RID: rid}))
	}

	left, err := NewTableScan(leftFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	right, err := NewIndexScan(idx, rightFile, nil, true, nil, true)
	require.NoError(t, err)

	// threshold (2) re-initializes the index scan to [2,2], then the
	// comparator is rechecked against the single candidate: threshold <
	// score is 2 < 2, false, so nothing joins.
	j, err := NewIndexNestedLoopJoin(left, right, "threshold", "score", value.OpLT)
	require.NoError(t, err)
	defer j.Close()

	rows := drain(t, j)
	require.Len(t, rows, 0)
}

func TestIndexNestedLoopJoinSkipsNullLeftValues(t *testing.T) {
	cache := pageio.NewCache(64)
	leftFile, _, _ := newRecordFile(t, "orders_inl_null", []value.Attribute{
		{Name: "order_id", Type: value.IntType},
		{Name: "cust_id", Type: value.IntType},
	})
	_, err := leftFile.Insert([]value.Value{value.IntValue(1), value.NullValue(value.IntType)})
	require.NoError(t, err)
	_, err = leftFile.Insert([]value.Value{value.IntValue(2), value.IntValue(0)})
	require.NoError(t, err)

	rightFile, _, _ := newRecordFile(t, "customers_inl_null", []value.Attribute{
		{Name: "cust_id", Type: value.IntType},
	})
	idx := buildIndex(t, cache, value.IntType)
	rid, err := rightFile.Insert([]value.Value{value.IntValue(0)})
	require.NoError(t, err)
	require.NoError(t, idx.Insert(value.CompositeKey{Value: value.IntValue(0), RID: rid}))

	left, err := NewTableScan(leftFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	right, err := NewIndexScan(idx, rightFile, nil, true, nil, true)
	require.NoError(t, err)

	j, err := NewIndexNestedLoopJoin(left, right, "cust_id", "cust_id", value.OpEQ)
	require.NoError(t, err)
	defer j.Close()

	rows := drain(t, j)
	require.Len(t, rows, 1)
	require.Equal(t, int32(2), rows[0][0].Int)
}

func TestIndexNestedLoopJoinUnknownAttributeFails(t *testing.T) {
	cache := pageio.NewCache(64)
	leftFile, _, _ := newRecordFile(t, "orders_inl_bad", []value.Attribute{
		{Name: "order_id", Type: value.IntType},
	})
	rightFile, _, _ := newRecordFile(t, "customers_inl_bad", []value.Attribute{
		{Name: "cust_id", Type: value.IntType},
	})
	idx := buildIndex(t, cache, value.IntType)

	left, err := NewTableScan(leftFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	right, err := NewIndexScan(idx, rightFile, nil, true, nil, true)
	require.NoError(t, err)

	_, err = NewIndexNestedLoopJoin(left, right, "bogus", "cust_id", value.OpEQ)
	require.Error(t, err)
}
