package query

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relstore/pagedengine/internal/pageio"
	"github.com/relstore/pagedengine/internal/value"
)

func TestGraceHashJoinMatchesAcrossPartitions(t *testing.T) {
	leftFile, _, _ := newRecordFile(t, "orders_ghj", []value.Attribute{
		{Name: "order_id", Type: value.IntType},
		{Name: "cust_id", Type: value.IntType},
	})
	for i := 0; i < 30; i++ {
		_, err := leftFile.Insert([]value.Value{value.IntValue(int32(i)), value.IntValue(int32(i % 5))})
		require.NoError(t, err)
	}
	rightFile, _, _ := newRecordFile(t, "customers_ghj", []value.Attribute{
		{Name: "cust_id", Type: value.IntType},
		{Name: "name", Type: value.VarCharType},
	})
	for i := 0; i < 5; i++ {
		_, err := rightFile.Insert([]value.Value{value.IntValue(int32(i)), value.TextValue([]byte("c"))})
		require.NoError(t, err)
	}

	left, err := NewTableScan(leftFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	right, err := NewTableScan(rightFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)

	cache := pageio.NewCache(64)
	j, err := NewGraceHashJoin(left, right, "cust_id", "cust_id", 3, t.TempDir(), cache, nil)
	require.NoError(t, err)
	defer j.Close()

	rows := drain(t, j)
	require.Len(t, rows, 30)

	var orderIDs []int
	for _, r := range rows {
		orderIDs = append(orderIDs, int(r[0].Int))
	}
	sort.Ints(orderIDs)
	for i, v := range orderIDs {
		require.Equal(t, i, v)
	}
}

func TestGraceHashJoinSkipsNullJoinValues(t *testing.T) {
	leftFile, _, _ := newRecordFile(t, "orders_ghj_null", []value.Attribute{
		{Name: "order_id", Type: value.IntType},
		{Name: "cust_id", Type: value.IntType},
	})
	_, err := leftFile.Insert([]value.Value{value.IntValue(1), value.NullValue(value.IntType)})
	require.NoError(t, err)
	_, err = leftFile.Insert([]value.Value{value.IntValue(2), value.IntValue(0)})
	require.NoError(t, err)

	rightFile, _, _ := newRecordFile(t, "customers_ghj_null", []value.Attribute{
		{Name: "cust_id", Type: value.IntType},
	})
	_, err = rightFile.Insert([]value.Value{value.IntValue(0)})
	require.NoError(t, err)

	left, err := NewTableScan(leftFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	right, err := NewTableScan(rightFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)

	cache := pageio.NewCache(64)
	j, err := NewGraceHashJoin(left, right, "cust_id", "cust_id", 4, t.TempDir(), cache, nil)
	require.NoError(t, err)
	defer j.Close()

	rows := drain(t, j)
	require.Len(t, rows, 1)
	require.Equal(t, int32(2), rows[0][0].Int)
}

func TestGraceHashJoinRemovesTemporaryFilesOnClose(t *testing.T) {
	leftFile, _, _ := newRecordFile(t, "orders_ghj_close", []value.Attribute{
		{Name: "order_id", Type: value.IntType},
		{Name: "cust_id", Type: value.IntType},
	})
	_, err := leftFile.Insert([]value.Value{value.IntValue(1), value.IntValue(1)})
	require.NoError(t, err)
	rightFile, _, _ := newRecordFile(t, "customers_ghj_close", []value.Attribute{
		{Name: "cust_id", Type: value.IntType},
	})
	_, err = rightFile.Insert([]value.Value{value.IntValue(1)})
	require.NoError(t, err)

	left, err := NewTableScan(leftFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	right, err := NewTableScan(rightFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)

	cache := pageio.NewCache(64)
	dir := t.TempDir()
	j, err := NewGraceHashJoin(left, right, "cust_id", "cust_id", 2, dir, cache, nil)
	require.NoError(t, err)
	require.True(t, j.Next())
	require.NoError(t, j.Close())

	for _, p := range j.leftPaths {
		require.NoFileExists(t, p)
	}
	for _, p := range j.rightPaths {
		require.NoFileExists(t, p)
	}
}

func TestGraceHashJoinUnknownAttributeFails(t *testing.T) {
	leftFile, _, _ := newRecordFile(t, "orders_ghj_bad", []value.Attribute{
		{Name: "order_id", Type: value.IntType},
	})
	rightFile, _, _ := newRecordFile(t, "customers_ghj_bad", []value.Attribute{
		{Name: "cust_id", Type: value.IntType},
	})
	left, err := NewTableScan(leftFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	right, err := NewTableScan(rightFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)

	cache := pageio.NewCache(64)
	_, err = NewGraceHashJoin(left, right, "bogus", "cust_id", 2, t.TempDir(), cache, nil)
	require.Error(t, err)
}
