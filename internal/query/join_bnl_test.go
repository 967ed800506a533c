package query

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relstore/pagedengine/internal/value"
)

func TestBlockNestedLoopJoinMatchesOnEquality(t *testing.T) {
	leftFile, _, _ := newRecordFile(t, "orders_bnl", []value.Attribute{
		{Name: "order_id", Type: value.IntType},
		{Name: "cust_id", Type: value.IntType},
	})
	for i := 0; i < 6; i++ {
		_, err := leftFile.Insert([]value.Value{value.IntValue(int32(i)), value.IntValue(int32(i % 3))})
		require.NoError(t, err)
	}
	rightFile, _, _ := newRecordFile(t, "customers_bnl", []value.Attribute{
		{Name: "cust_id", Type: value.IntType},
		{Name: "name", Type: value.VarCharType},
	})
	for i := 0; i < 3; i++ {
		_, err := rightFile.Insert([]value.Value{value.IntValue(int32(i)), value.TextValue([]byte("c"))})
		require.NoError(t, err)
	}

	left, err := NewTableScan(leftFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	right, err := NewTableScan(rightFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)

	j, err := NewBlockNestedLoopJoin(left, right, "cust_id", "cust_id", 2)
	require.NoError(t, err)
	defer j.Close()

	rows := drain(t, j)
	require.Len(t, rows, 6)
	require.Len(t, j.Attributes(), 4)
}

func TestBlockNestedLoopJoinSkipsNullJoinValues(t *testing.T) {
	leftFile, _, _ := newRecordFile(t, "orders_bnl_null", []value.Attribute{
		{Name: "order_id", Type: value.IntType},
		{Name: "cust_id", Type: value.IntType},
	})
	_, err := leftFile.Insert([]value.Value{value.IntValue(1), value.NullValue(value.IntType)})
	require.NoError(t, err)
	_, err = leftFile.Insert([]value.Value{value.IntValue(2), value.IntValue(0)})
	require.NoError(t, err)

	rightFile, _, _ := newRecordFile(t, "customers_bnl_null", []value.Attribute{
		{Name: "cust_id", Type: value.IntType},
	})
	_, err = rightFile.Insert([]value.Value{value.IntValue(0)})
	require.NoError(t, err)

	left, err := NewTableScan(leftFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	right, err := NewTableScan(rightFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)

	j, err := NewBlockNestedLoopJoin(left, right, "cust_id", "cust_id", 10)
	require.NoError(t, err)
	defer j.Close()

	rows := drain(t, j)
	require.Len(t, rows, 1)
}

func TestBlockNestedLoopJoinReloadsBlockAcrossMultipleRounds(t *testing.T) {
	leftFile, _, _ := newRecordFile(t, "orders_bnl_multi", []value.Attribute{
		{Name: "order_id", Type: value.IntType},
		{Name: "cust_id", Type: value.IntType},
	})
	for i := 0; i < 20; i++ {
		_, err := leftFile.Insert([]value.Value{value.IntValue(int32(i)), value.IntValue(int32(i % 4))})
		require.NoError(t, err)
	}
	rightFile, _, _ := newRecordFile(t, "customers_bnl_multi", []value.Attribute{
		{Name: "cust_id", Type: value.IntType},
	})
	for i := 0; i < 4; i++ {
		_, err := rightFile.Insert([]value.Value{value.IntValue(int32(i))})
		require.NoError(t, err)
	}

	left, err := NewTableScan(leftFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	right, err := NewTableScan(rightFile, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)

	// Block size of 3 forces many reload rounds over 20 left tuples.
	j, err := NewBlockNestedLoopJoin(left, right, "cust_id", "cust_id", 3)
	require.NoError(t, err)
	defer j.Close()

	rows := drain(t, j)
	require.Len(t, rows, 20)

	var orderIDs []int
	for _, r := range rows {
		orderIDs = append(orderIDs, int(r[0].Int))
	}
	sort.Ints(orderIDs)
	for i, v := range orderIDs {
		require.Equal(t, i, v)
	}
}
