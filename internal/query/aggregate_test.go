package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relstore/pagedengine/internal/value"
)

func TestScalarAggregateSum(t *testing.T) {
	f, _, _ := newRecordFile(t, "orders_sum", []value.Attribute{
		{Name: "id", Type: value.IntType},
		{Name: "amount", Type: value.IntType},
	})
	for _, v := range []int32{10, 20, 30} {
		_, err := f.Insert([]value.Value{value.IntValue(1), value.IntValue(v)})
		require.NoError(t, err)
	}
	s, err := NewTableScan(f, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	agg, err := NewScalarAggregate(s, "amount", AggSum)
	require.NoError(t, err)
	require.True(t, agg.Next())
	require.InDelta(t, float32(60), agg.Tuple()[0].Real, 0.001)
	require.False(t, agg.Next())
}

func TestScalarAggregateCountIncludesNulls(t *testing.T) {
	f, _, _ := newRecordFile(t, "orders_count", []value.Attribute{
		{Name: "id", Type: value.IntType},
		{Name: "amount", Type: value.IntType},
	})
	_, err := f.Insert([]value.Value{value.IntValue(1), value.IntValue(10)})
	require.NoError(t, err)
	_, err = f.Insert([]value.Value{value.IntValue(2), value.NullValue(value.IntType)})
	require.NoError(t, err)

	s, err := NewTableScan(f, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	agg, err := NewScalarAggregate(s, "amount", AggCount)
	require.NoError(t, err)
	require.True(t, agg.Next())
	require.Equal(t, int32(2), agg.Tuple()[0].Int)
}

func TestScalarAggregateAvgSkipsNullsInDenominator(t *testing.T) {
	f, _, _ := newRecordFile(t, "orders_avg", []value.Attribute{
		{Name: "id", Type: value.IntType},
		{Name: "amount", Type: value.IntType},
	})
	_, err := f.Insert([]value.Value{value.IntValue(1), value.IntValue(10)})
	require.NoError(t, err)
	_, err = f.Insert([]value.Value{value.IntValue(2), value.IntValue(30)})
	require.NoError(t, err)
	_, err = f.Insert([]value.Value{value.IntValue(3), value.NullValue(value.IntType)})
	require.NoError(t, err)

	s, err := NewTableScan(f, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	agg, err := NewScalarAggregate(s, "amount", AggAvg)
	require.NoError(t, err)
	require.True(t, agg.Next())
	require.InDelta(t, float32(20), agg.Tuple()[0].Real, 0.001)
}

func TestGroupedAggregateOrdersByGroupKey(t *testing.T) {
	f, _, _ := newRecordFile(t, "orders_group", []value.Attribute{
		{Name: "id", Type: value.IntType},
		{Name: "category", Type: value.VarCharType},
		{Name: "amount", Type: value.IntType},
	})
	data := []struct {
		cat string
		amt int32
	}{
		{"b", 5}, {"a", 10}, {"a", 20}, {"c", 100},
	}
	for i, d := range data {
		_, err := f.Insert([]value.Value{value.IntValue(int32(i)), value.TextValue([]byte(d.cat)), value.IntValue(d.amt)})
		require.NoError(t, err)
	}
	s, err := NewTableScan(f, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	agg, err := NewGroupedAggregate(s, "amount", "category", AggSum)
	require.NoError(t, err)

	var groups []string
	var sums []float32
	for agg.Next() {
		row := agg.Tuple()
		groups = append(groups, row[0].String())
		sums = append(sums, row[1].Real)
	}
	require.NoError(t, agg.Err())
	require.Equal(t, []string{"a", "b", "c"}, groups)
	require.InDelta(t, float32(30), sums[0], 0.001)
	require.InDelta(t, float32(5), sums[1], 0.001)
	require.InDelta(t, float32(100), sums[2], 0.001)
}

func TestAggregateUnknownAttributeFails(t *testing.T) {
	f := widgets(t)
	s, err := NewTableScan(f, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	_, err = NewScalarAggregate(s, "bogus", AggSum)
	require.Error(t, err)
}
