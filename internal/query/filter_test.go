package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relstore/pagedengine/internal/value"
	"github.com/relstore/pagedengine/internal/xerrors"
)

func TestFilterAppliesComparatorAgainstConstant(t *testing.T) {
	f := widgets(t)
	s, err := NewTableScan(f, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	defer s.Close()

	filt := NewFilter(s, "id", value.OpLT, ConstOperand(value.IntValue(3)))
	rows := drain(t, filt)
	require.Len(t, rows, 3)
}

func TestFilterNoOpPassesEveryRowThrough(t *testing.T) {
	f := widgets(t)
	s, err := NewTableScan(f, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	defer s.Close()

	filt := NewFilter(s, "id", value.OpNoOp, ConstOperand(value.Value{}))
	rows := drain(t, filt)
	require.Len(t, rows, 10)
}

func TestFilterUnknownAttributeHardFails(t *testing.T) {
	f := widgets(t)
	s, err := NewTableScan(f, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	defer s.Close()

	filt := NewFilter(s, "nonexistent", value.OpEQ, ConstOperand(value.IntValue(1)))
	require.False(t, filt.Next())
	require.Error(t, filt.Err())
	require.Equal(t, xerrors.Logical, xerrors.KindOf(filt.Err()))
}
