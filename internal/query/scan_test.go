package query

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relstore/pagedengine/internal/catalog"
	"github.com/relstore/pagedengine/internal/pageio"
	"github.com/relstore/pagedengine/internal/recordfile"
	"github.com/relstore/pagedengine/internal/value"
)

func newRecordFile(t *testing.T, table string, attrs []value.Attribute) (*recordfile.File, *catalog.Memory, *pageio.Cache) {
	t.Helper()
	cat := catalog.NewMemory(nil)
	require.NoError(t, cat.CreateTable(table, attrs))
	cache := pageio.NewCache(64)
	path := filepath.Join(t.TempDir(), table+".db")
	f, err := recordfile.Create(path, table, cat, cache, nil)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f, cat, cache
}

func widgets(t *testing.T) *recordfile.File {
	t.Helper()
	f, _, _ := newRecordFile(t, "widgets", []value.Attribute{
		{Name: "id", Type: value.IntType},
		{Name: "name", Type: value.VarCharType},
	})
	for i := 0; i < 10; i++ {
		_, err := f.Insert([]value.Value{value.IntValue(int32(i)), value.TextValue([]byte("w"))})
		require.NoError(t, err)
	}
	return f
}

func drain(t *testing.T, it Iterator) [][]value.Value {
	t.Helper()
	var out [][]value.Value
	for it.Next() {
		row := append([]value.Value(nil), it.Tuple()...)
		out = append(out, row)
	}
	require.NoError(t, it.Err())
	return out
}

func TestTableScanNoPredicateReturnsEveryRow(t *testing.T) {
	f := widgets(t)
	s, err := NewTableScan(f, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	defer s.Close()
	rows := drain(t, s)
	require.Len(t, rows, 10)
}

func TestTableScanPredicateFilters(t *testing.T) {
	f := widgets(t)
	s, err := NewTableScan(f, "id", value.OpGE, value.IntValue(5), nil)
	require.NoError(t, err)
	defer s.Close()
	rows := drain(t, s)
	require.Len(t, rows, 5)
}

func TestTableScanProjectsRequestedAttributes(t *testing.T) {
	f := widgets(t)
	s, err := NewTableScan(f, "", value.OpNoOp, value.Value{}, []string{"name"})
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, value.Descriptor{{Name: "name", Type: value.VarCharType, Valid: true, Position: 1}}, s.Attributes())
	rows := drain(t, s)
	require.Len(t, rows, 10)
	require.Len(t, rows[0], 1)
}

func TestTableScanUnknownProjectionFails(t *testing.T) {
	f := widgets(t)
	_, err := NewTableScan(f, "", value.OpNoOp, value.Value{}, []string{"nope"})
	require.Error(t, err)
}

func TestTableScanRewindRestartsFromBeginning(t *testing.T) {
	f := widgets(t)
	s, err := NewTableScan(f, "", value.OpNoOp, value.Value{}, nil)
	require.NoError(t, err)
	defer s.Close()
	first := drain(t, s)
	require.NoError(t, s.Rewind())
	second := drain(t, s)
	require.Equal(t, len(first), len(second))
}
