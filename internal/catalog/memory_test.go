package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relstore/pagedengine/internal/value"
)

func TestSchemaEvolutionPreservesOldVersions(t *testing.T) {
	cat := NewMemory(nil)
	require.NoError(t, cat.CreateTable("people", []value.Attribute{
		{Name: "id", Type: value.IntType},
		{Name: "name", Type: value.VarCharType},
	}))

	v1, err := cat.CurrentVersion("people")
	require.NoError(t, err)
	require.Equal(t, 1, v1)

	v2, err := cat.AddAttribute("people", value.Attribute{Name: "age", Type: value.IntType})
	require.NoError(t, err)
	require.Equal(t, 2, v2)

	cur, err := cat.CurrentVersion("people")
	require.NoError(t, err)
	require.Equal(t, 2, cur)

	descV1, err := cat.AttributesFor("people", 1)
	require.NoError(t, err)
	require.Len(t, descV1, 2)

	descV2, err := cat.AttributesFor("people", 2)
	require.NoError(t, err)
	require.Len(t, descV2, 3)
	require.Equal(t, "age", descV2[2].Name)
}

func TestDropAttributeMarksInvalidNotRemoved(t *testing.T) {
	cat := NewMemory(nil)
	require.NoError(t, cat.CreateTable("t", []value.Attribute{
		{Name: "a", Type: value.IntType},
		{Name: "b", Type: value.IntType},
	}))

	v2, err := cat.DropAttribute("t", "a")
	require.NoError(t, err)

	desc, err := cat.AttributesFor("t", v2)
	require.NoError(t, err)
	require.Len(t, desc, 2, "dropped attribute still occupies an offset-table slot")
	require.False(t, desc[0].Valid)
	require.Len(t, desc.Visible(), 1)
}

func TestIsSystem(t *testing.T) {
	cat := NewMemory(nil)
	require.False(t, cat.IsSystem("tables.db"))
	cat.MarkSystem("tables.db")
	require.True(t, cat.IsSystem("tables.db"))
}
