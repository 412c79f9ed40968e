package table

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableCellAndColumn(t *testing.T) {
	tbl := New([]string{"id", "name"})
	require.NoError(t, tbl.AppendRow([]Value{"1", "alice"}))
	require.NoError(t, tbl.AppendRow([]Value{"2", "bob"}))

	require.Equal(t, 2, tbl.RowCount())
	v, ok := tbl.Cell(1, "name")
	require.True(t, ok)
	require.Equal(t, "alice", v)

	v, ok = tbl.Cell(2, "id")
	require.True(t, ok)
	require.Equal(t, "2", v)

	_, ok = tbl.Cell(3, "id")
	require.False(t, ok)

	col, ok := tbl.Column("name")
	require.True(t, ok)
	require.Equal(t, []Value{"alice", "bob"}, col)
}

func TestTableAppendRowWrongArity(t *testing.T) {
	tbl := New([]string{"id", "name"})
	err := tbl.AppendRow([]Value{"1"})
	require.Error(t, err)
}

func TestTableHasColumnAndIndex(t *testing.T) {
	tbl := New([]string{"a", "b"})
	require.True(t, tbl.HasColumn("a"))
	require.False(t, tbl.HasColumn("z"))
	require.Equal(t, 1, tbl.ColumnIndex("b"))
	require.Equal(t, -1, tbl.ColumnIndex("z"))
}
