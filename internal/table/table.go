// Package table is the in-memory tabular value every reader produces and
// every validator/expression consumes. It keeps columns ordered (field
// declaration order in the Catalog) and addresses rows with the 1-based
// index carried on diagnostic.Locator, mirroring the header/rows split of
// csv-powerops' TableData but holding typed cell values instead of raw
// strings, since SAGE coerces fields to declared types before validation.
package table

import "fmt"

// Value is the typed contents of one cell. Coercion (internal/reader,
// internal/schema field types) decides what concrete Go type backs a
// column: string, int64, float64, bool, time.Time, or nil for a missing
// or unparseable value.
type Value = any

// Table is one parsed catalog's worth of rows, column-ordered per the
// Catalog's field declarations.
type Table struct {
	// Columns holds field names in declaration order.
	Columns []string
	// rows[i] holds one row's cells, same order as Columns.
	rows [][]Value
	// colIndex maps a column name to its position in Columns/rows.
	colIndex map[string]int
}

// New builds an empty Table with the given column order.
func New(columns []string) *Table {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	return &Table{Columns: columns, colIndex: idx}
}

// AppendRow adds a row. len(cells) must equal len(Columns).
func (t *Table) AppendRow(cells []Value) error {
	if len(cells) != len(t.Columns) {
		return fmt.Errorf("table: row has %d cells, want %d", len(cells), len(t.Columns))
	}
	t.rows = append(t.rows, cells)
	return nil
}

// RowCount returns shape[0]: the number of data rows.
func (t *Table) RowCount() int {
	return len(t.rows)
}

// HasColumn reports whether name is a declared column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.colIndex[name]
	return ok
}

// ColumnIndex returns the 0-based position of name, or -1 if absent.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.colIndex[name]; ok {
		return i
	}
	return -1
}

// Cell returns the value at 1-based row rowIdx, column name. ok is false
// when rowIdx is out of range or name is not a column.
func (t *Table) Cell(rowIdx int, name string) (Value, bool) {
	ci, ok := t.colIndex[name]
	if !ok {
		return nil, false
	}
	ri := rowIdx - 1
	if ri < 0 || ri >= len(t.rows) {
		return nil, false
	}
	return t.rows[ri][ci], true
}

// Row returns a copy of the 1-based row rowIdx's cells, in Columns order.
func (t *Table) Row(rowIdx int) ([]Value, bool) {
	ri := rowIdx - 1
	if ri < 0 || ri >= len(t.rows) {
		return nil, false
	}
	out := make([]Value, len(t.rows[ri]))
	copy(out, t.rows[ri])
	return out, true
}

// Column returns every value in column name, in row order (1-based row 1 first).
func (t *Table) Column(name string) ([]Value, bool) {
	ci, ok := t.colIndex[name]
	if !ok {
		return nil, false
	}
	out := make([]Value, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[ci]
	}
	return out, true
}

// Rows returns every row's cells in row order; element i is 1-based row
// i+1. Used by the Validator's row-scope loop, which must visit rows in order.
func (t *Table) Rows() [][]Value {
	out := make([][]Value, len(t.rows))
	for i, row := range t.rows {
		out[i] = row
	}
	return out
}
