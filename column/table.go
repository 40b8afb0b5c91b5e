package column

import (
	"fmt"
)

// Table is an ordered set of equal-length, distinctly named columns.
// Column order is significant for display but not for semantics.
type Table struct {
	cols  []*Column
	index map[string]int
}

// NewTable constructs a table from ordered columns. All columns must have
// equal length and distinct names.
func NewTable(cols ...*Column) (*Table, error) {
	t := &Table{cols: append([]*Column(nil), cols...), index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := t.index[c.Name()]; dup {
			return nil, fmt.Errorf("duplicate column name %q in table", c.Name())
		}
		t.index[c.Name()] = i
		if c.Len() != t.cols[0].Len() {
			return nil, fmt.Errorf("column %q has length %d, expected %d", c.Name(), c.Len(), t.cols[0].Len())
		}
	}
	return t, nil
}

// Empty returns a zero-row table with the given schema.
func Empty(schema *Schema) *Table {
	cols := make([]*Column, 0, schema.Len())
	for _, f := range schema.Fields() {
		cols = append(cols, NewBuilder(f.Name, f.Type, 0).Finish())
	}
	t, _ := NewTable(cols...)
	return t
}

// NumRows returns the number of rows; zero for a table with no columns.
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// Columns returns the ordered columns.
func (t *Table) Columns() []*Column { return append([]*Column(nil), t.cols...) }

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// ColumnAt returns the column at position i.
func (t *Table) ColumnAt(i int) *Column { return t.cols[i] }

// Schema returns the table's schema.
func (t *Table) Schema() *Schema {
	fields := make([]Field, len(t.cols))
	for i, c := range t.cols {
		fields[i] = Field{Name: c.Name(), Type: c.Type()}
	}
	s, _ := NewSchema(fields...)
	return s
}

// Select returns a new table containing exactly the named columns in the
// given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		cols = append(cols, c)
	}
	return NewTable(cols...)
}

// WithColumn returns a new table with the given column added, or replaced
// in place if a column of the same name exists. Length must match.
func (t *Table) WithColumn(c *Column) (*Table, error) {
	if len(t.cols) > 0 && c.Len() != t.NumRows() {
		return nil, fmt.Errorf("column %q has length %d, expected %d", c.Name(), c.Len(), t.NumRows())
	}
	cols := append([]*Column(nil), t.cols...)
	if i, ok := t.index[c.Name()]; ok {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	return NewTable(cols...)
}

// Gather returns a new table whose row i is the receiver's row indices[i].
// Negative indices produce all-null rows.
func (t *Table) Gather(indices []int) (*Table, error) {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		gc, err := c.Gather(indices)
		if err != nil {
			return nil, err
		}
		cols[i] = gc
	}
	return NewTable(cols...)
}

// Filter returns a new table keeping only the rows where keep is true.
func (t *Table) Filter(keep []bool) (*Table, error) {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		fc, err := c.Filter(keep)
		if err != nil {
			return nil, err
		}
		cols[i] = fc
	}
	return NewTable(cols...)
}

// Head returns a new table holding the first n rows, or all rows if the
// table is shorter.
func (t *Table) Head(n int) (*Table, error) {
	if n > t.NumRows() {
		n = t.NumRows()
	}
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		sc, err := c.Slice(0, n)
		if err != nil {
			return nil, err
		}
		cols[i] = sc
	}
	return NewTable(cols...)
}

// Concat appends the rows of other below the receiver. Columns are matched
// by name (order may differ); numeric columns promote to the narrowest
// common type. A column present in one table and absent from the other
// fails with an error; heterogeneous chunk schemas are the scanner's
// problem to reject earlier.
func (t *Table) Concat(other *Table) (*Table, error) {
	if t.NumCols() != other.NumCols() {
		return nil, fmt.Errorf("cannot concat tables with %d and %d columns", t.NumCols(), other.NumCols())
	}
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		oc, ok := other.Column(c.Name())
		if !ok {
			return nil, fmt.Errorf("column %q missing from concatenated table", c.Name())
		}
		cc, err := c.Concat(oc)
		if err != nil {
			return nil, err
		}
		cols[i] = cc
	}
	return NewTable(cols...)
}

// Equal reports whether two tables hold identical contents per column
// name. Column order is not significant; names, types, lengths and
// null-aware values are.
func (t *Table) Equal(other *Table) bool {
	if t.NumCols() != other.NumCols() || t.NumRows() != other.NumRows() {
		return false
	}
	for _, c := range t.cols {
		oc, ok := other.Column(c.Name())
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	return true
}

// Row returns row i as boxed values keyed by column name. Null slots map
// to nil. Intended for formatters and tests, not the execution hot path.
func (t *Table) Row(i int) map[string]interface{} {
	row := make(map[string]interface{}, len(t.cols))
	for _, c := range t.cols {
		v, ok := c.Value(i)
		if !ok {
			row[c.Name()] = nil
			continue
		}
		row[c.Name()] = v
	}
	return row
}
