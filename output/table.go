package output

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/vegasq/lazyframe/column"
)

// TableFormatter outputs an aligned ASCII table for terminals. Null cells
// render as "null".
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new ASCII table formatter.
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer.
func (t *TableFormatter) SetOutput(w io.Writer) {
	t.writer = w
}

// Format writes the table in aligned ASCII form.
func (t *TableFormatter) Format(tbl *column.Table) error {
	w := tablewriter.NewWriter(t.writer)
	w.SetHeader(tbl.Schema().Names())
	w.SetAutoFormatHeaders(false)
	w.SetAutoWrapText(false)

	record := make([]string, tbl.NumCols())
	for i := 0; i < tbl.NumRows(); i++ {
		for j := 0; j < tbl.NumCols(); j++ {
			v, ok := tbl.ColumnAt(j).Value(i)
			if !ok {
				record[j] = "null"
				continue
			}
			record[j] = formatValue(v)
		}
		w.Append(record)
	}
	w.Render()
	return nil
}
