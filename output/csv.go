package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vegasq/lazyframe/column"
)

// CSVFormatter outputs a table as CSV with a header row. Column order
// follows the table's schema; null cells are empty.
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a new CSV formatter.
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// SetOutput sets the output writer.
func (c *CSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

// Format writes the table as CSV.
func (c *CSVFormatter) Format(tbl *column.Table) error {
	w := csv.NewWriter(c.writer)

	if err := w.Write(tbl.Schema().Names()); err != nil {
		return err
	}

	record := make([]string, tbl.NumCols())
	for i := 0; i < tbl.NumRows(); i++ {
		for j := 0; j < tbl.NumCols(); j++ {
			v, ok := tbl.ColumnAt(j).Value(i)
			if !ok {
				record[j] = ""
				continue
			}
			record[j] = formatValue(v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

// formatValue converts a cell value to its string form.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		// Sanitize against CSV injection by prefixing characters that
		// could trigger formula execution in spreadsheet applications.
		if len(val) > 0 {
			switch val[0] {
			case '=', '+', '-', '@', '\t', '\r', '\n', '|':
				return "'" + strings.ReplaceAll(val, "'", "''")
			}
		}
		return val
	case int32:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case float32, float64:
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", val)
	}
}
