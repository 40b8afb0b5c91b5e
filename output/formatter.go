// Package output renders result tables to terminal-friendly formats.
//
// Currently supported formats:
//   - JSON Lines: one JSON object per row
//   - CSV: comma-separated values with header row
//   - Table: aligned ASCII table for terminals
//
// Example usage:
//
//	formatter := output.NewJSONFormatter(os.Stdout)
//	if err := formatter.Format(tbl); err != nil {
//	    log.Fatal(err)
//	}
package output

import (
	"fmt"
	"io"

	"github.com/vegasq/lazyframe/column"
)

// Formatter renders a result table to a writer.
type Formatter interface {
	// Format writes the table in the formatter's specific format.
	Format(tbl *column.Table) error

	// SetOutput changes the output writer.
	SetOutput(w io.Writer)
}

// New returns the formatter registered under the given name: "json",
// "jsonl", "csv", or "table".
func New(name string, w io.Writer) (Formatter, error) {
	switch name {
	case "json", "jsonl":
		return NewJSONFormatter(w), nil
	case "csv":
		return NewCSVFormatter(w), nil
	case "table":
		return NewTableFormatter(w), nil
	default:
		return nil, fmt.Errorf("unsupported format %q (supported: json, jsonl, csv, table)", name)
	}
}
