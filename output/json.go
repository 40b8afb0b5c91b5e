package output

import (
	"encoding/json"
	"io"

	"github.com/vegasq/lazyframe/column"
)

// JSONFormatter outputs a table as JSON Lines, one object per row. Null
// cells become JSON null.
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON Lines formatter.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// SetOutput sets the output writer.
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes the table as JSON Lines.
func (j *JSONFormatter) Format(tbl *column.Table) error {
	encoder := json.NewEncoder(j.writer)
	for i := 0; i < tbl.NumRows(); i++ {
		if err := encoder.Encode(tbl.Row(i)); err != nil {
			return err
		}
	}
	return nil
}
