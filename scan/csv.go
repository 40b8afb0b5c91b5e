package scan

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/vegasq/lazyframe/column"
)

// CSVSource reads a single delimited-text file with a header row. Column
// types are inferred when the source is constructed: a column whose
// non-empty cells all parse as integers is int64, all parse as numbers is
// float64, all parse as booleans is bool, anything else is string. Empty
// cells are nulls.
type CSVSource struct {
	path   string
	comma  rune
	schema *column.Schema
	header []string
}

// NewCSV opens a comma-delimited file and infers its schema. The data is
// not retained; Read parses the file again when the query executes.
func NewCSV(path string) (*CSVSource, error) {
	return NewDelimited(path, ',')
}

// NewDelimited is NewCSV with a custom field delimiter.
func NewDelimited(path string, comma rune) (*CSVSource, error) {
	s := &CSVSource{path: path, comma: comma}
	if err := s.inferSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Name returns the file path.
func (s *CSVSource) Name() string { return s.path }

// Schema returns the inferred schema.
func (s *CSVSource) Schema() *column.Schema { return s.schema }

func (s *CSVSource) open() (*os.File, *csv.Reader, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	r := csv.NewReader(f)
	r.Comma = s.comma
	r.ReuseRecord = true
	return f, r, nil
}

func (s *CSVSource) inferSchema() error {
	f, r, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("reading header of %s: %w", s.path, err)
	}
	s.header = append([]string(nil), header...)

	// Each column starts as the narrowest candidate and widens as cells
	// contradict it. Columns with no non-empty cells stay string.
	isInt := make([]bool, len(header))
	isFloat := make([]bool, len(header))
	isBool := make([]bool, len(header))
	seen := make([]bool, len(header))
	for i := range header {
		isInt[i], isFloat[i], isBool[i] = true, true, true
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.path, err)
		}
		for i, cell := range rec {
			if i >= len(header) || cell == "" {
				continue
			}
			seen[i] = true
			if isInt[i] {
				if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
					isInt[i] = false
				}
			}
			if isFloat[i] {
				if _, err := strconv.ParseFloat(cell, 64); err != nil {
					isFloat[i] = false
				}
			}
			if isBool[i] {
				if _, err := strconv.ParseBool(cell); err != nil {
					isBool[i] = false
				}
			}
		}
	}

	// header was read with ReuseRecord, so its backing array now holds the
	// last data row; s.header kept the copy.
	fields := make([]column.Field, len(s.header))
	for i, name := range s.header {
		dt := column.String
		switch {
		case !seen[i]:
			dt = column.String
		case isInt[i]:
			dt = column.Int64
		case isFloat[i]:
			dt = column.Float64
		case isBool[i]:
			dt = column.Bool
		}
		fields[i] = column.Field{Name: name, Type: dt}
	}
	schema, err := column.NewSchema(fields...)
	if err != nil {
		return fmt.Errorf("schema of %s: %w", s.path, err)
	}
	s.schema = schema
	return nil
}

// Read parses the file into the requested columns. A delimited file is
// row-major, so every row is visited; the projection still avoids
// materializing unrequested columns.
func (s *CSVSource) Read(ctx context.Context, req *Request) (*column.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	need := readColumns(s.schema, req)
	wanted := make(map[string]int, len(need)) // name -> header position
	for _, name := range need {
		pos := -1
		for i, h := range s.header {
			if h == name {
				pos = i
				break
			}
		}
		if pos < 0 {
			return nil, fmt.Errorf("column %q not found in %s", name, s.path)
		}
		wanted[name] = pos
	}

	f, r, err := s.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", s.path, err)
	}

	builders := make([]*column.Builder, len(need))
	positions := make([]int, len(need))
	for i, name := range need {
		dt, _ := s.schema.TypeOf(name)
		builders[i] = column.NewBuilder(name, dt, 0)
		positions[i] = wanted[name]
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.path, err)
		}
		for i, b := range builders {
			pos := positions[i]
			if pos >= len(rec) || rec[pos] == "" {
				b.AppendNull()
				continue
			}
			v, err := parseCell(rec[pos], need[i], s.schema)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", s.path, err)
			}
			if err := b.Append(v); err != nil {
				return nil, err
			}
		}
	}

	cols := make([]*column.Column, len(builders))
	for i, b := range builders {
		cols[i] = b.Finish()
	}
	tbl, err := column.NewTable(cols...)
	if err != nil {
		return nil, err
	}
	return apply(tbl, req)
}

func parseCell(cell, name string, schema *column.Schema) (interface{}, error) {
	dt, _ := schema.TypeOf(name)
	switch dt {
	case column.Int64:
		v, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: cannot parse %q as int64", name, cell)
		}
		return v, nil
	case column.Float64:
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: cannot parse %q as float64", name, cell)
		}
		return v, nil
	case column.Bool:
		v, err := strconv.ParseBool(cell)
		if err != nil {
			return nil, fmt.Errorf("column %q: cannot parse %q as bool", name, cell)
		}
		return v, nil
	default:
		return cell, nil
	}
}
