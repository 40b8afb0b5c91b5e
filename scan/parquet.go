package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog/log"

	"github.com/vegasq/lazyframe/column"
)

// SchemaMismatchError reports that files matched by one glob pattern do
// not share an identical schema.
type SchemaMismatchError struct {
	Path        string
	Other       string
	Schema      *column.Schema
	OtherSchema *column.Schema
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: %s has (%s) but %s has (%s)",
		e.Path, e.Schema, e.Other, e.OtherSchema)
}

// ParquetSource reads a single columnar-binary file. The schema is read
// from the file's metadata when the source is constructed; row data is
// only read when the query executes.
type ParquetSource struct {
	path   string
	schema *column.Schema
}

// NewParquet opens a parquet file's metadata and extracts its schema.
// Nested (group) fields are not supported.
func NewParquet(path string) (*ParquetSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	pq, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("opening parquet file %s: %w", path, err)
	}

	schema, err := schemaFromParquet(path, pq.Schema())
	if err != nil {
		return nil, err
	}
	return &ParquetSource{path: path, schema: schema}, nil
}

// Name returns the file path.
func (s *ParquetSource) Name() string { return s.path }

// Schema returns the schema extracted from the file metadata.
func (s *ParquetSource) Schema() *column.Schema { return s.schema }

// Read materializes the requested columns from the file.
func (s *ParquetSource) Read(ctx context.Context, req *Request) (*column.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tbl, err := readParquetColumns(s.path, s.schema, readColumns(s.schema, req))
	if err != nil {
		return nil, err
	}
	return apply(tbl, req)
}

// schemaFromParquet maps a parquet schema's leaf fields onto column types.
func schemaFromParquet(path string, schema *parquet.Schema) (*column.Schema, error) {
	fields := schema.Fields()
	out := make([]column.Field, 0, len(fields))
	for _, f := range fields {
		if len(f.Fields()) > 0 {
			return nil, fmt.Errorf("%s: nested field %q is not supported", path, f.Name())
		}
		dt, err := fieldType(f)
		if err != nil {
			return nil, fmt.Errorf("%s: field %q: %w", path, f.Name(), err)
		}
		out = append(out, column.Field{Name: f.Name(), Type: dt})
	}
	s, err := column.NewSchema(out...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func fieldType(f parquet.Field) (column.DataType, error) {
	if f.Type() == nil {
		return 0, errors.New("group field has no primitive type")
	}
	if lt := f.Type().LogicalType(); lt != nil {
		switch lt.String() {
		case "STRING", "UTF8":
			return column.String, nil
		}
	}
	switch f.Type().Kind() {
	case parquet.Boolean:
		return column.Bool, nil
	case parquet.Int32:
		return column.Int32, nil
	case parquet.Int64:
		return column.Int64, nil
	case parquet.Float:
		return column.Float32, nil
	case parquet.Double:
		return column.Float64, nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return column.String, nil
	default:
		return 0, fmt.Errorf("unsupported parquet kind %v", f.Type().Kind())
	}
}

// readParquetColumns reads all rows of a file, materializing only the
// named columns.
func readParquetColumns(path string, schema *column.Schema, need []string) (*column.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	pq, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("opening parquet file %s: %w", path, err)
	}

	builders := make(map[string]*column.Builder, len(need))
	for _, name := range need {
		dt, ok := schema.TypeOf(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found in %s", name, path)
		}
		builders[name] = column.NewBuilder(name, dt, int(pq.NumRows()))
	}

	reader := parquet.NewReader(pq)
	defer func() { _ = reader.Close() }()

	for {
		row := make(map[string]interface{})
		err := reader.Read(&row)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading row from %s: %w", path, err)
		}
		for _, name := range need {
			b := builders[name]
			v, ok := row[name]
			if !ok || v == nil {
				b.AppendNull()
				continue
			}
			if err := b.Append(v); err != nil {
				return nil, fmt.Errorf("%s: column %q: %w", path, name, err)
			}
		}
	}

	cols := make([]*column.Column, len(need))
	for i, name := range need {
		cols[i] = builders[name].Finish()
	}
	return column.NewTable(cols...)
}

// ParquetGlobSource reads every parquet file matching a glob pattern as
// one concatenated table. All matched files must share an identical
// schema; a mismatch fails with SchemaMismatchError naming both files.
// Partition-key columns implied by directory structure are not
// reconstructed.
type ParquetGlobSource struct {
	pattern string
	files   []*ParquetSource
}

// NewParquetGlob expands the pattern, opens each matched file's metadata,
// and verifies all schemas are identical. A pattern without glob
// wildcards behaves like a single-file match.
func NewParquetGlob(pattern string) (*ParquetGlobSource, error) {
	var paths []string
	if strings.ContainsAny(pattern, "*?[]{}") {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match pattern %q", pattern)
		}
		paths = matches
	} else {
		paths = []string{pattern}
	}

	files := make([]*ParquetSource, len(paths))
	for i, p := range paths {
		src, err := NewParquet(p)
		if err != nil {
			return nil, err
		}
		files[i] = src
		if i > 0 && !files[0].schema.Equal(src.schema) {
			return nil, &SchemaMismatchError{
				Path:        files[0].path,
				Other:       src.path,
				Schema:      files[0].schema,
				OtherSchema: src.schema,
			}
		}
	}

	log.Debug().Str("pattern", pattern).Int("files", len(files)).Msg("glob scan resolved")
	return &ParquetGlobSource{pattern: pattern, files: files}, nil
}

// Name returns the glob pattern.
func (s *ParquetGlobSource) Name() string { return s.pattern }

// Schema returns the shared schema of the matched files.
func (s *ParquetGlobSource) Schema() *column.Schema { return s.files[0].schema }

// Read concatenates the matched files in match order. The projection and
// predicate are applied per file, so discarded rows never survive past
// their source file.
func (s *ParquetGlobSource) Read(ctx context.Context, req *Request) (*column.Table, error) {
	var out *column.Table
	for _, f := range s.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := f.Read(ctx, req)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = part
			continue
		}
		out, err = out.Concat(part)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
