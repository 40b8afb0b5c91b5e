package scan

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/vegasq/lazyframe/column"
	"github.com/vegasq/lazyframe/expr"
)

type personRow struct {
	ID     int64   `parquet:"id"`
	Name   string  `parquet:"name"`
	Age    *int64  `parquet:"age,optional"`
	Salary float64 `parquet:"salary"`
	Active bool    `parquet:"active"`
}

func writeParquetFile(t *testing.T, dir, name string, rows []personRow) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	defer func() { _ = f.Close() }()

	writer := parquet.NewGenericWriter[personRow](f)
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("failed to write test data: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return path
}

func agePtr(v int64) *int64 { return &v }

func samplePeople() []personRow {
	return []personRow{
		{ID: 1, Name: "ana", Age: agePtr(34), Salary: 70000, Active: true},
		{ID: 2, Name: "bo", Age: nil, Salary: 55000, Active: false},
		{ID: 3, Name: "cy", Age: agePtr(28), Salary: 61000, Active: true},
	}
}

func TestParquetSchemaFromMetadata(t *testing.T) {
	path := writeParquetFile(t, t.TempDir(), "people.parquet", samplePeople())
	src, err := NewParquet(path)
	if err != nil {
		t.Fatal(err)
	}
	s := src.Schema()
	want := map[string]column.DataType{
		"id":     column.Int64,
		"name":   column.String,
		"age":    column.Int64,
		"salary": column.Float64,
		"active": column.Bool,
	}
	if s.Len() != len(want) {
		t.Fatalf("schema has %d fields, want %d: %s", s.Len(), len(want), s)
	}
	for name, dt := range want {
		got, ok := s.TypeOf(name)
		if !ok || got != dt {
			t.Errorf("field %s = %s, want %s", name, got, dt)
		}
	}
}

func TestParquetReadWithProjectionAndPredicate(t *testing.T) {
	path := writeParquetFile(t, t.TempDir(), "people.parquet", samplePeople())
	src, err := NewParquet(path)
	if err != nil {
		t.Fatal(err)
	}

	req := &Request{
		Columns:   []string{"name"},
		Predicate: expr.Col("active").Eq(expr.Lit(true)),
	}
	tbl, err := src.Read(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.NumCols() != 1 {
		t.Fatalf("got %d columns, want 1 (predicate column must not leak)", tbl.NumCols())
	}
	names, _ := tbl.Column("name")
	if tbl.NumRows() != 2 || names.StringAt(0) != "ana" || names.StringAt(1) != "cy" {
		t.Errorf("rows = %d (%v), want ana and cy", tbl.NumRows(), names)
	}
}

func TestParquetOptionalBecomesNull(t *testing.T) {
	path := writeParquetFile(t, t.TempDir(), "people.parquet", samplePeople())
	src, err := NewParquet(path)
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := src.Read(context.Background(), &Request{})
	if err != nil {
		t.Fatal(err)
	}
	age, _ := tbl.Column("age")
	if age.NullCount() != 1 || age.Valid(1) {
		t.Errorf("optional field with nil value did not scan as null")
	}
}

func TestParquetGlobConcatenates(t *testing.T) {
	dir := t.TempDir()
	writeParquetFile(t, dir, "part-1.parquet", samplePeople()[:2])
	writeParquetFile(t, dir, "part-2.parquet", samplePeople()[2:])

	src, err := NewParquetGlob(filepath.Join(dir, "part-*.parquet"))
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := src.Read(context.Background(), &Request{})
	if err != nil {
		t.Fatal(err)
	}
	if tbl.NumRows() != 3 {
		t.Errorf("glob read %d rows, want 3", tbl.NumRows())
	}
}

func TestParquetGlobSchemaMismatch(t *testing.T) {
	type otherRow struct {
		ID   int64  `parquet:"id"`
		City string `parquet:"city"`
	}
	dir := t.TempDir()
	writeParquetFile(t, dir, "part-1.parquet", samplePeople())

	path := filepath.Join(dir, "part-2.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	writer := parquet.NewGenericWriter[otherRow](f)
	if _, err := writer.Write([]otherRow{{ID: 9, City: "berlin"}}); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	_, err = NewParquetGlob(filepath.Join(dir, "part-*.parquet"))
	var merr *SchemaMismatchError
	if !errors.As(err, &merr) {
		t.Fatalf("err = %v, want SchemaMismatchError", err)
	}
	if merr.Path == merr.Other {
		t.Errorf("mismatch error does not name two distinct files: %v", merr)
	}
}

func TestParquetGlobNoMatches(t *testing.T) {
	if _, err := NewParquetGlob(filepath.Join(t.TempDir(), "*.parquet")); err == nil {
		t.Fatal("empty glob did not fail")
	}
}

func TestCSVSchemaInference(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.csv")
	data := "id,name,salary,active,notes\n1,ana,70000.5,true,\n2,bo,55000,false,\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := NewCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]column.DataType{
		"id":     column.Int64,
		"name":   column.String,
		"salary": column.Float64,
		"active": column.Bool,
		"notes":  column.String, // no non-empty cells
	}
	for name, dt := range want {
		got, ok := src.Schema().TypeOf(name)
		if !ok || got != dt {
			t.Errorf("inferred %s = %s, want %s", name, got, dt)
		}
	}
}

func TestCSVReadNullsAndProjection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.csv")
	data := "id,name,age\n1,ana,34\n2,bo,\n3,cy,28\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := NewCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := src.Read(context.Background(), &Request{Columns: []string{"age"}})
	if err != nil {
		t.Fatal(err)
	}
	if tbl.NumCols() != 1 {
		t.Fatalf("got %d columns, want 1", tbl.NumCols())
	}
	age, _ := tbl.Column("age")
	if age.NullCount() != 1 || age.Valid(1) {
		t.Errorf("empty cell did not become null")
	}
}

func TestCSVMalformedRowFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.csv")
	data := "id,name\n1,ana\n2,bo,EXTRA\n3,cy\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	var perr *csv.ParseError
	if _, err := NewCSV(path); !errors.As(err, &perr) {
		t.Fatalf("NewCSV on malformed file = %v, want csv.ParseError", err)
	}

	// A file that goes bad between construction and Read must abort the
	// query too, not truncate the result.
	if err := os.WriteFile(path, []byte("id,name\n1,ana\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := NewCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := src.Read(context.Background(), &Request{}); !errors.As(err, &perr) {
		t.Fatalf("Read on malformed file = %v, want csv.ParseError", err)
	}
}

func TestTableSourceCountsReads(t *testing.T) {
	tbl, err := column.NewTable(
		column.NewInt64("a", []int64{1, 2}, nil),
		column.NewInt64("b", []int64{3, 4}, nil),
	)
	if err != nil {
		t.Fatal(err)
	}
	src := NewTable("t", tbl)

	if _, err := src.Read(context.Background(), &Request{Columns: []string{"a"}}); err != nil {
		t.Fatal(err)
	}
	if got := src.ReadCount("a"); got != 1 {
		t.Errorf("a read %d times, want 1", got)
	}
	if got := src.ReadCount("b"); got != 0 {
		t.Errorf("b read %d times, want 0", got)
	}

	// Predicate columns count as read even when not projected.
	req := &Request{Columns: []string{"a"}, Predicate: expr.Col("b").Gt(expr.Lit(3))}
	out, err := src.Read(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if got := src.ReadCount("b"); got != 1 {
		t.Errorf("predicate column b read %d times, want 1", got)
	}
	if out.NumCols() != 1 || out.NumRows() != 1 {
		t.Errorf("filtered read = %d cols %d rows, want 1x1", out.NumCols(), out.NumRows())
	}
}

func TestContextCancellationStopsRead(t *testing.T) {
	path := writeParquetFile(t, t.TempDir(), "people.parquet", samplePeople())
	src, err := NewParquet(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Read(ctx, &Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
