package column

import (
	"errors"
	"testing"
	"time"
)

func TestPromote(t *testing.T) {
	tests := []struct {
		name    string
		a, b    DataType
		want    DataType
		wantErr bool
	}{
		{"same type", Int64, Int64, Int64, false},
		{"mixed int widths", Int32, Int64, Int64, false},
		{"int and float64", Int64, Float64, Float64, false},
		{"int and float32", Int32, Float32, Float64, false},
		{"float widths", Float32, Float64, Float64, false},
		{"string and categorical", String, Categorical, String, false},
		{"numeric vs string", Int64, String, 0, true},
		{"bool vs numeric", Bool, Int64, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Promote(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Promote(%s, %s) expected error, got %s", tt.a, tt.b, got)
				}
				var tm *TypeMismatchError
				if !errors.As(err, &tm) {
					t.Errorf("expected TypeMismatchError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Promote(%s, %s): %v", tt.a, tt.b, err)
			}
			if got != tt.want {
				t.Errorf("Promote(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestColumnNullability(t *testing.T) {
	c := NewInt64("hp", []int64{110, 0, 105}, []bool{true, false, true})

	if c.Len() != 3 {
		t.Fatalf("expected length 3, got %d", c.Len())
	}
	if c.NullCount() != 1 {
		t.Errorf("expected 1 null, got %d", c.NullCount())
	}

	v, ok := c.Value(1)
	if ok || v != nil {
		t.Errorf("null slot returned (%v, %v), want (nil, false)", v, ok)
	}
	v, ok = c.Value(2)
	if !ok || v.(int64) != 105 {
		t.Errorf("valid slot returned (%v, %v), want (105, true)", v, ok)
	}
}

func TestColumnGather(t *testing.T) {
	c := NewString("name", []string{"a", "b", "c"}, nil)

	got, err := c.Gather([]int{2, 0, -1, 1})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	want := NewString("name", []string{"c", "a", "", "b"}, []bool{true, true, false, true})
	if !got.Equal(want) {
		t.Errorf("gathered column mismatch")
	}

	if _, err := c.Gather([]int{3}); err == nil {
		t.Error("expected out-of-range error")
	}
}

func TestColumnSlice(t *testing.T) {
	c := NewFloat64("score", []float64{1.5, 2.5, 3.5, 4.5}, nil)

	got, err := c.Slice(1, 2)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	want := NewFloat64("score", []float64{2.5, 3.5}, nil)
	if !got.Equal(want) {
		t.Errorf("sliced column mismatch")
	}

	if _, err := c.Slice(3, 2); err == nil {
		t.Error("expected out-of-range error")
	}
}

func TestColumnConcatPromotes(t *testing.T) {
	a := NewInt32("n", []int32{1, 2}, nil)
	b := NewInt64("n", []int64{3}, []bool{false})

	got, err := a.Concat(b)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if got.Type() != Int64 {
		t.Errorf("expected promotion to int64, got %s", got.Type())
	}
	want := NewInt64("n", []int64{1, 2, 0}, []bool{true, true, false})
	if !got.Equal(want) {
		t.Errorf("concatenated column mismatch")
	}
}

func TestColumnConcatIncompatible(t *testing.T) {
	a := NewInt64("n", []int64{1}, nil)
	b := NewString("n", []string{"x"}, nil)

	_, err := a.Concat(b)
	var tm *TypeMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("expected TypeMismatchError, got %v", err)
	}
}

func TestCategoricalRoundTrip(t *testing.T) {
	c := NewCategorical("cyl", []string{"six", "four", "six", "six"}, nil)
	if c.Type() != Categorical {
		t.Fatalf("expected categorical, got %s", c.Type())
	}
	if c.StringAt(2) != "six" || c.StringAt(1) != "four" {
		t.Error("dictionary decoding mismatch")
	}

	s, err := c.Cast(String)
	if err != nil {
		t.Fatalf("Cast: %v", err)
	}
	want := NewString("cyl", []string{"six", "four", "six", "six"}, nil)
	if !s.Equal(want) {
		t.Error("cast to string mismatch")
	}
}

func TestCast(t *testing.T) {
	ints := NewInt64("v", []int64{1, 2}, []bool{true, false})
	f, err := ints.Cast(Float64)
	if err != nil {
		t.Fatalf("Cast int->float: %v", err)
	}
	if !f.Equal(NewFloat64("v", []float64{1, 0}, []bool{true, false})) {
		t.Error("int->float cast mismatch")
	}

	strs := NewString("v", []string{"42"}, nil)
	i, err := strs.Cast(Int64)
	if err != nil {
		t.Fatalf("Cast string->int: %v", err)
	}
	if !i.Equal(NewInt64("v", []int64{42}, nil)) {
		t.Error("string->int cast mismatch")
	}

	bad := NewString("v", []string{"nope"}, nil)
	if _, err := bad.Cast(Int64); err == nil {
		t.Error("expected parse error casting 'nope' to int64")
	}
}

func TestTableInvariants(t *testing.T) {
	a := NewInt64("a", []int64{1, 2}, nil)
	b := NewInt64("b", []int64{3}, nil)

	if _, err := NewTable(a, b); err == nil {
		t.Error("expected length mismatch error")
	}
	if _, err := NewTable(a, a); err == nil {
		t.Error("expected duplicate name error")
	}

	tbl, err := NewTable(a, NewString("s", []string{"x", "y"}, nil))
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if tbl.NumRows() != 2 || tbl.NumCols() != 2 {
		t.Errorf("got %d rows, %d cols", tbl.NumRows(), tbl.NumCols())
	}
}

func TestTableConcatMatchesByName(t *testing.T) {
	t1, _ := NewTable(
		NewInt64("a", []int64{1}, nil),
		NewString("b", []string{"x"}, nil),
	)
	// Same columns, different order.
	t2, _ := NewTable(
		NewString("b", []string{"y"}, nil),
		NewInt64("a", []int64{2}, nil),
	)

	got, err := t1.Concat(t2)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	want, _ := NewTable(
		NewInt64("a", []int64{1, 2}, nil),
		NewString("b", []string{"x", "y"}, nil),
	)
	if !got.Equal(want) {
		t.Error("concatenated table mismatch")
	}
}

func TestTableWithColumnReplaces(t *testing.T) {
	tbl, _ := NewTable(NewInt64("a", []int64{1, 2}, nil))

	tbl2, err := tbl.WithColumn(NewInt64("a", []int64{10, 20}, nil))
	if err != nil {
		t.Fatalf("WithColumn: %v", err)
	}
	c, _ := tbl2.Column("a")
	if c.Int64At(0) != 10 {
		t.Error("expected replacement in place")
	}
	// Original is untouched.
	c0, _ := tbl.Column("a")
	if c0.Int64At(0) != 1 {
		t.Error("original table mutated")
	}
}

func TestTableEqualIgnoresColumnOrder(t *testing.T) {
	t1, _ := NewTable(
		NewInt64("a", []int64{1}, nil),
		NewInt64("b", []int64{2}, nil),
	)
	t2, _ := NewTable(
		NewInt64("b", []int64{2}, nil),
		NewInt64("a", []int64{1}, nil),
	)
	if !t1.Equal(t2) {
		t.Error("tables with same contents but different column order should be equal")
	}
}

func TestBuilderFromValues(t *testing.T) {
	c, err := FromValues("ts", Timestamp, []interface{}{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		nil,
	})
	if err != nil {
		t.Fatalf("FromValues: %v", err)
	}
	if c.Len() != 2 || c.NullCount() != 1 {
		t.Errorf("got len %d nulls %d", c.Len(), c.NullCount())
	}

	if _, err := FromValues("n", Int64, []interface{}{int64(1), "x"}); err == nil {
		t.Error("expected type error storing string in int64 column")
	}
}
