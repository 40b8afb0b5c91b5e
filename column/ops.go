package column

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Slice returns a new column containing length values starting at start.
// The range must lie within the column.
func (c *Column) Slice(start, length int) (*Column, error) {
	if start < 0 || length < 0 || start+length > c.Len() {
		return nil, fmt.Errorf("slice [%d,%d) out of range for column %q of length %d",
			start, start+length, c.name, c.Len())
	}
	indices := make([]int, length)
	for i := range indices {
		indices[i] = start + i
	}
	return c.Gather(indices)
}

// Gather returns a new column whose value at position i is the receiver's
// value at indices[i]. A negative index produces a null slot, which is how
// outer joins pad unmatched rows.
func (c *Column) Gather(indices []int) (*Column, error) {
	b := NewBuilder(c.name, c.dtype, len(indices))
	for _, idx := range indices {
		if idx < 0 {
			b.AppendNull()
			continue
		}
		if idx >= c.Len() {
			return nil, fmt.Errorf("gather index %d out of range for column %q of length %d", idx, c.name, c.Len())
		}
		v, ok := c.Value(idx)
		if !ok {
			b.AppendNull()
			continue
		}
		if err := b.Append(v); err != nil {
			return nil, err
		}
	}
	return b.Finish(), nil
}

// Filter returns a new column keeping only the slots where keep is true.
// keep must have the same length as the column.
func (c *Column) Filter(keep []bool) (*Column, error) {
	if len(keep) != c.Len() {
		return nil, fmt.Errorf("filter mask length %d does not match column %q length %d", len(keep), c.name, c.Len())
	}
	var indices []int
	for i, k := range keep {
		if k {
			indices = append(indices, i)
		}
	}
	return c.Gather(indices)
}

// Concat returns a new column holding the receiver's values followed by
// the other column's values. Differing numeric types promote to the
// narrowest common type; incompatible types fail with TypeMismatchError.
// The result keeps the receiver's name.
func (c *Column) Concat(other *Column) (*Column, error) {
	dtype, err := Promote(c.dtype, other.dtype)
	if err != nil {
		return nil, fmt.Errorf("concat column %q: %w", c.name, err)
	}
	b := NewBuilder(c.name, dtype, c.Len()+other.Len())
	for _, src := range []*Column{c, other} {
		for i := 0; i < src.Len(); i++ {
			v, ok := src.Value(i)
			if !ok {
				b.AppendNull()
				continue
			}
			if err := b.Append(v); err != nil {
				return nil, err
			}
		}
	}
	return b.Finish(), nil
}

// Equal reports whether two columns have the same name, type, length and
// null-aware contents. Two null slots compare equal here; this is the
// structural equality used by tests and table comparison, not the SQL
// three-valued scalar comparison.
func (c *Column) Equal(other *Column) bool {
	if c.name != other.name || c.dtype != other.dtype || c.Len() != other.Len() {
		return false
	}
	for i := 0; i < c.Len(); i++ {
		av, aok := c.Value(i)
		bv, bok := other.Value(i)
		if aok != bok {
			return false
		}
		if !aok {
			continue
		}
		if !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return a == b
}

// Cast returns a new column with values converted to the target type.
// Null slots stay null. Unsupported conversions fail with
// TypeMismatchError; numeric-to-string and string-to-numeric follow
// strconv semantics, with unparsable strings surfacing as errors rather
// than silent nulls.
func (c *Column) Cast(to DataType) (*Column, error) {
	if c.dtype == to {
		return c, nil
	}
	b := NewBuilder(c.name, to, c.Len())
	for i := 0; i < c.Len(); i++ {
		if !c.valid[i] {
			b.AppendNull()
			continue
		}
		v, err := castValue(c, i, to)
		if err != nil {
			return nil, err
		}
		if err := b.Append(v); err != nil {
			return nil, err
		}
	}
	return b.Finish(), nil
}

func castValue(c *Column, i int, to DataType) (interface{}, error) {
	from := c.dtype
	switch {
	case from.IsNumeric() && to.IsNumeric():
		f := c.Float64At(i)
		switch to {
		case Int32:
			return int32(f), nil
		case Int64:
			return int64(f), nil
		case Float32:
			return float32(f), nil
		default:
			return f, nil
		}
	case from.IsNumeric() && to == String:
		if from == Float32 || from == Float64 {
			return strconv.FormatFloat(c.Float64At(i), 'g', -1, 64), nil
		}
		return strconv.FormatInt(c.Int64At(i), 10), nil
	case (from == String || from == Categorical) && to.IsNumeric():
		s := c.StringAt(i)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("cast column %q: cannot parse %q as %s: %w", c.name, s, to,
				&TypeMismatchError{Left: from, Right: to, Op: "cast"})
		}
		if (to == Int32 || to == Int64) && f != math.Trunc(f) {
			return nil, fmt.Errorf("cast column %q: %q is not an integer: %w", c.name, s,
				&TypeMismatchError{Left: from, Right: to, Op: "cast"})
		}
		switch to {
		case Int32:
			return int32(f), nil
		case Int64:
			return int64(f), nil
		case Float32:
			return float32(f), nil
		default:
			return f, nil
		}
	case from == Categorical && to == String:
		return c.StringAt(i), nil
	case from == String && to == Categorical:
		return c.StringAt(i), nil
	case from == Bool && to == String:
		return strconv.FormatBool(c.bools[i]), nil
	default:
		return nil, fmt.Errorf("cast column %q: %w", c.name,
			&TypeMismatchError{Left: from, Right: to, Op: "cast"})
	}
}
