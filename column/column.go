package column

import (
	"fmt"
	"time"
)

// Column is a named, typed, fixed-length sequence of values with a
// per-element validity flag. A slot whose validity flag is false holds a
// null; the backing value at that slot is unspecified and never observable
// through the public accessors.
//
// Columns are immutable once constructed. Operations such as Slice and
// Gather return new columns; they never alias writable state with their
// receiver's buffers in a way a caller could observe.
type Column struct {
	name  string
	dtype DataType
	valid []bool

	bools    []bool
	int32s   []int32
	int64s   []int64
	float32s []float32
	float64s []float64
	strings  []string
	times    []time.Time

	// Categorical columns store dictionary codes; codes index into dict.
	codes []int32
	dict  []string
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Type returns the column's data type.
func (c *Column) Type() DataType { return c.dtype }

// Len returns the number of value slots.
func (c *Column) Len() int { return len(c.valid) }

// Valid reports whether the value at index i is non-null.
func (c *Column) Valid(i int) bool { return c.valid[i] }

// NullCount returns the number of null slots.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.valid {
		if !v {
			n++
		}
	}
	return n
}

// Rename returns a copy of the column under a new name. The value buffers
// are shared; columns are immutable so sharing is safe.
func (c *Column) Rename(name string) *Column {
	out := *c
	out.name = name
	return &out
}

// Value returns the value at index i and whether it is non-null. Null
// slots return (nil, false). Categorical values are returned as their
// dictionary string.
func (c *Column) Value(i int) (interface{}, bool) {
	if !c.valid[i] {
		return nil, false
	}
	switch c.dtype {
	case Bool:
		return c.bools[i], true
	case Int32:
		return c.int32s[i], true
	case Int64:
		return c.int64s[i], true
	case Float32:
		return c.float32s[i], true
	case Float64:
		return c.float64s[i], true
	case String:
		return c.strings[i], true
	case Categorical:
		return c.dict[c.codes[i]], true
	case Timestamp:
		return c.times[i], true
	}
	return nil, false
}

// Bool returns the bool value at i; the slot must be valid.
func (c *Column) Bool(i int) bool { return c.bools[i] }

// Int64At returns the value at i widened to int64; the slot must be valid
// and the column must be an integer column.
func (c *Column) Int64At(i int) int64 {
	if c.dtype == Int32 {
		return int64(c.int32s[i])
	}
	return c.int64s[i]
}

// Float64At returns the value at i widened to float64; the slot must be
// valid and the column numeric.
func (c *Column) Float64At(i int) float64 {
	switch c.dtype {
	case Int32:
		return float64(c.int32s[i])
	case Int64:
		return float64(c.int64s[i])
	case Float32:
		return float64(c.float32s[i])
	default:
		return c.float64s[i]
	}
}

// StringAt returns the string value at i; the slot must be valid and the
// column of type String or Categorical.
func (c *Column) StringAt(i int) string {
	if c.dtype == Categorical {
		return c.dict[c.codes[i]]
	}
	return c.strings[i]
}

// TimeAt returns the timestamp value at i; the slot must be valid.
func (c *Column) TimeAt(i int) time.Time { return c.times[i] }

// allValid returns a validity mask of n true slots.
func allValid(n int) []bool {
	v := make([]bool, n)
	for i := range v {
		v[i] = true
	}
	return v
}

func copyMask(mask []bool, n int) []bool {
	if mask == nil {
		return allValid(n)
	}
	out := make([]bool, n)
	copy(out, mask)
	return out
}

// NewBool constructs a bool column. A nil mask means all values are valid.
func NewBool(name string, values []bool, mask []bool) *Column {
	return &Column{name: name, dtype: Bool, bools: append([]bool(nil), values...), valid: copyMask(mask, len(values))}
}

// NewInt32 constructs an int32 column. A nil mask means all values are valid.
func NewInt32(name string, values []int32, mask []bool) *Column {
	return &Column{name: name, dtype: Int32, int32s: append([]int32(nil), values...), valid: copyMask(mask, len(values))}
}

// NewInt64 constructs an int64 column. A nil mask means all values are valid.
func NewInt64(name string, values []int64, mask []bool) *Column {
	return &Column{name: name, dtype: Int64, int64s: append([]int64(nil), values...), valid: copyMask(mask, len(values))}
}

// NewFloat32 constructs a float32 column. A nil mask means all values are valid.
func NewFloat32(name string, values []float32, mask []bool) *Column {
	return &Column{name: name, dtype: Float32, float32s: append([]float32(nil), values...), valid: copyMask(mask, len(values))}
}

// NewFloat64 constructs a float64 column. A nil mask means all values are valid.
func NewFloat64(name string, values []float64, mask []bool) *Column {
	return &Column{name: name, dtype: Float64, float64s: append([]float64(nil), values...), valid: copyMask(mask, len(values))}
}

// NewString constructs a string column. A nil mask means all values are valid.
func NewString(name string, values []string, mask []bool) *Column {
	return &Column{name: name, dtype: String, strings: append([]string(nil), values...), valid: copyMask(mask, len(values))}
}

// NewTimes constructs a timestamp column. A nil mask means all values are valid.
func NewTimes(name string, values []time.Time, mask []bool) *Column {
	return &Column{name: name, dtype: Timestamp, times: append([]time.Time(nil), values...), valid: copyMask(mask, len(values))}
}

// NewCategorical constructs a categorical column by dictionary-encoding
// the given string values. A nil mask means all values are valid.
func NewCategorical(name string, values []string, mask []bool) *Column {
	valid := copyMask(mask, len(values))
	codes := make([]int32, len(values))
	var dict []string
	index := make(map[string]int32)
	for i, v := range values {
		if !valid[i] {
			continue
		}
		code, ok := index[v]
		if !ok {
			code = int32(len(dict))
			dict = append(dict, v)
			index[v] = code
		}
		codes[i] = code
	}
	return &Column{name: name, dtype: Categorical, codes: codes, dict: dict, valid: valid}
}

// FromValues constructs a column of the given type from boxed values.
// A nil value is a null slot. Numeric values are accepted in any Go
// integer/float width and converted; incompatible values fail with a
// TypeMismatchError.
func FromValues(name string, dtype DataType, values []interface{}) (*Column, error) {
	b := NewBuilder(name, dtype, len(values))
	for _, v := range values {
		if err := b.Append(v); err != nil {
			return nil, err
		}
	}
	return b.Finish(), nil
}

// Builder accumulates values for a column of a fixed type. It is the
// construction path used by scan sources, which discover values one row
// at a time.
type Builder struct {
	col *Column
}

// NewBuilder creates a builder for a column of the given type with
// capacity for n values.
func NewBuilder(name string, dtype DataType, n int) *Builder {
	c := &Column{name: name, dtype: dtype, valid: make([]bool, 0, n)}
	switch dtype {
	case Bool:
		c.bools = make([]bool, 0, n)
	case Int32:
		c.int32s = make([]int32, 0, n)
	case Int64:
		c.int64s = make([]int64, 0, n)
	case Float32:
		c.float32s = make([]float32, 0, n)
	case Float64:
		c.float64s = make([]float64, 0, n)
	case String:
		c.strings = make([]string, 0, n)
	case Categorical:
		c.codes = make([]int32, 0, n)
	case Timestamp:
		c.times = make([]time.Time, 0, n)
	}
	return &Builder{col: c}
}

// AppendNull appends a null slot.
func (b *Builder) AppendNull() {
	c := b.col
	c.valid = append(c.valid, false)
	switch c.dtype {
	case Bool:
		c.bools = append(c.bools, false)
	case Int32:
		c.int32s = append(c.int32s, 0)
	case Int64:
		c.int64s = append(c.int64s, 0)
	case Float32:
		c.float32s = append(c.float32s, 0)
	case Float64:
		c.float64s = append(c.float64s, 0)
	case String:
		c.strings = append(c.strings, "")
	case Categorical:
		c.codes = append(c.codes, 0)
	case Timestamp:
		c.times = append(c.times, time.Time{})
	}
}

// Append appends a boxed value, converting numeric widths as needed.
// nil appends a null slot.
func (b *Builder) Append(v interface{}) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	c := b.col
	switch c.dtype {
	case Bool:
		bv, ok := v.(bool)
		if !ok {
			return typeError(c.dtype, v)
		}
		c.bools = append(c.bools, bv)
	case Int32:
		iv, ok := toInt64(v)
		if !ok {
			return typeError(c.dtype, v)
		}
		c.int32s = append(c.int32s, int32(iv))
	case Int64:
		iv, ok := toInt64(v)
		if !ok {
			return typeError(c.dtype, v)
		}
		c.int64s = append(c.int64s, iv)
	case Float32:
		fv, ok := toFloat64(v)
		if !ok {
			return typeError(c.dtype, v)
		}
		c.float32s = append(c.float32s, float32(fv))
	case Float64:
		fv, ok := toFloat64(v)
		if !ok {
			return typeError(c.dtype, v)
		}
		c.float64s = append(c.float64s, fv)
	case String:
		sv, ok := toString(v)
		if !ok {
			return typeError(c.dtype, v)
		}
		c.strings = append(c.strings, sv)
	case Categorical:
		sv, ok := toString(v)
		if !ok {
			return typeError(c.dtype, v)
		}
		code, seen := -1, false
		for j, d := range c.dict {
			if d == sv {
				code, seen = j, true
				break
			}
		}
		if !seen {
			code = len(c.dict)
			c.dict = append(c.dict, sv)
		}
		c.codes = append(c.codes, int32(code))
	case Timestamp:
		tv, ok := v.(time.Time)
		if !ok {
			return typeError(c.dtype, v)
		}
		c.times = append(c.times, tv)
	}
	c.valid = append(c.valid, true)
	return nil
}

// Len returns the number of values appended so far.
func (b *Builder) Len() int { return len(b.col.valid) }

// Finish returns the built column. The builder must not be reused.
func (b *Builder) Finish() *Column { return b.col }

func typeError(want DataType, got interface{}) error {
	return fmt.Errorf("cannot store %T in %s column: %w", got, want,
		&TypeMismatchError{Left: want, Right: typeOfValue(got), Op: "store"})
}

func typeOfValue(v interface{}) DataType {
	switch v.(type) {
	case bool:
		return Bool
	case int32:
		return Int32
	case int, int64:
		return Int64
	case float32:
		return Float32
	case float64:
		return Float64
	case string:
		return String
	case time.Time:
		return Timestamp
	default:
		return String
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		if iv, ok := toInt64(v); ok {
			return float64(iv), true
		}
		return 0, false
	}
}

func toString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}
