// Package column provides typed, contiguous column storage and tables.
//
// A Column is a named, fixed-length sequence of values of one primitive
// type with a per-element validity flag. A Table is an ordered set of
// equal-length, distinctly named columns. Columns and Tables are the
// physical data the execution engine operates on; they are never mutated
// in place once handed to a caller.
package column

import "fmt"

// DataType identifies the primitive type of a column's values.
type DataType int

const (
	Bool DataType = iota
	Int32
	Int64
	Float32
	Float64
	String
	Categorical
	Timestamp
)

// String returns the lowercase name of the data type.
func (d DataType) String() string {
	switch d {
	case Bool:
		return "bool"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case String:
		return "string"
	case Categorical:
		return "categorical"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("unknown(%d)", int(d))
	}
}

// IsNumeric reports whether the type participates in arithmetic and
// numeric promotion.
func (d DataType) IsNumeric() bool {
	switch d {
	case Int32, Int64, Float32, Float64:
		return true
	default:
		return false
	}
}

// TypeMismatchError reports an attempt to combine incompatible column
// types, either at table construction or during expression evaluation.
type TypeMismatchError struct {
	Left  DataType
	Right DataType
	Op    string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: cannot %s %s and %s", e.Op, e.Left, e.Right)
}

// Promote returns the narrowest common type able to represent values of
// both input types. Mixed integer widths promote to int64, mixed
// integer/float promote to float64, and mixed float widths promote to
// float64. Categorical promotes with string. Incompatible types return a
// TypeMismatchError.
func Promote(a, b DataType) (DataType, error) {
	if a == b {
		return a, nil
	}
	if a.IsNumeric() && b.IsNumeric() {
		if a == Float64 || b == Float64 {
			return Float64, nil
		}
		if a == Float32 || b == Float32 {
			// The other side is an integer width, which float32 cannot
			// represent exactly.
			return Float64, nil
		}
		// Remaining numeric combinations are integer widths.
		return Int64, nil
	}
	if (a == String && b == Categorical) || (a == Categorical && b == String) {
		return String, nil
	}
	return 0, &TypeMismatchError{Left: a, Right: b, Op: "combine"}
}
