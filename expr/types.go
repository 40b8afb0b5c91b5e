package expr

import (
	"fmt"

	"github.com/vegasq/lazyframe/column"
)

// SchemaError reports an expression that does not type-check against a
// schema: an unknown column, or an operator applied to an incompatible
// type. It is raised at plan-build time, before any execution.
type SchemaError struct {
	Msg string
}

func (e *SchemaError) Error() string { return "schema error: " + e.Msg }

func schemaErrorf(format string, args ...interface{}) error {
	return &SchemaError{Msg: fmt.Sprintf(format, args...)}
}

// TypeOf infers the expression's output type against a schema without
// evaluating it. Failures are SchemaErrors.
func TypeOf(e *Expr, schema *column.Schema) (column.DataType, error) {
	switch e.kind {
	case KindColumn:
		dt, ok := schema.TypeOf(e.name)
		if !ok {
			return 0, schemaErrorf("unknown column %q", e.name)
		}
		return dt, nil

	case KindLiteral:
		return e.litDT, nil

	case KindUnary:
		in, err := TypeOf(e.input, schema)
		if err != nil {
			return 0, err
		}
		switch e.unop {
		case OpNeg:
			if !in.IsNumeric() {
				return 0, schemaErrorf("cannot negate %s expression %s", in, e.input)
			}
			return in, nil
		case OpNot:
			if in != column.Bool {
				return 0, schemaErrorf("cannot apply not to %s expression %s", in, e.input)
			}
			return column.Bool, nil
		default: // OpIsNull, OpIsNotNull
			return column.Bool, nil
		}

	case KindBinary:
		lt, err := TypeOf(e.left, schema)
		if err != nil {
			return 0, err
		}
		rt, err := TypeOf(e.right, schema)
		if err != nil {
			return 0, err
		}
		switch e.binop {
		case OpAdd, OpSub, OpMul, OpDiv:
			if !lt.IsNumeric() || !rt.IsNumeric() {
				return 0, schemaErrorf("cannot apply %s to %s and %s in %s", binaryName(e.binop), lt, rt, e)
			}
			out, err := column.Promote(lt, rt)
			if err != nil {
				return 0, schemaErrorf("%v in %s", err, e)
			}
			if e.binop == OpDiv {
				// Division always yields a float; integer division by zero
				// has no integer null-free representation.
				return column.Float64, nil
			}
			return out, nil
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			if _, err := comparableTypes(lt, rt); err != nil {
				return 0, schemaErrorf("cannot compare %s and %s in %s", lt, rt, e)
			}
			if (e.binop != OpEq && e.binop != OpNe) && lt == column.Bool {
				return 0, schemaErrorf("cannot order bool values in %s", e)
			}
			return column.Bool, nil
		default: // OpAnd, OpOr
			if lt != column.Bool || rt != column.Bool {
				return 0, schemaErrorf("logical %s requires bool operands in %s", binaryName(e.binop), e)
			}
			return column.Bool, nil
		}

	case KindAgg:
		in, err := TypeOf(e.input, schema)
		if err != nil {
			return 0, err
		}
		switch e.agg {
		case AggCount:
			return column.Int64, nil
		case AggMean:
			if !in.IsNumeric() {
				return 0, schemaErrorf("cannot take mean of %s expression %s", in, e.input)
			}
			return column.Float64, nil
		case AggSum:
			if !in.IsNumeric() {
				return 0, schemaErrorf("cannot sum %s expression %s", in, e.input)
			}
			// Sums widen to avoid overflow in narrow inputs.
			if in == column.Int32 {
				return column.Int64, nil
			}
			if in == column.Float32 {
				return column.Float64, nil
			}
			return in, nil
		case AggMin, AggMax:
			if !in.IsNumeric() && in != column.String && in != column.Timestamp && in != column.Categorical {
				return 0, schemaErrorf("cannot take %s of %s expression %s", aggName(e.agg), in, e.input)
			}
			return in, nil
		default: // AggFirst
			return in, nil
		}

	case KindOver:
		if e.input.Unalias().kind != KindAgg {
			return 0, schemaErrorf("over requires an aggregate expression, got %s", e.input)
		}
		for _, k := range e.partitions {
			if !schema.Has(k) {
				return 0, schemaErrorf("unknown partition column %q in %s", k, e)
			}
		}
		if len(e.partitions) == 0 {
			return 0, schemaErrorf("over requires at least one partition column in %s", e)
		}
		return TypeOf(e.input, schema)

	case KindAlias:
		return TypeOf(e.input, schema)

	case KindCast:
		if _, err := TypeOf(e.input, schema); err != nil {
			return 0, err
		}
		return e.castTo, nil

	case KindMap:
		if _, err := TypeOf(e.input, schema); err != nil {
			return 0, err
		}
		return e.mapDT, nil
	}
	return 0, schemaErrorf("unknown expression kind %d", e.kind)
}

// comparableTypes returns the promoted type two operands are compared at.
func comparableTypes(a, b column.DataType) (column.DataType, error) {
	if a == b {
		return a, nil
	}
	return column.Promote(a, b)
}
