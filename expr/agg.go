package expr

import (
	"time"

	"github.com/vegasq/lazyframe/column"
)

// EvalGroups evaluates an aggregate expression once per group, producing
// a column with one slot per group. The expression must be an aggregate,
// optionally wrapped in an alias or cast. Nulls are skipped inside each
// group; a group with no non-null inputs aggregates to null (count
// aggregates to 0).
func EvalGroups(tbl *column.Table, e *Expr, groups [][]int) (*column.Column, error) {
	outType, err := TypeOf(e, tbl.Schema())
	if err != nil {
		return nil, err
	}

	inner := e.Unalias()
	var castTo *column.DataType
	if inner.kind == KindCast {
		to := inner.castTo
		castTo = &to
		inner = inner.input.Unalias()
	}
	if inner.kind != KindAgg {
		return nil, schemaErrorf("group aggregation requires an aggregate expression, got %s", e)
	}

	in, err := Eval(tbl, inner.input)
	if err != nil {
		return nil, err
	}

	name := e.OutputName()
	buildType := outType
	if castTo != nil {
		// Aggregate at the natural type, cast after.
		var err error
		buildType, err = TypeOf(inner, tbl.Schema())
		if err != nil {
			return nil, err
		}
	}

	b := column.NewBuilder(name, buildType, len(groups))
	for _, g := range groups {
		v, ok, err := aggValue(inner.agg, in, g)
		if err != nil {
			return nil, err
		}
		if !ok {
			b.AppendNull()
			continue
		}
		if err := b.Append(v); err != nil {
			return nil, err
		}
	}
	out := b.Finish()
	if castTo != nil {
		return out.Cast(*castTo)
	}
	return out, nil
}

// aggValue computes one aggregate over the rows of col selected by
// indices. The bool result is false when the aggregate is null (no
// non-null inputs for sum/mean/min/max, or a null first value).
func aggValue(op AggOp, col *column.Column, indices []int) (interface{}, bool, error) {
	switch op {
	case AggCount:
		n := int64(0)
		for _, i := range indices {
			if col.Valid(i) {
				n++
			}
		}
		return n, true, nil

	case AggFirst:
		if len(indices) == 0 {
			return nil, false, nil
		}
		v, ok := col.Value(indices[0])
		return v, ok, nil

	case AggSum:
		return aggSum(col, indices)

	case AggMean:
		sum := 0.0
		n := 0
		for _, i := range indices {
			if !col.Valid(i) {
				continue
			}
			sum += col.Float64At(i)
			n++
		}
		if n == 0 {
			return nil, false, nil
		}
		return sum / float64(n), true, nil

	case AggMin, AggMax:
		return aggExtreme(op, col, indices)
	}
	return nil, false, schemaErrorf("unknown aggregate operator %d", op)
}

func aggSum(col *column.Column, indices []int) (interface{}, bool, error) {
	if !col.Type().IsNumeric() {
		return nil, false, schemaErrorf("cannot sum %s column %q", col.Type(), col.Name())
	}
	integral := col.Type() == column.Int32 || col.Type() == column.Int64
	var isum int64
	var fsum float64
	any := false
	for _, i := range indices {
		if !col.Valid(i) {
			continue
		}
		if integral {
			isum += col.Int64At(i)
		} else {
			fsum += col.Float64At(i)
		}
		any = true
	}
	if !any {
		return nil, false, nil
	}
	if integral {
		return isum, true, nil
	}
	return fsum, true, nil
}

func aggExtreme(op AggOp, col *column.Column, indices []int) (interface{}, bool, error) {
	var best interface{}
	for _, i := range indices {
		if !col.Valid(i) {
			continue
		}
		v, _ := col.Value(i)
		if best == nil {
			best = v
			continue
		}
		less, err := valueLess(col.Type(), v, best)
		if err != nil {
			return nil, false, err
		}
		if op == AggMin {
			if less {
				best = v
			}
			continue
		}
		greater, err := valueLess(col.Type(), best, v)
		if err != nil {
			return nil, false, err
		}
		if greater {
			best = v
		}
	}
	if best == nil {
		return nil, false, nil
	}
	return best, true, nil
}

// valueLess orders two non-null boxed values of the same column type.
func valueLess(dt column.DataType, a, b interface{}) (bool, error) {
	switch {
	case dt.IsNumeric():
		return boxedFloat(a) < boxedFloat(b), nil
	case dt == column.String || dt == column.Categorical:
		return a.(string) < b.(string), nil
	case dt == column.Timestamp:
		return a.(time.Time).Before(b.(time.Time)), nil
	default:
		return false, schemaErrorf("cannot order %s values", dt)
	}
}

func boxedFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
