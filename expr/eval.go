package expr

import (
	"fmt"
	"strings"
	"time"

	"github.com/vegasq/lazyframe/column"
)

// Eval evaluates a scalar expression against a table, producing a column
// of the same length as the table. Literals broadcast to the table's
// length. Aggregate expressions cannot be evaluated here; they require a
// group context (see EvalGroups) or an Over wrapper.
//
// Null propagation: an operator given a null operand produces null,
// except logical and/or which follow three-valued logic (false and null
// is false, true or null is true), and the null tests which are always
// non-null.
func Eval(tbl *column.Table, e *Expr) (*column.Column, error) {
	switch e.kind {
	case KindColumn:
		c, ok := tbl.Column(e.name)
		if !ok {
			return nil, schemaErrorf("unknown column %q", e.name)
		}
		return c, nil

	case KindLiteral:
		return broadcastLiteral(e, tbl.NumRows())

	case KindAlias:
		c, err := Eval(tbl, e.input)
		if err != nil {
			return nil, err
		}
		return c.Rename(e.name), nil

	case KindCast:
		c, err := Eval(tbl, e.input)
		if err != nil {
			return nil, err
		}
		return c.Cast(e.castTo)

	case KindMap:
		in, err := Eval(tbl, e.input)
		if err != nil {
			return nil, err
		}
		out, err := e.fn(in)
		if err != nil {
			return nil, fmt.Errorf("callback %q: %w", e.name, err)
		}
		if out.Len() != in.Len() {
			return nil, &CallbackArityError{Name: e.name, Want: in.Len(), Got: out.Len()}
		}
		return out.Rename(e.OutputName()), nil

	case KindUnary:
		return evalUnary(tbl, e)

	case KindBinary:
		return evalBinary(tbl, e)

	case KindOver:
		return evalOver(tbl, e)

	case KindAgg:
		return nil, schemaErrorf("aggregate %s requires a group context; use group_by or over", e)
	}
	return nil, schemaErrorf("unknown expression kind %d", e.kind)
}

func broadcastLiteral(e *Expr, n int) (*column.Column, error) {
	b := column.NewBuilder(e.OutputName(), e.litDT, n)
	for i := 0; i < n; i++ {
		if err := b.Append(e.lit); err != nil {
			return nil, err
		}
	}
	return b.Finish(), nil
}

func evalUnary(tbl *column.Table, e *Expr) (*column.Column, error) {
	in, err := Eval(tbl, e.input)
	if err != nil {
		return nil, err
	}
	name := e.OutputName()

	switch e.unop {
	case OpIsNull, OpIsNotNull:
		values := make([]bool, in.Len())
		for i := range values {
			isNull := !in.Valid(i)
			if e.unop == OpIsNotNull {
				isNull = !isNull
			}
			values[i] = isNull
		}
		return column.NewBool(name, values, nil), nil

	case OpNot:
		if in.Type() != column.Bool {
			return nil, schemaErrorf("cannot apply not to %s column %q", in.Type(), in.Name())
		}
		values := make([]bool, in.Len())
		mask := make([]bool, in.Len())
		for i := range values {
			if !in.Valid(i) {
				continue
			}
			mask[i] = true
			values[i] = !in.Bool(i)
		}
		return column.NewBool(name, values, mask), nil

	default: // OpNeg
		if !in.Type().IsNumeric() {
			return nil, schemaErrorf("cannot negate %s column %q", in.Type(), in.Name())
		}
		b := column.NewBuilder(name, in.Type(), in.Len())
		for i := 0; i < in.Len(); i++ {
			if !in.Valid(i) {
				b.AppendNull()
				continue
			}
			var err error
			switch in.Type() {
			case column.Int32, column.Int64:
				err = b.Append(-in.Int64At(i))
			default:
				err = b.Append(-in.Float64At(i))
			}
			if err != nil {
				return nil, err
			}
		}
		return b.Finish(), nil
	}
}

func evalBinary(tbl *column.Table, e *Expr) (*column.Column, error) {
	left, err := Eval(tbl, e.left)
	if err != nil {
		return nil, err
	}
	right, err := Eval(tbl, e.right)
	if err != nil {
		return nil, err
	}
	if left.Len() != right.Len() {
		return nil, fmt.Errorf("operand length mismatch in %s: %d vs %d", e, left.Len(), right.Len())
	}

	switch e.binop {
	case OpAnd, OpOr:
		return evalLogical(e, left, right)
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return evalComparison(e, left, right)
	default:
		return evalArithmetic(e, left, right)
	}
}

// evalLogical implements three-valued and/or: a false operand forces AND
// to false and a true operand forces OR to true even when the other side
// is null; otherwise a null operand yields null.
func evalLogical(e *Expr, left, right *column.Column) (*column.Column, error) {
	if left.Type() != column.Bool || right.Type() != column.Bool {
		return nil, schemaErrorf("logical %s requires bool operands, got %s and %s",
			binaryName(e.binop), left.Type(), right.Type())
	}
	n := left.Len()
	values := make([]bool, n)
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		lv, lok := left.Valid(i) && left.Bool(i), left.Valid(i)
		rv, rok := right.Valid(i) && right.Bool(i), right.Valid(i)
		if e.binop == OpAnd {
			switch {
			case lok && !lv, rok && !rv:
				values[i], mask[i] = false, true
			case lok && rok:
				values[i], mask[i] = true, true
			}
		} else {
			switch {
			case lok && lv, rok && rv:
				values[i], mask[i] = true, true
			case lok && rok:
				values[i], mask[i] = false, true
			}
		}
	}
	return column.NewBool(e.OutputName(), values, mask), nil
}

func evalComparison(e *Expr, left, right *column.Column) (*column.Column, error) {
	cmpType, err := comparableTypes(left.Type(), right.Type())
	if err != nil {
		return nil, schemaErrorf("cannot compare %s and %s", left.Type(), right.Type())
	}
	if left.Type() == column.Bool && e.binop != OpEq && e.binop != OpNe {
		return nil, schemaErrorf("cannot order bool values")
	}

	n := left.Len()
	values := make([]bool, n)
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		if !left.Valid(i) || !right.Valid(i) {
			continue // null comparison yields null
		}
		ord, eq := compareAt(cmpType, left, right, i)
		mask[i] = true
		switch e.binop {
		case OpEq:
			values[i] = eq
		case OpNe:
			values[i] = !eq
		case OpLt:
			values[i] = ord < 0
		case OpLe:
			values[i] = ord <= 0
		case OpGt:
			values[i] = ord > 0
		case OpGe:
			values[i] = ord >= 0
		}
	}
	return column.NewBool(e.OutputName(), values, mask), nil
}

// compareAt compares two valid slots at the promoted type, returning an
// ordering and an equality flag.
func compareAt(cmpType column.DataType, left, right *column.Column, i int) (int, bool) {
	switch {
	case cmpType.IsNumeric():
		l, r := left.Float64At(i), right.Float64At(i)
		switch {
		case l < r:
			return -1, false
		case l > r:
			return 1, false
		default:
			return 0, true
		}
	case cmpType == column.String || cmpType == column.Categorical:
		return strings.Compare(left.StringAt(i), right.StringAt(i)), left.StringAt(i) == right.StringAt(i)
	case cmpType == column.Timestamp:
		l, r := left.TimeAt(i), right.TimeAt(i)
		switch {
		case l.Before(r):
			return -1, false
		case l.After(r):
			return 1, false
		default:
			return 0, true
		}
	default: // bool, eq/ne only
		l, r := left.Bool(i), right.Bool(i)
		if l == r {
			return 0, true
		}
		return 1, false
	}
}

func evalArithmetic(e *Expr, left, right *column.Column) (*column.Column, error) {
	if !left.Type().IsNumeric() || !right.Type().IsNumeric() {
		return nil, schemaErrorf("cannot apply %s to %s and %s",
			binaryName(e.binop), left.Type(), right.Type())
	}
	outType, err := column.Promote(left.Type(), right.Type())
	if err != nil {
		return nil, err
	}
	if e.binop == OpDiv {
		outType = column.Float64
	}
	integral := outType == column.Int32 || outType == column.Int64

	n := left.Len()
	b := column.NewBuilder(e.OutputName(), outType, n)
	for i := 0; i < n; i++ {
		if !left.Valid(i) || !right.Valid(i) {
			b.AppendNull()
			continue
		}
		var appendErr error
		if integral {
			l, r := left.Int64At(i), right.Int64At(i)
			switch e.binop {
			case OpAdd:
				appendErr = b.Append(l + r)
			case OpSub:
				appendErr = b.Append(l - r)
			case OpMul:
				appendErr = b.Append(l * r)
			}
		} else {
			l, r := left.Float64At(i), right.Float64At(i)
			switch e.binop {
			case OpAdd:
				appendErr = b.Append(l + r)
			case OpSub:
				appendErr = b.Append(l - r)
			case OpMul:
				appendErr = b.Append(l * r)
			case OpDiv:
				if r == 0 {
					b.AppendNull()
					continue
				}
				appendErr = b.Append(l / r)
			}
		}
		if appendErr != nil {
			return nil, appendErr
		}
	}
	return b.Finish(), nil
}

// evalOver evaluates an aggregate per partition and broadcasts the result
// back to every row of its partition, preserving original row order.
func evalOver(tbl *column.Table, e *Expr) (*column.Column, error) {
	keyCols := make([]*column.Column, len(e.partitions))
	for i, k := range e.partitions {
		c, ok := tbl.Column(k)
		if !ok {
			return nil, schemaErrorf("unknown partition column %q", k)
		}
		keyCols[i] = c
	}

	groups := PartitionIndices(keyCols, tbl.NumRows())

	agg := e.input.Unalias()
	if agg.kind != KindAgg {
		return nil, schemaErrorf("over requires an aggregate expression, got %s", agg)
	}
	in, err := Eval(tbl, agg.input)
	if err != nil {
		return nil, err
	}
	outType, err := TypeOf(e, tbl.Schema())
	if err != nil {
		return nil, err
	}

	b := column.NewBuilder(e.OutputName(), outType, tbl.NumRows())
	perRow := make([]interface{}, tbl.NumRows())
	perRowSet := make([]bool, tbl.NumRows())
	for _, g := range groups {
		v, ok, err := aggValue(agg.agg, in, g)
		if err != nil {
			return nil, err
		}
		for _, idx := range g {
			if ok {
				perRow[idx] = v
			}
			perRowSet[idx] = ok
		}
	}
	for i := range perRow {
		if !perRowSet[i] {
			b.AppendNull()
			continue
		}
		if err := b.Append(perRow[i]); err != nil {
			return nil, err
		}
	}
	return b.Finish(), nil
}

// PartitionIndices groups row indices 0..n-1 by the tuple of values in
// the key columns. Null keys match themselves, so null-key rows group
// together. Groups are returned in the order their keys were first seen.
func PartitionIndices(keyCols []*column.Column, n int) [][]int {
	if len(keyCols) == 0 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return [][]int{all}
	}

	groups := make(map[string]int)
	var ordered [][]int
	var key strings.Builder
	for i := 0; i < n; i++ {
		key.Reset()
		for j, c := range keyCols {
			if j > 0 {
				key.WriteString("\x00||\x00")
			}
			if !c.Valid(i) {
				key.WriteString("\x00null\x00")
				continue
			}
			v, _ := c.Value(i)
			if ts, ok := v.(time.Time); ok {
				key.WriteString(ts.UTC().Format(time.RFC3339Nano))
				continue
			}
			fmt.Fprintf(&key, "%#v", v)
		}
		k := key.String()
		gi, seen := groups[k]
		if !seen {
			gi = len(ordered)
			groups[k] = gi
			ordered = append(ordered, nil)
		}
		ordered[gi] = append(ordered[gi], i)
	}
	return ordered
}
