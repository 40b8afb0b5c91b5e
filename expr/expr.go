// Package expr provides the algebraic expression trees evaluated by the
// query engine.
//
// Expressions are immutable and built by chaining constructor methods:
//
//	expr.Col("hp").Gt(expr.Lit(100))
//	expr.Col("hp").Sum().Over("cyl").Alias("hp_sum")
//
// An expression is pure and side-effect free. Identical subtrees may be
// shared between expressions, and every expression has a deterministic
// structural key (Key) that the optimizer uses for common-subexpression
// elimination and plan equality.
package expr

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vegasq/lazyframe/column"
)

// Kind identifies the variant of an expression node.
type Kind int

const (
	KindColumn Kind = iota
	KindLiteral
	KindUnary
	KindBinary
	KindAgg
	KindOver
	KindAlias
	KindCast
	KindMap
)

// UnaryOp is a unary operator.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
	OpIsNull
	OpIsNotNull
)

// BinaryOp is a binary operator.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

// AggOp is an aggregate operator; aggregates collapse rows to one value
// per group.
type AggOp int

const (
	AggSum AggOp = iota
	AggMean
	AggMin
	AggMax
	AggCount
	AggFirst
)

// MapFunc is a user-supplied single-column transform. It receives one
// evaluated column and must return a column of identical length; the
// engine rejects any other length with a CallbackArityError.
type MapFunc func(*column.Column) (*column.Column, error)

// CallbackArityError reports a user callback that returned a column whose
// length differs from its input.
type CallbackArityError struct {
	Name string
	Want int
	Got  int
}

func (e *CallbackArityError) Error() string {
	return fmt.Sprintf("callback %q returned %d rows, expected %d", e.Name, e.Got, e.Want)
}

// Expr is an immutable expression tree node.
type Expr struct {
	kind Kind

	name  string      // column name (KindColumn), alias (KindAlias), tag (KindMap)
	lit   interface{} // literal value (KindLiteral)
	litDT column.DataType

	unop  UnaryOp
	binop BinaryOp
	agg   AggOp

	input       *Expr // unary, agg, alias, cast, map child
	left, right *Expr // binary children
	partitions  []string
	castTo      column.DataType
	fn          MapFunc
	mapDT       column.DataType
}

// Col references a column by name.
func Col(name string) *Expr {
	return &Expr{kind: KindColumn, name: name}
}

// Lit wraps a Go value as a literal. Supported values are bool, integer
// widths (stored as int64, int32 kept narrow), float32/float64, string and
// time.Time. Lit panics on other types, which is a programming error at
// the call site, not a data error.
func Lit(v interface{}) *Expr {
	dt, norm, ok := literalType(v)
	if !ok {
		panic(fmt.Sprintf("expr.Lit: unsupported literal type %T", v))
	}
	return &Expr{kind: KindLiteral, lit: norm, litDT: dt}
}

func literalType(v interface{}) (column.DataType, interface{}, bool) {
	switch n := v.(type) {
	case bool:
		return column.Bool, n, true
	case int:
		return column.Int64, int64(n), true
	case int32:
		return column.Int32, n, true
	case int64:
		return column.Int64, n, true
	case float32:
		return column.Float32, n, true
	case float64:
		return column.Float64, n, true
	case string:
		return column.String, n, true
	case time.Time:
		return column.Timestamp, n, true
	default:
		return 0, nil, false
	}
}

// Kind returns the node variant.
func (e *Expr) Kind() Kind { return e.kind }

// ColumnName returns the referenced name of a KindColumn node.
func (e *Expr) ColumnName() string { return e.name }

// LiteralValue returns the value of a KindLiteral node.
func (e *Expr) LiteralValue() interface{} { return e.lit }

// Input returns the single child of unary, aggregate, alias, cast, map
// and over nodes.
func (e *Expr) Input() *Expr { return e.input }

// Left returns the left child of a binary node.
func (e *Expr) Left() *Expr { return e.left }

// Right returns the right child of a binary node.
func (e *Expr) Right() *Expr { return e.right }

// UnaryOp returns the operator of a KindUnary node.
func (e *Expr) UnaryOp() UnaryOp { return e.unop }

// BinaryOp returns the operator of a KindBinary node.
func (e *Expr) BinaryOp() BinaryOp { return e.binop }

// AggOp returns the operator of a KindAgg node.
func (e *Expr) AggOp() AggOp { return e.agg }

// Partitions returns the partition key names of a KindOver node.
func (e *Expr) Partitions() []string { return append([]string(nil), e.partitions...) }

// CastTo returns the target type of a KindCast node.
func (e *Expr) CastTo() column.DataType { return e.castTo }

func unary(op UnaryOp, in *Expr) *Expr {
	return &Expr{kind: KindUnary, unop: op, input: in}
}

func binary(op BinaryOp, l, r *Expr) *Expr {
	return &Expr{kind: KindBinary, binop: op, left: l, right: r}
}

func aggregate(op AggOp, in *Expr) *Expr {
	return &Expr{kind: KindAgg, agg: op, input: in}
}

// Arithmetic and comparison chaining.

// Add builds e + other.
func (e *Expr) Add(other *Expr) *Expr { return binary(OpAdd, e, other) }

// Sub builds e - other.
func (e *Expr) Sub(other *Expr) *Expr { return binary(OpSub, e, other) }

// Mul builds e * other.
func (e *Expr) Mul(other *Expr) *Expr { return binary(OpMul, e, other) }

// Div builds e / other. Division by zero evaluates to null.
func (e *Expr) Div(other *Expr) *Expr { return binary(OpDiv, e, other) }

// Eq builds e == other.
func (e *Expr) Eq(other *Expr) *Expr { return binary(OpEq, e, other) }

// Ne builds e != other.
func (e *Expr) Ne(other *Expr) *Expr { return binary(OpNe, e, other) }

// Lt builds e < other.
func (e *Expr) Lt(other *Expr) *Expr { return binary(OpLt, e, other) }

// Le builds e <= other.
func (e *Expr) Le(other *Expr) *Expr { return binary(OpLe, e, other) }

// Gt builds e > other.
func (e *Expr) Gt(other *Expr) *Expr { return binary(OpGt, e, other) }

// Ge builds e >= other.
func (e *Expr) Ge(other *Expr) *Expr { return binary(OpGe, e, other) }

// And builds e AND other with three-valued logic.
func (e *Expr) And(other *Expr) *Expr { return binary(OpAnd, e, other) }

// Or builds e OR other with three-valued logic.
func (e *Expr) Or(other *Expr) *Expr { return binary(OpOr, e, other) }

// Neg builds -e.
func (e *Expr) Neg() *Expr { return unary(OpNeg, e) }

// Not builds NOT e.
func (e *Expr) Not() *Expr { return unary(OpNot, e) }

// IsNull builds a null test; unlike Eq against a null, this yields a
// non-null boolean for every row.
func (e *Expr) IsNull() *Expr { return unary(OpIsNull, e) }

// IsNotNull builds the complementary null test.
func (e *Expr) IsNotNull() *Expr { return unary(OpIsNotNull, e) }

// Aggregates. Nulls are skipped; an all-null group aggregates to null
// (count aggregates to 0).

// Sum builds a sum aggregate.
func (e *Expr) Sum() *Expr { return aggregate(AggSum, e) }

// Mean builds an arithmetic-mean aggregate.
func (e *Expr) Mean() *Expr { return aggregate(AggMean, e) }

// Min builds a minimum aggregate.
func (e *Expr) Min() *Expr { return aggregate(AggMin, e) }

// Max builds a maximum aggregate.
func (e *Expr) Max() *Expr { return aggregate(AggMax, e) }

// Count builds a non-null count aggregate.
func (e *Expr) Count() *Expr { return aggregate(AggCount, e) }

// First builds an aggregate returning the first value in the group,
// including a null if the first row's value is null.
func (e *Expr) First() *Expr { return aggregate(AggFirst, e) }

// Over evaluates an aggregate expression per partition defined by the key
// columns, then broadcasts the result back to every row of its partition,
// preserving row order. This is how a grouped sum becomes a new column
// without collapsing rows.
func (e *Expr) Over(keys ...string) *Expr {
	return &Expr{kind: KindOver, input: e, partitions: append([]string(nil), keys...)}
}

// Alias renames the expression's output column without altering values.
func (e *Expr) Alias(name string) *Expr {
	return &Expr{kind: KindAlias, name: name, input: e}
}

// Cast converts the expression's output to the target type.
func (e *Expr) Cast(to column.DataType) *Expr {
	return &Expr{kind: KindCast, castTo: to, input: e}
}

// Map applies a user callback to the evaluated column. The callback must
// return a column of identical length; outType declares the callback's
// output type for schema derivation. The tag names the callback in plan
// listings and errors.
func (e *Expr) Map(tag string, fn MapFunc, outType column.DataType) *Expr {
	return &Expr{kind: KindMap, name: tag, fn: fn, mapDT: outType, input: e}
}

// OutputName returns the column name the expression produces: the alias
// if one is set, the referenced name for plain column references, and a
// derived name (such as "hp_sum") otherwise.
func (e *Expr) OutputName() string {
	switch e.kind {
	case KindAlias:
		return e.name
	case KindColumn:
		return e.name
	case KindAgg:
		return e.input.OutputName() + "_" + aggName(e.agg)
	case KindOver, KindCast:
		return e.input.OutputName()
	case KindMap:
		return e.input.OutputName()
	case KindLiteral:
		return "literal"
	case KindUnary:
		return e.input.OutputName()
	case KindBinary:
		return e.left.OutputName()
	}
	return e.String()
}

// Columns returns the sorted set of column names the expression reads,
// including window partition keys.
func (e *Expr) Columns() []string {
	set := make(map[string]bool)
	e.collectColumns(set)
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e *Expr) collectColumns(set map[string]bool) {
	switch e.kind {
	case KindColumn:
		set[e.name] = true
	case KindBinary:
		e.left.collectColumns(set)
		e.right.collectColumns(set)
	case KindOver:
		for _, k := range e.partitions {
			set[k] = true
		}
		e.input.collectColumns(set)
	case KindLiteral:
	default:
		if e.input != nil {
			e.input.collectColumns(set)
		}
	}
}

// HasAggregate reports whether the expression collapses rows: it contains
// an aggregate that is not wrapped in an Over (Over broadcasts back to
// full length).
func (e *Expr) HasAggregate() bool {
	switch e.kind {
	case KindAgg:
		return true
	case KindOver, KindColumn, KindLiteral:
		return false
	case KindBinary:
		return e.left.HasAggregate() || e.right.HasAggregate()
	default:
		return e.input != nil && e.input.HasAggregate()
	}
}

func aggName(op AggOp) string {
	switch op {
	case AggSum:
		return "sum"
	case AggMean:
		return "mean"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggCount:
		return "count"
	case AggFirst:
		return "first"
	default:
		return "agg"
	}
}

func unaryName(op UnaryOp) string {
	switch op {
	case OpNeg:
		return "-"
	case OpNot:
		return "not"
	case OpIsNull:
		return "is_null"
	default:
		return "is_not_null"
	}
}

func binaryName(op BinaryOp) string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "and"
	default:
		return "or"
	}
}

// String renders the expression in a compact prefix-free form used by
// plan listings.
func (e *Expr) String() string {
	switch e.kind {
	case KindColumn:
		return fmt.Sprintf("col(%s)", e.name)
	case KindLiteral:
		if s, ok := e.lit.(string); ok {
			return fmt.Sprintf("lit(%q)", s)
		}
		return fmt.Sprintf("lit(%v)", e.lit)
	case KindUnary:
		return fmt.Sprintf("%s(%s)", unaryName(e.unop), e.input)
	case KindBinary:
		return fmt.Sprintf("(%s %s %s)", e.left, binaryName(e.binop), e.right)
	case KindAgg:
		return fmt.Sprintf("%s(%s)", aggName(e.agg), e.input)
	case KindOver:
		return fmt.Sprintf("%s over (%s)", e.input, strings.Join(e.partitions, ", "))
	case KindAlias:
		return fmt.Sprintf("%s as %s", e.input, e.name)
	case KindCast:
		return fmt.Sprintf("cast(%s as %s)", e.input, e.castTo)
	case KindMap:
		return fmt.Sprintf("map[%s](%s)", e.name, e.input)
	}
	return "?"
}

// Key returns a deterministic structural key: two expressions with equal
// keys are structurally identical and evaluate identically. Map nodes key
// on their tag, so two map expressions are only merged when the caller
// gave them the same tag.
func (e *Expr) Key() string {
	switch e.kind {
	case KindColumn:
		return "c:" + e.name
	case KindLiteral:
		return fmt.Sprintf("l:%s:%#v", e.litDT, e.lit)
	case KindUnary:
		return fmt.Sprintf("u:%d(%s)", e.unop, e.input.Key())
	case KindBinary:
		return fmt.Sprintf("b:%d(%s,%s)", e.binop, e.left.Key(), e.right.Key())
	case KindAgg:
		return fmt.Sprintf("a:%d(%s)", e.agg, e.input.Key())
	case KindOver:
		return fmt.Sprintf("w:(%s)[%s]", e.input.Key(), strings.Join(e.partitions, ","))
	case KindAlias:
		return fmt.Sprintf("n:%s(%s)", e.name, e.input.Key())
	case KindCast:
		return fmt.Sprintf("t:%d(%s)", e.castTo, e.input.Key())
	case KindMap:
		return fmt.Sprintf("m:%s:%d(%s)", e.name, e.mapDT, e.input.Key())
	}
	return "?"
}

// Unalias strips alias wrappers, returning the underlying expression.
func (e *Expr) Unalias() *Expr {
	for e.kind == KindAlias {
		e = e.input
	}
	return e
}
