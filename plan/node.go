// Package plan provides the immutable logical plan tree built by chained
// relational operations.
//
// A plan describes, but does not perform, a computation: building one
// does no I/O and no evaluation. Every builder call validates against the
// derived schema and returns a new plan handle; nodes are created once
// and never mutated, so plans are safe to share across goroutines and
// across repeated executions.
package plan

import (
	"fmt"

	"github.com/vegasq/lazyframe/column"
	"github.com/vegasq/lazyframe/expr"
	"github.com/vegasq/lazyframe/scan"
)

// Kind identifies the operator of a plan node.
type Kind int

const (
	KindScan Kind = iota
	KindFilter
	KindSelect
	KindWithColumns
	KindGroupBy
	KindJoin
	KindSort
	KindLimit
)

// String returns the operator name used in plan listings.
func (k Kind) String() string {
	switch k {
	case KindScan:
		return "SCAN"
	case KindFilter:
		return "FILTER"
	case KindSelect:
		return "SELECT"
	case KindWithColumns:
		return "WITH_COLUMNS"
	case KindGroupBy:
		return "GROUP_BY"
	case KindJoin:
		return "JOIN"
	case KindSort:
		return "SORT"
	case KindLimit:
		return "LIMIT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}

// JoinKind selects the join semantics.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinOuter
)

// String returns the join kind name.
func (j JoinKind) String() string {
	switch j {
	case JoinInner:
		return "inner"
	case JoinLeft:
		return "left"
	case JoinOuter:
		return "outer"
	default:
		return fmt.Sprintf("unknown(%d)", int(j))
	}
}

// SortKey is one column of a sort specification.
type SortKey struct {
	Column string
	Desc   bool
}

// Node is one immutable operator in a plan tree. Exactly one input except
// Scan (zero) and Join (two). The optimizer reads nodes and builds new
// trees; it never mutates them.
type Node struct {
	Kind  Kind
	Input *Node
	Right *Node // join only

	// Scan fields. Projection and Predicate are optimizer hints: nil
	// projection reads all columns, nil predicate keeps all rows.
	Source     scan.Source
	Projection []string

	// Predicate is the filter condition (KindFilter) or the pushed-down
	// scan predicate hint (KindScan).
	Predicate *expr.Expr

	// Exprs are the outputs of Select/WithColumns and the aggregate
	// expressions of GroupBy.
	Exprs []*expr.Expr
	// Keys are the grouping key expressions of GroupBy.
	Keys []*expr.Expr

	SortKeys []SortKey

	LeftOn  []string
	RightOn []string
	How     JoinKind

	N int // limit
}

// JoinKeyError reports join keys that are absent from one side or differ
// in type between the two sides. It is raised at plan-build time.
type JoinKeyError struct {
	Key string
	Msg string
}

func (e *JoinKeyError) Error() string {
	return fmt.Sprintf("join key %q: %s", e.Key, e.Msg)
}

// Schema derives the node's output schema without executing it.
func (n *Node) Schema() (*column.Schema, error) {
	switch n.Kind {
	case KindScan:
		s := n.Source.Schema()
		if n.Projection == nil {
			return s, nil
		}
		fields := make([]column.Field, 0, len(n.Projection))
		for _, name := range n.Projection {
			dt, ok := s.TypeOf(name)
			if !ok {
				return nil, &expr.SchemaError{Msg: fmt.Sprintf("unknown column %q in scan projection", name)}
			}
			fields = append(fields, column.Field{Name: name, Type: dt})
		}
		return column.NewSchema(fields...)

	case KindFilter, KindSort, KindLimit:
		return n.Input.Schema()

	case KindSelect:
		in, err := n.Input.Schema()
		if err != nil {
			return nil, err
		}
		fields := make([]column.Field, 0, len(n.Exprs))
		for _, e := range n.Exprs {
			dt, err := expr.TypeOf(e, in)
			if err != nil {
				return nil, err
			}
			fields = append(fields, column.Field{Name: e.OutputName(), Type: dt})
		}
		return column.NewSchema(fields...)

	case KindWithColumns:
		in, err := n.Input.Schema()
		if err != nil {
			return nil, err
		}
		fields := in.Fields()
		index := make(map[string]int, len(fields))
		for i, f := range fields {
			index[f.Name] = i
		}
		for _, e := range n.Exprs {
			dt, err := expr.TypeOf(e, in)
			if err != nil {
				return nil, err
			}
			name := e.OutputName()
			if i, ok := index[name]; ok {
				fields[i] = column.Field{Name: name, Type: dt}
			} else {
				index[name] = len(fields)
				fields = append(fields, column.Field{Name: name, Type: dt})
			}
		}
		return column.NewSchema(fields...)

	case KindGroupBy:
		in, err := n.Input.Schema()
		if err != nil {
			return nil, err
		}
		fields := make([]column.Field, 0, len(n.Keys)+len(n.Exprs))
		for _, k := range n.Keys {
			dt, err := expr.TypeOf(k, in)
			if err != nil {
				return nil, err
			}
			fields = append(fields, column.Field{Name: k.OutputName(), Type: dt})
		}
		for _, a := range n.Exprs {
			dt, err := expr.TypeOf(a, in)
			if err != nil {
				return nil, err
			}
			fields = append(fields, column.Field{Name: a.OutputName(), Type: dt})
		}
		return column.NewSchema(fields...)

	case KindJoin:
		return n.joinSchema()
	}
	return nil, fmt.Errorf("unknown plan node kind %d", n.Kind)
}

// joinSchema is the left schema followed by the right schema minus the
// right join-key columns (key values are carried by the left-named key
// columns, coalesced for outer joins).
func (n *Node) joinSchema() (*column.Schema, error) {
	left, err := n.Input.Schema()
	if err != nil {
		return nil, err
	}
	right, err := n.Right.Schema()
	if err != nil {
		return nil, err
	}

	rightKeys := make(map[string]bool, len(n.RightOn))
	for _, k := range n.RightOn {
		rightKeys[k] = true
	}

	fields := left.Fields()
	for _, f := range right.Fields() {
		if rightKeys[f.Name] {
			continue
		}
		if left.Has(f.Name) {
			return nil, &expr.SchemaError{Msg: fmt.Sprintf(
				"column %q exists on both sides of the join; rename one side before joining", f.Name)}
		}
		fields = append(fields, f)
	}
	return column.NewSchema(fields...)
}
