package plan

import (
	"fmt"

	"github.com/vegasq/lazyframe/column"
	"github.com/vegasq/lazyframe/expr"
	"github.com/vegasq/lazyframe/scan"
)

// Plan is an immutable handle on a logical plan tree. Builder methods
// validate against the derived schema and return a new handle; a failed
// call returns a handle carrying the error, and every later call passes
// it through unchanged, so errors surface once at execution time without
// breaking the chain.
type Plan struct {
	node *Node
	err  error
}

// Scan starts a plan at a source. No rows are read.
func Scan(src scan.Source) *Plan {
	return &Plan{node: &Node{Kind: KindScan, Source: src}}
}

// FromNode wraps an already-built node, trusting it was validated when
// built. The optimizer uses this to rewrap rewritten trees.
func FromNode(n *Node) *Plan {
	return &Plan{node: n}
}

// Node returns the root of the plan tree, or nil if the plan carries a
// build error.
func (p *Plan) Node() *Node {
	if p.err != nil {
		return nil
	}
	return p.node
}

// Err returns the first builder error, if any.
func (p *Plan) Err() error { return p.err }

// Schema derives the plan's output schema.
func (p *Plan) Schema() (*column.Schema, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.node.Schema()
}

func (p *Plan) fail(err error) *Plan {
	return &Plan{node: p.node, err: err}
}

// Filter keeps rows where the predicate evaluates to true. Rows where it
// is null are dropped. The predicate must type-check to bool and must not
// contain a bare aggregate.
func (p *Plan) Filter(pred *expr.Expr) *Plan {
	if p.err != nil {
		return p
	}
	in, err := p.node.Schema()
	if err != nil {
		return p.fail(err)
	}
	if pred.HasAggregate() {
		return p.fail(&expr.SchemaError{Msg: fmt.Sprintf(
			"aggregate expression %s cannot be used as a filter predicate", pred)})
	}
	dt, err := expr.TypeOf(pred, in)
	if err != nil {
		return p.fail(err)
	}
	if dt != column.Bool {
		return p.fail(&expr.SchemaError{Msg: fmt.Sprintf(
			"filter predicate %s has type %s, want bool", pred, dt)})
	}
	return &Plan{node: &Node{Kind: KindFilter, Input: p.node, Predicate: pred}}
}

// Select projects to exactly the given expressions, in order. Output
// names must be distinct.
func (p *Plan) Select(exprs ...*expr.Expr) *Plan {
	if p.err != nil {
		return p
	}
	if err := p.checkProjections("select", exprs, true); err != nil {
		return p.fail(err)
	}
	return &Plan{node: &Node{Kind: KindSelect, Input: p.node, Exprs: exprs}}
}

// WithColumns adds the given expressions as columns, replacing any input
// column with the same output name in place.
func (p *Plan) WithColumns(exprs ...*expr.Expr) *Plan {
	if p.err != nil {
		return p
	}
	if err := p.checkProjections("with_columns", exprs, true); err != nil {
		return p.fail(err)
	}
	return &Plan{node: &Node{Kind: KindWithColumns, Input: p.node, Exprs: exprs}}
}

func (p *Plan) checkProjections(op string, exprs []*expr.Expr, rejectAggs bool) error {
	if len(exprs) == 0 {
		return &expr.SchemaError{Msg: op + " requires at least one expression"}
	}
	in, err := p.node.Schema()
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(exprs))
	for _, e := range exprs {
		if rejectAggs && e.HasAggregate() {
			return &expr.SchemaError{Msg: fmt.Sprintf(
				"aggregate expression %s outside group_by; use over() or group_by().agg()", e)}
		}
		if _, err := expr.TypeOf(e, in); err != nil {
			return err
		}
		name := e.OutputName()
		if seen[name] {
			return &expr.SchemaError{Msg: fmt.Sprintf("duplicate output column %q in %s", name, op)}
		}
		seen[name] = true
	}
	return nil
}

// GroupedPlan is the intermediate of GroupBy; only Agg completes it.
type GroupedPlan struct {
	plan *Plan
	keys []*expr.Expr
	err  error
}

// GroupBy groups rows by the given key expressions. Keys may be any
// non-aggregate expressions; null key values form their own group, and
// output groups appear in first-seen order.
func (p *Plan) GroupBy(keys ...*expr.Expr) *GroupedPlan {
	if p.err != nil {
		return &GroupedPlan{plan: p, err: p.err}
	}
	if len(keys) == 0 {
		return &GroupedPlan{plan: p, err: &expr.SchemaError{Msg: "group_by requires at least one key"}}
	}
	in, err := p.node.Schema()
	if err != nil {
		return &GroupedPlan{plan: p, err: err}
	}
	for _, k := range keys {
		if k.HasAggregate() {
			return &GroupedPlan{plan: p, err: &expr.SchemaError{Msg: fmt.Sprintf(
				"aggregate expression %s cannot be a group_by key", k)}}
		}
		if _, err := expr.TypeOf(k, in); err != nil {
			return &GroupedPlan{plan: p, err: err}
		}
	}
	return &GroupedPlan{plan: p, keys: keys}
}

// Agg completes a grouping with one output row per group: the key columns
// first, then one column per aggregate expression. Every aggregate
// expression must contain an aggregate function.
func (g *GroupedPlan) Agg(aggs ...*expr.Expr) *Plan {
	if g.err != nil {
		return g.plan.fail(g.err)
	}
	if len(aggs) == 0 {
		return g.plan.fail(&expr.SchemaError{Msg: "agg requires at least one aggregate expression"})
	}
	in, err := g.plan.node.Schema()
	if err != nil {
		return g.plan.fail(err)
	}
	seen := make(map[string]bool, len(g.keys)+len(aggs))
	for _, k := range g.keys {
		seen[k.OutputName()] = true
	}
	for _, a := range aggs {
		if !a.HasAggregate() {
			return g.plan.fail(&expr.SchemaError{Msg: fmt.Sprintf(
				"expression %s in agg has no aggregate function", a)})
		}
		if _, err := expr.TypeOf(a, in); err != nil {
			return g.plan.fail(err)
		}
		name := a.OutputName()
		if seen[name] {
			return g.plan.fail(&expr.SchemaError{Msg: fmt.Sprintf(
				"duplicate output column %q in group_by", name)})
		}
		seen[name] = true
	}
	return &Plan{node: &Node{Kind: KindGroupBy, Input: g.plan.node, Keys: g.keys, Exprs: aggs}}
}

// Join combines this plan (left) with another (right) on equality of the
// named key columns. Keys must exist on their side and have identical
// types; non-key column names must not collide across sides.
func (p *Plan) Join(right *Plan, leftOn, rightOn []string, how JoinKind) *Plan {
	if p.err != nil {
		return p
	}
	if right.err != nil {
		return p.fail(right.err)
	}
	if len(leftOn) == 0 || len(leftOn) != len(rightOn) {
		return p.fail(&JoinKeyError{Key: "", Msg: fmt.Sprintf(
			"want matching non-empty key lists, got %d left and %d right", len(leftOn), len(rightOn))})
	}
	ls, err := p.node.Schema()
	if err != nil {
		return p.fail(err)
	}
	rs, err := right.node.Schema()
	if err != nil {
		return p.fail(err)
	}
	for i := range leftOn {
		lt, ok := ls.TypeOf(leftOn[i])
		if !ok {
			return p.fail(&JoinKeyError{Key: leftOn[i], Msg: "not found on left side"})
		}
		rt, ok := rs.TypeOf(rightOn[i])
		if !ok {
			return p.fail(&JoinKeyError{Key: rightOn[i], Msg: "not found on right side"})
		}
		if lt != rt {
			return p.fail(&JoinKeyError{Key: leftOn[i], Msg: fmt.Sprintf(
				"left type %s does not match right type %s", lt, rt)})
		}
	}

	n := &Node{
		Kind:    KindJoin,
		Input:   p.node,
		Right:   right.node,
		LeftOn:  append([]string(nil), leftOn...),
		RightOn: append([]string(nil), rightOn...),
		How:     how,
	}
	if _, err := n.joinSchema(); err != nil {
		return p.fail(err)
	}
	return &Plan{node: n}
}

// Sort orders rows by the given keys, stably; nulls sort after all
// non-null values regardless of direction.
func (p *Plan) Sort(keys ...SortKey) *Plan {
	if p.err != nil {
		return p
	}
	if len(keys) == 0 {
		return p.fail(&expr.SchemaError{Msg: "sort requires at least one key"})
	}
	in, err := p.node.Schema()
	if err != nil {
		return p.fail(err)
	}
	for _, k := range keys {
		dt, ok := in.TypeOf(k.Column)
		if !ok {
			return p.fail(&expr.SchemaError{Msg: fmt.Sprintf("unknown sort column %q", k.Column)})
		}
		if dt == column.Bool {
			return p.fail(&expr.SchemaError{Msg: fmt.Sprintf("sort column %q has unorderable type bool", k.Column)})
		}
	}
	return &Plan{node: &Node{Kind: KindSort, Input: p.node, SortKeys: keys}}
}

// Limit keeps the first n rows.
func (p *Plan) Limit(n int) *Plan {
	if p.err != nil {
		return p
	}
	if n < 0 {
		return p.fail(&expr.SchemaError{Msg: fmt.Sprintf("limit must be non-negative, got %d", n)})
	}
	return &Plan{node: &Node{Kind: KindLimit, Input: p.node, N: n}}
}

// StructurallyEqual reports whether two plan trees have the same shape,
// the same sources, and structurally identical expressions. Optimizing
// an already-optimized plan yields a structurally equal tree.
func StructurallyEqual(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.How != b.How || a.N != b.N {
		return false
	}
	if a.Source != b.Source {
		return false
	}
	if !equalStrings(a.Projection, b.Projection) ||
		!equalStrings(a.LeftOn, b.LeftOn) ||
		!equalStrings(a.RightOn, b.RightOn) {
		return false
	}
	if (a.Predicate == nil) != (b.Predicate == nil) {
		return false
	}
	if a.Predicate != nil && a.Predicate.Key() != b.Predicate.Key() {
		return false
	}
	if !equalExprs(a.Exprs, b.Exprs) || !equalExprs(a.Keys, b.Keys) {
		return false
	}
	if len(a.SortKeys) != len(b.SortKeys) {
		return false
	}
	for i := range a.SortKeys {
		if a.SortKeys[i] != b.SortKeys[i] {
			return false
		}
	}
	return StructurallyEqual(a.Input, b.Input) && StructurallyEqual(a.Right, b.Right)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalExprs(a, b []*expr.Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key() != b[i].Key() {
			return false
		}
	}
	return true
}
