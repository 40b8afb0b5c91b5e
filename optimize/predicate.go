package optimize

import (
	"github.com/vegasq/lazyframe/expr"
	"github.com/vegasq/lazyframe/plan"
)

// pushPredicates moves filter conjuncts as close to their scans as
// possible. preds are conjuncts arriving from above; the returned node
// has them applied somewhere in its subtree, or wrapped around it when
// they cannot descend further.
//
// A conjunct stops at group-by, sort, and limit nodes: dropping rows
// before a limit or an aggregation changes the result, and the cost model
// is not worth a per-case proof for sort.
func pushPredicates(n *plan.Node, preds []*expr.Expr) *plan.Node {
	switch n.Kind {
	case plan.KindFilter:
		preds = append(append([]*expr.Expr(nil), preds...), splitConjuncts(n.Predicate)...)
		return pushPredicates(n.Input, preds)

	case plan.KindScan:
		if len(preds) == 0 {
			return n
		}
		merged := n.Predicate
		for _, p := range preds {
			if merged == nil {
				merged = p
			} else {
				merged = merged.And(p)
			}
		}
		out := *n
		out.Predicate = merged
		return &out

	case plan.KindSelect, plan.KindWithColumns:
		pushable, blocked := splitByNode(n, preds)
		out := *n
		out.Input = pushPredicates(n.Input, pushable)
		return wrapFilters(&out, blocked)

	case plan.KindJoin:
		leftPreds, rightPreds, blocked := splitForJoin(n, preds)
		out := *n
		out.Input = pushPredicates(n.Input, leftPreds)
		out.Right = pushPredicates(n.Right, rightPreds)
		return wrapFilters(&out, blocked)

	default: // group-by, sort, limit
		out := *n
		out.Input = pushPredicates(n.Input, nil)
		if n.Right != nil {
			out.Right = pushPredicates(n.Right, nil)
		}
		return wrapFilters(&out, preds)
	}
}

// splitConjuncts flattens a predicate's top-level and chain.
func splitConjuncts(e *expr.Expr) []*expr.Expr {
	if e.Kind() == expr.KindBinary && e.BinaryOp() == expr.OpAnd {
		return append(splitConjuncts(e.Left()), splitConjuncts(e.Right())...)
	}
	return []*expr.Expr{e}
}

// splitByNode partitions conjuncts into those that may descend below a
// select or with-columns node and those that must stay above it. A
// conjunct descends only when every column it references passes through
// the node untouched: for select, the column must be projected as a bare
// reference under its own name; for with-columns, it must not be
// overwritten by any of the node's expressions.
func splitByNode(n *plan.Node, preds []*expr.Expr) (pushable, blocked []*expr.Expr) {
	passthrough := make(map[string]bool)
	if n.Kind == plan.KindSelect {
		for _, e := range n.Exprs {
			u := e.Unalias()
			if u.Kind() == expr.KindColumn && u.ColumnName() == e.OutputName() {
				passthrough[e.OutputName()] = true
			}
		}
	} else {
		produced := make(map[string]bool, len(n.Exprs))
		for _, e := range n.Exprs {
			produced[e.OutputName()] = true
		}
		in, err := n.Input.Schema()
		if err != nil {
			return nil, preds
		}
		for _, name := range in.Names() {
			if !produced[name] {
				passthrough[name] = true
			}
		}
	}

	for _, p := range preds {
		ok := true
		for _, c := range p.Columns() {
			if !passthrough[c] {
				ok = false
				break
			}
		}
		if ok {
			pushable = append(pushable, p)
		} else {
			blocked = append(blocked, p)
		}
	}
	return pushable, blocked
}

// splitForJoin routes conjuncts to the join side whose schema covers all
// of their columns. Pushing below a join side is only row-preserving when
// that side's rows cannot be null-padded: the left side of inner and left
// joins, the right side of inner joins only.
func splitForJoin(n *plan.Node, preds []*expr.Expr) (left, right, blocked []*expr.Expr) {
	ls, lerr := n.Input.Schema()
	rs, rerr := n.Right.Schema()
	if lerr != nil || rerr != nil {
		return nil, nil, preds
	}

	for _, p := range preds {
		onLeft, onRight := true, true
		for _, c := range p.Columns() {
			if !ls.Has(c) {
				onLeft = false
			}
			if !rs.Has(c) {
				onRight = false
			}
		}
		switch {
		case onLeft && n.How != plan.JoinOuter:
			left = append(left, p)
		case onRight && n.How == plan.JoinInner:
			right = append(right, p)
		default:
			blocked = append(blocked, p)
		}
	}
	return left, right, blocked
}

// wrapFilters reapplies conjuncts that could not descend, one filter node
// per conjunct, in their original order.
func wrapFilters(n *plan.Node, preds []*expr.Expr) *plan.Node {
	for i := len(preds) - 1; i >= 0; i-- {
		n = &plan.Node{Kind: plan.KindFilter, Input: n, Predicate: preds[i]}
	}
	return n
}
