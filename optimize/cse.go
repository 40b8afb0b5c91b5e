package optimize

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/vegasq/lazyframe/expr"
	"github.com/vegasq/lazyframe/plan"
)

// eliminateCommon deduplicates repeated subexpressions within a single
// node's expression list. A subexpression appearing more than once is
// hoisted into a with-columns node below under a generated name, and
// every occurrence is rewritten to a reference to that column, so the
// work (including user map callbacks) runs once per row instead of once
// per occurrence.
//
// Only select and group-by nodes are rewritten: a with-columns node's
// output carries its whole input schema, so a hoisted helper column
// would leak into the result there.
func eliminateCommon(n *plan.Node) *plan.Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Input = eliminateCommon(n.Input)
	out.Right = eliminateCommon(n.Right)

	switch out.Kind {
	case plan.KindSelect:
		exprs, hoisted := hoistCommon(out.Exprs, false)
		if len(hoisted) > 0 {
			out.Input = &plan.Node{Kind: plan.KindWithColumns, Input: out.Input, Exprs: hoisted}
			out.Exprs = exprs
		}
	case plan.KindGroupBy:
		all := append(append([]*expr.Expr(nil), out.Keys...), out.Exprs...)
		rewritten, hoisted := hoistCommon(all, true)
		if len(hoisted) > 0 {
			out.Input = &plan.Node{Kind: plan.KindWithColumns, Input: out.Input, Exprs: hoisted}
			out.Keys = rewritten[:len(out.Keys)]
			out.Exprs = rewritten[len(out.Keys):]
		}
	}
	return &out
}

// hoistCommon finds subexpressions occurring at least twice across the
// list, largest first, and replaces them with generated column
// references. It returns the rewritten list and the hoisted definitions
// in first-occurrence order.
func hoistCommon(exprs []*expr.Expr, belowAgg bool) ([]*expr.Expr, []*expr.Expr) {
	out := append([]*expr.Expr(nil), exprs...)
	names := make([]string, len(out))
	for i, e := range out {
		names[i] = e.OutputName()
	}
	var hoisted []*expr.Expr

	for {
		key, sub := repeatedSubexpr(out, belowAgg)
		if sub == nil {
			break
		}
		name := cseName(key)
		hoisted = append(hoisted, sub.Alias(name))
		ref := expr.Col(name)
		for i, e := range out {
			out[i] = expr.Replace(e, key, ref)
		}
	}

	// Rewriting an expression at its root swaps in the generated column
	// reference; the original output name must survive.
	for i, e := range out {
		if e.OutputName() != names[i] {
			out[i] = e.Alias(names[i])
		}
	}
	return out, hoisted
}

// repeatedSubexpr returns the deepest subexpression whose structural key
// occurs more than once across the list, or nil when there is none.
// Bare column references, literals, and alias wrappers are never hoisted;
// below a group-by, aggregates cannot be hoisted either, since the helper
// column is computed before grouping.
func repeatedSubexpr(exprs []*expr.Expr, belowAgg bool) (string, *expr.Expr) {
	counts := make(map[string]int)
	first := make(map[string]*expr.Expr)
	for _, e := range exprs {
		expr.Walk(e, func(sub *expr.Expr) {
			switch sub.Kind() {
			case expr.KindColumn, expr.KindLiteral, expr.KindAlias:
				return
			}
			if belowAgg && sub.HasAggregate() {
				return
			}
			k := sub.Key()
			counts[k]++
			if _, ok := first[k]; !ok {
				first[k] = sub
			}
		})
	}

	var keys []string
	for k, c := range counts {
		if c > 1 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", nil
	}
	// Deepest first, key order as a deterministic tie-break.
	sort.Slice(keys, func(i, j int) bool {
		di, dj := expr.Depth(first[keys[i]]), expr.Depth(first[keys[j]])
		if di != dj {
			return di > dj
		}
		return keys[i] < keys[j]
	})
	return keys[0], first[keys[0]]
}

func cseName(key string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return fmt.Sprintf("_cse_%08x", h.Sum32())
}
