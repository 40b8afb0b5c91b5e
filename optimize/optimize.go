// Package optimize rewrites logical plan trees before execution.
//
// The pipeline is a fixed, deterministic sequence: predicate pushdown,
// then projection pushdown, then common subexpression elimination. Each
// pass runs exactly once; there is no fixpoint iteration, so optimizing
// takes time proportional to plan size and the same plan always rewrites
// the same way. Passes only build new nodes, never mutate existing ones,
// and every rewrite preserves the plan's output schema and row semantics.
package optimize

import (
	"github.com/vegasq/lazyframe/plan"
)

// Optimize rewrites the plan tree. Optimizing an already-optimized tree
// returns a structurally equal tree.
func Optimize(n *plan.Node) *plan.Node {
	n = pushPredicates(n, nil)
	n = pushProjections(n, nil)
	n = eliminateCommon(n)
	return n
}
