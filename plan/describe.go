package plan

import (
	"fmt"
	"strings"

	"github.com/vegasq/lazyframe/expr"
)

// Describe renders the plan tree as an indented listing, root first.
// It is a debugging aid, not a stable format.
func (p *Plan) Describe() string {
	if p.err != nil {
		return fmt.Sprintf("INVALID PLAN: %v\n", p.err)
	}
	var b strings.Builder
	describeNode(&b, p.node, 0)
	return b.String()
}

func describeNode(b *strings.Builder, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	b.WriteString(n.Kind.String())

	switch n.Kind {
	case KindScan:
		fmt.Fprintf(b, " %s", n.Source.Name())
		if n.Projection != nil {
			fmt.Fprintf(b, " projection=[%s]", strings.Join(n.Projection, ", "))
		}
		if n.Predicate != nil {
			fmt.Fprintf(b, " predicate=%s", n.Predicate)
		}
	case KindFilter:
		fmt.Fprintf(b, " %s", n.Predicate)
	case KindSelect, KindWithColumns:
		fmt.Fprintf(b, " [%s]", joinExprs(n.Exprs))
	case KindGroupBy:
		fmt.Fprintf(b, " keys=[%s] aggs=[%s]", joinExprs(n.Keys), joinExprs(n.Exprs))
	case KindJoin:
		fmt.Fprintf(b, " how=%s left_on=[%s] right_on=[%s]",
			n.How, strings.Join(n.LeftOn, ", "), strings.Join(n.RightOn, ", "))
	case KindSort:
		parts := make([]string, len(n.SortKeys))
		for i, k := range n.SortKeys {
			dir := "asc"
			if k.Desc {
				dir = "desc"
			}
			parts[i] = k.Column + " " + dir
		}
		fmt.Fprintf(b, " [%s]", strings.Join(parts, ", "))
	case KindLimit:
		fmt.Fprintf(b, " %d", n.N)
	}
	b.WriteByte('\n')

	if n.Input != nil {
		describeNode(b, n.Input, depth+1)
	}
	if n.Right != nil {
		describeNode(b, n.Right, depth+1)
	}
}

func joinExprs(exprs []*expr.Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
