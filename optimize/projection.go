package optimize

import (
	"github.com/vegasq/lazyframe/plan"
)

// pushProjections computes, top down, the set of columns each node's
// parent actually needs and records the final set as the scan's
// projection hint. A nil need means every column is required, which is
// the state at the root until a select or group-by narrows it.
func pushProjections(n *plan.Node, need map[string]bool) *plan.Node {
	switch n.Kind {
	case plan.KindScan:
		if need == nil {
			return n
		}
		schema := n.Source.Schema()
		projection := make([]string, 0, len(need))
		for _, name := range schema.Names() {
			if need[name] {
				projection = append(projection, name)
			}
		}
		out := *n
		out.Projection = projection
		return &out

	case plan.KindFilter:
		out := *n
		out.Input = pushProjections(n.Input, union(need, n.Predicate.Columns()))
		return &out

	case plan.KindSelect:
		// A select resets the requirement to exactly what its
		// expressions read, no matter what the parent needs.
		childNeed := make(map[string]bool)
		for _, e := range n.Exprs {
			for _, c := range e.Columns() {
				childNeed[c] = true
			}
		}
		out := *n
		out.Input = pushProjections(n.Input, childNeed)
		return &out

	case plan.KindWithColumns:
		var childNeed map[string]bool
		if need != nil {
			produced := make(map[string]bool, len(n.Exprs))
			for _, e := range n.Exprs {
				produced[e.OutputName()] = true
			}
			childNeed = make(map[string]bool)
			for name := range need {
				if !produced[name] {
					childNeed[name] = true
				}
			}
			for _, e := range n.Exprs {
				for _, c := range e.Columns() {
					childNeed[c] = true
				}
			}
		}
		out := *n
		out.Input = pushProjections(n.Input, childNeed)
		return &out

	case plan.KindGroupBy:
		childNeed := make(map[string]bool)
		for _, k := range n.Keys {
			for _, c := range k.Columns() {
				childNeed[c] = true
			}
		}
		for _, a := range n.Exprs {
			for _, c := range a.Columns() {
				childNeed[c] = true
			}
		}
		out := *n
		out.Input = pushProjections(n.Input, childNeed)
		return &out

	case plan.KindJoin:
		var leftNeed, rightNeed map[string]bool
		if need != nil {
			ls, lerr := n.Input.Schema()
			rs, rerr := n.Right.Schema()
			if lerr == nil && rerr == nil {
				leftNeed = make(map[string]bool)
				rightNeed = make(map[string]bool)
				for name := range need {
					if ls.Has(name) {
						leftNeed[name] = true
					}
					if rs.Has(name) {
						rightNeed[name] = true
					}
				}
				for _, k := range n.LeftOn {
					leftNeed[k] = true
				}
				for _, k := range n.RightOn {
					rightNeed[k] = true
				}
			}
		}
		out := *n
		out.Input = pushProjections(n.Input, leftNeed)
		out.Right = pushProjections(n.Right, rightNeed)
		return &out

	case plan.KindSort:
		cols := make([]string, len(n.SortKeys))
		for i, k := range n.SortKeys {
			cols[i] = k.Column
		}
		out := *n
		out.Input = pushProjections(n.Input, union(need, cols))
		return &out

	default: // limit
		out := *n
		out.Input = pushProjections(n.Input, need)
		return &out
	}
}

// union adds names to a copy of need. A nil need absorbs everything and
// stays nil.
func union(need map[string]bool, names []string) map[string]bool {
	if need == nil {
		return nil
	}
	out := make(map[string]bool, len(need)+len(names))
	for name := range need {
		out[name] = true
	}
	for _, name := range names {
		out[name] = true
	}
	return out
}
