package exec

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vegasq/lazyframe/column"
	"github.com/vegasq/lazyframe/plan"
)

// runJoin hash-joins two inputs on equality of their key columns. The
// hash table is built over the smaller input and probed with the other;
// the matched pairs are then normalized to left-major order, so output
// order is deterministic and independent of which side built: left rows
// in input order (matches expand in right-row order), with outer-join
// leftovers from the right appended at the end in right order. Rows
// whose key is null on either side never match.
func runJoin(ctx context.Context, n *plan.Node, opts *Options) (*column.Table, error) {
	left, err := run(ctx, n.Input, opts)
	if err != nil {
		return nil, err
	}
	right, err := run(ctx, n.Right, opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	leftKeys, err := keyColumns(left, n.LeftOn)
	if err != nil {
		return nil, operatorErr(n, err)
	}
	rightKeys, err := keyColumns(right, n.RightOn)
	if err != nil {
		return nil, operatorErr(n, err)
	}

	var leftRows, rightRows []int
	if right.NumRows() <= left.NumRows() {
		leftRows, rightRows = probeLeft(n.How, leftKeys, rightKeys, left.NumRows(), right.NumRows())
	} else {
		leftRows, rightRows = probeRight(n.How, leftKeys, rightKeys, left.NumRows(), right.NumRows())
	}
	sortPairs(leftRows, rightRows)

	out, err := assembleJoin(n, left, right, leftKeys, rightKeys, leftRows, rightRows)
	if err != nil {
		return nil, operatorErr(n, err)
	}
	zerolog.Ctx(ctx).Debug().
		Str("how", n.How.String()).
		Int("left_rows", left.NumRows()).
		Int("right_rows", right.NumRows()).
		Int("out_rows", out.NumRows()).
		Msg("join")
	return out, nil
}

// probeLeft builds the hash table over the right input and probes with
// left rows.
func probeLeft(how plan.JoinKind, leftKeys, rightKeys []*column.Column, nLeft, nRight int) (leftRows, rightRows []int) {
	buildIdx := make(map[string][]int, nRight)
	for i := 0; i < nRight; i++ {
		if k, ok := encodeKey(rightKeys, i); ok {
			buildIdx[k] = append(buildIdx[k], i)
		}
	}

	matched := make([]bool, nRight)
	for i := 0; i < nLeft; i++ {
		k, ok := encodeKey(leftKeys, i)
		var hits []int
		if ok {
			hits = buildIdx[k]
		}
		if len(hits) == 0 {
			if how != plan.JoinInner {
				leftRows = append(leftRows, i)
				rightRows = append(rightRows, -1)
			}
			continue
		}
		for _, r := range hits {
			leftRows = append(leftRows, i)
			rightRows = append(rightRows, r)
			matched[r] = true
		}
	}
	if how == plan.JoinOuter {
		for i := 0; i < nRight; i++ {
			if !matched[i] {
				leftRows = append(leftRows, -1)
				rightRows = append(rightRows, i)
			}
		}
	}
	return leftRows, rightRows
}

// probeRight builds the hash table over the left input and probes with
// right rows. Pair order is right-major here; sortPairs restores the
// canonical left-major order afterwards.
func probeRight(how plan.JoinKind, leftKeys, rightKeys []*column.Column, nLeft, nRight int) (leftRows, rightRows []int) {
	buildIdx := make(map[string][]int, nLeft)
	for i := 0; i < nLeft; i++ {
		if k, ok := encodeKey(leftKeys, i); ok {
			buildIdx[k] = append(buildIdx[k], i)
		}
	}

	matched := make([]bool, nLeft)
	for i := 0; i < nRight; i++ {
		k, ok := encodeKey(rightKeys, i)
		var hits []int
		if ok {
			hits = buildIdx[k]
		}
		if len(hits) == 0 {
			if how == plan.JoinOuter {
				leftRows = append(leftRows, -1)
				rightRows = append(rightRows, i)
			}
			continue
		}
		for _, l := range hits {
			leftRows = append(leftRows, l)
			rightRows = append(rightRows, i)
			matched[l] = true
		}
	}
	if how != plan.JoinInner {
		for i := 0; i < nLeft; i++ {
			if !matched[i] {
				leftRows = append(leftRows, i)
				rightRows = append(rightRows, -1)
			}
		}
	}
	return leftRows, rightRows
}

// sortPairs orders match pairs left-major: left rows in input order with
// their matches in right order, then right-only rows (left index -1) in
// right order at the end.
func sortPairs(leftRows, rightRows []int) {
	order := make([]int, len(leftRows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		la, lb := leftRows[order[a]], leftRows[order[b]]
		if la != lb {
			if la < 0 {
				return false
			}
			if lb < 0 {
				return true
			}
			return la < lb
		}
		return rightRows[order[a]] < rightRows[order[b]]
	})
	lsorted := make([]int, len(leftRows))
	rsorted := make([]int, len(rightRows))
	for i, o := range order {
		lsorted[i] = leftRows[o]
		rsorted[i] = rightRows[o]
	}
	copy(leftRows, lsorted)
	copy(rightRows, rsorted)
}

// assembleJoin gathers output columns: left columns in order, then right
// columns minus the right keys. Key columns coalesce across sides, so
// outer-join rows with no left match still carry their key values.
func assembleJoin(n *plan.Node, left, right *column.Table, leftKeys, rightKeys []*column.Column, leftRows, rightRows []int) (*column.Table, error) {
	keyPos := make(map[string]int, len(n.LeftOn))
	for i, name := range n.LeftOn {
		keyPos[name] = i
	}

	cols := make([]*column.Column, 0, left.NumCols()+right.NumCols()-len(n.RightOn))
	for _, c := range left.Columns() {
		if ki, isKey := keyPos[c.Name()]; isKey && n.How == plan.JoinOuter {
			merged, err := coalesceKey(c, rightKeys[ki], leftRows, rightRows)
			if err != nil {
				return nil, err
			}
			cols = append(cols, merged)
			continue
		}
		gathered, err := c.Gather(leftRows)
		if err != nil {
			return nil, err
		}
		cols = append(cols, gathered)
	}

	rightKeySet := make(map[string]bool, len(n.RightOn))
	for _, name := range n.RightOn {
		rightKeySet[name] = true
	}
	for _, c := range right.Columns() {
		if rightKeySet[c.Name()] {
			continue
		}
		gathered, err := c.Gather(rightRows)
		if err != nil {
			return nil, err
		}
		cols = append(cols, gathered)
	}
	return column.NewTable(cols...)
}

// coalesceKey builds a join key column that takes the left value when the
// row has a left match and the right value otherwise.
func coalesceKey(lk, rk *column.Column, leftRows, rightRows []int) (*column.Column, error) {
	b := column.NewBuilder(lk.Name(), lk.Type(), len(leftRows))
	for i := range leftRows {
		var (
			v  interface{}
			ok bool
		)
		if leftRows[i] >= 0 {
			v, ok = lk.Value(leftRows[i])
		} else {
			v, ok = rk.Value(rightRows[i])
		}
		if !ok {
			b.AppendNull()
			continue
		}
		if err := b.Append(v); err != nil {
			return nil, err
		}
	}
	return b.Finish(), nil
}

func keyColumns(tbl *column.Table, names []string) ([]*column.Column, error) {
	cols := make([]*column.Column, len(names))
	for i, name := range names {
		c, ok := tbl.Column(name)
		if !ok {
			return nil, fmt.Errorf("join key %q not found", name)
		}
		cols[i] = c
	}
	return cols, nil
}

// encodeKey renders one row's key values as a composite string. A null in
// any key component disqualifies the row from matching.
func encodeKey(keys []*column.Column, row int) (string, bool) {
	var b strings.Builder
	for i, c := range keys {
		if i > 0 {
			b.WriteString("\x00|\x00")
		}
		v, ok := c.Value(row)
		if !ok {
			return "", false
		}
		switch x := v.(type) {
		case time.Time:
			b.WriteString(x.Format(time.RFC3339Nano))
		case string:
			b.WriteString(x)
		default:
			fmt.Fprintf(&b, "%#v", x)
		}
	}
	return b.String(), true
}
