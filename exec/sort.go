package exec

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vegasq/lazyframe/column"
	"github.com/vegasq/lazyframe/plan"
)

func runSort(ctx context.Context, n *plan.Node, opts *Options) (*column.Table, error) {
	in, err := run(ctx, n.Input, opts)
	if err != nil {
		return nil, err
	}

	keys := make([]*column.Column, len(n.SortKeys))
	for i, k := range n.SortKeys {
		c, ok := in.Column(k.Column)
		if !ok {
			return nil, operatorErr(n, fmt.Errorf("unknown column %q", k.Column))
		}
		keys[i] = c
	}

	indices := make([]int, in.NumRows())
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		ra, rb := indices[a], indices[b]
		for i, c := range keys {
			cmp := compareRows(c, ra, rb)
			if cmp == 0 {
				continue
			}
			if n.SortKeys[i].Desc && keys[i].Valid(ra) && keys[i].Valid(rb) {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	out, err := in.Gather(indices)
	if err != nil {
		return nil, operatorErr(n, err)
	}
	return out, nil
}

// compareRows orders two rows of one column. Nulls sort after every
// non-null value; the caller inverts the result for descending keys,
// which deliberately leaves nulls last in both directions.
func compareRows(c *column.Column, a, b int) int {
	av, aok := c.Value(a)
	bv, bok := c.Value(b)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1
	case !bok:
		return -1
	}
	return compareValues(av, bv)
}

func compareValues(a, b interface{}) int {
	switch x := a.(type) {
	case int32:
		return compareInt64(int64(x), int64(b.(int32)))
	case int64:
		return compareInt64(x, b.(int64))
	case float32:
		return compareFloat64(float64(x), float64(b.(float32)))
	case float64:
		return compareFloat64(x, b.(float64))
	case string:
		y := b.(string)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case time.Time:
		y := b.(time.Time)
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		}
		return 0
	}
	return 0
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
