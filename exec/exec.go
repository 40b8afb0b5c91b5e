// Package exec evaluates optimized logical plans against their sources.
//
// Execution is a recursive pull: each operator fully materializes its
// input table, applies itself column-at-a-time, and hands the result up.
// Independent expressions within one operator evaluate on parallel
// goroutines; results are merged in declaration order, so output is
// deterministic regardless of parallelism. Any operator failure aborts
// the whole query with the failing operator named in the error.
package exec

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vegasq/lazyframe/column"
	"github.com/vegasq/lazyframe/expr"
	"github.com/vegasq/lazyframe/gologger"
	"github.com/vegasq/lazyframe/plan"
	"github.com/vegasq/lazyframe/scan"
)

// Options controls execution.
type Options struct {
	// Parallelism bounds the goroutines evaluating independent
	// expressions within one operator. Zero or negative means
	// GOMAXPROCS.
	Parallelism int
}

// Run executes an optimized plan tree and returns the result table.
func Run(ctx context.Context, n *plan.Node, opts Options) (*column.Table, error) {
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}

	queryID := uuid.NewString()
	logger := log.Ctx(ctx).With().Str("query_id", queryID).Logger()
	ctx = context.WithValue(logger.WithContext(ctx), gologger.QueryIDKey, queryID)

	start := time.Now()
	tbl, err := run(ctx, n, &opts)
	if err != nil {
		logger.Debug().Err(err).Dur("elapsed", time.Since(start)).Msg("query failed")
		return nil, err
	}
	logger.Debug().
		Int("rows", tbl.NumRows()).
		Int("cols", tbl.NumCols()).
		Dur("elapsed", time.Since(start)).
		Msg("query finished")
	return tbl, nil
}

func run(ctx context.Context, n *plan.Node, opts *Options) (*column.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch n.Kind {
	case plan.KindScan:
		return runScan(ctx, n)
	case plan.KindFilter:
		return runFilter(ctx, n, opts)
	case plan.KindSelect:
		return runSelect(ctx, n, opts)
	case plan.KindWithColumns:
		return runWithColumns(ctx, n, opts)
	case plan.KindGroupBy:
		return runGroupBy(ctx, n, opts)
	case plan.KindJoin:
		return runJoin(ctx, n, opts)
	case plan.KindSort:
		return runSort(ctx, n, opts)
	case plan.KindLimit:
		return runLimit(ctx, n, opts)
	}
	return nil, fmt.Errorf("unknown plan node kind %d", n.Kind)
}

func operatorErr(n *plan.Node, err error) error {
	if n.Kind == plan.KindScan {
		return fmt.Errorf("operator %s %s: %w", n.Kind, n.Source.Name(), err)
	}
	return fmt.Errorf("operator %s: %w", n.Kind, err)
}

func runScan(ctx context.Context, n *plan.Node) (*column.Table, error) {
	req := &scan.Request{Columns: n.Projection, Predicate: n.Predicate}
	tbl, err := n.Source.Read(ctx, req)
	if err != nil {
		return nil, operatorErr(n, err)
	}
	zerolog.Ctx(ctx).Debug().
		Str("source", n.Source.Name()).
		Int("rows", tbl.NumRows()).
		Int("cols", tbl.NumCols()).
		Msg("scan")
	return tbl, nil
}

func runFilter(ctx context.Context, n *plan.Node, opts *Options) (*column.Table, error) {
	in, err := run(ctx, n.Input, opts)
	if err != nil {
		return nil, err
	}
	mask, err := expr.Eval(in, n.Predicate)
	if err != nil {
		return nil, operatorErr(n, err)
	}
	keep := make([]bool, mask.Len())
	for i := range keep {
		keep[i] = mask.Valid(i) && mask.Bool(i)
	}
	out, err := in.Filter(keep)
	if err != nil {
		return nil, operatorErr(n, err)
	}
	return out, nil
}

func runSelect(ctx context.Context, n *plan.Node, opts *Options) (*column.Table, error) {
	in, err := run(ctx, n.Input, opts)
	if err != nil {
		return nil, err
	}
	cols, err := evalParallel(ctx, in, n.Exprs, opts.Parallelism)
	if err != nil {
		return nil, operatorErr(n, err)
	}
	out, err := column.NewTable(cols...)
	if err != nil {
		return nil, operatorErr(n, err)
	}
	return out, nil
}

func runWithColumns(ctx context.Context, n *plan.Node, opts *Options) (*column.Table, error) {
	in, err := run(ctx, n.Input, opts)
	if err != nil {
		return nil, err
	}
	cols, err := evalParallel(ctx, in, n.Exprs, opts.Parallelism)
	if err != nil {
		return nil, operatorErr(n, err)
	}
	out := in
	for _, c := range cols {
		out, err = out.WithColumn(c)
		if err != nil {
			return nil, operatorErr(n, err)
		}
	}
	return out, nil
}

func runGroupBy(ctx context.Context, n *plan.Node, opts *Options) (*column.Table, error) {
	in, err := run(ctx, n.Input, opts)
	if err != nil {
		return nil, err
	}

	keyCols := make([]*column.Column, len(n.Keys))
	for i, k := range n.Keys {
		c, err := expr.Eval(in, k)
		if err != nil {
			return nil, operatorErr(n, err)
		}
		keyCols[i] = c.Rename(k.OutputName())
	}
	groups := expr.PartitionIndices(keyCols, in.NumRows())

	// One representative row per group carries the key values out, in
	// first-seen order.
	firsts := make([]int, len(groups))
	for g, rows := range groups {
		firsts[g] = rows[0]
	}

	out := make([]*column.Column, len(n.Keys)+len(n.Exprs))
	for i, kc := range keyCols {
		gathered, err := kc.Gather(firsts)
		if err != nil {
			return nil, operatorErr(n, err)
		}
		out[i] = gathered
	}

	var (
		wg   sync.WaitGroup
		sem  = make(chan struct{}, opts.Parallelism)
		errs = make([]error, len(n.Exprs))
	)
	for i, a := range n.Exprs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, a *expr.Expr) {
			defer wg.Done()
			defer func() { <-sem }()
			c, err := expr.EvalGroups(in, a, groups)
			if err != nil {
				errs[i] = err
				return
			}
			out[len(n.Keys)+i] = c.Rename(a.OutputName())
		}(i, a)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, operatorErr(n, err)
		}
	}

	zerolog.Ctx(ctx).Debug().
		Int("groups", len(groups)).
		Int("input_rows", in.NumRows()).
		Msg("group by")
	tbl, err := column.NewTable(out...)
	if err != nil {
		return nil, operatorErr(n, err)
	}
	return tbl, nil
}

func runLimit(ctx context.Context, n *plan.Node, opts *Options) (*column.Table, error) {
	in, err := run(ctx, n.Input, opts)
	if err != nil {
		return nil, err
	}
	out, err := in.Head(n.N)
	if err != nil {
		return nil, operatorErr(n, err)
	}
	return out, nil
}

// evalParallel evaluates independent expressions against one table on up
// to parallelism goroutines, returning columns renamed to their output
// names in declaration order. The first error by declaration order wins.
func evalParallel(ctx context.Context, tbl *column.Table, exprs []*expr.Expr, parallelism int) ([]*column.Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cols := make([]*column.Column, len(exprs))
	errs := make([]error, len(exprs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, parallelism)
	for i, e := range exprs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, e *expr.Expr) {
			defer wg.Done()
			defer func() { <-sem }()
			c, err := expr.Eval(tbl, e)
			if err != nil {
				errs[i] = err
				return
			}
			cols[i] = c.Rename(e.OutputName())
		}(i, e)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return cols, nil
}
