// Package lazyframe is a lazy columnar query engine. Chained relational
// operations build an unevaluated logical plan; collecting the frame
// optimizes the plan (predicate pushdown, projection pushdown, common
// subexpression elimination) and executes it column-at-a-time.
//
// Example usage:
//
//	lf, err := lazyframe.ScanCSV("cars.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tbl, err := lf.
//	    Filter(lazyframe.Col("cyl").Eq(lazyframe.Lit(6))).
//	    GroupBy(lazyframe.Col("cyl")).
//	    Agg(lazyframe.Col("hp").Sum()).
//	    Collect(context.Background())
//
// Plan building is pure: no I/O happens and no rows move until Collect.
// A failed builder call poisons the frame; the first error surfaces from
// Collect, so chains never need intermediate error checks.
package lazyframe

import (
	"context"

	"github.com/vegasq/lazyframe/column"
	"github.com/vegasq/lazyframe/exec"
	"github.com/vegasq/lazyframe/expr"
	"github.com/vegasq/lazyframe/optimize"
	"github.com/vegasq/lazyframe/plan"
	"github.com/vegasq/lazyframe/scan"
)

// Col references a column by name.
func Col(name string) *expr.Expr { return expr.Col(name) }

// Lit wraps a constant value.
func Lit(v interface{}) *expr.Expr { return expr.Lit(v) }

// SortKey is one column of a sort specification.
type SortKey = plan.SortKey

// JoinKind selects the join semantics.
type JoinKind = plan.JoinKind

const (
	JoinInner = plan.JoinInner
	JoinLeft  = plan.JoinLeft
	JoinOuter = plan.JoinOuter
)

// LazyFrame is an unevaluated query. All methods are cheap plan rewrites;
// only Collect reads data. Frames are immutable and safe to share: every
// method returns a new frame, and one frame can be collected repeatedly
// or extended in different directions.
type LazyFrame struct {
	p *plan.Plan
}

// FromSource starts a lazy frame at any scan source.
func FromSource(src scan.Source) *LazyFrame {
	return &LazyFrame{p: plan.Scan(src)}
}

// ScanTable starts a lazy frame over an in-memory table.
func ScanTable(name string, tbl *column.Table) *LazyFrame {
	return FromSource(scan.NewTable(name, tbl))
}

// ScanCSV starts a lazy frame over a delimited-text file. The file's
// schema is inferred now; rows are read at Collect.
func ScanCSV(path string) (*LazyFrame, error) {
	src, err := scan.NewCSV(path)
	if err != nil {
		return nil, err
	}
	return FromSource(src), nil
}

// ScanParquet starts a lazy frame over a parquet file. Only the file
// metadata is read now.
func ScanParquet(path string) (*LazyFrame, error) {
	src, err := scan.NewParquet(path)
	if err != nil {
		return nil, err
	}
	return FromSource(src), nil
}

// ScanParquetGlob starts a lazy frame over every parquet file matching a
// glob pattern, concatenated. All files must share an identical schema.
func ScanParquetGlob(pattern string) (*LazyFrame, error) {
	src, err := scan.NewParquetGlob(pattern)
	if err != nil {
		return nil, err
	}
	return FromSource(src), nil
}

// Err returns the first builder error carried by the frame, if any.
func (lf *LazyFrame) Err() error { return lf.p.Err() }

// Schema derives the frame's output schema without reading data.
func (lf *LazyFrame) Schema() (*column.Schema, error) { return lf.p.Schema() }

// Filter keeps rows where the predicate is true; null drops the row.
func (lf *LazyFrame) Filter(pred *expr.Expr) *LazyFrame {
	return &LazyFrame{p: lf.p.Filter(pred)}
}

// Select projects to exactly the given expressions, in order.
func (lf *LazyFrame) Select(exprs ...*expr.Expr) *LazyFrame {
	return &LazyFrame{p: lf.p.Select(exprs...)}
}

// WithColumns adds or replaces columns.
func (lf *LazyFrame) WithColumns(exprs ...*expr.Expr) *LazyFrame {
	return &LazyFrame{p: lf.p.WithColumns(exprs...)}
}

// GroupBy groups rows by key expressions; follow with Agg.
func (lf *LazyFrame) GroupBy(keys ...*expr.Expr) *GroupedFrame {
	return &GroupedFrame{g: lf.p.GroupBy(keys...)}
}

// Join combines this frame (left) with another on equality of the named
// key columns.
func (lf *LazyFrame) Join(other *LazyFrame, leftOn, rightOn []string, how JoinKind) *LazyFrame {
	return &LazyFrame{p: lf.p.Join(other.p, leftOn, rightOn, how)}
}

// Sort orders rows stably by the given keys; nulls sort last.
func (lf *LazyFrame) Sort(keys ...SortKey) *LazyFrame {
	return &LazyFrame{p: lf.p.Sort(keys...)}
}

// Limit keeps the first n rows.
func (lf *LazyFrame) Limit(n int) *LazyFrame {
	return &LazyFrame{p: lf.p.Limit(n)}
}

// Describe renders the unoptimized logical plan.
func (lf *LazyFrame) Describe() string { return lf.p.Describe() }

// DescribeOptimized renders the plan as it will execute.
func (lf *LazyFrame) DescribeOptimized() string {
	if err := lf.p.Err(); err != nil {
		return lf.p.Describe()
	}
	return plan.FromNode(optimize.Optimize(lf.p.Node())).Describe()
}

// Collect optimizes and executes the plan, returning the result table.
// The first builder error, if any, is returned before any optimization
// or I/O happens.
func (lf *LazyFrame) Collect(ctx context.Context) (*column.Table, error) {
	return lf.CollectWith(ctx, exec.Options{})
}

// CollectWith is Collect with explicit execution options.
func (lf *LazyFrame) CollectWith(ctx context.Context, opts exec.Options) (*column.Table, error) {
	if err := lf.p.Err(); err != nil {
		return nil, err
	}
	return exec.Run(ctx, optimize.Optimize(lf.p.Node()), opts)
}

// GroupedFrame is the intermediate of GroupBy; only Agg completes it.
type GroupedFrame struct {
	g *plan.GroupedPlan
}

// Agg completes the grouping with one row per group.
func (gf *GroupedFrame) Agg(aggs ...*expr.Expr) *LazyFrame {
	return &LazyFrame{p: gf.g.Agg(aggs...)}
}
