package lazyframe

import (
	"context"

	"github.com/vegasq/lazyframe/column"
	"github.com/vegasq/lazyframe/expr"
)

// DataFrame is the eager companion of LazyFrame: every operation builds a
// one-step plan over the current table and collects it immediately. It
// exists for interactive use and tests; pipelines should stay lazy so the
// optimizer sees the whole plan.
type DataFrame struct {
	name string
	tbl  *column.Table
}

// NewDataFrame wraps a materialized table.
func NewDataFrame(name string, tbl *column.Table) *DataFrame {
	return &DataFrame{name: name, tbl: tbl}
}

// Table returns the underlying table.
func (df *DataFrame) Table() *column.Table { return df.tbl }

// Lazy converts the frame into a lazy scan over its table.
func (df *DataFrame) Lazy() *LazyFrame {
	return ScanTable(df.name, df.tbl)
}

func (df *DataFrame) eager(ctx context.Context, lf *LazyFrame) (*DataFrame, error) {
	tbl, err := lf.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return &DataFrame{name: df.name, tbl: tbl}, nil
}

// Filter eagerly keeps rows where the predicate is true.
func (df *DataFrame) Filter(ctx context.Context, pred *expr.Expr) (*DataFrame, error) {
	return df.eager(ctx, df.Lazy().Filter(pred))
}

// Select eagerly projects to the given expressions.
func (df *DataFrame) Select(ctx context.Context, exprs ...*expr.Expr) (*DataFrame, error) {
	return df.eager(ctx, df.Lazy().Select(exprs...))
}

// WithColumns eagerly adds or replaces columns.
func (df *DataFrame) WithColumns(ctx context.Context, exprs ...*expr.Expr) (*DataFrame, error) {
	return df.eager(ctx, df.Lazy().WithColumns(exprs...))
}

// Sort eagerly orders rows by the given keys.
func (df *DataFrame) Sort(ctx context.Context, keys ...SortKey) (*DataFrame, error) {
	return df.eager(ctx, df.Lazy().Sort(keys...))
}

// Head eagerly keeps the first n rows.
func (df *DataFrame) Head(ctx context.Context, n int) (*DataFrame, error) {
	return df.eager(ctx, df.Lazy().Limit(n))
}

// Join eagerly joins with another frame on the named keys.
func (df *DataFrame) Join(ctx context.Context, other *DataFrame, leftOn, rightOn []string, how JoinKind) (*DataFrame, error) {
	return df.eager(ctx, df.Lazy().Join(other.Lazy(), leftOn, rightOn, how))
}
