// Package scan provides the source descriptors a plan's Scan node reads
// from: in-memory tables, delimited-text files, and columnar-binary
// (parquet) files or globs.
//
// A Source exposes its schema without reading data, so plans can be built
// and validated with no I/O; the data itself is only read when the
// execution engine calls Read. Sources honor the projection and predicate
// hints the optimizer attaches to Scan nodes, so discarded columns and
// rows are dropped as close to the data as possible.
package scan

import (
	"context"

	"github.com/vegasq/lazyframe/column"
	"github.com/vegasq/lazyframe/expr"
)

// Request carries the optimizer's hints into a source read. A nil Columns
// slice means all columns; a nil Predicate means all rows.
type Request struct {
	Columns   []string
	Predicate *expr.Expr
}

// Source is a scan descriptor. Schema is derivable without reading data;
// Read materializes the (projected, filtered) table. Sources are safe for
// concurrent reads from multiple queries.
type Source interface {
	// Name identifies the source in plan listings and errors.
	Name() string
	// Schema returns the source's full schema.
	Schema() *column.Schema
	// Read materializes the source into a table, honoring the request's
	// projection and predicate hints.
	Read(ctx context.Context, req *Request) (*column.Table, error)
}

// apply narrows a fully or partially materialized table to the request:
// the predicate is evaluated first (nulls drop the row), then the
// projection is applied. The table must contain every projected column
// and every column the predicate references.
func apply(tbl *column.Table, req *Request) (*column.Table, error) {
	if req != nil && req.Predicate != nil {
		mask, err := expr.Eval(tbl, req.Predicate)
		if err != nil {
			return nil, err
		}
		keep := make([]bool, mask.Len())
		for i := range keep {
			keep[i] = mask.Valid(i) && mask.Bool(i)
		}
		tbl, err = tbl.Filter(keep)
		if err != nil {
			return nil, err
		}
	}
	if req != nil && req.Columns != nil {
		return tbl.Select(req.Columns...)
	}
	return tbl, nil
}

// readColumns returns the set of columns a request actually needs
// materialized: the projection plus any predicate columns.
func readColumns(schema *column.Schema, req *Request) []string {
	if req == nil || req.Columns == nil {
		return schema.Names()
	}
	need := append([]string(nil), req.Columns...)
	if req.Predicate != nil {
		have := make(map[string]bool, len(need))
		for _, n := range need {
			have[n] = true
		}
		for _, n := range req.Predicate.Columns() {
			if !have[n] {
				need = append(need, n)
			}
		}
	}
	return need
}
