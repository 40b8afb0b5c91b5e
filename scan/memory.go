package scan

import (
	"context"
	"sync"

	"github.com/vegasq/lazyframe/column"
)

// TableSource serves an in-memory table. It counts how many times each
// column has been materialized by reads, which is how tests observe that
// projection pushdown keeps unused columns unread.
type TableSource struct {
	name string
	tbl  *column.Table

	mu    sync.Mutex
	reads map[string]int
}

// NewTable wraps an in-memory table as a scan source.
func NewTable(name string, tbl *column.Table) *TableSource {
	return &TableSource{name: name, tbl: tbl, reads: make(map[string]int)}
}

// Name returns the source's display name.
func (s *TableSource) Name() string { return s.name }

// Schema returns the wrapped table's schema.
func (s *TableSource) Schema() *column.Schema { return s.tbl.Schema() }

// Read materializes the requested columns and rows. Only the columns a
// request needs (projection plus predicate inputs) count as read.
func (s *TableSource) Read(ctx context.Context, req *Request) (*column.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	need := readColumns(s.tbl.Schema(), req)
	s.mu.Lock()
	for _, name := range need {
		s.reads[name]++
	}
	s.mu.Unlock()

	narrowed, err := s.tbl.Select(need...)
	if err != nil {
		return nil, err
	}
	return apply(narrowed, req)
}

// ReadCount reports how many reads have materialized the named column.
func (s *TableSource) ReadCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[name]
}
