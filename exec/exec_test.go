package exec

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vegasq/lazyframe/column"
	"github.com/vegasq/lazyframe/expr"
	"github.com/vegasq/lazyframe/optimize"
	"github.com/vegasq/lazyframe/plan"
	"github.com/vegasq/lazyframe/scan"
)

func carsSource(t *testing.T) *scan.TableSource {
	t.Helper()
	tbl, err := column.NewTable(
		column.NewString("model", []string{"Mazda RX4", "Datsun 710", "Valiant", "Hornet 4 Drive", "Duster 360"}, nil),
		column.NewInt64("cyl", []int64{6, 4, 6, 6, 8}, nil),
		column.NewInt64("hp", []int64{110, 93, 105, 110, 245}, nil),
		column.NewFloat64("wt", []float64{2.62, 2.32, 3.46, 3.215, 3.57}, nil),
	)
	if err != nil {
		t.Fatal(err)
	}
	return scan.NewTable("cars", tbl)
}

func ownersSource(t *testing.T) *scan.TableSource {
	t.Helper()
	tbl, err := column.NewTable(
		column.NewString("model", []string{"Mazda RX4", "Valiant", "Valiant", "Ghost"}, nil),
		column.NewString("owner", []string{"ana", "bo", "cy", "dee"}, nil),
	)
	if err != nil {
		t.Fatal(err)
	}
	return scan.NewTable("owners", tbl)
}

func collect(t *testing.T, p *plan.Plan) *column.Table {
	t.Helper()
	if err := p.Err(); err != nil {
		t.Fatal(err)
	}
	tbl, err := Run(context.Background(), optimize.Optimize(p.Node()), Options{})
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestFilterGroupBySum(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		Filter(expr.Col("cyl").Eq(expr.Lit(6))).
		GroupBy(expr.Col("cyl")).
		Agg(expr.Col("hp").Sum(), expr.Col("hp").Count())
	tbl := collect(t, p)

	if tbl.NumRows() != 1 {
		t.Fatalf("got %d rows, want 1", tbl.NumRows())
	}
	row := tbl.Row(0)
	if row["cyl"] != int64(6) || row["hp_sum"] != int64(325) || row["hp_count"] != int64(3) {
		t.Errorf("row = %v, want cyl=6 hp_sum=325 hp_count=3", row)
	}
}

func TestGroupByFirstSeenOrder(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		GroupBy(expr.Col("cyl")).
		Agg(expr.Col("hp").Max())
	tbl := collect(t, p)

	cyl, _ := tbl.Column("cyl")
	want := []int64{6, 4, 8}
	if cyl.Len() != len(want) {
		t.Fatalf("got %d groups, want %d", cyl.Len(), len(want))
	}
	for i, w := range want {
		if cyl.Int64At(i) != w {
			t.Errorf("group %d key = %d, want %d", i, cyl.Int64At(i), w)
		}
	}
}

func TestSelectColumnOrderIsDeclarationOrder(t *testing.T) {
	p := plan.Scan(carsSource(t)).Select(
		expr.Col("wt"),
		expr.Col("hp").Div(expr.Col("wt")).Alias("ratio"),
		expr.Col("model"),
		expr.Col("hp").Mul(expr.Lit(2)).Alias("hp2"),
	)
	tbl := collect(t, p)
	want := []string{"wt", "ratio", "model", "hp2"}
	names := tbl.Schema().Names()
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("columns = %v, want %v", names, want)
		}
	}
}

func TestWithColumnsReplacesInPlace(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		WithColumns(expr.Col("hp").Cast(column.Float64))
	tbl := collect(t, p)

	hp, _ := tbl.Column("hp")
	if hp.Type() != column.Float64 {
		t.Errorf("hp type = %s, want float64", hp.Type())
	}
	if names := tbl.Schema().Names(); names[2] != "hp" {
		t.Errorf("hp moved to position %v", names)
	}
}

func TestInnerJoin(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		Join(plan.Scan(ownersSource(t)), []string{"model"}, []string{"model"}, plan.JoinInner)
	tbl := collect(t, p)

	// Mazda RX4 matches once, Valiant matches twice.
	if tbl.NumRows() != 3 {
		t.Fatalf("got %d rows, want 3", tbl.NumRows())
	}
	owner, _ := tbl.Column("owner")
	if owner.NullCount() != 0 {
		t.Errorf("inner join produced %d null owners", owner.NullCount())
	}
}

func TestLeftJoinPadsNulls(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		Join(plan.Scan(ownersSource(t)), []string{"model"}, []string{"model"}, plan.JoinLeft)
	tbl := collect(t, p)

	// 5 left rows; Valiant expands to 2 matches, so 6 output rows, 3 of
	// them with no owner.
	if tbl.NumRows() != 6 {
		t.Fatalf("got %d rows, want 6", tbl.NumRows())
	}
	owner, _ := tbl.Column("owner")
	if owner.NullCount() != 3 {
		t.Errorf("got %d null owners, want 3", owner.NullCount())
	}
}

func TestOuterJoinCoalescesKeys(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		Join(plan.Scan(ownersSource(t)), []string{"model"}, []string{"model"}, plan.JoinOuter)
	tbl := collect(t, p)

	// Left-join rows plus the unmatched right row for Ghost.
	if tbl.NumRows() != 7 {
		t.Fatalf("got %d rows, want 7", tbl.NumRows())
	}
	model, _ := tbl.Column("model")
	if model.NullCount() != 0 {
		t.Errorf("outer join left %d key values null", model.NullCount())
	}
	last := tbl.Row(tbl.NumRows() - 1)
	if last["model"] != "Ghost" || last["owner"] != "dee" {
		t.Errorf("trailing right-only row = %v", last)
	}
	if _, ok := last["hp"].(int64); ok {
		t.Errorf("right-only row carries a left hp value: %v", last["hp"])
	}
}

func TestNullKeysNeverMatch(t *testing.T) {
	ltbl, err := column.NewTable(
		column.NewInt64("k", []int64{1, 0, 2}, []bool{true, false, true}),
		column.NewString("lv", []string{"a", "b", "c"}, nil),
	)
	if err != nil {
		t.Fatal(err)
	}
	rtbl, err := column.NewTable(
		column.NewInt64("k", []int64{1, 0}, []bool{true, false}),
		column.NewString("rv", []string{"x", "y"}, nil),
	)
	if err != nil {
		t.Fatal(err)
	}

	p := plan.Scan(scan.NewTable("l", ltbl)).
		Join(plan.Scan(scan.NewTable("r", rtbl)), []string{"k"}, []string{"k"}, plan.JoinInner)
	tbl := collect(t, p)
	if tbl.NumRows() != 1 {
		t.Fatalf("got %d rows, want 1 (null keys matched)", tbl.NumRows())
	}
	if row := tbl.Row(0); row["lv"] != "a" || row["rv"] != "x" {
		t.Errorf("row = %v, want lv=a rv=x", row)
	}
}

func TestSortStableWithNullsLast(t *testing.T) {
	tbl, err := column.NewTable(
		column.NewInt64("k", []int64{2, 0, 1, 2, 1}, []bool{true, false, true, true, true}),
		column.NewString("tag", []string{"a", "b", "c", "d", "e"}, nil),
	)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("ascending", func(t *testing.T) {
		p := plan.Scan(scan.NewTable("t", tbl)).Sort(plan.SortKey{Column: "k"})
		out := collect(t, p)
		tags, _ := out.Column("tag")
		want := []string{"c", "e", "a", "d", "b"}
		for i, w := range want {
			if tags.StringAt(i) != w {
				t.Fatalf("order = %v-th %q, want %q", i, tags.StringAt(i), w)
			}
		}
	})
	t.Run("descending keeps nulls last", func(t *testing.T) {
		p := plan.Scan(scan.NewTable("t", tbl)).Sort(plan.SortKey{Column: "k", Desc: true})
		out := collect(t, p)
		tags, _ := out.Column("tag")
		want := []string{"a", "d", "c", "e", "b"}
		for i, w := range want {
			if tags.StringAt(i) != w {
				t.Fatalf("order = %v-th %q, want %q", i, tags.StringAt(i), w)
			}
		}
	})
}

func TestLimitClampsToLength(t *testing.T) {
	p := plan.Scan(carsSource(t)).Limit(100)
	if got := collect(t, p).NumRows(); got != 5 {
		t.Errorf("got %d rows, want 5", got)
	}
	p = plan.Scan(carsSource(t)).Limit(2)
	if got := collect(t, p).NumRows(); got != 2 {
		t.Errorf("got %d rows, want 2", got)
	}
}

func TestContextCancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := plan.Scan(carsSource(t)).Filter(expr.Col("cyl").Eq(expr.Lit(6)))
	_, err := Run(ctx, p.Node(), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestOperatorNamedInError(t *testing.T) {
	fail := expr.Col("hp").Map("boom", func(c *column.Column) (*column.Column, error) {
		return nil, errors.New("callback exploded")
	}, column.Int64)
	p := plan.Scan(carsSource(t)).Select(fail)
	_, err := Run(context.Background(), p.Node(), Options{})
	if err == nil {
		t.Fatal("failing callback did not abort the query")
	}
	if !strings.Contains(err.Error(), "SELECT") || !strings.Contains(err.Error(), "callback exploded") {
		t.Errorf("error %q does not name the failing operator and cause", err)
	}
}

func TestOptimizedPlanEquivalence(t *testing.T) {
	build := func() []*plan.Plan {
		cars := plan.Scan(carsSource(t))
		owners := plan.Scan(ownersSource(t))
		ratio := expr.Col("hp").Div(expr.Col("wt"))
		return []*plan.Plan{
			plan.Scan(carsSource(t)).
				Filter(expr.Col("cyl").Eq(expr.Lit(6))).
				Select(ratio.Alias("r"), ratio.Mul(expr.Lit(2)).Alias("r2")),
			plan.Scan(carsSource(t)).
				GroupBy(expr.Col("cyl")).Agg(expr.Col("hp").Sum(), expr.Col("wt").Mean()).
				Sort(plan.SortKey{Column: "cyl"}).
				Limit(2),
			cars.Join(owners, []string{"model"}, []string{"model"}, plan.JoinLeft).
				Filter(expr.Col("hp").Gt(expr.Lit(100))),
			plan.Scan(carsSource(t)).
				WithColumns(expr.Col("hp").Sum().Over("cyl").Alias("cyl_hp")).
				Select(expr.Col("model"), expr.Col("cyl_hp")),
		}
	}
	for i, p := range build() {
		if err := p.Err(); err != nil {
			t.Fatalf("plan %d: %v", i, err)
		}
		plain, err := Run(context.Background(), p.Node(), Options{Parallelism: 1})
		if err != nil {
			t.Fatalf("plan %d unoptimized: %v", i, err)
		}
		opt, err := Run(context.Background(), optimize.Optimize(p.Node()), Options{})
		if err != nil {
			t.Fatalf("plan %d optimized: %v", i, err)
		}
		if !plain.Equal(opt) {
			t.Errorf("plan %d: optimized result differs from unoptimized", i)
		}
	}
}

func TestProjectionPushdownSkipsUnusedColumns(t *testing.T) {
	src := carsSource(t)
	p := plan.Scan(src).Select(expr.Col("hp").Mul(expr.Lit(2)).Alias("hp2"))
	_ = collect(t, p)

	if got := src.ReadCount("model"); got != 0 {
		t.Errorf("model was read %d times despite projection pushdown", got)
	}
	if got := src.ReadCount("hp"); got != 1 {
		t.Errorf("hp was read %d times, want 1", got)
	}
}

func TestCSERunsCallbackOncePerRow(t *testing.T) {
	src := carsSource(t)
	calls := 0
	double := func(c *column.Column) (*column.Column, error) {
		calls++
		out := column.NewBuilder(c.Name(), column.Int64, c.Len())
		for i := 0; i < c.Len(); i++ {
			v, ok := c.Value(i)
			if !ok {
				out.AppendNull()
				continue
			}
			if err := out.Append(v.(int64) * 2); err != nil {
				return nil, err
			}
		}
		return out.Finish(), nil
	}

	mapped := expr.Col("hp").Map("double_hp", double, column.Int64)
	p := plan.Scan(src).Select(
		mapped.Alias("a"),
		mapped.Add(expr.Lit(1)).Alias("b"),
	)
	tbl := collect(t, p)

	if calls != 1 {
		t.Errorf("callback ran %d times, want 1 after deduplication", calls)
	}
	a, _ := tbl.Column("a")
	b, _ := tbl.Column("b")
	if a.Int64At(0) != 220 || b.Int64At(0) != 221 {
		t.Errorf("a[0]=%d b[0]=%d, want 220 and 221", a.Int64At(0), b.Int64At(0))
	}
}
