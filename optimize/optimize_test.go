package optimize

import (
	"strings"
	"testing"

	"github.com/vegasq/lazyframe/column"
	"github.com/vegasq/lazyframe/expr"
	"github.com/vegasq/lazyframe/plan"
	"github.com/vegasq/lazyframe/scan"
)

func carsSource(t *testing.T) *scan.TableSource {
	t.Helper()
	tbl, err := column.NewTable(
		column.NewString("model", []string{"Mazda RX4", "Datsun 710", "Valiant"}, nil),
		column.NewInt64("cyl", []int64{6, 4, 6}, nil),
		column.NewInt64("hp", []int64{110, 93, 105}, nil),
		column.NewFloat64("wt", []float64{2.62, 2.32, 3.46}, nil),
	)
	if err != nil {
		t.Fatal(err)
	}
	return scan.NewTable("cars", tbl)
}

func ownersSource(t *testing.T) *scan.TableSource {
	t.Helper()
	tbl, err := column.NewTable(
		column.NewString("model", []string{"Mazda RX4", "Valiant"}, nil),
		column.NewString("owner", []string{"ana", "bo"}, nil),
	)
	if err != nil {
		t.Fatal(err)
	}
	return scan.NewTable("owners", tbl)
}

func mustSchema(t *testing.T, n *plan.Node) *column.Schema {
	t.Helper()
	s, err := n.Schema()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPredicatePushdownMergesIntoScan(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		Filter(expr.Col("cyl").Eq(expr.Lit(6))).
		Filter(expr.Col("hp").Gt(expr.Lit(100)))
	opt := Optimize(p.Node())

	if opt.Kind != plan.KindScan {
		t.Fatalf("root after pushdown is %s, want SCAN", opt.Kind)
	}
	if opt.Predicate == nil {
		t.Fatal("scan has no predicate hint")
	}
	s := opt.Predicate.String()
	if !strings.Contains(s, "cyl") || !strings.Contains(s, "hp") {
		t.Errorf("scan predicate %s does not combine both conjuncts", s)
	}
}

func TestConjunctionSplits(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		Filter(expr.Col("cyl").Eq(expr.Lit(6)).And(expr.Col("hp").Gt(expr.Lit(100))))
	opt := Optimize(p.Node())
	if opt.Kind != plan.KindScan || opt.Predicate == nil {
		t.Fatalf("and-chain did not merge into the scan: %s", plan.FromNode(opt).Describe())
	}
}

func TestPredicateStopsAtGroupBy(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		GroupBy(expr.Col("cyl")).Agg(expr.Col("hp").Sum()).
		Filter(expr.Col("hp_sum").Gt(expr.Lit(200)))
	opt := Optimize(p.Node())

	if opt.Kind != plan.KindFilter {
		t.Fatalf("root is %s, want FILTER above GROUP_BY", opt.Kind)
	}
	if opt.Input.Kind != plan.KindGroupBy {
		t.Fatalf("filter input is %s, want GROUP_BY", opt.Input.Kind)
	}
}

func TestPredicateStopsAtLimit(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		Limit(2).
		Filter(expr.Col("cyl").Eq(expr.Lit(6)))
	opt := Optimize(p.Node())
	if opt.Kind != plan.KindFilter || opt.Input.Kind != plan.KindLimit {
		t.Fatalf("filter crossed the limit:\n%s", plan.FromNode(opt).Describe())
	}
}

func TestPredicateBlockedByRename(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		Select(expr.Col("hp").Alias("power"), expr.Col("model")).
		Filter(expr.Col("power").Gt(expr.Lit(100)))
	opt := Optimize(p.Node())
	if opt.Kind != plan.KindFilter || opt.Input.Kind != plan.KindSelect {
		t.Fatalf("filter descended through a renaming select:\n%s", plan.FromNode(opt).Describe())
	}
}

func TestPredicateDescendsThroughPassthroughSelect(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		Select(expr.Col("hp"), expr.Col("model")).
		Filter(expr.Col("hp").Gt(expr.Lit(100)))
	opt := Optimize(p.Node())
	if opt.Kind != plan.KindSelect {
		t.Fatalf("root is %s, want SELECT with filter below:\n%s", opt.Kind, plan.FromNode(opt).Describe())
	}
	if opt.Input.Kind != plan.KindScan || opt.Input.Predicate == nil {
		t.Fatalf("conjunct did not reach the scan:\n%s", plan.FromNode(opt).Describe())
	}
}

func TestPredicateSplitsAcrossJoin(t *testing.T) {
	cars := plan.Scan(carsSource(t))
	owners := plan.Scan(ownersSource(t))
	p := cars.Join(owners, []string{"model"}, []string{"model"}, plan.JoinInner).
		Filter(expr.Col("hp").Gt(expr.Lit(100)).And(expr.Col("owner").Eq(expr.Lit("ana"))))
	opt := Optimize(p.Node())

	if opt.Kind != plan.KindJoin {
		t.Fatalf("root is %s, want JOIN:\n%s", opt.Kind, plan.FromNode(opt).Describe())
	}
	if opt.Input.Kind != plan.KindScan || opt.Input.Predicate == nil {
		t.Errorf("left conjunct did not reach the left scan")
	}
	if opt.Right.Kind != plan.KindScan || opt.Right.Predicate == nil {
		t.Errorf("right conjunct did not reach the right scan")
	}
}

func TestLeftJoinBlocksRightPush(t *testing.T) {
	cars := plan.Scan(carsSource(t))
	owners := plan.Scan(ownersSource(t))
	p := cars.Join(owners, []string{"model"}, []string{"model"}, plan.JoinLeft).
		Filter(expr.Col("owner").Eq(expr.Lit("ana")))
	opt := Optimize(p.Node())

	if opt.Kind != plan.KindFilter || opt.Input.Kind != plan.KindJoin {
		t.Fatalf("right-side conjunct crossed a left join:\n%s", plan.FromNode(opt).Describe())
	}
	if opt.Input.Right.Predicate != nil {
		t.Error("right scan received a predicate under a left join")
	}
}

func TestProjectionPushdownNarrowsScan(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		Filter(expr.Col("cyl").Eq(expr.Lit(6))).
		Select(expr.Col("hp").Mul(expr.Lit(2)).Alias("hp2"))
	opt := Optimize(p.Node())

	scanNode := opt
	for scanNode.Kind != plan.KindScan {
		scanNode = scanNode.Input
	}
	if scanNode.Projection == nil {
		t.Fatal("scan has no projection hint")
	}
	got := strings.Join(scanNode.Projection, ",")
	if got != "hp" {
		t.Errorf("scan projection = [%s], want [hp]", got)
	}
}

func TestProjectionRootKeepsAllColumns(t *testing.T) {
	p := plan.Scan(carsSource(t)).Filter(expr.Col("cyl").Eq(expr.Lit(6)))
	opt := Optimize(p.Node())
	scanNode := opt
	for scanNode.Kind != plan.KindScan {
		scanNode = scanNode.Input
	}
	if scanNode.Projection != nil {
		t.Errorf("scan projection = %v, want none when the root needs every column", scanNode.Projection)
	}
}

func TestProjectionCoversGroupByInputs(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		GroupBy(expr.Col("cyl")).Agg(expr.Col("hp").Sum())
	opt := Optimize(p.Node())
	scanNode := opt
	for scanNode.Kind != plan.KindScan {
		scanNode = scanNode.Input
	}
	got := strings.Join(scanNode.Projection, ",")
	if got != "cyl,hp" {
		t.Errorf("scan projection = [%s], want [cyl,hp]", got)
	}
}

func TestCSEHoistsRepeatedSubexpression(t *testing.T) {
	ratio := expr.Col("hp").Div(expr.Col("wt"))
	p := plan.Scan(carsSource(t)).Select(
		ratio.Alias("ratio"),
		ratio.Mul(expr.Lit(2)).Alias("double_ratio"),
	)
	before := mustSchema(t, p.Node())
	opt := Optimize(p.Node())

	if opt.Kind != plan.KindSelect {
		t.Fatalf("root is %s, want SELECT", opt.Kind)
	}
	if opt.Input.Kind != plan.KindWithColumns {
		t.Fatalf("no hoisted with-columns below the select:\n%s", plan.FromNode(opt).Describe())
	}
	hoisted := opt.Input.Exprs
	if len(hoisted) != 1 {
		t.Fatalf("hoisted %d expressions, want 1", len(hoisted))
	}
	if !strings.HasPrefix(hoisted[0].OutputName(), "_cse_") {
		t.Errorf("hoisted column %q has no generated name", hoisted[0].OutputName())
	}
	if !before.Equal(mustSchema(t, opt)) {
		t.Errorf("CSE changed the output schema: %s vs %s", before, mustSchema(t, opt))
	}
}

func TestCSESkipsSingleUse(t *testing.T) {
	p := plan.Scan(carsSource(t)).Select(
		expr.Col("hp").Div(expr.Col("wt")).Alias("ratio"),
		expr.Col("model"),
	)
	opt := Optimize(p.Node())
	if opt.Input.Kind == plan.KindWithColumns {
		t.Fatalf("single-use subexpression was hoisted:\n%s", plan.FromNode(opt).Describe())
	}
}

func TestOptimizeIdempotent(t *testing.T) {
	ratio := expr.Col("hp").Div(expr.Col("wt"))
	plans := []*plan.Plan{
		plan.Scan(carsSource(t)).
			Filter(expr.Col("cyl").Eq(expr.Lit(6))).
			Select(ratio.Alias("r"), ratio.Mul(expr.Lit(2)).Alias("r2")),
		plan.Scan(carsSource(t)).
			GroupBy(expr.Col("cyl")).Agg(expr.Col("hp").Sum()).
			Filter(expr.Col("hp_sum").Gt(expr.Lit(200))).
			Sort(plan.SortKey{Column: "cyl"}).
			Limit(1),
		plan.Scan(carsSource(t)).
			Join(plan.Scan(ownersSource(t)), []string{"model"}, []string{"model"}, plan.JoinLeft).
			Filter(expr.Col("hp").Gt(expr.Lit(100))),
	}
	for i, p := range plans {
		once := Optimize(p.Node())
		twice := Optimize(once)
		if !plan.StructurallyEqual(once, twice) {
			t.Errorf("plan %d: second optimize rewrote an optimized tree:\n%s\nvs\n%s",
				i, plan.FromNode(once).Describe(), plan.FromNode(twice).Describe())
		}
	}
}

func TestOptimizePreservesSchema(t *testing.T) {
	p := plan.Scan(carsSource(t)).
		Filter(expr.Col("cyl").Eq(expr.Lit(6))).
		WithColumns(expr.Col("hp").Cast(column.Float64)).
		Select(expr.Col("model"), expr.Col("hp"))
	before := mustSchema(t, p.Node())
	after := mustSchema(t, Optimize(p.Node()))
	if !before.Equal(after) {
		t.Errorf("schema changed: %s vs %s", before, after)
	}
}
