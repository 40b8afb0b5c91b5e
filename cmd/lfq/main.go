// Command lfq runs lazy queries against CSV and parquet files from the
// terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vegasq/lazyframe"
	"github.com/vegasq/lazyframe/expr"
	"github.com/vegasq/lazyframe/output"
)

var (
	columnsFlag = flag.String("columns", "", "Comma-separated columns to select (default: all)")
	whereFlag   = flag.String("where", "", "Filter as a single comparison (e.g. \"age > 30\")")
	sortFlag    = flag.String("sort", "", "Sort column, prefix with '-' for descending (e.g. \"-age\")")
	limitFlag   = flag.Int("limit", 0, "Limit number of rows (0 = unlimited)")
	formatFlag  = flag.String("format", "table", "Output format: json, jsonl, csv, table")
	explainFlag = flag.Bool("explain", false, "Print the optimized plan instead of running the query")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <file.csv | file.parquet | glob>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "A tool to query CSV and Parquet files with a lazy columnar engine.\n\n")
		fmt.Fprintf(os.Stderr, "IMPORTANT: All flags must come BEFORE the file argument.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s data.parquet\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -format csv -columns name,age data.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -where \"age > 30\" -limit 10 'events/*.parquet'\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -explain -where \"age > 30\" data.parquet\n", os.Args[0])
	}

	flag.Parse()

	if *limitFlag < 0 {
		fmt.Fprintf(os.Stderr, "Error: -limit must be non-negative, got %d\n", *limitFlag)
		os.Exit(1)
	}
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: missing file argument\n\n")
		flag.Usage()
		os.Exit(1)
	}
	path := flag.Arg(0)

	lf, err := open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error: file '%s' not found\n", path)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	lf, err = applyFlags(lf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *explainFlag {
		fmt.Print(lf.DescribeOptimized())
		return
	}

	formatter, err := output.New(*formatFlag, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tbl, err := lf.Collect(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := formatter.Format(tbl); err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
}

// open picks the scanner by extension. Anything that is not a .csv file,
// including glob patterns, goes to the parquet scanner.
func open(path string) (*lazyframe.LazyFrame, error) {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return lazyframe.ScanCSV(path)
	}
	return lazyframe.ScanParquetGlob(path)
}

func applyFlags(lf *lazyframe.LazyFrame) (*lazyframe.LazyFrame, error) {
	if *whereFlag != "" {
		pred, err := parseWhere(*whereFlag)
		if err != nil {
			return nil, err
		}
		lf = lf.Filter(pred)
	}
	if *columnsFlag != "" {
		var exprs []*expr.Expr
		for _, name := range strings.Split(*columnsFlag, ",") {
			exprs = append(exprs, lazyframe.Col(strings.TrimSpace(name)))
		}
		lf = lf.Select(exprs...)
	}
	if *sortFlag != "" {
		key := lazyframe.SortKey{Column: *sortFlag}
		if strings.HasPrefix(*sortFlag, "-") {
			key = lazyframe.SortKey{Column: (*sortFlag)[1:], Desc: true}
		}
		lf = lf.Sort(key)
	}
	if *limitFlag > 0 {
		lf = lf.Limit(*limitFlag)
	}
	return lf, nil
}

// parseWhere turns a "column op value" comparison into a predicate. The
// value is typed by what it parses as: integer, then float, then bool,
// then a (possibly quoted) string.
func parseWhere(s string) (*expr.Expr, error) {
	ops := []string{"==", "!=", "<=", ">=", "<", ">", "="}
	for _, op := range ops {
		i := strings.Index(s, op)
		if i < 0 {
			continue
		}
		col := strings.TrimSpace(s[:i])
		raw := strings.TrimSpace(s[i+len(op):])
		if col == "" || raw == "" {
			return nil, fmt.Errorf("invalid -where %q: want \"column %s value\"", s, op)
		}
		lhs := lazyframe.Col(col)
		rhs := lazyframe.Lit(parseLiteral(raw))
		switch op {
		case "==", "=":
			return lhs.Eq(rhs), nil
		case "!=":
			return lhs.Ne(rhs), nil
		case "<":
			return lhs.Lt(rhs), nil
		case "<=":
			return lhs.Le(rhs), nil
		case ">":
			return lhs.Gt(rhs), nil
		default:
			return lhs.Ge(rhs), nil
		}
	}
	return nil, fmt.Errorf("invalid -where %q: no comparison operator found", s)
}

func parseLiteral(raw string) interface{} {
	if len(raw) >= 2 {
		if (raw[0] == '\'' && raw[len(raw)-1] == '\'') || (raw[0] == '"' && raw[len(raw)-1] == '"') {
			return raw[1 : len(raw)-1]
		}
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v
	}
	return raw
}
