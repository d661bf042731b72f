package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ahartikainen/fit-check-fit-loop/src/analysis"
	"github.com/ahartikainen/fit-check-fit-loop/src/types"
)

type column struct {
	header string
	diag   types.Diagnostic
	method types.Method
}

func columns(prob float64) []column {
	return []column{
		{"ess_bulk", analysis.ESS, types.Method{Name: "bulk"}},
		{"ess_tail", analysis.ESS, types.Method{Name: "tail"}},
		{"rhat", analysis.RHat, types.Method{Name: "rank"}},
		{"mcse_mean", analysis.MCSE, types.Method{Name: "mean"}},
		{"mcse_sd", analysis.MCSE, types.Method{Name: "sd"}},
		{fmt.Sprintf("mcse_q%g", prob), analysis.MCSE, types.Method{Name: "quantile", Prob: prob}},
	}
}

// summarize prints one row per variable element with every diagnostic column.
func summarize(ds *types.Dataset, vars []string, prob float64) (string, error) {
	cols := columns(prob)
	results := make([]types.Result, len(cols))
	for i, c := range cols {
		r, err := c.diag(ds, c.method)
		if err != nil {
			return "", fmt.Errorf("%s: %w", c.header, err)
		}
		results[i] = r
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Chains: %d  Draws: %d  Samples: %d\n", ds.Chains(), ds.Draws(), ds.SampleCount())
	fmt.Fprintf(&b, "%-20s", "variable")
	for _, c := range cols {
		fmt.Fprintf(&b, " %12s", c.header)
	}
	b.WriteString("\n")
	for _, name := range vars {
		first, ok := results[0][name]
		if !ok {
			return "", fmt.Errorf("unknown variable %q", name)
		}
		for i := range first.Data {
			label := name
			if !first.IsScalar() {
				label += types.FormatIndex(first.Index(i))
			}
			fmt.Fprintf(&b, "%-20s", label)
			for _, r := range results {
				fmt.Fprintf(&b, " %12.4g", r[name].Data[i])
			}
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// splitVars parses a comma separated list, trimming entries and dropping empty ones.
func splitVars(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func main() {
	var file string
	var vars string
	var prob float64
	flag.StringVar(&file, "file", "draws.jsonl", "Path to JSONL posterior draws")
	flag.StringVar(&vars, "vars", "", "Comma separated variables (default all)")
	flag.Float64Var(&prob, "prob", 0.5, "Quantile for the mcse quantile column")
	flag.Parse()
	ds, err := analysis.LoadDraws(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	names := ds.VarNames()
	if list := splitVars(vars); len(list) > 0 {
		names = list
	}
	out, err := summarize(ds, names, prob)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(out)
}
