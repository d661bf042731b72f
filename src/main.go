// fit-check-fit-loop replays a posterior draws file in growing windows and tracks convergence.
//
// Each iteration takes the first k draws of every chain (k = start, start+step, ...),
// checks the configured limits (ess > limit, rhat < limit, mcse < limit) and extends
// one progress chart per panel. The loop stops at the first window that satisfies
// every limit or when the file is exhausted. Charts and a JSON report are written
// to the output directory.
//
// Design notes:
//   - Limits come from an optional JSONC file (full-line // comments, null disables a
//     check) and are overridden by -ess/-rhat/-mcse; "none" disables from the flag.
//   - Panels are "diag:method:rule[:prob]" entries, e.g. "ess:bulk:min,rhat::max,mcse:quantile:max:0.9".
//   - -format chart renders PNG with go-chart; png/svg/pdf go through gonum/plot.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/plot/vg"

	"github.com/ahartikainen/fit-check-fit-loop/src/analysis"
	"github.com/ahartikainen/fit-check-fit-loop/src/monitor"
	"github.com/ahartikainen/fit-check-fit-loop/src/types"
)

const defaultPanels = "ess:bulk:min,ess:tail:min,rhat:rank:max,mcse:mean:max"

// StripJSONC loads a JSONC file (full-line // comments) and returns raw JSON bytes suitable for unmarshalling.
func StripJSONC(filename string) ([]byte, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}
		// Inline // is kept; only full-line comments are supported.
		out = append(out, []byte(line+"\n")...)
	}
	return out, scanner.Err()
}

// loadLimits reads a JSONC limits file. Keys that are absent keep their default;
// explicit nulls disable the check.
func loadLimits(path string, base types.Limits) (types.Limits, error) {
	b, err := StripJSONC(path)
	if err != nil {
		return base, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return base, fmt.Errorf("parse %s: %w", path, err)
	}
	out := base
	for key, dst := range map[string]**float64{"ess": &out.ESS, "rhat": &out.RHat, "mcse": &out.MCSE} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var f *float64
		if err := json.Unmarshal(v, &f); err != nil {
			return base, fmt.Errorf("parse %s: %s: %w", path, key, err)
		}
		if f != nil && !isFinite(*f) {
			return base, fmt.Errorf("parse %s: %s: limit must be finite, got %v", path, key, *f)
		}
		*dst = f
	}
	return out, nil
}

// applyLimitFlag overrides *dst from a flag value: "" keeps it, "none" disables it.
func applyLimitFlag(dst **float64, name, value string) error {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "":
		return nil
	case "none", "null":
		*dst = nil
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("-%s: %w", name, err)
	}
	if !isFinite(f) {
		return fmt.Errorf("-%s: limit must be finite, got %v", name, f)
	}
	*dst = types.Float(f)
	return nil
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// panel is one progress chart and the registry of lines drawn into it.
type panel struct {
	name   string
	diag   types.Diagnostic
	method types.Method
	rule   monitor.Aggregate
	limit  *float64
	ax     *monitor.Axes
	lines  monitor.Registry
}

func parsePanels(list string, limits types.Limits) ([]*panel, error) {
	var out []*panel
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) > 4 {
			return nil, fmt.Errorf("panel %q: want diag:method:rule[:prob]", item)
		}
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		diagName := strings.ToLower(parts[0])
		diag, ok := analysis.ByName(diagName)
		if !ok {
			return nil, fmt.Errorf("panel %q: unknown diagnostic %q", item, parts[0])
		}
		rule, err := monitor.ParseAggregate(parts[2])
		if err != nil {
			return nil, fmt.Errorf("panel %q: %w", item, err)
		}
		p := &panel{diag: diag, method: types.Method{Name: parts[1]}, rule: rule}
		if parts[3] != "" {
			if p.method.Prob, err = strconv.ParseFloat(parts[3], 64); err != nil {
				return nil, fmt.Errorf("panel %q: prob: %w", item, err)
			}
		}
		if p.method.Name == "quantile" && !(p.method.Prob > 0 && p.method.Prob < 1) {
			return nil, fmt.Errorf("panel %q: %w", item, analysis.ErrInvalidProb)
		}
		switch diagName {
		case "ess":
			p.limit = limits.ESS
		case "rhat":
			p.limit = limits.RHat
		case "mcse":
			p.limit = limits.MCSE
		}
		p.name = diagName
		if parts[1] != "" {
			p.name += "_" + parts[1]
		}
		if parts[3] != "" {
			p.name += "_" + parts[3]
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, errors.New("no panels configured")
	}
	return out, nil
}

type iterationSummary struct {
	DrawsPerChain int                `json:"draws_per_chain"`
	SampleCount   int                `json:"sample_count"`
	Converged     bool               `json:"converged"`
	Aggregates    map[string]float64 `json:"aggregates,omitempty"`
}

type convergenceReport struct {
	GeneratedAt   string             `json:"generated_at"`
	DrawsFile     string             `json:"draws_file"`
	Converged     bool               `json:"converged"`
	SampleCount   int                `json:"sample_count"`
	Chains        int                `json:"chains"`
	DrawsPerChain int                `json:"draws_per_chain"`
	Variables     []string           `json:"variables"`
	Limits        types.Limits       `json:"limits"`
	Iterations    []iterationSummary `json:"iterations"`
	Charts        []string           `json:"charts"`
}

type config struct {
	drawsPath  string
	limitsPath string
	ess, rhat  string
	mcse       string
	start      int
	step       int
	vars       string
	panels     string
	outDir     string
	format     string
	reportPath string
	width      int
	height     int
	legend     bool
}

// lastAggregate returns the newest value of the panel's min/max line, if any.
func (p *panel) lastAggregate() (float64, bool) {
	l, ok := p.lines[monitor.MinimumKey()]
	if !ok {
		l, ok = p.lines[monitor.MaximumKey()]
	}
	if !ok || len(l.Y) == 0 {
		return 0, false
	}
	v := l.Y[len(l.Y)-1]
	if !isFinite(v) {
		return 0, false
	}
	return v, true
}

func run(cfg config) (*convergenceReport, error) {
	limits := types.DefaultLimits()
	if cfg.limitsPath != "" {
		var err error
		if limits, err = loadLimits(cfg.limitsPath, limits); err != nil {
			return nil, err
		}
	}
	for _, f := range []struct {
		dst   **float64
		name  string
		value string
	}{{&limits.ESS, "ess", cfg.ess}, {&limits.RHat, "rhat", cfg.rhat}, {&limits.MCSE, "mcse", cfg.mcse}} {
		if err := applyLimitFlag(f.dst, f.name, f.value); err != nil {
			return nil, err
		}
	}
	panels, err := parsePanels(cfg.panels, limits)
	if err != nil {
		return nil, err
	}

	ds, err := analysis.LoadDraws(cfg.drawsPath)
	if err != nil {
		return nil, err
	}
	vars := ds.VarNames()
	if strings.TrimSpace(cfg.vars) != "" {
		vars = nil
		for _, v := range strings.Split(cfg.vars, ",") {
			if v = strings.TrimSpace(v); v != "" {
				vars = append(vars, v)
			}
		}
	}
	start, step := cfg.start, cfg.step
	if start < 1 {
		start = 1
	}
	if step < 1 {
		step = ds.Draws()
	}
	monitor.Infof("[loop] %s: chains=%d draws=%d variables=%s start=%d step=%d", cfg.drawsPath, ds.Chains(), ds.Draws(), strings.Join(vars, ","), start, step)

	rep := &convergenceReport{
		DrawsFile: cfg.drawsPath,
		Chains:    ds.Chains(),
		Variables: vars,
		Limits:    limits,
	}
	for k := start; ; k += step {
		if k > ds.Draws() {
			k = ds.Draws()
		}
		sub := ds.Head(k)
		converged, err := analysis.CheckLimits(sub, limits)
		if err != nil {
			return nil, fmt.Errorf("check at %d draws: %w", k, err)
		}
		it := iterationSummary{DrawsPerChain: k, SampleCount: sub.SampleCount(), Converged: converged, Aggregates: map[string]float64{}}
		for _, p := range panels {
			if p.lines == nil {
				p.ax, p.lines, err = monitor.CreatePlot(sub, monitor.NewAxes(p.name), p.diag, monitor.PlotOptions{
					Method:    p.method,
					Variables: vars,
					Limit:     p.limit,
					Legend:    cfg.legend,
					Rule:      p.rule,
					Name:      p.name,
				})
			} else {
				p.ax, p.lines, err = monitor.UpdatePlot(sub, p.ax, p.diag, p.method, p.lines, vars)
			}
			if err != nil {
				return nil, fmt.Errorf("%s at %d draws: %w", p.name, k, err)
			}
			if v, ok := p.lastAggregate(); ok {
				it.Aggregates[p.name] = v
			}
		}
		rep.Iterations = append(rep.Iterations, it)
		fmt.Printf("[loop] draws/chain=%d n=%d converged=%v\n", k, sub.SampleCount(), converged)
		if converged || k >= ds.Draws() {
			rep.Converged = converged
			rep.SampleCount = sub.SampleCount()
			rep.DrawsPerChain = k
			break
		}
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create out dir: %w", err)
	}
	caption := fmt.Sprintf("n=%d converged=%v", rep.SampleCount, rep.Converged)
	for _, p := range panels {
		var path string
		if cfg.format == "chart" {
			path = filepath.Join(cfg.outDir, p.name+".png")
			err = monitor.WritePNG(path, p.ax, cfg.width, cfg.height, caption)
		} else {
			path = filepath.Join(cfg.outDir, p.name+"."+cfg.format)
			err = monitor.SavePlot(path, p.ax, vg.Length(cfg.width)*vg.Inch/96, vg.Length(cfg.height)*vg.Inch/96)
		}
		if err != nil {
			return nil, err
		}
		rep.Charts = append(rep.Charts, path)
	}

	reportPath := cfg.reportPath
	if reportPath == "" {
		reportPath = filepath.Join(cfg.outDir, "convergence_report.json")
	}
	if err := writeReportJSON(reportPath, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func writeReportJSON(path string, rep *convergenceReport) error {
	rep.GeneratedAt = time.Now().UTC().Format(time.RFC3339Nano)
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("[report] wrote convergence report JSON: %s\n", path)
	return nil
}

func main() {
	var cfg config
	flag.StringVar(&cfg.drawsPath, "draws", "draws.jsonl", "Path to JSONL posterior draws ({\"chain\":0,\"draw\":0,\"values\":{...}} per line)")
	flag.StringVar(&cfg.limitsPath, "limits", "", "Optional JSONC limits file with ess/rhat/mcse keys (null disables)")
	flag.StringVar(&cfg.ess, "ess", "", "ESS lower limit (overrides file; 'none' disables). Default 500")
	flag.StringVar(&cfg.rhat, "rhat", "", "R-hat upper limit (overrides file; 'none' disables). Default 1.01")
	flag.StringVar(&cfg.mcse, "mcse", "", "MCSE upper limit (overrides file; 'none' disables). Default disabled")
	flag.IntVar(&cfg.start, "start", 100, "Draws per chain in the first window")
	flag.IntVar(&cfg.step, "step", 100, "Draws per chain added each iteration")
	flag.StringVar(&cfg.vars, "vars", "", "Comma separated variables to plot (default all)")
	flag.StringVar(&cfg.panels, "panels", defaultPanels, "Comma separated diag:method:rule[:prob] panels (rule min|max|none; prob for quantile)")
	flag.StringVar(&cfg.outDir, "out", "convergence", "Output directory for charts and report")
	flag.StringVar(&cfg.format, "format", "chart", "Chart format: chart (go-chart PNG) or png|svg|pdf (gonum/plot)")
	flag.StringVar(&cfg.reportPath, "report", "", "Report JSON path (default <out>/convergence_report.json)")
	flag.IntVar(&cfg.width, "width", monitor.ChartWidth, "Chart width in pixels")
	flag.IntVar(&cfg.height, "height", monitor.ChartHeight, "Chart height in pixels")
	flag.BoolVar(&cfg.legend, "legend", true, "Attach a legend to every chart")
	logLevel := flag.String("log-level", "info", "Log level (debug|info|warn|error)")
	quiet := flag.Bool("quiet", false, "Discard log output (loop and report lines are still printed)")
	flag.Parse()

	if !monitor.SetLogLevel(*logLevel) {
		fmt.Fprintf(os.Stderr, "unknown log level %q\n", *logLevel)
		os.Exit(2)
	}
	if *quiet {
		monitor.SetLogOutput(io.Discard)
	}
	rep, err := run(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if !rep.Converged {
		// distinct exit code so scripts can ask for more samples
		os.Exit(3)
	}
}
