package monitor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/ahartikainen/fit-check-fit-loop/src/types"
)

// ErrUnknownVariable is returned when a tracked variable is missing from the diagnostic result.
var ErrUnknownVariable = errors.New("unknown variable")

// Aggregate selects the optional line summarising all variables.
type Aggregate int

const (
	AggregateNone Aggregate = iota
	AggregateMin
	AggregateMax
)

// ParseAggregate accepts "min", "max" and ""/"none".
func ParseAggregate(s string) (Aggregate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "min", "minimum":
		return AggregateMin, nil
	case "max", "maximum":
		return AggregateMax, nil
	case "", "none":
		return AggregateNone, nil
	}
	return AggregateNone, fmt.Errorf("unknown aggregate rule %q", s)
}

// PlotOptions configures CreatePlot.
type PlotOptions struct {
	Method    types.Method
	Variables []string
	// Limit draws a horizontal target line when set.
	Limit  *float64
	Legend bool
	Rule   Aggregate
	// Name labels the y axis when set.
	Name string
}

// CreatePlot computes diag on ds and starts one line per tracked variable (one per element
// for array variables), plus the optional aggregate and target lines. The returned
// registry is what UpdatePlot extends.
func CreatePlot(ds *types.Dataset, ax *Axes, diag types.Diagnostic, opts PlotOptions) (*Axes, Registry, error) {
	if ax == nil {
		ax = NewAxes("")
	}
	data, err := diag(ds, opts.Method)
	if err != nil {
		return ax, nil, err
	}
	n := float64(ds.SampleCount())

	lines := Registry{}
	for _, name := range opts.Variables {
		arr, ok := data[name]
		if !ok {
			return ax, lines, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
		}
		if arr.IsScalar() {
			line := ax.Plot(name, []float64{n}, []float64{arr.Data[0]}, ".")
			line.NoLegend = !opts.Legend
			lines[VariableKey(name)] = line
			continue
		}
		arr.Each(func(idx []int, v float64) {
			key := ElementKey(name, idx)
			line := ax.Plot(key.String(), []float64{n}, []float64{v}, ".")
			line.NoLegend = !opts.Legend
			lines[key] = line
		})
	}

	switch opts.Rule {
	case AggregateMin:
		line := ax.Plot("minimum", []float64{n}, []float64{data.ExtremeMin()}, "o")
		line.NoLegend = !opts.Legend
		lines[MinimumKey()] = line
	case AggregateMax:
		line := ax.Plot("maximum", []float64{n}, []float64{data.ExtremeMax()}, "o")
		line.NoLegend = !opts.Legend
		lines[MaximumKey()] = line
	}

	if opts.Limit != nil {
		line := ax.AxHLine(*opts.Limit, "target", 2, drawing.ColorBlack)
		line.NoLegend = !opts.Legend
		lines[LimitKey()] = line
	}

	if opts.Legend {
		ax.Legend(len(lines)/3 + 1)
	}
	if opts.Name != "" {
		ax.SetYLabel(opts.Name)
	}
	ax.Autoscale()
	ax.SetXLim(0, n*1.1)
	Debugf("[plot] created %d lines at n=%.0f", len(lines), n)
	return ax, lines, nil
}

// UpdatePlot recomputes diag on the grown dataset and appends (n, value) to every
// existing line of the requested variables and to the aggregate line. Variables
// without a line in the registry are ignored.
func UpdatePlot(ds *types.Dataset, ax *Axes, diag types.Diagnostic, method types.Method, lines Registry, variables []string) (*Axes, Registry, error) {
	if ax == nil {
		ax = NewAxes("")
	}
	if lines == nil {
		lines = Registry{}
	}
	data, err := diag(ds, method)
	if err != nil {
		return ax, lines, err
	}
	n := float64(ds.SampleCount())

	for _, name := range variables {
		if !lines.tracks(name) {
			continue
		}
		arr, ok := data[name]
		if !ok {
			return ax, lines, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
		}
		if arr.IsScalar() {
			if line, ok := lines[VariableKey(name)]; ok {
				line.Append(n, arr.Data[0])
			}
			continue
		}
		arr.Each(func(idx []int, v float64) {
			if line, ok := lines[ElementKey(name, idx)]; ok {
				line.Append(n, v)
			}
		})
	}

	if line, ok := lines[MinimumKey()]; ok {
		line.Append(n, data.ExtremeMin())
	} else if line, ok := lines[MaximumKey()]; ok {
		line.Append(n, data.ExtremeMax())
	}

	ax.Autoscale()
	ax.SetXLim(0, n*1.1)
	return ax, lines, nil
}

// tracks reports whether any line belongs to the named variable.
func (r Registry) tracks(name string) bool {
	if _, ok := r[VariableKey(name)]; ok {
		return true
	}
	for k := range r {
		if k.Kind == KindElement && k.Name == name {
			return true
		}
	}
	return false
}
