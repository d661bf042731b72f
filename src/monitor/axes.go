package monitor

import (
	"math"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Line is one plotted series. Horizontal lines span the whole x range at Level
// and carry no coordinates of their own.
type Line struct {
	Label      string
	X, Y       []float64
	Marker     string // "." small dot, "o" large dot
	Width      float64
	Color      drawing.Color // zero value picks from the palette
	NoLegend   bool
	Horizontal bool
	Level      float64
}

// Append adds one point.
func (l *Line) Append(x, y float64) {
	l.X = append(l.X, x)
	l.Y = append(l.Y, y)
}

// Axes is the 2-D chart model the progress plots draw into.
type Axes struct {
	Title  string
	XLabel string
	YLabel string
	Lines  []*Line

	XMin, XMax float64
	YMin, YMax float64
	// LegendColumns is 0 when no legend is attached.
	LegendColumns int
}

// NewAxes returns empty axes with the x axis labelled by sample count.
func NewAxes(title string) *Axes {
	return &Axes{Title: title, XLabel: "draws × chains", XMax: 1, YMax: 1}
}

// Plot adds a line through the given points.
func (ax *Axes) Plot(label string, x, y []float64, marker string) *Line {
	l := &Line{
		Label:  label,
		X:      append([]float64(nil), x...),
		Y:      append([]float64(nil), y...),
		Marker: marker,
		Width:  1.5,
	}
	ax.Lines = append(ax.Lines, l)
	return l
}

// AxHLine adds a horizontal reference line at level.
func (ax *Axes) AxHLine(level float64, label string, width float64, col drawing.Color) *Line {
	l := &Line{Label: label, Horizontal: true, Level: level, Width: width, Color: col}
	ax.Lines = append(ax.Lines, l)
	return l
}

// Legend attaches a legend laid out in cols columns.
func (ax *Axes) Legend(cols int) { ax.LegendColumns = cols }

func (ax *Axes) SetYLabel(s string) { ax.YLabel = s }

func (ax *Axes) SetXLim(lo, hi float64) {
	ax.XMin, ax.XMax = lo, hi
}

// Autoscale recomputes both ranges from the current data with a small margin.
// Horizontal lines count towards y only; NaN and Inf values are ignored.
func (ax *Axes) Autoscale() {
	xMin, xMax := math.Inf(1), math.Inf(-1)
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for _, l := range ax.Lines {
		if l.Horizontal {
			if finite(l.Level) {
				yMin = math.Min(yMin, l.Level)
				yMax = math.Max(yMax, l.Level)
			}
			continue
		}
		for i := range l.X {
			if !finite(l.X[i]) || !finite(l.Y[i]) {
				continue
			}
			xMin = math.Min(xMin, l.X[i])
			xMax = math.Max(xMax, l.X[i])
			yMin = math.Min(yMin, l.Y[i])
			yMax = math.Max(yMax, l.Y[i])
		}
	}
	if !math.IsInf(xMin, 1) {
		ax.XMin, ax.XMax = niceAxisBounds(xMin, xMax)
	}
	if !math.IsInf(yMin, 1) {
		ax.YMin, ax.YMax = niceAxisBounds(yMin, yMax)
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// niceAxisBounds expands [min,max] by a 5% margin and rounds to "nice" numbers.
func niceAxisBounds(min, max float64) (float64, float64) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return min, max
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	pad := span * 0.05
	if pad <= 0 {
		pad = 1
	}
	a := min - pad
	b := max + pad
	mag := math.Pow(10, math.Floor(math.Log10(span)))
	if !math.IsInf(mag, 0) && mag > 0 {
		a = math.Floor(a/mag) * mag
		b = math.Ceil(b/mag) * mag
	}
	return a, b
}
