package monitor

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// SaveFormats lists the extensions SavePlot accepts.
var SaveFormats = []string{".png", ".svg", ".pdf", ".eps", ".jpg", ".tif"}

// BuildPlot converts the axes into a gonum plot.
func BuildPlot(ax *Axes) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = ax.Title
	p.X.Label.Text = ax.XLabel
	p.Y.Label.Text = ax.YLabel
	p.Legend.Top = true

	for i, l := range ax.Lines {
		var col color.Color = plotutil.Color(i)
		if l.Color != (drawing.Color{}) {
			col = l.Color
		}
		var xys plotter.XYs
		if l.Horizontal {
			if !finite(l.Level) {
				continue
			}
			xys = plotter.XYs{{X: ax.XMin, Y: l.Level}, {X: ax.XMax, Y: l.Level}}
		} else {
			xs, ys := finitePoints(l)
			if len(xs) == 0 {
				continue
			}
			xys = make(plotter.XYs, len(xs))
			for j := range xs {
				xys[j].X, xys[j].Y = xs[j], ys[j]
			}
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", l.Label, err)
		}
		line.Color = col
		line.Width = vg.Points(l.Width)
		points.Color = col
		points.Shape = draw.CircleGlyph{}
		switch {
		case l.Horizontal:
			points.Radius = 0
		case l.Marker == "o":
			points.Radius = vg.Points(3)
		default:
			points.Radius = vg.Points(1.5)
		}
		p.Add(line, points)
		if ax.LegendColumns > 0 && !l.NoLegend {
			p.Legend.Add(l.Label, line, points)
		}
	}
	p.X.Min, p.X.Max = ax.XMin, ax.XMax
	p.Y.Min, p.Y.Max = ax.YMin, ax.YMax
	return p, nil
}

// SavePlot writes the axes through gonum/plot; the format follows the file extension.
func SavePlot(path string, ax *Axes, w, h vg.Length) error {
	ext := strings.ToLower(filepath.Ext(path))
	known := false
	for _, f := range SaveFormats {
		if f == ext {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unsupported plot format %q", ext)
	}
	p, err := BuildPlot(ax)
	if err != nil {
		return err
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
