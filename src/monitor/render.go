package monitor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Default chart size in pixels.
const (
	ChartWidth  = 960
	ChartHeight = 360
)

// lineStyle draws the connecting line plus dots sized by marker.
func lineStyle(l *Line, col drawing.Color) chart.Style {
	st := chart.Style{
		StrokeWidth: l.Width,
		StrokeColor: col,
	}
	switch l.Marker {
	case ".":
		st.DotWidth = 3
		st.DotColor = col
	case "o":
		st.DotWidth = 5
		st.DotColor = col
	}
	return st
}

func lineColor(l *Line, i int) drawing.Color {
	if l.Color != (drawing.Color{}) {
		return l.Color
	}
	return chart.GetDefaultColor(i)
}

// finitePoints drops points with a non-finite coordinate.
func finitePoints(l *Line) ([]float64, []float64) {
	xs := make([]float64, 0, len(l.X))
	ys := make([]float64, 0, len(l.Y))
	for i := range l.X {
		if finite(l.X[i]) && finite(l.Y[i]) {
			xs = append(xs, l.X[i])
			ys = append(ys, l.Y[i])
		}
	}
	return xs, ys
}

// buildSeries converts the axes lines into go-chart series. The second return
// holds only the series that should appear in the legend.
func buildSeries(ax *Axes) ([]chart.Series, []chart.Series) {
	var series, legend []chart.Series
	for i, l := range ax.Lines {
		col := lineColor(l, i)
		var xs, ys []float64
		if l.Horizontal {
			if !finite(l.Level) {
				continue
			}
			xs = []float64{ax.XMin, ax.XMax}
			ys = []float64{l.Level, l.Level}
		} else {
			xs, ys = finitePoints(l)
			if len(xs) == 0 {
				continue
			}
			// Pad to at least two X values for go-chart
			if len(xs) == 1 {
				xs = append(xs, xs[0])
				ys = append(ys, ys[0])
			}
		}
		s := chart.ContinuousSeries{Name: l.Label, XValues: xs, YValues: ys, Style: lineStyle(l, col)}
		series = append(series, s)
		if !l.NoLegend {
			legend = append(legend, s)
		}
	}
	return series, legend
}

// BuildChart turns the axes into a go-chart chart of the given size.
func BuildChart(ax *Axes, w, h int) chart.Chart {
	series, legendSeries := buildSeries(ax)
	ch := chart.Chart{
		Title:      ax.Title,
		Width:      w,
		Height:     h,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 28}},
		XAxis: chart.XAxis{
			Name:  ax.XLabel,
			Range: &chart.ContinuousRange{Min: ax.XMin, Max: ax.XMax},
			Ticks: niceTicks(ax.XMin, ax.XMax, 8),
		},
		YAxis: chart.YAxis{
			Name:  ax.YLabel,
			Range: &chart.ContinuousRange{Min: ax.YMin, Max: ax.YMax},
			Ticks: niceTicks(ax.YMin, ax.YMax, 6),
		},
		Series: series,
	}
	if ax.LegendColumns > 0 && len(legendSeries) > 0 {
		// the legend only reads Series, so a shadow chart hides _nolegend_ lines
		shadow := &chart.Chart{Series: legendSeries}
		if ax.LegendColumns > 1 {
			ch.Elements = []chart.Renderable{chart.LegendThin(shadow)}
		} else {
			ch.Elements = []chart.Renderable{chart.Legend(shadow)}
		}
	}
	return ch
}

// RenderImage renders the axes to an image; render errors yield a blank image so
// callers in a sampling loop always get something to write.
func RenderImage(ax *Axes, w, h int, caption string) image.Image {
	ch := BuildChart(ax, w, h)
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		Warnf("[render] %s: %v; using blank fallback", ax.Title, err)
		return drawCaption(blank(w, h), caption)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		Warnf("[render] %s decode: %v; using blank fallback", ax.Title, err)
		return drawCaption(blank(w, h), caption)
	}
	return drawCaption(img, caption)
}

// WritePNG renders the axes and writes a PNG file.
func WritePNG(path string, ax *Axes, w, h int, caption string) error {
	img := RenderImage(ax, w, h, caption)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("png encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// niceTicks generates up to n tick marks inside [min, max] using 1/2/2.5/5 steps.
func niceTicks(min, max float64, n int) []chart.Tick {
	if n < 2 || !finite(min) || !finite(max) {
		return nil
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	mag := math.Pow(10, math.Floor(math.Log10(span/float64(n-1))))
	bestStep := mag
	bestScore := math.MaxFloat64
	for _, c := range []float64{1, 2, 2.5, 5, 10} {
		step := c * mag
		count := math.Ceil(span / step)
		if count < 2 {
			count = 2
		}
		if score := math.Abs(count - float64(n)); score < bestScore {
			bestScore = score
			bestStep = step
		}
	}
	start := math.Ceil(min/bestStep) * bestStep
	var ticks []chart.Tick
	for v := start; v <= max+bestStep*1e-9; v += bestStep {
		ticks = append(ticks, chart.Tick{Value: v, Label: formatTick(v)})
		if len(ticks) > n+2 {
			break
		}
	}
	return ticks
}

func formatTick(v float64) string {
	if v == 0 {
		return "0"
	}
	av := math.Abs(v)
	switch {
	case av >= 100:
		return fmt.Sprintf("%.0f", v)
	case av >= 10:
		return fmt.Sprintf("%.1f", v)
	case av >= 0.1:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%.3g", v)
	}
}

// drawCaption draws a small status line onto the image near the bottom-left.
func drawCaption(img image.Image, text string) image.Image {
	if img == nil || strings.TrimSpace(text) == "" {
		return img
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	pad := 6
	face := basicfont.Face7x13
	textCol := image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255})
	dr := &font.Drawer{Dst: rgba, Src: textCol, Face: face}
	tw := dr.MeasureString(text).Ceil()
	x := b.Min.X + 8
	y := b.Max.Y - 6
	bg := image.NewUniform(color.RGBA{R: 0, G: 0, B: 0, A: 200})
	rect := image.Rect(x-pad, y-face.Metrics().Ascent.Ceil()-pad, x+tw+pad, y+pad/2)
	draw.Draw(rgba, rect, bg, image.Point{}, draw.Over)
	dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	dr.DrawString(text)
	return rgba
}

func blank(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255}), image.Point{}, draw.Src)
	return img
}
