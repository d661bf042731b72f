package types

import (
	"math"
	"strconv"
	"strings"
)

// Array holds one statistic value per scalar element of a variable, row-major.
type Array struct {
	Shape []int
	Data  []float64
}

// NewScalar wraps a single value.
func NewScalar(v float64) *Array { return &Array{Data: []float64{v}} }

// IsScalar reports whether the array has no dimensions.
func (a *Array) IsScalar() bool { return len(a.Shape) == 0 }

// Min returns the smallest non-NaN value, or NaN when every value is NaN.
func (a *Array) Min() float64 {
	out := math.NaN()
	for _, v := range a.Data {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(out) || v < out {
			out = v
		}
	}
	return out
}

// Max returns the largest non-NaN value, or NaN when every value is NaN.
func (a *Array) Max() float64 {
	out := math.NaN()
	for _, v := range a.Data {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(out) || v > out {
			out = v
		}
	}
	return out
}

// Index unravels a flat position into its index tuple.
func (a *Array) Index(flat int) []int {
	idx := make([]int, len(a.Shape))
	for i := len(a.Shape) - 1; i >= 0; i-- {
		d := a.Shape[i]
		if d == 0 {
			continue
		}
		idx[i] = flat % d
		flat /= d
	}
	return idx
}

// Each calls fn for every element in row-major order.
func (a *Array) Each(fn func(idx []int, v float64)) {
	for i, v := range a.Data {
		fn(a.Index(i), v)
	}
}

// FormatIndex renders an index tuple the way the labels in progress plots show it: "(0,)", "(1, 2)".
func FormatIndex(idx []int) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range idx {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(v))
	}
	if len(idx) == 1 {
		b.WriteByte(',')
	}
	b.WriteByte(')')
	return b.String()
}

// Result maps variable names to the statistic computed for them.
type Result map[string]*Array

// Min reduces every variable to its minimum. Zero-size variables have no value and are left out.
func (r Result) Min() map[string]float64 {
	out := make(map[string]float64, len(r))
	for name, a := range r {
		if len(a.Data) > 0 {
			out[name] = a.Min()
		}
	}
	return out
}

// Max reduces every variable to its maximum. Zero-size variables are left out.
func (r Result) Max() map[string]float64 {
	out := make(map[string]float64, len(r))
	for name, a := range r {
		if len(a.Data) > 0 {
			out[name] = a.Max()
		}
	}
	return out
}

// ExtremeMin is the minimum over all variables' minima (NaN skipped).
func (r Result) ExtremeMin() float64 {
	return (&Array{Data: values(r.Min())}).Min()
}

// ExtremeMax is the maximum over all variables' maxima (NaN skipped).
func (r Result) ExtremeMax() float64 {
	return (&Array{Data: values(r.Max())}).Max()
}

func values(m map[string]float64) []float64 {
	out := make([]float64, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
