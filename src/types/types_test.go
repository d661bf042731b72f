package types

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func matrixVar(name string, shape []int, chains, draws int) *Variable {
	size := ShapeSize(shape)
	values := make([][][]float64, chains)
	for c := range values {
		values[c] = make([][]float64, draws)
		for d := range values[c] {
			el := make([]float64, size)
			for i := range el {
				el[i] = float64(100*c + 10*d + i)
			}
			values[c][d] = el
		}
	}
	return &Variable{Name: name, Shape: shape, Values: values}
}

func TestNewDatasetLayout(t *testing.T) {
	ds, err := NewDataset([]*Variable{matrixVar("b", []int{2, 3}, 4, 5), matrixVar("a", nil, 4, 5)})
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	if ds.Chains() != 4 || ds.Draws() != 5 || ds.SampleCount() != 20 {
		t.Fatalf("layout chains=%d draws=%d", ds.Chains(), ds.Draws())
	}
	if !reflect.DeepEqual(ds.VarNames(), []string{"a", "b"}) {
		t.Fatalf("names = %v", ds.VarNames())
	}
	b, _ := ds.Var("b")
	el := b.Element(4)
	if len(el) != 4 || len(el[0]) != 5 || el[2][3] != 234 {
		t.Fatalf("element matrix wrong: %v", el)
	}
}

func TestNewDatasetRejectsRaggedInput(t *testing.T) {
	if _, err := NewDataset(nil); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("nil vars: %v", err)
	}
	if _, err := NewDataset([]*Variable{matrixVar("a", nil, 2, 5), matrixVar("b", nil, 3, 5)}); !errors.Is(err, ErrRaggedDraws) {
		t.Fatalf("chain mismatch: %v", err)
	}
	if _, err := NewDataset([]*Variable{matrixVar("a", nil, 2, 5), matrixVar("b", nil, 2, 4)}); !errors.Is(err, ErrRaggedDraws) {
		t.Fatalf("draw mismatch: %v", err)
	}
	bad := matrixVar("a", []int{2}, 2, 5)
	bad.Values[1][3] = []float64{1}
	if _, err := NewDataset([]*Variable{bad}); !errors.Is(err, ErrRaggedDraws) {
		t.Fatalf("element mismatch: %v", err)
	}
	if _, err := NewDataset([]*Variable{matrixVar("a", nil, 2, 5), matrixVar("a", nil, 2, 5)}); !errors.Is(err, ErrRaggedDraws) {
		t.Fatalf("duplicate: %v", err)
	}
	if _, err := NewDataset([]*Variable{matrixVar("a", nil, 2, 0)}); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("no draws: %v", err)
	}
}

func TestHeadSharesPrefix(t *testing.T) {
	ds, err := NewDataset([]*Variable{matrixVar("a", nil, 2, 10)})
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	h := ds.Head(4)
	if h.Draws() != 4 || h.Chains() != 2 || h.SampleCount() != 8 {
		t.Fatalf("head layout %dx%d", h.Chains(), h.Draws())
	}
	a, _ := h.Var("a")
	if a.Values[1][3][0] != 130 {
		t.Fatalf("head values wrong: %v", a.Values[1])
	}
	if ds.Head(50) != ds {
		t.Fatalf("head beyond draws should return the dataset itself")
	}
	if ds.Head(0).Draws() != 1 {
		t.Fatalf("head clamps to one draw")
	}
}

func TestArrayReductionsSkipNaN(t *testing.T) {
	a := &Array{Shape: []int{3}, Data: []float64{math.NaN(), 4, -2}}
	if a.Min() != -2 || a.Max() != 4 {
		t.Fatalf("min=%v max=%v", a.Min(), a.Max())
	}
	all := &Array{Shape: []int{2}, Data: []float64{math.NaN(), math.NaN()}}
	if !math.IsNaN(all.Min()) || !math.IsNaN(all.Max()) {
		t.Fatalf("all-NaN reductions must be NaN")
	}
}

func TestArrayIndexAndEach(t *testing.T) {
	a := &Array{Shape: []int{2, 3}, Data: make([]float64, 6)}
	if got := a.Index(5); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("Index(5) = %v", got)
	}
	var seen []string
	a.Each(func(idx []int, _ float64) { seen = append(seen, FormatIndex(idx)) })
	want := []string{"(0, 0)", "(0, 1)", "(0, 2)", "(1, 0)", "(1, 1)", "(1, 2)"}
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("Each order = %v", seen)
	}
	if FormatIndex([]int{3}) != "(3,)" || FormatIndex(nil) != "()" {
		t.Fatalf("tuple formatting: %q %q", FormatIndex([]int{3}), FormatIndex(nil))
	}
}

func TestResultExtremes(t *testing.T) {
	r := Result{
		"alpha": NewScalar(1200),
		"beta":  &Array{Shape: []int{2}, Data: []float64{800, math.NaN()}},
		"sigma": NewScalar(math.NaN()),
	}
	if r.ExtremeMin() != 800 || r.ExtremeMax() != 1200 {
		t.Fatalf("extremes min=%v max=%v", r.ExtremeMin(), r.ExtremeMax())
	}
	if !math.IsNaN(r.Min()["sigma"]) {
		t.Fatalf("sigma min should be NaN")
	}
}

func TestResultReductionsLeaveOutZeroSizeVariables(t *testing.T) {
	r := Result{
		"alpha": NewScalar(3),
		"e":     &Array{Shape: []int{0}, Data: []float64{}},
	}
	if _, ok := r.Min()["e"]; ok {
		t.Fatalf("zero-size variable must have no minimum: %v", r.Min())
	}
	if _, ok := r.Max()["e"]; ok {
		t.Fatalf("zero-size variable must have no maximum: %v", r.Max())
	}
	if r.ExtremeMin() != 3 || r.ExtremeMax() != 3 {
		t.Fatalf("extremes min=%v max=%v", r.ExtremeMin(), r.ExtremeMax())
	}
}
