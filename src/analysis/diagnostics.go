package analysis

import (
	"errors"
	"fmt"
	"time"

	"github.com/ahartikainen/fit-check-fit-loop/src/monitor"
	"github.com/ahartikainen/fit-check-fit-loop/src/types"
)

var (
	// ErrUnknownMethod is returned when a diagnostic is asked for a method it does not implement.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrInvalidProb is returned for a quantile method whose Prob is not inside (0, 1).
	ErrInvalidProb = errors.New("quantile prob must be in (0, 1)")
)

type estimator func(x [][]float64) float64

// perElement applies est to every scalar element of every variable.
func perElement(ds *types.Dataset, est estimator) types.Result {
	out := make(types.Result, len(ds.VarNames()))
	for _, name := range ds.VarNames() {
		v, _ := ds.Var(name)
		arr := &types.Array{Shape: v.Shape, Data: make([]float64, v.Size())}
		for i := range arr.Data {
			arr.Data[i] = est(v.Element(i))
		}
		out[name] = arr
	}
	return out
}

func quantileProb(diag string, m types.Method) (float64, error) {
	if !(m.Prob > 0 && m.Prob < 1) {
		return 0, fmt.Errorf("%s quantile: %w, got %g", diag, ErrInvalidProb, m.Prob)
	}
	return m.Prob, nil
}

// ESS computes the effective sample size. Methods: bulk (default), tail, mean, sd, median, quantile.
// quantile requires m.Prob in (0, 1).
func ESS(ds *types.Dataset, m types.Method) (types.Result, error) {
	defer monitor.TimeTrack(time.Now(), "ess "+m.Name)
	var est estimator
	switch m.Name {
	case "", "bulk":
		est = essBulk
	case "tail":
		est = essTail
	case "mean":
		est = essMean
	case "sd":
		est = essSD
	case "median":
		est = func(x [][]float64) float64 { return essQuantile(x, 0.5) }
	case "quantile":
		p, err := quantileProb("ess", m)
		if err != nil {
			return nil, err
		}
		est = func(x [][]float64) float64 { return essQuantile(x, p) }
	default:
		return nil, fmt.Errorf("ess: %w %q", ErrUnknownMethod, m.Name)
	}
	return perElement(ds, est), nil
}

// RHat computes the potential scale reduction. Methods: rank (default), split, identity.
func RHat(ds *types.Dataset, m types.Method) (types.Result, error) {
	defer monitor.TimeTrack(time.Now(), "rhat "+m.Name)
	var est estimator
	switch m.Name {
	case "", "rank":
		est = rhatRank
	case "split":
		est = rhatSplit
	case "identity":
		est = rhatIdentity
	default:
		return nil, fmt.Errorf("rhat: %w %q", ErrUnknownMethod, m.Name)
	}
	return perElement(ds, est), nil
}

// MCSE computes the Monte Carlo standard error. Methods: mean (default), sd, median, quantile.
// quantile requires m.Prob in (0, 1).
func MCSE(ds *types.Dataset, m types.Method) (types.Result, error) {
	defer monitor.TimeTrack(time.Now(), "mcse "+m.Name)
	var est estimator
	switch m.Name {
	case "", "mean":
		est = mcseMean
	case "sd":
		est = mcseSD
	case "median":
		est = func(x [][]float64) float64 { return mcseQuantile(x, 0.5) }
	case "quantile":
		p, err := quantileProb("mcse", m)
		if err != nil {
			return nil, err
		}
		est = func(x [][]float64) float64 { return mcseQuantile(x, p) }
	default:
		return nil, fmt.Errorf("mcse: %w %q", ErrUnknownMethod, m.Name)
	}
	return perElement(ds, est), nil
}

// ByName resolves "ess", "rhat" or "mcse" to its diagnostic.
func ByName(name string) (types.Diagnostic, bool) {
	switch name {
	case "ess":
		return ESS, true
	case "rhat":
		return RHat, true
	case "mcse":
		return MCSE, true
	}
	return nil, false
}
