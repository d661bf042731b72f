package analysis

import (
	"math/rand"
	"testing"

	"github.com/ahartikainen/fit-check-fit-loop/src/types"
)

// scalarVar builds a scalar variable from a [chain][draw] matrix.
func scalarVar(name string, x [][]float64) *types.Variable {
	values := make([][][]float64, len(x))
	for c, chain := range x {
		values[c] = make([][]float64, len(chain))
		for d, v := range chain {
			values[c][d] = []float64{v}
		}
	}
	return &types.Variable{Name: name, Values: values}
}

func mustDataset(t *testing.T, vars ...*types.Variable) *types.Dataset {
	t.Helper()
	ds, err := types.NewDataset(vars)
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	return ds
}

// normalDraws returns chains×draws iid standard normal values shifted by offset[c].
func normalDraws(seed int64, chains, draws int, offset ...float64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float64, chains)
	for c := range out {
		out[c] = make([]float64, draws)
		shift := 0.0
		if c < len(offset) {
			shift = offset[c]
		}
		for d := range out[c] {
			out[c][d] = rng.NormFloat64() + shift
		}
	}
	return out
}

// ar1Draws returns strongly autocorrelated chains: x[t] = phi*x[t-1] + e.
func ar1Draws(seed int64, chains, draws int, phi float64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float64, chains)
	for c := range out {
		out[c] = make([]float64, draws)
		prev := rng.NormFloat64()
		for d := range out[c] {
			prev = phi*prev + rng.NormFloat64()
			out[c][d] = prev
		}
	}
	return out
}
