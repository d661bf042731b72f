package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahartikainen/fit-check-fit-loop/src/types"
)

func TestAutocovLagZeroIsPopulationVariance(t *testing.T) {
	x := []float64{1, 3, 2, 5, 4, 6, 2, 1}
	acov := autocov(x)
	require.Len(t, acov, len(x))

	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	var v0, v1 float64
	for i := range x {
		v0 += (x[i] - mean) * (x[i] - mean)
		if i+1 < len(x) {
			v1 += (x[i] - mean) * (x[i+1] - mean)
		}
	}
	assert.InDelta(t, v0/float64(len(x)), acov[0], 1e-9)
	assert.InDelta(t, v1/float64(len(x)), acov[1], 1e-9)
}

func TestAverageRanksTies(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, averageRanks([]float64{1, 2, 2, 3}))
	assert.Equal(t, []float64{3, 1, 2}, averageRanks([]float64{9, -1, 0}))
}

func TestQuantileLinearInterpolation(t *testing.T) {
	v := []float64{4, 1, 3, 2}
	assert.InDelta(t, 2.5, quantile(v, 0.5), 1e-12)
	assert.InDelta(t, 1.15, quantile(v, 0.05), 1e-12)
	assert.InDelta(t, 4, quantile(v, 1), 1e-12)
}

func TestSplitChainsDropsOddMiddleDraw(t *testing.T) {
	got := splitChains([][]float64{{1, 2, 3, 4, 5}})
	assert.Equal(t, [][]float64{{1, 2}, {4, 5}}, got)
}

func TestESSIndependentDrawsNearSampleSize(t *testing.T) {
	x := normalDraws(1, 4, 1000)
	bulk := essBulk(x)
	tail := essTail(x)
	assert.Greater(t, bulk, 2500.0)
	assert.Less(t, bulk, 6000.0)
	assert.Greater(t, tail, 1500.0)
}

func TestESSAutocorrelatedDrawsMuchSmaller(t *testing.T) {
	iid := essBulk(normalDraws(2, 4, 1000))
	ar := essBulk(ar1Draws(2, 4, 1000, 0.95))
	assert.Less(t, ar, iid/5, "ar1 ess=%.1f iid ess=%.1f", ar, iid)
	assert.Greater(t, ar, 0.0)
}

func TestESSConstantReturnsSize(t *testing.T) {
	x := [][]float64{{2, 2, 2, 2}, {2, 2, 2, 2}}
	assert.Equal(t, 8.0, ess(x))
}

func TestEstimatorsNaNOnInvalidInput(t *testing.T) {
	short := [][]float64{{1, 2, 3}, {2, 3, 1}}
	assert.True(t, math.IsNaN(essBulk(short)), "fewer than 4 draws")
	assert.True(t, math.IsNaN(mcseMean(short)))

	withNaN := normalDraws(3, 2, 50)
	withNaN[1][7] = math.NaN()
	assert.True(t, math.IsNaN(essBulk(withNaN)))
	assert.True(t, math.IsNaN(rhatRank(withNaN)))

	oneChain := normalDraws(4, 1, 100)
	assert.True(t, math.IsNaN(rhatRank(oneChain)), "rhat needs two chains")
	assert.False(t, math.IsNaN(essBulk(oneChain)))
}

func TestRHatDetectsSeparatedChains(t *testing.T) {
	mixed := rhatRank(normalDraws(5, 4, 500))
	assert.Less(t, mixed, 1.01)
	assert.Greater(t, mixed, 0.99)

	stuck := rhatRank(normalDraws(5, 4, 500, 0, 0, 0, 3))
	assert.Greater(t, stuck, 1.1)
	assert.Greater(t, rhatSplit(normalDraws(5, 4, 500, 0, 0, 0, 3)), 1.1)
	assert.Greater(t, rhatIdentity(normalDraws(5, 4, 500, 0, 0, 0, 3)), 1.1)
}

func TestMCSEMeanMatchesIIDStandardError(t *testing.T) {
	x := normalDraws(6, 4, 1000)
	got := mcseMean(x)
	// sd ≈ 1, n = 4000
	assert.InDelta(t, 1/math.Sqrt(4000), got, 0.006)

	sd := mcseSD(x)
	assert.Greater(t, sd, 0.0)
	assert.Less(t, sd, 0.05)

	q := mcseQuantile(x, 0.5)
	assert.Greater(t, q, 0.0)
	assert.Less(t, q, 0.1)
}

func TestDiagnosticMethods(t *testing.T) {
	ds := mustDataset(t, scalarVar("alpha", normalDraws(7, 2, 200)))
	for _, name := range []string{"", "bulk", "tail", "mean", "sd", "median", "quantile"} {
		res, err := ESS(ds, types.Method{Name: name, Prob: 0.25})
		require.NoError(t, err, name)
		require.Contains(t, res, "alpha")
		assert.True(t, res["alpha"].IsScalar())
		assert.False(t, math.IsNaN(res["alpha"].Data[0]), name)
	}
	for _, name := range []string{"", "rank", "split", "identity"} {
		_, err := RHat(ds, types.Method{Name: name})
		require.NoError(t, err, name)
	}
	for _, name := range []string{"", "mean", "sd", "median", "quantile"} {
		_, err := MCSE(ds, types.Method{Name: name, Prob: 0.25})
		require.NoError(t, err, name)
	}
	_, err := ESS(ds, types.Method{Name: "local"})
	assert.ErrorIs(t, err, ErrUnknownMethod)
	_, err = RHat(ds, types.Method{Name: "bulk"})
	assert.ErrorIs(t, err, ErrUnknownMethod)
	_, err = MCSE(ds, types.Method{Name: "tail"})
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestDiagnosticPerElementShape(t *testing.T) {
	x := normalDraws(8, 2, 100)
	y := normalDraws(9, 2, 100)
	values := make([][][]float64, 2)
	for c := range values {
		values[c] = make([][]float64, 100)
		for d := range values[c] {
			values[c][d] = []float64{x[c][d], y[c][d]}
		}
	}
	ds := mustDataset(t, &types.Variable{Name: "beta", Shape: []int{2}, Values: values})
	res, err := ESS(ds, types.Method{})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res["beta"].Shape)
	assert.InDelta(t, essBulk(x), res["beta"].Data[0], 1e-9)
	assert.InDelta(t, essBulk(y), res["beta"].Data[1], 1e-9)
}

func TestByName(t *testing.T) {
	for _, n := range []string{"ess", "rhat", "mcse"} {
		d, ok := ByName(n)
		assert.True(t, ok)
		assert.NotNil(t, d)
	}
	_, ok := ByName("bfmi")
	assert.False(t, ok)
}

func TestQuantileMethodsRejectProbOutsideUnitInterval(t *testing.T) {
	ds := mustDataset(t, scalarVar("alpha", normalDraws(11, 2, 100)))
	for _, prob := range []float64{0, 1, 1.5, -0.2, math.NaN()} {
		_, err := MCSE(ds, types.Method{Name: "quantile", Prob: prob})
		assert.ErrorIs(t, err, ErrInvalidProb, "mcse prob %v", prob)
		_, err = ESS(ds, types.Method{Name: "quantile", Prob: prob})
		assert.ErrorIs(t, err, ErrInvalidProb, "ess prob %v", prob)
	}
	// median ignores Prob
	med, err := MCSE(ds, types.Method{Name: "median", Prob: 1.5})
	require.NoError(t, err)
	q50, err := MCSE(ds, types.Method{Name: "quantile", Prob: 0.5})
	require.NoError(t, err)
	assert.Equal(t, q50["alpha"].Data[0], med["alpha"].Data[0])
}

// referenceDraws is a fixed 4×21 autocorrelated matrix with ties and an odd draw count.
var referenceDraws = [][]float64{
	{-0.48, 0.15, 0.44, 0.54, 0.52, 0.42, 0.28, 0.12, -0.06, -0.25, -0.44, -0.64, -0.84, -0.04, 0.36, 0.52, 0.53, 0.46, 0.33, 0.18, 0.0},
	{0.4, 0.4, 0.33, 0.2, 0.04, -0.13, -0.32, -0.51, -0.71, -0.91, -0.11, 0.29, 0.45, 0.46, 0.39, 0.26, 0.11, -0.07, -0.25, -0.44, -0.64},
	{0.27, 0.06, -0.15, -0.36, -0.56, -0.77, 0.03, 0.42, 0.58, 0.6, 0.52, 0.4, 0.24, 0.07, -0.12, -0.31, -0.51, -0.71, -0.91, -0.11, 0.29},
	{0.15, -0.28, -0.63, 0.08, 0.43, 0.56, 0.55, 0.47, 0.34, 0.18, 0.0, -0.19, -0.38, -0.58, -0.78, 0.02, 0.42, 0.58, 0.59, 0.52, 0.4},
}

func TestEstimatorsReferenceValues(t *testing.T) {
	x := referenceDraws
	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"ess bulk", essBulk(x), 34.75231148322318},
		{"ess tail", essTail(x), 50.07287719152128},
		{"ess mean", essMean(x), 35.78924705492264},
		{"ess sd", essSD(x), 35.78924705492264},
		{"ess median", essQuantile(x, 0.5), 39.737704918032776},
		{"rhat rank", rhatRank(x), 1.0013423182940289},
		{"rhat split", rhatSplit(x), 0.9901682034113426},
		{"rhat identity", rhatIdentity(x), 0.9964996093508386},
		{"mcse mean", mcseMean(x), 0.07243074435957787},
		{"mcse sd", mcseSD(x), 0.051639555868083505},
		{"mcse median", mcseQuantile(x, 0.5), 0.12},
		{"mcse q25", mcseQuantile(x, 0.25), 0.155},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, c.got, 1e-9, c.name)
	}
}

func TestRHatRankFoldsAroundSplitMedian(t *testing.T) {
	// the folded tail dominates here; using the median of all five draws
	// instead of the split draws would give 1.754638254414489
	x := [][]float64{{-2, 1, 0, 3, -1}, {0.1, -0.2, 0.3, 0, -0.1}}
	assert.InDelta(t, 2.0077414101890176, rhatRank(x), 1e-9)
}
