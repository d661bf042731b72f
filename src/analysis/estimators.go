package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// All estimators work on a [chain][draw] matrix of one scalar element.

// valid reports whether x has enough chains/draws and only finite values.
func valid(x [][]float64, minDraws, minChains int) bool {
	if len(x) < minChains || len(x) == 0 || len(x[0]) < minDraws {
		return false
	}
	for _, chain := range x {
		for _, v := range chain {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func pooled(x [][]float64) []float64 {
	out := make([]float64, 0, len(x)*len(x[0]))
	for _, chain := range x {
		out = append(out, chain...)
	}
	return out
}

func mapMatrix(x [][]float64, fn func(float64) float64) [][]float64 {
	out := make([][]float64, len(x))
	for c, chain := range x {
		row := make([]float64, len(chain))
		for d, v := range chain {
			row[d] = fn(v)
		}
		out[c] = row
	}
	return out
}

func indicator(x [][]float64, threshold float64) [][]float64 {
	return mapMatrix(x, func(v float64) float64 {
		if v <= threshold {
			return 1
		}
		return 0
	})
}

// splitChains cuts every chain into its first and last draws/2 draws; an odd middle draw is dropped.
func splitChains(x [][]float64) [][]float64 {
	half := len(x[0]) / 2
	out := make([][]float64, 0, 2*len(x))
	for _, chain := range x {
		out = append(out, chain[:half], chain[len(chain)-half:])
	}
	return out
}

// zScale replaces values by the normal scores of their pooled average ranks.
func zScale(x [][]float64) [][]float64 {
	flat := pooled(x)
	ranks := averageRanks(flat)
	s := float64(len(flat))
	out := make([][]float64, len(x))
	i := 0
	for c, chain := range x {
		row := make([]float64, len(chain))
		for d := range chain {
			row[d] = distuv.UnitNormal.Quantile((ranks[i] - 0.375) / (s + 0.25))
			i++
		}
		out[c] = row
	}
	return out
}

// averageRanks returns 1-based ranks, ties sharing the mean of their positions.
func averageRanks(v []float64) []float64 {
	order := make([]int, len(v))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return v[order[a]] < v[order[b]] })
	ranks := make([]float64, len(v))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && v[order[j+1]] == v[order[i]] {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = r
		}
		i = j + 1
	}
	return ranks
}

// quantile uses linear interpolation between closest ranks, position (n-1)*p.
func quantile(v []float64, p float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	return sortedQuantile(s, p)
}

func sortedQuantile(s []float64, p float64) float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	h := float64(len(s)-1) * p
	lo := int(math.Floor(h))
	if lo >= len(s)-1 {
		return s[len(s)-1]
	}
	return s[lo] + (h-float64(lo))*(s[lo+1]-s[lo])
}

// autocov returns the biased autocovariance of x for lags 0..len(x)-1 via a zero-padded FFT.
func autocov(x []float64) []float64 {
	n := len(x)
	size := 1
	for size < 2*n {
		size <<= 1
	}
	mean := stat.Mean(x, nil)
	padded := make([]float64, size)
	for i, v := range x {
		padded[i] = v - mean
	}
	fft := fourier.NewFFT(size)
	coeff := fft.Coefficients(nil, padded)
	for i, c := range coeff {
		coeff[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	seq := fft.Sequence(nil, coeff)
	out := make([]float64, n)
	norm := float64(size) * float64(n)
	for k := range out {
		out[k] = seq[k] / norm
	}
	return out
}

// ess estimates the effective sample size with Geyer's initial positive and monotone sequences.
func ess(x [][]float64) float64 {
	if !valid(x, 1, 1) {
		return math.NaN()
	}
	flat := pooled(x)
	if floats.Max(flat)-floats.Min(flat) < 1e-15 {
		return float64(len(flat))
	}
	nChain, nDraw := len(x), len(x[0])
	if nDraw < 2 {
		return math.NaN()
	}
	acov := make([][]float64, nChain)
	chainMean := make([]float64, nChain)
	for c, chain := range x {
		acov[c] = autocov(chain)
		chainMean[c] = stat.Mean(chain, nil)
	}
	lagMean := func(t int) float64 {
		var s float64
		for c := range acov {
			s += acov[c][t]
		}
		return s / float64(nChain)
	}
	meanVar := lagMean(0) * float64(nDraw) / (float64(nDraw) - 1)
	varPlus := meanVar * (float64(nDraw) - 1) / float64(nDraw)
	if nChain > 1 {
		varPlus += stat.Variance(chainMean, nil)
	}

	rho := make([]float64, nDraw)
	rhoEven := 1.0
	rho[0] = rhoEven
	rhoOdd := 1 - (meanVar-lagMean(1))/varPlus
	rho[1] = rhoOdd

	// initial positive sequence
	t := 1
	for t < nDraw-3 && rhoEven+rhoOdd > 0 {
		rhoEven = 1 - (meanVar-lagMean(t+1))/varPlus
		rhoOdd = 1 - (meanVar-lagMean(t+2))/varPlus
		if rhoEven+rhoOdd >= 0 {
			rho[t+1] = rhoEven
			rho[t+2] = rhoOdd
		}
		t += 2
	}
	maxT := t - 2
	if rhoEven > 0 {
		rho[maxT+1] = rhoEven
	}
	// initial monotone sequence
	for t = 1; t <= maxT-2; t += 2 {
		if rho[t+1]+rho[t+2] > rho[t-1]+rho[t] {
			rho[t+1] = (rho[t-1] + rho[t]) / 2
			rho[t+2] = rho[t+1]
		}
	}

	total := float64(nChain * nDraw)
	tau := -1.0
	for i := 0; i <= maxT; i++ {
		tau += 2 * rho[i]
	}
	tau += rho[maxT+1]
	tau = math.Max(tau, 1/math.Log10(total))
	for _, r := range rho {
		if math.IsNaN(r) {
			return math.NaN()
		}
	}
	return total / tau
}

func essBulk(x [][]float64) float64 {
	if !valid(x, 4, 1) {
		return math.NaN()
	}
	return ess(zScale(splitChains(x)))
}

func essTail(x [][]float64) float64 {
	if !valid(x, 4, 1) {
		return math.NaN()
	}
	flat := pooled(x)
	q05 := quantile(flat, 0.05)
	q95 := quantile(flat, 0.95)
	return math.Min(ess(splitChains(indicator(x, q05))), ess(splitChains(indicator(x, q95))))
}

func essMean(x [][]float64) float64 {
	if !valid(x, 4, 1) {
		return math.NaN()
	}
	return ess(splitChains(x))
}

func essSD(x [][]float64) float64 {
	if !valid(x, 4, 1) {
		return math.NaN()
	}
	sq := mapMatrix(x, func(v float64) float64 { return v * v })
	return math.Min(ess(splitChains(x)), ess(splitChains(sq)))
}

func essQuantile(x [][]float64, prob float64) float64 {
	if !valid(x, 4, 1) {
		return math.NaN()
	}
	return ess(splitChains(indicator(x, quantile(pooled(x), prob))))
}

// rhatBasic is the Gelman-Rubin potential scale reduction of x as given.
func rhatBasic(x [][]float64) float64 {
	n := float64(len(x[0]))
	chainMean := make([]float64, len(x))
	chainVar := make([]float64, len(x))
	for c, chain := range x {
		chainMean[c], chainVar[c] = stat.MeanVariance(chain, nil)
	}
	between := n * stat.Variance(chainMean, nil)
	within := stat.Mean(chainVar, nil)
	return math.Sqrt((between/within + n - 1) / n)
}

// rhatRank is the rank-normalized split R-hat: the larger of the bulk and folded-tail values.
func rhatRank(x [][]float64) float64 {
	if !valid(x, 4, 2) {
		return math.NaN()
	}
	split := splitChains(x)
	bulk := rhatBasic(zScale(split))
	// fold around the median of the split draws; an odd middle draw is not part of it
	med := quantile(pooled(split), 0.5)
	tail := rhatBasic(zScale(mapMatrix(split, func(v float64) float64 { return math.Abs(v - med) })))
	return math.Max(bulk, tail)
}

func rhatSplit(x [][]float64) float64 {
	if !valid(x, 4, 2) {
		return math.NaN()
	}
	return rhatBasic(splitChains(x))
}

func rhatIdentity(x [][]float64) float64 {
	if !valid(x, 2, 2) {
		return math.NaN()
	}
	return rhatBasic(x)
}

func mcseMean(x [][]float64) float64 {
	if !valid(x, 4, 1) {
		return math.NaN()
	}
	return stat.StdDev(pooled(x), nil) / math.Sqrt(essMean(x))
}

func mcseSD(x [][]float64) float64 {
	if !valid(x, 4, 1) {
		return math.NaN()
	}
	e := essSD(x)
	sd := stat.StdDev(pooled(x), nil)
	fac := math.Sqrt(math.E*math.Pow(1-1/e, e-1) - 1)
	return sd * fac
}

// mcseQuantile is half the width of the ±1 sd interval of the quantile, read off the sorted draws.
func mcseQuantile(x [][]float64, prob float64) float64 {
	if !valid(x, 4, 1) {
		return math.NaN()
	}
	e := essQuantile(x, prob)
	if math.IsNaN(e) || math.IsInf(e, 0) {
		return math.NaN()
	}
	beta := distuv.Beta{Alpha: e*prob + 1, Beta: e*(1-prob) + 1}
	lo := beta.Quantile(0.1586553)
	hi := beta.Quantile(0.8413447)
	sorted := pooled(x)
	sort.Float64s(sorted)
	size := float64(len(sorted))
	th1 := sorted[int(math.RoundToEven(math.Max(lo*size-1, 0)))]
	th2 := sorted[int(math.RoundToEven(math.Min(hi*size-1, size-1)))]
	return (th2 - th1) / 2
}
