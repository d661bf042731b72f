package types

// Limits configures the thresholds of the convergence check. A nil field disables that check.
type Limits struct {
	ESS  *float64 `json:"ess"`
	RHat *float64 `json:"rhat"`
	MCSE *float64 `json:"mcse"`
}

// DefaultLimits: ess > 500, rhat < 1.01, mcse unchecked.
func DefaultLimits() Limits {
	return Limits{ESS: Float(500), RHat: Float(1.01)}
}

// Float returns a pointer to v, for building Limits literals.
func Float(v float64) *float64 { return &v }

// Method selects a variant of a diagnostic ("bulk", "tail", "quantile", ...).
// Prob is only read by quantile methods.
type Method struct {
	Name string
	Prob float64
}

// Diagnostic computes one statistic per scalar element of every variable in the dataset.
type Diagnostic func(ds *Dataset, m Method) (Result, error)
