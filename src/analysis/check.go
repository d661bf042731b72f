package analysis

import (
	"fmt"

	"github.com/ahartikainen/fit-check-fit-loop/src/monitor"
	"github.com/ahartikainen/fit-check-fit-loop/src/types"
)

// Rule is the direction a statistic must lie relative to its limit.
type Rule int

const (
	// GreaterThan requires every variable's minimum to be strictly above the limit.
	GreaterThan Rule = iota
	// LessThan requires every variable's maximum to be strictly below the limit.
	LessThan
)

func (r Rule) String() string {
	if r == GreaterThan {
		return "gt"
	}
	return "lt"
}

// Check is one entry of the ordered convergence check list.
type Check struct {
	Name       string
	Diagnostic types.Diagnostic
	Method     types.Method
	Rule       Rule
	// Limit picks the threshold for this check; nil skips the check.
	Limit func(types.Limits) *float64
}

func essLimit(l types.Limits) *float64  { return l.ESS }
func rhatLimit(l types.Limits) *float64 { return l.RHat }
func mcseLimit(l types.Limits) *float64 { return l.MCSE }

// DefaultChecks returns the six checks in evaluation order:
// ess bulk, ess tail, rhat, mcse mean, mcse sd, mcse quantile(0.5).
func DefaultChecks() []Check {
	return []Check{
		{Name: "ess_bulk", Diagnostic: ESS, Method: types.Method{Name: "bulk"}, Rule: GreaterThan, Limit: essLimit},
		{Name: "ess_tail", Diagnostic: ESS, Method: types.Method{Name: "tail"}, Rule: GreaterThan, Limit: essLimit},
		{Name: "rhat", Diagnostic: RHat, Rule: LessThan, Limit: rhatLimit},
		{Name: "mcse_mean", Diagnostic: MCSE, Method: types.Method{Name: "mean"}, Rule: LessThan, Limit: mcseLimit},
		{Name: "mcse_sd", Diagnostic: MCSE, Method: types.Method{Name: "sd"}, Rule: LessThan, Limit: mcseLimit},
		{Name: "mcse_quantile", Diagnostic: MCSE, Method: types.Method{Name: "quantile", Prob: 0.5}, Rule: LessThan, Limit: mcseLimit},
	}
}

// CheckLimits reports whether ds satisfies every configured limit, using DefaultChecks.
func CheckLimits(ds *types.Dataset, limits types.Limits) (bool, error) {
	return CheckLimitsWith(ds, limits, DefaultChecks())
}

// CheckLimitsWith evaluates checks in order. Checks without a limit are skipped without
// computing their diagnostic; the first violated check returns false and no later
// check is computed.
func CheckLimitsWith(ds *types.Dataset, limits types.Limits, checks []Check) (bool, error) {
	condition := true
	for _, c := range checks {
		limit := c.Limit(limits)
		if limit == nil {
			continue
		}
		res, err := c.Diagnostic(ds, c.Method)
		if err != nil {
			return false, fmt.Errorf("%s: %w", c.Name, err)
		}
		switch c.Rule {
		case GreaterThan:
			condition = condition && allOf(res.Min(), func(v float64) bool { return v > *limit })
		default:
			condition = condition && allOf(res.Max(), func(v float64) bool { return v < *limit })
		}
		if !condition {
			monitor.Debugf("[check] n=%d %s violates %s %g", ds.SampleCount(), c.Name, c.Rule, *limit)
			return false, nil
		}
	}
	return true, nil
}

// allOf is false for NaN values since every comparison with NaN fails.
func allOf(m map[string]float64, pred func(float64) bool) bool {
	for _, v := range m {
		if !pred(v) {
			return false
		}
	}
	return true
}
