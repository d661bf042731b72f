// Package types holds the data shared by the analysis and monitor packages:
// posterior draws, per-element statistic arrays and limit configuration.
package types

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyDataset is returned when a dataset has no variables, chains or draws.
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrRaggedDraws is returned when chains, draws or element counts disagree between variables.
	ErrRaggedDraws = errors.New("ragged draws")
)

// Variable is one named posterior quantity.
// Values[chain][draw] holds the row-major flattened elements of a single draw.
type Variable struct {
	Name   string
	Shape  []int
	Values [][][]float64
}

// Size returns the number of scalar elements per draw (1 for scalars).
func (v *Variable) Size() int { return ShapeSize(v.Shape) }

// Element returns the [chain][draw] matrix of one flattened element.
func (v *Variable) Element(i int) [][]float64 {
	out := make([][]float64, len(v.Values))
	for c, chain := range v.Values {
		row := make([]float64, len(chain))
		for d, draw := range chain {
			row[d] = draw[i]
		}
		out[c] = row
	}
	return out
}

// Dataset is an immutable collection of variables sharing the same chain/draw layout.
type Dataset struct {
	vars   map[string]*Variable
	chains int
	draws  int
}

// NewDataset validates that all variables share the same number of chains and draws
// and that every draw carries Size() elements.
func NewDataset(vars []*Variable) (*Dataset, error) {
	if len(vars) == 0 {
		return nil, ErrEmptyDataset
	}
	ds := &Dataset{vars: make(map[string]*Variable, len(vars)), chains: -1, draws: -1}
	for _, v := range vars {
		if v == nil || v.Name == "" {
			return nil, fmt.Errorf("%w: unnamed variable", ErrRaggedDraws)
		}
		if _, dup := ds.vars[v.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate variable %q", ErrRaggedDraws, v.Name)
		}
		if ds.chains < 0 {
			ds.chains = len(v.Values)
		} else if len(v.Values) != ds.chains {
			return nil, fmt.Errorf("%w: %q has %d chains, want %d", ErrRaggedDraws, v.Name, len(v.Values), ds.chains)
		}
		size := v.Size()
		for c, chain := range v.Values {
			if ds.draws < 0 {
				ds.draws = len(chain)
			} else if len(chain) != ds.draws {
				return nil, fmt.Errorf("%w: %q chain %d has %d draws, want %d", ErrRaggedDraws, v.Name, c, len(chain), ds.draws)
			}
			for d, draw := range chain {
				if len(draw) != size {
					return nil, fmt.Errorf("%w: %q chain %d draw %d has %d elements, want %d", ErrRaggedDraws, v.Name, c, d, len(draw), size)
				}
			}
		}
		ds.vars[v.Name] = v
	}
	if ds.chains == 0 || ds.draws == 0 {
		return nil, ErrEmptyDataset
	}
	return ds, nil
}

func (ds *Dataset) Chains() int { return ds.chains }
func (ds *Dataset) Draws() int  { return ds.draws }

// SampleCount is draws × chains, the x coordinate of progress plots.
func (ds *Dataset) SampleCount() int { return ds.draws * ds.chains }

// Var returns the named variable.
func (ds *Dataset) Var(name string) (*Variable, bool) {
	v, ok := ds.vars[name]
	return v, ok
}

// VarNames returns the variable names in sorted order.
func (ds *Dataset) VarNames() []string {
	names := make([]string, 0, len(ds.vars))
	for n := range ds.vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Head returns a dataset restricted to the first k draws of every chain.
// The draw slices are shared with the receiver; k is clamped to [1, Draws()].
func (ds *Dataset) Head(k int) *Dataset {
	if k >= ds.draws {
		return ds
	}
	if k < 1 {
		k = 1
	}
	out := &Dataset{vars: make(map[string]*Variable, len(ds.vars)), chains: ds.chains, draws: k}
	for name, v := range ds.vars {
		values := make([][][]float64, len(v.Values))
		for c, chain := range v.Values {
			values[c] = chain[:k]
		}
		out.vars[name] = &Variable{Name: name, Shape: v.Shape, Values: values}
	}
	return out
}

// ShapeSize is the product of the dimensions (1 for a scalar shape).
func ShapeSize(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
