package monitor

import (
	"github.com/ahartikainen/fit-check-fit-loop/src/types"
)

// LineKind tags what a registry key refers to.
type LineKind uint8

const (
	KindVariable LineKind = iota // scalar variable
	KindElement                  // one element of an array variable
	KindMinimum                  // minimum across variables
	KindMaximum                  // maximum across variables
	KindLimit                    // horizontal target line
)

// LineKey identifies a line in a Registry. Reserved kinds carry no name, so a
// variable called "__minimum" never collides with the aggregate line.
type LineKey struct {
	Kind  LineKind
	Name  string
	Index string // formatted index tuple, KindElement only
}

func VariableKey(name string) LineKey { return LineKey{Kind: KindVariable, Name: name} }

func ElementKey(name string, idx []int) LineKey {
	return LineKey{Kind: KindElement, Name: name, Index: types.FormatIndex(idx)}
}

func MinimumKey() LineKey { return LineKey{Kind: KindMinimum} }
func MaximumKey() LineKey { return LineKey{Kind: KindMaximum} }
func LimitKey() LineKey   { return LineKey{Kind: KindLimit} }

func (k LineKey) String() string {
	switch k.Kind {
	case KindElement:
		return k.Name + "_" + k.Index
	case KindMinimum:
		return "__minimum"
	case KindMaximum:
		return "__maximum"
	case KindLimit:
		return "__plot_limit"
	}
	return k.Name
}

// Registry maps line keys to the lines they own. CreatePlot fills it, UpdatePlot
// appends to its lines; entries are never removed.
type Registry map[LineKey]*Line
