package analysis

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ahartikainen/fit-check-fit-loop/src/monitor"
	"github.com/ahartikainen/fit-check-fit-loop/src/types"
)

// MaxLineBytes caps one JSONL draw line.
const MaxLineBytes = 64 * 1024 * 1024

// DrawRecord is one line of a draws file:
//
//	{"chain":0,"draw":12,"values":{"alpha":1.3,"beta":[0.1,0.2]}}
type DrawRecord struct {
	Chain  int                        `json:"chain"`
	Draw   int                        `json:"draw"`
	Values map[string]json.RawMessage `json:"values"`
}

// LoadDraws reads a JSONL draws file into a Dataset.
func LoadDraws(path string) (*types.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	monitor.Debugf("[analysis] reading draws from %s", path)
	ds, err := ReadDraws(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

type element struct {
	shape  []int
	values []float64
}

// ReadDraws parses JSONL draw records. Lines that are not valid records, or that
// hold a null value, are skipped.
// Chains are truncated to the shortest contiguous run of draws starting at 0, so a
// file that is still being written by a sampler can be read.
func ReadDraws(r io.Reader) (*types.Dataset, error) {
	reader := bufio.NewReader(r)
	// per variable: chain -> draw -> flattened values
	grid := map[string]map[int]map[int][]float64{}
	shapes := map[string][]int{}
	skipped := 0
	lineNo := 0
readLoop:
	for {
		var line []byte
		for {
			part, rerr := reader.ReadBytes('\n')
			if len(part) > 0 {
				if len(line)+len(part) > MaxLineBytes {
					return nil, fmt.Errorf("line %d too large: exceeds %d bytes", lineNo+1, MaxLineBytes)
				}
				line = append(line, part...)
			}
			if rerr == nil {
				break
			}
			if errors.Is(rerr, io.EOF) {
				if len(line) == 0 {
					break readLoop
				}
				break
			}
			return nil, rerr
		}
		lineNo++
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var rec DrawRecord
		if err := json.Unmarshal(line, &rec); err != nil || rec.Values == nil || rec.Chain < 0 || rec.Draw < 0 {
			skipped++
			continue
		}
		decoded := make(map[string]element, len(rec.Values))
		for name, raw := range rec.Values {
			el, err := decodeElement(raw)
			if errors.Is(err, errMissingValue) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("line %d variable %q: %w", lineNo, name, err)
			}
			decoded[name] = el
		}
		if len(decoded) != len(rec.Values) {
			skipped++
			continue
		}
		for name, el := range decoded {
			if prev, ok := shapes[name]; !ok {
				shapes[name] = el.shape
			} else if !sameShape(prev, el.shape) {
				return nil, fmt.Errorf("%w: line %d variable %q shape %v, want %v", types.ErrRaggedDraws, lineNo, name, el.shape, prev)
			}
			chains := grid[name]
			if chains == nil {
				chains = map[int]map[int][]float64{}
				grid[name] = chains
			}
			draws := chains[rec.Chain]
			if draws == nil {
				draws = map[int][]float64{}
				chains[rec.Chain] = draws
			}
			draws[rec.Draw] = el.values
		}
	}
	if skipped > 0 {
		monitor.Warnf("[analysis] skipped %d malformed draw lines", skipped)
	}
	if len(grid) == 0 {
		return nil, types.ErrEmptyDataset
	}

	nChains, nDraws := layout(grid)
	if nChains == 0 || nDraws == 0 {
		return nil, types.ErrEmptyDataset
	}
	names := make([]string, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Strings(names)
	vars := make([]*types.Variable, 0, len(names))
	for _, name := range names {
		values := make([][][]float64, nChains)
		for c := 0; c < nChains; c++ {
			values[c] = make([][]float64, nDraws)
			for d := 0; d < nDraws; d++ {
				values[c][d] = grid[name][c][d]
			}
		}
		vars = append(vars, &types.Variable{Name: name, Shape: shapes[name], Values: values})
	}
	return types.NewDataset(vars)
}

// layout finds the chains 0..C-1 present for every variable and the number of
// leading draws every one of them has.
func layout(grid map[string]map[int]map[int][]float64) (int, int) {
	nChains := -1
	for _, chains := range grid {
		c := 0
		for chains[c] != nil {
			c++
		}
		if nChains < 0 || c < nChains {
			nChains = c
		}
	}
	nDraws := -1
	for _, chains := range grid {
		for c := 0; c < nChains; c++ {
			d := 0
			for chains[c][d] != nil {
				d++
			}
			if nDraws < 0 || d < nDraws {
				nDraws = d
			}
		}
	}
	if nDraws < 0 {
		nDraws = 0
	}
	return nChains, nDraws
}

// errMissingValue marks a null value; the record it belongs to is skipped.
var errMissingValue = errors.New("missing value")

// decodeElement flattens a JSON number or (nested) array into row-major values and its shape.
// values is never nil, so zero-size arrays still mark the draw as present.
func decodeElement(raw json.RawMessage) (element, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return element{}, err
	}
	el := element{values: []float64{}}
	if err := flatten(v, 0, &el); err != nil {
		return element{}, err
	}
	return el, nil
}

func flatten(v interface{}, depth int, el *element) error {
	switch t := v.(type) {
	case float64:
		if depth != len(el.shape) {
			return fmt.Errorf("%w: scalar at depth %d", types.ErrRaggedDraws, depth)
		}
		el.values = append(el.values, t)
	case []interface{}:
		if depth == len(el.shape) {
			if len(el.values) > 0 {
				return fmt.Errorf("%w: array at depth %d", types.ErrRaggedDraws, depth)
			}
			el.shape = append(el.shape, len(t))
		} else if depth > len(el.shape) || el.shape[depth] != len(t) {
			return fmt.Errorf("%w: inconsistent length at depth %d", types.ErrRaggedDraws, depth)
		}
		for _, item := range t {
			if err := flatten(item, depth+1, el); err != nil {
				return err
			}
		}
	case nil:
		return errMissingValue
	default:
		return fmt.Errorf("unsupported value %T", v)
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
