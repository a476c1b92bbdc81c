package domain

import (
	"fmt"
	"maps"
	"math"
)

// WeightTotal is the sum a normalized weight map adds up to.
const WeightTotal = 100.0

// WeightMap assigns a relative importance to each criterion.
// Normalized maps sum to WeightTotal over their active criteria.
type WeightMap map[Criterion]float64

// EqualWeights splits WeightTotal evenly across the active criteria.
func EqualWeights(active []Criterion) WeightMap {
	w := make(WeightMap, len(active))
	if len(active) == 0 {
		return w
	}
	share := WeightTotal / float64(len(active))
	for _, c := range active {
		w[c] = share
	}
	return w
}

// Sum returns the total weight.
func (w WeightMap) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

// Clone returns an independent copy.
func (w WeightMap) Clone() WeightMap {
	if w == nil {
		return nil
	}
	return maps.Clone(w)
}

// Normalize rescales the weights of the active criteria so they sum to
// WeightTotal. Entries for criteria outside active are dropped, and active
// criteria without an entry get zero. An empty map, or one whose active
// weights sum to zero, falls back to EqualWeights. Negative or non-finite
// weights are rejected.
func (w WeightMap) Normalize(active []Criterion) (WeightMap, error) {
	for c, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("%w: %s=%v", ErrInvalidWeights, c, v)
		}
	}

	var total float64
	for _, c := range active {
		total += w[c]
	}
	if total == 0 || math.IsInf(total, 0) {
		return EqualWeights(active), nil
	}

	out := make(WeightMap, len(active))
	for _, c := range active {
		out[c] = w[c] / total * WeightTotal
	}
	return out, nil
}

// ParseWeights converts a name-keyed map, as received over JSON or CSV
// options, into a WeightMap. Names that are not criteria are skipped and
// returned so callers can report them.
func ParseWeights(raw map[string]float64) (WeightMap, []string) {
	w := make(WeightMap, len(raw))
	var ignored []string
	for name, v := range raw {
		c, err := ParseCriterion(name)
		if err != nil {
			ignored = append(ignored, name)
			continue
		}
		w[c] += v
	}
	return w, ignored
}
