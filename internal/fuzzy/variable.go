package fuzzy

import (
	"errors"
	"fmt"
	"math"
)

// Variable errors returned during construction and lookup.
var (
	// ErrUnknownTerm indicates a term name outside the fixed term set.
	ErrUnknownTerm = errors.New("unknown linguistic term")

	// ErrMissingTerm indicates a variable was built without one of the five terms.
	ErrMissingTerm = errors.New("missing linguistic term")

	// ErrCoverageGap indicates adjacent terms leave part of the universe uncovered.
	ErrCoverageGap = errors.New("terms do not cover the universe")

	// ErrInvalidUniverse indicates a universe with a non-positive step or empty range.
	ErrInvalidUniverse = errors.New("invalid universe")
)

// Term names a qualitative level on a linguistic axis.
type Term string

// The fixed term set, ordered from lowest to highest.
const (
	Poor      Term = "poor"
	Fair      Term = "fair"
	Good      Term = "good"
	VeryGood  Term = "very_good"
	Excellent Term = "excellent"
)

// NumTerms is the size of the fixed term set.
const NumTerms = 5

var orderedTerms = [NumTerms]Term{Poor, Fair, Good, VeryGood, Excellent}

// Terms returns the term set in low-to-high order.
func Terms() []Term {
	out := make([]Term, NumTerms)
	copy(out, orderedTerms[:])
	return out
}

// ParseTerm resolves a term name, failing with ErrUnknownTerm for anything
// outside the fixed set.
func ParseTerm(s string) (Term, error) {
	for _, t := range orderedTerms {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTerm, s)
}

// String returns the term name.
func (t Term) String() string { return string(t) }

func termIndex(t Term) int {
	for i, o := range orderedTerms {
		if o == t {
			return i
		}
	}
	return -1
}

// Universe is a closed interval sampled at a fixed step.
type Universe struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// DefaultUniverse is [0, 1] sampled every 0.01.
var DefaultUniverse = Universe{Min: 0, Max: 1, Step: 0.01}

// Validate checks the interval and step.
func (u Universe) Validate() error {
	if !(u.Step > 0) || !(u.Max > u.Min) || math.IsInf(u.Max-u.Min, 0) {
		return fmt.Errorf("%w: %+v", ErrInvalidUniverse, u)
	}
	return nil
}

// Len returns the number of samples, including both endpoints.
func (u Universe) Len() int {
	return int(math.Round((u.Max-u.Min)/u.Step)) + 1
}

// Samples returns the sampled points. Points are computed from their index
// rather than by repeated addition so the last sample lands exactly on Max.
func (u Universe) Samples() []float64 {
	n := u.Len()
	out := make([]float64, n)
	for i := range out {
		out[i] = u.Min + float64(i)*u.Step
	}
	out[n-1] = u.Max
	return out
}

// Variable is a named linguistic axis: a sampled universe and one trapezoid
// per term. Terms may overlap; they must jointly cover the universe.
type Variable struct {
	name     string
	universe Universe
	sets     [NumTerms]Trapezoid
	samples  []float64
}

// NewVariable builds a variable from a complete term-to-trapezoid mapping.
// It fails when a term is missing or unknown, a trapezoid is malformed, or the
// ordered terms leave a gap in the universe.
func NewVariable(name string, universe Universe, sets map[Term]Trapezoid) (*Variable, error) {
	if err := universe.Validate(); err != nil {
		return nil, err
	}
	for t := range sets {
		if termIndex(t) < 0 {
			return nil, fmt.Errorf("variable %s: %w: %q", name, ErrUnknownTerm, t)
		}
	}

	v := &Variable{name: name, universe: universe}
	for i, t := range orderedTerms {
		tr, ok := sets[t]
		if !ok {
			return nil, fmt.Errorf("variable %s: %w: %s", name, ErrMissingTerm, t)
		}
		if err := tr.Validate(); err != nil {
			return nil, fmt.Errorf("variable %s term %s: %w", name, t, err)
		}
		v.sets[i] = tr
	}
	if err := v.checkCoverage(); err != nil {
		return nil, err
	}
	v.samples = universe.Samples()
	return v, nil
}

// checkCoverage requires the first term to start at or before the universe
// minimum, the last to end at or after the maximum, and each term to start no
// later than its predecessor ends.
func (v *Variable) checkCoverage() error {
	if v.sets[0].A > v.universe.Min {
		return fmt.Errorf("variable %s: %w: %s starts at %g", v.name, ErrCoverageGap, orderedTerms[0], v.sets[0].A)
	}
	last := v.sets[NumTerms-1]
	if last.D < v.universe.Max {
		return fmt.Errorf("variable %s: %w: %s ends at %g", v.name, ErrCoverageGap, orderedTerms[NumTerms-1], last.D)
	}
	for i := 1; i < NumTerms; i++ {
		prev, cur := v.sets[i-1], v.sets[i]
		if cur.A > prev.D {
			return fmt.Errorf("variable %s: %w: between %s (ends %g) and %s (starts %g)",
				v.name, ErrCoverageGap, orderedTerms[i-1], prev.D, orderedTerms[i], cur.A)
		}
	}
	return nil
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Universe returns the sampled interval.
func (v *Variable) Universe() Universe { return v.universe }

// Terms returns the term names in low-to-high order.
func (v *Variable) Terms() []Term { return Terms() }

// Set returns the trapezoid backing a term.
func (v *Variable) Set(t Term) (Trapezoid, error) {
	i := termIndex(t)
	if i < 0 {
		return Trapezoid{}, fmt.Errorf("variable %s: %w: %q", v.name, ErrUnknownTerm, t)
	}
	return v.sets[i], nil
}

// Membership returns the degree of x in the named term.
func (v *Variable) Membership(t Term, x float64) (float64, error) {
	i := termIndex(t)
	if i < 0 {
		return 0, fmt.Errorf("variable %s: %w: %q", v.name, ErrUnknownTerm, t)
	}
	return v.sets[i].Degree(x), nil
}

// Samples returns a copy of the sampled universe.
func (v *Variable) Samples() []float64 {
	out := make([]float64, len(v.samples))
	copy(out, v.samples)
	return out
}

// Curve samples the named term across the universe.
func (v *Variable) Curve(t Term) ([]float64, error) {
	tr, err := v.Set(t)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(v.samples))
	for i, x := range v.samples {
		out[i] = tr.Degree(x)
	}
	return out, nil
}

// degreeAt is the unchecked lookup used on the inference hot path.
func (v *Variable) degreeAt(i int, x float64) float64 { return v.sets[i].Degree(x) }
