// Package fuzzy implements the Mamdani inference engine that turns a raw
// criterion sub-score into a calibrated fuzzy score. It defines trapezoidal
// membership functions, linguistic variables over a sampled universe,
// per-criterion profiles with their rule tables, and centroid defuzzification.
//
// Engine Architecture:
//   - Trapezoid: total membership function over the real line
//   - Variable: named axis holding the five ordered linguistic terms
//   - Profile: immutable input/output variable pair plus rule table
//   - Infer: fuzzify, clip, aggregate by max, centroid
//   - ProfileSet: criterion-keyed registry built once from calibration tables
//
// Every type in this package is read-only after construction, so profiles can
// be shared across goroutines without locking.
package fuzzy

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBreakpoints indicates a trapezoid whose breakpoints are not finite
// or violate the a <= b <= c <= d ordering.
var ErrInvalidBreakpoints = errors.New("invalid trapezoid breakpoints")

// Trapezoid is a trapezoidal membership function defined by four breakpoints.
// The degree is 0 below A, rises linearly to 1 between A and B, stays at 1
// between B and C, falls linearly to 0 between C and D, and is 0 above D.
// Degenerate shoulders (A == B or C == D) produce a step edge.
type Trapezoid struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
	D float64 `json:"d"`
}

// NewTrapezoid validates the breakpoints and returns the membership function.
// Malformed breakpoints are a configuration error and are rejected here so
// that Degree never has to handle them.
func NewTrapezoid(a, b, c, d float64) (Trapezoid, error) {
	t := Trapezoid{A: a, B: b, C: c, D: d}
	if err := t.Validate(); err != nil {
		return Trapezoid{}, err
	}
	return t, nil
}

// MustTrapezoid is like NewTrapezoid but panics on invalid breakpoints.
// It is intended for static calibration tables.
func MustTrapezoid(a, b, c, d float64) Trapezoid {
	t, err := NewTrapezoid(a, b, c, d)
	if err != nil {
		panic(err)
	}
	return t
}

// Validate checks that all breakpoints are finite and ordered.
func (t Trapezoid) Validate() error {
	for _, v := range [...]float64{t.A, t.B, t.C, t.D} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite breakpoint in %v", ErrInvalidBreakpoints, t)
		}
	}
	if t.A > t.B || t.B > t.C || t.C > t.D {
		return fmt.Errorf("%w: want a <= b <= c <= d, got %v", ErrInvalidBreakpoints, t)
	}
	return nil
}

// Degree returns the membership degree of x in [0, 1].
// It is total: values outside the support, infinities and NaN all yield 0.
func (t Trapezoid) Degree(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x < t.A || x > t.D:
		return 0
	case x >= t.B && x <= t.C:
		return 1
	case x < t.B:
		// A <= x < B implies A < B, so the slope is well defined.
		return (x - t.A) / (t.B - t.A)
	default:
		// C < x <= D implies C < D.
		return (t.D - x) / (t.D - t.C)
	}
}

// String renders the breakpoints as a tuple.
func (t Trapezoid) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", t.A, t.B, t.C, t.D)
}
