package fuzzy

import (
	"log/slog"
	"math"
)

// Inference constants.
const (
	// NeutralScore is returned whenever inference cannot produce a meaningful
	// result: invalid input, zero aggregate mass, or a numerical fault.
	NeutralScore = 0.5

	// ClampMin and ClampMax bound the raw score before fuzzification so exact
	// universe edges never reach the membership functions.
	ClampMin = 0.01
	ClampMax = 0.99
)

// FallbackReason explains why inference returned NeutralScore.
type FallbackReason string

// Fallback reasons reported by Explain.
const (
	FallbackNone         FallbackReason = ""
	FallbackInvalidInput FallbackReason = "invalid_input"
	FallbackZeroMass     FallbackReason = "zero_aggregate_mass"
	FallbackNumerical    FallbackReason = "numerical_fault"
)

// Inference is the full trace of one evaluation, for diagnostics.
type Inference struct {
	Criterion string           `json:"criterion"`
	Raw       float64          `json:"raw"`
	Clamped   float64          `json:"clamped"`
	Strengths map[Term]float64 `json:"firing_strengths"`
	Aggregate []float64        `json:"aggregate,omitempty"`
	Score     float64          `json:"score"`
	Fallback  FallbackReason   `json:"fallback,omitempty"`
}

// Infer maps a raw score through the profile and returns the centroid of the
// aggregated output set. It never fails: non-finite or out-of-range input,
// an empty aggregate, or any numerical fault yields NeutralScore.
func Infer(p *Profile, raw float64) float64 {
	return infer(p, raw, nil).Score
}

// Explain is Infer with the intermediate firing strengths and aggregate
// membership curve retained.
func Explain(p *Profile, raw float64) Inference {
	agg := []float64{}
	return infer(p, raw, &agg)
}

// ValidRaw reports whether a raw score is usable as inference input.
func ValidRaw(raw float64) bool {
	return !math.IsNaN(raw) && !math.IsInf(raw, 0) && raw >= 0 && raw <= 1
}

// Clamp bounds a valid raw score into [ClampMin, ClampMax].
func Clamp(raw float64) float64 {
	return math.Max(ClampMin, math.Min(raw, ClampMax))
}

func infer(p *Profile, raw float64, trace *[]float64) (res Inference) {
	res = Inference{Raw: raw, Score: NeutralScore}
	if p == nil || !ValidRaw(raw) {
		res.Fallback = FallbackInvalidInput
		return res
	}
	res.Criterion = p.criterion

	defer func() {
		if r := recover(); r != nil {
			slog.Default().With("component", "fuzzy").Error("inference panicked, using neutral score",
				"criterion", p.criterion,
				"raw", raw,
				"panic", r)
			res.Score = NeutralScore
			res.Fallback = FallbackNumerical
		}
	}()

	x := Clamp(raw)
	res.Clamped = x

	// Fuzzification: one firing strength per rule antecedent.
	strengths := make([]float64, len(p.compiled))
	res.Strengths = make(map[Term]float64, NumTerms)
	for i, r := range p.compiled {
		strengths[i] = p.input.degreeAt(r.in, x)
		res.Strengths[orderedTerms[r.in]] = math.Max(res.Strengths[orderedTerms[r.in]], strengths[i])
	}

	// Implication by min, aggregation by max, centroid over the samples.
	var num, den float64
	for _, y := range p.output.samples {
		agg := 0.0
		for i, r := range p.compiled {
			clipped := math.Min(strengths[i], p.output.degreeAt(r.out, y))
			if clipped > agg {
				agg = clipped
			}
		}
		if trace != nil {
			*trace = append(*trace, agg)
		}
		num += y * agg
		den += agg
	}
	if trace != nil {
		res.Aggregate = *trace
	}

	if den == 0 {
		res.Fallback = FallbackZeroMass
		return res
	}
	score := num / den
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 1 {
		res.Fallback = FallbackNumerical
		return res
	}
	res.Score = score
	return res
}
