// Package domain provides the core types for essay scoring: the closed
// criterion, rubric and scale enumerations, criterion weights, the immutable
// per-request evaluation configuration, essay records and scored results, and
// the batch and event types exchanged with the orchestration layer.
//
// Configuration is built once per request with NewEvaluationConfig and passed
// by value into the scoring pipeline; nothing in this package is mutated after
// construction.
package domain

import (
	"fmt"
	"maps"
	"math"
	"time"
)

// weightTolerance bounds floating-point drift when checking a normalized sum.
const weightTolerance = 1e-6

// EvaluationConfig selects the rubric, its normalized weights and the output
// scale for one request or batch.
type EvaluationConfig struct {
	// Rubric selects the active criteria.
	Rubric RubricChoice `json:"rubric" validate:"min=1,max=3"`

	// Weights holds the normalized weight of each active criterion.
	// Entries sum to WeightTotal.
	Weights WeightMap `json:"weights" validate:"required,min=1"`

	// Scale selects the final representation of the overall score.
	Scale Scale `json:"scale" validate:"min=1,max=6"`
}

// NewEvaluationConfig validates the rubric and scale and normalizes the raw
// weights over the rubric's criteria. Nil or zero-sum weights yield equal
// weights.
func NewEvaluationConfig(rubric RubricChoice, weights WeightMap, scale Scale) (EvaluationConfig, error) {
	if !rubric.Valid() {
		return EvaluationConfig{}, fmt.Errorf("%w: %w: %d", ErrInvalidConfig, ErrUnknownRubric, rubric)
	}
	if !scale.Valid() {
		return EvaluationConfig{}, fmt.Errorf("%w: %w: %d", ErrInvalidConfig, ErrUnknownScale, scale)
	}
	normalized, err := weights.Normalize(rubric.Criteria())
	if err != nil {
		return EvaluationConfig{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return EvaluationConfig{Rubric: rubric, Weights: normalized, Scale: scale}, nil
}

// DefaultEvaluationConfig returns the default rubric with equal weights on
// the default scale.
func DefaultEvaluationConfig() EvaluationConfig {
	return EvaluationConfig{
		Rubric:  DefaultRubric,
		Weights: EqualWeights(DefaultRubric.Criteria()),
		Scale:   DefaultScale,
	}
}

// Active returns the rubric's criteria.
func (c EvaluationConfig) Active() []Criterion { return c.Rubric.Criteria() }

// Validate checks struct constraints and that the weights are normalized
// over exactly the active criteria. It guards configs that crossed a
// serialization boundary.
func (c *EvaluationConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !c.Rubric.Valid() || !c.Scale.Valid() {
		return fmt.Errorf("%w: rubric %d scale %d", ErrInvalidConfig, c.Rubric, c.Scale)
	}
	active := c.Active()
	if len(c.Weights) != len(active) {
		return fmt.Errorf("%w: %d weights for %d active criteria", ErrInvalidConfig, len(c.Weights), len(active))
	}
	for _, crit := range active {
		v, ok := c.Weights[crit]
		if !ok {
			return fmt.Errorf("%w: missing weight for %s", ErrInvalidConfig, crit)
		}
		if math.IsNaN(v) || v < 0 {
			return fmt.Errorf("%w: %w: %s=%v", ErrInvalidConfig, ErrInvalidWeights, crit, v)
		}
	}
	if sum := c.Weights.Sum(); math.Abs(sum-WeightTotal) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want %v", ErrInvalidConfig, sum, WeightTotal)
	}
	return nil
}

// RawScoreSet maps criteria to raw sub-scores produced by the external
// evaluators. A missing entry means the producer did not report a score.
type RawScoreSet map[Criterion]float64

// Get returns the raw score for c, or NaN when absent so inference falls back
// to its neutral score.
func (r RawScoreSet) Get(c Criterion) float64 {
	if v, ok := r[c]; ok {
		return v
	}
	return math.NaN()
}

// Finite returns a copy without NaN or infinite entries. JSON cannot carry
// those values, so records are sanitized before crossing process boundaries.
func (r RawScoreSet) Finite() RawScoreSet {
	if r == nil {
		return nil
	}
	out := make(RawScoreSet, len(r))
	for c, v := range r {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[c] = v
		}
	}
	return out
}

// Clone returns an independent copy.
func (r RawScoreSet) Clone() RawScoreSet {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// EssayRecord is one essay submitted for scoring.
type EssayRecord struct {
	// ID identifies the essay within its batch or request.
	ID string `json:"essay_id" validate:"required"`

	// Text is the essay body.
	Text string `json:"essay_text" validate:"required"`

	// Prompt is the question the essay answers.
	Prompt string `json:"prompt"`

	// Raw optionally carries precomputed raw sub-scores. When empty, the
	// configured evaluators produce them.
	Raw RawScoreSet `json:"raw_scores,omitempty"`
}

// Validate checks that the record carries an ID and text.
func (e *EssayRecord) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// ScoredEssay is the result of scoring one essay.
type ScoredEssay struct {
	EssayID string       `json:"essay_id"`
	Rubric  RubricChoice `json:"rubric"`
	Scale   Scale        `json:"scale"`

	// Raw holds the raw sub-scores that were fuzzified.
	Raw RawScoreSet `json:"raw_scores"`

	// Fuzzy holds the calibrated score for each active criterion.
	Fuzzy map[Criterion]float64 `json:"fuzzy_scores"`

	// Weights are the normalized weights used for aggregation.
	Weights WeightMap `json:"weights"`

	// Overall is the weighted overall score in [0, 1].
	Overall float64 `json:"overall_score"`

	// Scaled maps each scale's CSV column name to its representation.
	Scaled map[string]string `json:"scaled_scores"`

	// Final is the representation on the configured scale.
	Final string `json:"final_score"`

	// Band is the qualitative performance band for Overall.
	Band string `json:"band"`

	ScoredAt time.Time `json:"scored_at"`
}

// Percent returns the overall score on a 0-100 scale rounded to one decimal.
func (s *ScoredEssay) Percent() float64 {
	return math.Round(s.Overall*1000) / 10
}
