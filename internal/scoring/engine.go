// Package scoring runs the essay-scoring pipeline: collect raw sub-scores,
// fuzzify each active criterion through its calibrated profile, aggregate
// with the configured weights and render the result on every output scale.
//
// Engine is safe for concurrent use; it holds only immutable profiles and
// producers. Activities exposes single-essay scoring to Temporal workflows.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-essaygrade/internal/aggregation"
	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/internal/evaluator"
	"github.com/ahrav/go-essaygrade/internal/fuzzy"
	"github.com/ahrav/go-essaygrade/internal/scale"
)

// DefaultMaxConcurrency bounds concurrent essays in ScoreBatch.
const DefaultMaxConcurrency = 5

// ErrNoProfiles is returned by NewEngine when no profile set is supplied.
var ErrNoProfiles = errors.New("scoring: profile set is required")

// Engine scores essays against calibrated fuzzy profiles.
type Engine struct {
	profiles       *fuzzy.ProfileSet
	producers      evaluator.Set
	maxConcurrency int
	now            func() time.Time
	logger         *slog.Logger
}

// NewEngine builds an engine. producers may be nil, in which case essays
// must carry their own raw scores; criteria without one score neutrally.
func NewEngine(profiles *fuzzy.ProfileSet, producers evaluator.Set) (*Engine, error) {
	if profiles == nil {
		return nil, ErrNoProfiles
	}
	return &Engine{
		profiles:       profiles,
		producers:      producers,
		maxConcurrency: DefaultMaxConcurrency,
		now:            time.Now,
		logger:         slog.Default().With("component", "scoring"),
	}, nil
}

// NewDefaultEngine builds an engine over the built-in calibrations.
func NewDefaultEngine(producers evaluator.Set) (*Engine, error) {
	profiles, err := fuzzy.DefaultProfiles()
	if err != nil {
		return nil, err
	}
	return NewEngine(profiles, producers)
}

// SetMaxConcurrency overrides the batch concurrency limit. Values below one
// restore the default.
func (e *Engine) SetMaxConcurrency(n int) {
	if n < 1 {
		n = DefaultMaxConcurrency
	}
	e.maxConcurrency = n
}

// Profiles returns the engine's profile set.
func (e *Engine) Profiles() *fuzzy.ProfileSet { return e.profiles }

// Fuzzify maps each active criterion's raw score to its calibrated score. An
// absent raw score infers neutrally.
func (e *Engine) Fuzzify(raw domain.RawScoreSet, active []domain.Criterion) (map[domain.Criterion]float64, error) {
	out := make(map[domain.Criterion]float64, len(active))
	for _, c := range active {
		v, err := e.profiles.Infer(string(c), raw.Get(c))
		if err != nil {
			return nil, fmt.Errorf("fuzzify %s: %w", c, err)
		}
		out[c] = v
	}
	return out, nil
}

// Explain returns the inference trace for each active criterion.
func (e *Engine) Explain(raw domain.RawScoreSet, active []domain.Criterion) (map[domain.Criterion]fuzzy.Inference, error) {
	out := make(map[domain.Criterion]fuzzy.Inference, len(active))
	for _, c := range active {
		inf, err := e.profiles.Explain(string(c), raw.Get(c))
		if err != nil {
			return nil, fmt.Errorf("explain %s: %w", c, err)
		}
		out[c] = inf
	}
	return out, nil
}

// RawScores returns the record's raw scores, with the active criteria it
// does not carry collected from the configured producers. A carried value
// always wins over a produced one, even when it is out of range.
func (e *Engine) RawScores(ctx context.Context, essay domain.EssayRecord, active []domain.Criterion) domain.RawScoreSet {
	raw := essay.Raw.Clone()
	if len(e.producers) == 0 {
		return raw
	}
	var missing []domain.Criterion
	for _, c := range active {
		if v, ok := raw[c]; !ok || math.IsNaN(v) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return raw
	}
	produced := evaluator.Collect(ctx, e.producers, missing, essay.Text, essay.Prompt)
	if raw == nil {
		return produced
	}
	maps.Copy(raw, produced)
	return raw
}

// Score runs the full pipeline for one essay.
func (e *Engine) Score(ctx context.Context, essay domain.EssayRecord, cfg domain.EvaluationConfig) (*domain.ScoredEssay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := essay.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	active := cfg.Active()
	raw := e.RawScores(ctx, essay, active)

	fz, err := e.Fuzzify(raw, active)
	if err != nil {
		return nil, err
	}

	overall := aggregation.AggregateOverall(fz, cfg.Weights, active)
	result := &domain.ScoredEssay{
		EssayID:  essay.ID,
		Rubric:   cfg.Rubric,
		Scale:    cfg.Scale,
		Raw:      raw.Finite(),
		Fuzzy:    fz,
		Weights:  cfg.Weights.Clone(),
		Overall:  overall,
		Scaled:   scale.ConvertAll(overall),
		Final:    scale.Convert(overall, cfg.Scale),
		Band:     scale.Band(overall),
		ScoredAt: e.now().UTC(),
	}

	e.logger.DebugContext(ctx, "essay scored",
		"essay_id", essay.ID,
		"rubric", cfg.Rubric,
		"overall", overall,
		"final", result.Final)
	return result, nil
}

// ScoreBatch scores essays concurrently. The returned slice is aligned with
// essays: results[i] belongs to essays[i] and is nil when that essay failed.
// Failures are also listed with their input index. The batch itself only
// fails on an invalid config or cancellation.
func (e *Engine) ScoreBatch(
	ctx context.Context,
	essays []domain.EssayRecord,
	cfg domain.EvaluationConfig,
) ([]*domain.ScoredEssay, []domain.EssayFailure, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	results := make([]*domain.ScoredEssay, len(essays))
	errs := make([]error, len(essays))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)
	for i := range essays {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = e.Score(gctx, essays[i], cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var failures []domain.EssayFailure
	for i, err := range errs {
		if err == nil {
			continue
		}
		results[i] = nil
		failures = append(failures, domain.EssayFailure{Index: i, EssayID: essays[i].ID, Error: err.Error()})
		e.logger.WarnContext(ctx, "essay failed",
			"essay_id", essays[i].ID,
			"index", i,
			"error", err)
	}
	return results, failures, nil
}
