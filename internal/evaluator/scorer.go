// Package evaluator defines the raw-score producers that feed the fuzzy
// engine. Every producer implements the same two-argument Scorer interface,
// whatever technique backs it. The package ships fixed-value and function
// adapters for tests and offline use, and an HTTP client for a remote NLP
// scoring service.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-essaygrade/internal/domain"
)

// DefaultMaxConcurrency bounds concurrent producer calls for one essay.
const DefaultMaxConcurrency = 4

// ErrInvalidScore indicates a producer returned a value outside [0, 1].
var ErrInvalidScore = errors.New("raw score outside [0, 1]")

// Scorer produces a raw score in [0, 1] for one criterion of an essay.
type Scorer interface {
	Score(ctx context.Context, text, prompt string) (float64, error)
}

// Static always returns the same score.
type Static float64

// Score implements Scorer.
func (s Static) Score(context.Context, string, string) (float64, error) { return float64(s), nil }

// Func adapts a function to Scorer.
type Func func(ctx context.Context, text, prompt string) (float64, error)

// Score implements Scorer.
func (f Func) Score(ctx context.Context, text, prompt string) (float64, error) {
	return f(ctx, text, prompt)
}

// Set maps each criterion to its producer.
type Set map[domain.Criterion]Scorer

// Criteria lists the criteria that have a producer, in canonical order.
func (s Set) Criteria() []domain.Criterion {
	var out []domain.Criterion
	for _, c := range domain.AllCriteria() {
		if _, ok := s[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Collect runs the producers for criteria concurrently and returns the
// scores that succeeded. A producer that errors, returns an out-of-range
// value, or is missing from set leaves its criterion absent; the error is
// logged and the remaining criteria are still collected.
func Collect(ctx context.Context, set Set, criteria []domain.Criterion, text, prompt string) domain.RawScoreSet {
	logger := slog.Default().With("component", "evaluator")

	var (
		mu  sync.Mutex
		out = make(domain.RawScoreSet, len(criteria))
		g   errgroup.Group
	)
	g.SetLimit(DefaultMaxConcurrency)

	for _, c := range criteria {
		scorer, ok := set[c]
		if !ok || scorer == nil {
			logger.WarnContext(ctx, "no producer for criterion", "criterion", c)
			continue
		}
		g.Go(func() error {
			v, err := scoreOne(ctx, scorer, text, prompt)
			if err != nil {
				logger.WarnContext(ctx, "raw score unavailable",
					"criterion", c,
					"error", err)
				return nil
			}
			mu.Lock()
			out[c] = v
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func scoreOne(ctx context.Context, s Scorer, text, prompt string) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("producer panicked: %v", r)
		}
	}()
	v, err = s.Score(ctx, text, prompt)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScore, v)
	}
	return v, nil
}
