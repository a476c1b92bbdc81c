// Package aggregation combines per-criterion fuzzy scores into a single
// weighted overall score and summarizes batches of scored essays. The pure
// functions here are used on the request path; Activities exposes batch
// summarization to Temporal workflows.
package aggregation

import (
	"math"

	"github.com/ahrav/go-essaygrade/internal/domain"
)

// Contribution is one active criterion's share of the overall score.
type Contribution struct {
	Criterion domain.Criterion `json:"criterion"`
	Fuzzy     float64          `json:"fuzzy_score"`
	Weight    float64          `json:"weight"`
	Points    float64          `json:"points"`
	Missing   bool             `json:"missing,omitempty"`
}

// EffectiveWeights returns the weights aggregation will apply. An empty map,
// or one whose values sum to zero, yields equal weights over active;
// otherwise the weights are used as given.
func EffectiveWeights(weights domain.WeightMap, active []domain.Criterion) domain.WeightMap {
	if len(weights) == 0 || weights.Sum() == 0 {
		return domain.EqualWeights(active)
	}
	return weights
}

// Contributions breaks the overall score down by active criterion, in the
// order of active. A missing or non-finite fuzzy score contributes zero.
func Contributions(
	fuzzy map[domain.Criterion]float64,
	weights domain.WeightMap,
	active []domain.Criterion,
) []Contribution {
	w := EffectiveWeights(weights, active)
	out := make([]Contribution, 0, len(active))
	for _, c := range active {
		score, ok := fuzzy[c]
		missing := !ok || math.IsNaN(score) || math.IsInf(score, 0)
		if missing {
			score = 0
		}
		out = append(out, Contribution{
			Criterion: c,
			Fuzzy:     score,
			Weight:    w[c],
			Points:    score * w[c] / domain.WeightTotal,
			Missing:   missing,
		})
	}
	return out
}

// AggregateOverall computes Σ fuzzy[c] * weights[c] / 100 over the active
// criteria. Weights are expected to be normalized by the caller; see
// EffectiveWeights for the equal-weight fallback.
func AggregateOverall(
	fuzzy map[domain.Criterion]float64,
	weights domain.WeightMap,
	active []domain.Criterion,
) float64 {
	var overall float64
	for _, c := range Contributions(fuzzy, weights, active) {
		overall += c.Points
	}
	return overall
}

// Summarize reports count, mean, min and max of the overall scores on the
// 0-100 scale, plus a count of final representations.
func Summarize(results []domain.ScoredEssay) domain.BatchSummary {
	if len(results) == 0 {
		return domain.BatchSummary{}
	}

	s := domain.BatchSummary{
		TotalEssays: len(results),
		MinScore:    math.Inf(1),
		MaxScore:    math.Inf(-1),
		Grades:      make(map[string]int),
	}
	var total float64
	for i := range results {
		p := results[i].Percent()
		total += p
		s.MinScore = math.Min(s.MinScore, p)
		s.MaxScore = math.Max(s.MaxScore, p)
		if f := results[i].Final; f != "" {
			s.Grades[f]++
		}
	}
	s.AvgScore = math.Round(total/float64(len(results))*10) / 10
	return s
}
