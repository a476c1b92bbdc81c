package domain

import (
	"fmt"
	"math"
)

// BatchRequest asks the orchestration layer to score a set of essays with one
// configuration.
type BatchRequest struct {
	// BatchID identifies the batch and seeds event idempotency keys.
	BatchID string `json:"batch_id" validate:"required"`

	// Essays are scored independently; order is preserved in the result.
	Essays []EssayRecord `json:"essays" validate:"required,min=1,dive"`

	// Config is shared by every essay in the batch.
	Config EvaluationConfig `json:"config"`
}

// Validate checks the batch envelope, every record and the configuration.
func (b *BatchRequest) Validate() error {
	if len(b.Essays) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, ErrEmptyBatch)
	}
	if err := b.Config.Validate(); err != nil {
		return err
	}
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	seen := make(map[string]struct{}, len(b.Essays))
	for i := range b.Essays {
		id := b.Essays[i].ID
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate essay_id %q", ErrInvalidRequest, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// EssayFailure records an essay the batch could not score.
type EssayFailure struct {
	// Index is the essay's position in the submitted batch.
	Index   int    `json:"index"`
	EssayID string `json:"essay_id"`
	Error   string `json:"error"`
}

// Scored drops the nil entries of a position-aligned result slice.
func Scored(results []*ScoredEssay) []ScoredEssay {
	out := make([]ScoredEssay, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// BatchSummary aggregates overall scores across a batch on the 0-100 scale.
type BatchSummary struct {
	TotalEssays int            `json:"total_essays"`
	AvgScore    float64        `json:"avg_score"`
	MinScore    float64        `json:"min_score"`
	MaxScore    float64        `json:"max_score"`
	Grades      map[string]int `json:"grades,omitempty"`
}

// BatchResult is the output of a batch scoring run.
type BatchResult struct {
	BatchID string         `json:"batch_id"`
	Results []ScoredEssay  `json:"results"`
	Failed  []EssayFailure `json:"failed,omitempty"`
	Summary BatchSummary   `json:"summary"`
}

// ScoreEssayInput is the payload of the ScoreEssay activity.
type ScoreEssayInput struct {
	BatchID string           `json:"batch_id" validate:"required"`
	Index   int              `json:"index" validate:"min=0"`
	Essay   EssayRecord      `json:"essay"`
	Config  EvaluationConfig `json:"config"`
}

// Validate checks the activity input.
func (in *ScoreEssayInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := in.Essay.Validate(); err != nil {
		return err
	}
	return in.Config.Validate()
}

// ScoreEssayOutput is the result of the ScoreEssay activity.
type ScoreEssayOutput struct {
	Result ScoredEssay `json:"result"`
}

// SummarizeBatchInput is the payload of the SummarizeBatch activity.
type SummarizeBatchInput struct {
	BatchID string        `json:"batch_id" validate:"required"`
	Results []ScoredEssay `json:"results"`
	Failed  int           `json:"failed" validate:"min=0"`
}

// Validate checks the activity input.
func (in *SummarizeBatchInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	for i := range in.Results {
		o := in.Results[i].Overall
		if math.IsNaN(o) || o < 0 || o > 1 {
			return fmt.Errorf("%w: result %d overall %v outside [0, 1]", ErrInvalidRequest, i, o)
		}
	}
	return nil
}
