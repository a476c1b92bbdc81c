package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Event types emitted by the scoring pipeline.
const (
	// EventTypeEssayScored is emitted once per scored essay.
	EventTypeEssayScored = "scoring.essay_scored"

	// EventTypeBatchSummarized is emitted once per completed batch.
	EventTypeBatchSummarized = "scoring.batch_summarized"
)

// EssayScoredPayload is the body of an EssayScored event.
type EssayScoredPayload struct {
	BatchID string                `json:"batch_id,omitempty"`
	EssayID string                `json:"essay_id" validate:"required"`
	Rubric  RubricChoice          `json:"rubric" validate:"min=1,max=3"`
	Fuzzy   map[Criterion]float64 `json:"fuzzy_scores"`
	Overall float64               `json:"overall_score" validate:"min=0,max=1"`
	Scale   Scale                 `json:"scale" validate:"min=1,max=6"`
	Final   string                `json:"final_score" validate:"required"`
}

// Validate checks the payload.
func (p *EssayScoredPayload) Validate() error { return validate.Struct(p) }

// NewEssayScoredPayload builds the event body from a scored essay.
func NewEssayScoredPayload(batchID string, s *ScoredEssay) (EssayScoredPayload, error) {
	p := EssayScoredPayload{
		BatchID: batchID,
		EssayID: s.EssayID,
		Rubric:  s.Rubric,
		Fuzzy:   s.Fuzzy,
		Overall: s.Overall,
		Scale:   s.Scale,
		Final:   s.Final,
	}
	if err := p.Validate(); err != nil {
		return EssayScoredPayload{}, fmt.Errorf("invalid essay scored payload: %w", err)
	}
	return p, nil
}

// BatchSummarizedPayload is the body of a BatchSummarized event.
type BatchSummarizedPayload struct {
	BatchID string       `json:"batch_id" validate:"required"`
	Summary BatchSummary `json:"summary"`
	Failed  int          `json:"failed" validate:"min=0"`
}

// Validate checks the payload.
func (p *BatchSummarizedPayload) Validate() error { return validate.Struct(p) }

// GenerateIdempotencyKey hashes a client key and an event suffix so retries
// and replays of the same logical event produce the same key.
func GenerateIdempotencyKey(clientKey, eventSuffix string) string {
	h := sha256.Sum256([]byte(clientKey + eventSuffix))
	return hex.EncodeToString(h[:])
}

// EssayScoredIdempotencyKey is H(batch_id || ":essay:" || essay_id).
func EssayScoredIdempotencyKey(batchID, essayID string) string {
	return GenerateIdempotencyKey(batchID, ":essay:"+essayID)
}

// BatchSummarizedIdempotencyKey is H(batch_id || ":summary").
func BatchSummarizedIdempotencyKey(batchID string) string {
	return GenerateIdempotencyKey(batchID, ":summary")
}
