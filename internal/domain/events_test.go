package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyKeys(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, EssayScoredIdempotencyKey("b1", "e1"), EssayScoredIdempotencyKey("b1", "e1"))
		assert.Equal(t, BatchSummarizedIdempotencyKey("b1"), BatchSummarizedIdempotencyKey("b1"))
	})

	t.Run("distinct per event", func(t *testing.T) {
		keys := map[string]struct{}{
			EssayScoredIdempotencyKey("b1", "e1"): {},
			EssayScoredIdempotencyKey("b1", "e2"): {},
			EssayScoredIdempotencyKey("b2", "e1"): {},
			BatchSummarizedIdempotencyKey("b1"):   {},
		}
		assert.Len(t, keys, 4)
	})

	t.Run("hex sha256", func(t *testing.T) {
		k := GenerateIdempotencyKey("", "")
		assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", k)
	})
}

func TestNewEssayScoredPayload(t *testing.T) {
	s := &ScoredEssay{
		EssayID: "essay_3",
		Rubric:  RubricCore,
		Scale:   ScaleLetterAE,
		Fuzzy:   map[Criterion]float64{CriterionIdeas: 0.7},
		Overall: 0.7,
		Final:   "C",
	}
	p, err := NewEssayScoredPayload("batch", s)
	require.NoError(t, err)
	assert.Equal(t, "essay_3", p.EssayID)
	assert.Equal(t, "batch", p.BatchID)
	assert.Equal(t, "C", p.Final)

	s.Final = ""
	_, err = NewEssayScoredPayload("batch", s)
	require.Error(t, err)

	s.Final = "C"
	s.Overall = 1.5
	_, err = NewEssayScoredPayload("batch", s)
	require.Error(t, err)
}

func TestBatchSummarizedPayloadValidate(t *testing.T) {
	p := BatchSummarizedPayload{BatchID: "b", Summary: BatchSummary{TotalEssays: 1}}
	require.NoError(t, p.Validate())

	p.Failed = -1
	require.Error(t, p.Validate())
}
