package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBatch() BatchRequest {
	return BatchRequest{
		BatchID: "batch-1",
		Essays: []EssayRecord{
			{ID: "essay_0", Text: "First essay.", Prompt: "Discuss."},
			{ID: "essay_1", Text: "Second essay.", Prompt: "Discuss.", Raw: RawScoreSet{CriterionGrammar: 0.8}},
		},
		Config: DefaultEvaluationConfig(),
	}
}

func TestBatchRequestValidate(t *testing.T) {
	b := validBatch()
	require.NoError(t, b.Validate())

	tests := []struct {
		name   string
		mutate func(*BatchRequest)
		target error
	}{
		{"no essays", func(b *BatchRequest) { b.Essays = nil }, ErrEmptyBatch},
		{"missing batch id", func(b *BatchRequest) { b.BatchID = "" }, ErrInvalidRequest},
		{"essay without text", func(b *BatchRequest) { b.Essays[1].Text = "" }, ErrInvalidRequest},
		{"duplicate essay ids", func(b *BatchRequest) { b.Essays[1].ID = "essay_0" }, ErrInvalidRequest},
		{"bad config", func(b *BatchRequest) { b.Config.Scale = 0 }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBatch()
			tt.mutate(&b)
			require.ErrorIs(t, b.Validate(), tt.target)
		})
	}
}

func TestScoreEssayInputValidate(t *testing.T) {
	in := ScoreEssayInput{
		BatchID: "b",
		Essay:   EssayRecord{ID: "e", Text: "t"},
		Config:  DefaultEvaluationConfig(),
	}
	require.NoError(t, in.Validate())

	in.Index = -1
	require.ErrorIs(t, in.Validate(), ErrInvalidRequest)

	in.Index = 0
	in.Essay.Text = ""
	require.ErrorIs(t, in.Validate(), ErrInvalidRequest)
}

func TestSummarizeBatchInputValidate(t *testing.T) {
	in := SummarizeBatchInput{
		BatchID: "b",
		Results: []ScoredEssay{{EssayID: "e", Overall: 0.4}},
	}
	require.NoError(t, in.Validate())

	in.Results[0].Overall = 1.2
	err := in.Validate()
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "outside [0, 1]")

	in = SummarizeBatchInput{}
	require.ErrorIs(t, in.Validate(), ErrInvalidRequest)
}
