package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvaluationConfig(t *testing.T) {
	t.Run("normalizes weights over the rubric", func(t *testing.T) {
		cfg, err := NewEvaluationConfig(RubricCore, WeightMap{CriterionIdeas: 2, CriterionOrganization: 2}, ScaleLetterAE)
		require.NoError(t, err)
		assert.Equal(t, RubricCore, cfg.Rubric)
		assert.Equal(t, ScaleLetterAE, cfg.Scale)
		assert.InDelta(t, 50.0, cfg.Weights[CriterionIdeas], 1e-9)
		assert.Equal(t, 0.0, cfg.Weights[CriterionEvidence])
		require.NoError(t, cfg.Validate())
	})

	t.Run("nil weights become equal", func(t *testing.T) {
		cfg, err := NewEvaluationConfig(RubricFull, nil, ScaleFiftyPoint)
		require.NoError(t, err)
		for _, c := range RubricFull.Criteria() {
			assert.InDelta(t, 100.0/7, cfg.Weights[c], 1e-9)
		}
	})

	t.Run("rejects unknown rubric", func(t *testing.T) {
		_, err := NewEvaluationConfig(RubricChoice(4), nil, ScaleFivePoint)
		require.ErrorIs(t, err, ErrInvalidConfig)
		require.ErrorIs(t, err, ErrUnknownRubric)
	})

	t.Run("rejects unknown scale", func(t *testing.T) {
		_, err := NewEvaluationConfig(RubricCore, nil, Scale(0))
		require.ErrorIs(t, err, ErrUnknownScale)
	})

	t.Run("rejects negative weights", func(t *testing.T) {
		_, err := NewEvaluationConfig(RubricCore, WeightMap{CriterionIdeas: -5}, ScaleFivePoint)
		require.ErrorIs(t, err, ErrInvalidWeights)
	})
}

func TestDefaultEvaluationConfig(t *testing.T) {
	cfg := DefaultEvaluationConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, RubricStandard, cfg.Rubric)
	assert.Equal(t, ScaleHundredPoint, cfg.Scale)
	assert.Equal(t, RubricStandard.Criteria(), cfg.Active())
}

func TestEvaluationConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EvaluationConfig)
	}{
		{"zero rubric", func(c *EvaluationConfig) { c.Rubric = 0 }},
		{"unknown scale", func(c *EvaluationConfig) { c.Scale = 9 }},
		{"no weights", func(c *EvaluationConfig) { c.Weights = nil }},
		{"weights off by one", func(c *EvaluationConfig) { c.Weights[CriterionIdeas] += 1 }},
		{"weight for inactive criterion", func(c *EvaluationConfig) {
			delete(c.Weights, CriterionIdeas)
			c.Weights[CriterionVocabulary] = 25
		}},
		{"extra weight", func(c *EvaluationConfig) { c.Weights[CriterionVocabulary] = 0 }},
		{"NaN weight", func(c *EvaluationConfig) { c.Weights[CriterionIdeas] = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEvaluationConfig()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestEvaluationConfigJSONRoundTrip(t *testing.T) {
	cfg, err := NewEvaluationConfig(RubricFull, WeightMap{CriterionGrammar: 3, CriterionIdeas: 1}, ScaleLetterPlusMinus)
	require.NoError(t, err)

	b, err := json.Marshal(cfg)
	require.NoError(t, err)

	var back EvaluationConfig
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, cfg, back)
	require.NoError(t, back.Validate())
}

func TestRawScoreSet(t *testing.T) {
	r := RawScoreSet{CriterionIdeas: 0.4, CriterionGrammar: math.NaN(), CriterionEvidence: math.Inf(1)}

	assert.Equal(t, 0.4, r.Get(CriterionIdeas))
	assert.True(t, math.IsNaN(r.Get(CriterionVocabulary)), "absent reads as NaN")

	assert.Equal(t, RawScoreSet{CriterionIdeas: 0.4}, r.Finite())
	assert.Nil(t, RawScoreSet(nil).Finite())

	c := r.Clone()
	c[CriterionIdeas] = 1
	assert.Equal(t, 0.4, r[CriterionIdeas])
}

func TestEssayRecordValidate(t *testing.T) {
	ok := EssayRecord{ID: "essay_1", Text: "Some text."}
	require.NoError(t, ok.Validate())

	for _, rec := range []EssayRecord{
		{Text: "no id"},
		{ID: "essay_2"},
	} {
		require.ErrorIs(t, rec.Validate(), ErrInvalidRequest)
	}
}

func TestScoredEssayPercent(t *testing.T) {
	s := ScoredEssay{Overall: 0.68349}
	assert.Equal(t, 68.3, s.Percent())
	s.Overall = 1
	assert.Equal(t, 100.0, s.Percent())
}
