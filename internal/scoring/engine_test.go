package scoring

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/internal/evaluator"
	"github.com/ahrav/go-essaygrade/internal/fuzzy"
	"github.com/ahrav/go-essaygrade/internal/scale"
)

const delta = 1e-3

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestEngine(t testing.TB, producers evaluator.Set) *Engine {
	t.Helper()
	e, err := NewDefaultEngine(producers)
	require.NoError(t, err)
	e.now = func() time.Time { return fixedNow }
	return e
}

func standardEssay() domain.EssayRecord {
	return domain.EssayRecord{
		ID:     "essay-1",
		Text:   "Cities should invest in public transit because...",
		Prompt: "Should cities fund public transit?",
		Raw: domain.RawScoreSet{
			domain.CriterionIdeas:        0.9,
			domain.CriterionEvidence:     0.2,
			domain.CriterionLanguageTone: 0.7,
			domain.CriterionGrammar:      0.95,
		},
	}
}

func TestEngine_Score_StandardRubric(t *testing.T) {
	e := newTestEngine(t, nil)

	got, err := e.Score(context.Background(), standardEssay(), domain.DefaultEvaluationConfig())
	require.NoError(t, err)

	assert.Equal(t, "essay-1", got.EssayID)
	assert.Equal(t, domain.RubricStandard, got.Rubric)
	assert.Equal(t, domain.ScaleHundredPoint, got.Scale)
	assert.Equal(t, fixedNow, got.ScoredAt)

	require.Len(t, got.Fuzzy, 4)
	assert.InDelta(t, 0.874, got.Fuzzy[domain.CriterionIdeas], delta)
	assert.InDelta(t, 0.1605, got.Fuzzy[domain.CriterionEvidence], delta)
	// No language_tone input set has any degree at 0.70, so no rule fires.
	assert.Equal(t, fuzzy.NeutralScore, got.Fuzzy[domain.CriterionLanguageTone])
	assert.InDelta(t, 0.8969, got.Fuzzy[domain.CriterionGrammar], delta)

	assert.InDelta(t, 0.6078, got.Overall, delta)
	assert.Equal(t, map[string]string{
		"5_point_score":   "3.4/5",
		"20_point_score":  "12.5/20",
		"letter_grade":    "C",
		"letter_grade_pm": "D-",
		"100_point_score": "60.8/100",
		"50_point_score":  "30.4/50",
	}, got.Scaled)
	assert.Equal(t, "60.8/100", got.Final)
	assert.Equal(t, "Satisfactory", got.Band)
	assert.Equal(t, 60.8, got.Percent())
}

func TestEngine_Score_ScalesAgreeWithConverter(t *testing.T) {
	e := newTestEngine(t, nil)
	for _, s := range domain.AllScales() {
		t.Run(s.Key(), func(t *testing.T) {
			cfg, err := domain.NewEvaluationConfig(domain.RubricStandard, nil, s)
			require.NoError(t, err)

			got, err := e.Score(context.Background(), standardEssay(), cfg)
			require.NoError(t, err)
			assert.Equal(t, scale.Convert(got.Overall, s), got.Final)
			assert.Equal(t, got.Final, got.Scaled[s.Column()])
		})
	}
}

func TestEngine_Score_CustomWeights(t *testing.T) {
	e := newTestEngine(t, nil)
	cfg, err := domain.NewEvaluationConfig(domain.RubricStandard, domain.WeightMap{
		domain.CriterionIdeas:        40,
		domain.CriterionEvidence:     30,
		domain.CriterionLanguageTone: 20,
		domain.CriterionGrammar:      10,
	}, domain.ScaleHundredPoint)
	require.NoError(t, err)

	got, err := e.Score(context.Background(), standardEssay(), cfg)
	require.NoError(t, err)
	assert.InDelta(t, 0.5874, got.Overall, delta)
	assert.Equal(t, "58.7/100", got.Final)
	assert.Equal(t, 40.0, got.Weights[domain.CriterionIdeas])
}

func TestEngine_Score_MissingRawScoresAreNeutral(t *testing.T) {
	e := newTestEngine(t, nil)
	essay := domain.EssayRecord{ID: "blank", Text: "..."}

	got, err := e.Score(context.Background(), essay, domain.DefaultEvaluationConfig())
	require.NoError(t, err)
	for c, v := range got.Fuzzy {
		assert.Equal(t, fuzzy.NeutralScore, v, c)
	}
	assert.InDelta(t, 0.5, got.Overall, 1e-12)
	assert.Empty(t, got.Raw)
}

func TestEngine_Score_OutOfRangeRawIsNeutral(t *testing.T) {
	e := newTestEngine(t, nil)
	essay := standardEssay()
	essay.Raw[domain.CriterionEvidence] = 1.7

	got, err := e.Score(context.Background(), essay, domain.DefaultEvaluationConfig())
	require.NoError(t, err)
	assert.Equal(t, fuzzy.NeutralScore, got.Fuzzy[domain.CriterionEvidence])
	assert.Equal(t, 1.7, got.Raw[domain.CriterionEvidence], "finite values are kept as reported")
}

func TestEngine_Score_CollectsFromProducers(t *testing.T) {
	producers := evaluator.Set{
		domain.CriterionIdeas:        evaluator.Static(0.9),
		domain.CriterionEvidence:     evaluator.Static(0.2),
		domain.CriterionLanguageTone: evaluator.Static(0.7),
		domain.CriterionGrammar:      evaluator.Static(0.95),
	}
	e := newTestEngine(t, producers)

	essay := standardEssay()
	essay.Raw = nil
	got, err := e.Score(context.Background(), essay, domain.DefaultEvaluationConfig())
	require.NoError(t, err)
	assert.InDelta(t, 0.6078, got.Overall, delta)
	assert.Equal(t, 0.95, got.Raw[domain.CriterionGrammar])
}

func TestEngine_Score_PrecomputedRawSkipsProducers(t *testing.T) {
	var calls atomic.Int32
	counting := evaluator.Func(func(context.Context, string, string) (float64, error) {
		calls.Add(1)
		return 0, nil
	})
	e := newTestEngine(t, evaluator.Set{domain.CriterionIdeas: counting})

	_, err := e.Score(context.Background(), standardEssay(), domain.DefaultEvaluationConfig())
	require.NoError(t, err)
	assert.Zero(t, calls.Load())
}

func TestEngine_Score_PartialRawFilledByProducers(t *testing.T) {
	var (
		mu    sync.Mutex
		asked []domain.Criterion
	)
	producer := func(c domain.Criterion) evaluator.Scorer {
		return evaluator.Func(func(context.Context, string, string) (float64, error) {
			mu.Lock()
			asked = append(asked, c)
			mu.Unlock()
			return 0.95, nil
		})
	}
	producers := evaluator.Set{}
	for _, c := range domain.RubricStandard.Criteria() {
		producers[c] = producer(c)
	}
	e := newTestEngine(t, producers)

	essay := domain.EssayRecord{
		ID:   "partial",
		Text: "t",
		Raw:  domain.RawScoreSet{domain.CriterionGrammar: 0.95, domain.CriterionEvidence: math.NaN()},
	}
	got, err := e.Score(context.Background(), essay, domain.DefaultEvaluationConfig())
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]domain.Criterion{domain.CriterionIdeas, domain.CriterionEvidence, domain.CriterionLanguageTone},
		asked, "only criteria the essay lacks are produced")
	for _, c := range domain.RubricStandard.Criteria() {
		assert.Equal(t, 0.95, got.Raw[c], c)
		assert.Greater(t, got.Fuzzy[c], 0.85, c)
	}
	assert.Greater(t, got.Overall, 0.85)
}

func TestEngine_Score_Errors(t *testing.T) {
	e := newTestEngine(t, nil)

	t.Run("invalid config", func(t *testing.T) {
		_, err := e.Score(context.Background(), standardEssay(), domain.EvaluationConfig{})
		require.ErrorIs(t, err, domain.ErrInvalidConfig)
	})

	t.Run("missing essay text", func(t *testing.T) {
		essay := standardEssay()
		essay.Text = ""
		_, err := e.Score(context.Background(), essay, domain.DefaultEvaluationConfig())
		require.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.Score(ctx, standardEssay(), domain.DefaultEvaluationConfig())
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("criterion without profile", func(t *testing.T) {
		tables := fuzzy.DefaultCalibrations()
		delete(tables, fuzzy.CriterionGrammar)
		profiles, err := fuzzy.NewProfileSet(tables)
		require.NoError(t, err)
		partial, err := NewEngine(profiles, nil)
		require.NoError(t, err)

		_, err = partial.Score(context.Background(), standardEssay(), domain.DefaultEvaluationConfig())
		require.ErrorIs(t, err, fuzzy.ErrProfileNotFound)
	})
}

func TestNewEngine_RequiresProfiles(t *testing.T) {
	_, err := NewEngine(nil, nil)
	require.ErrorIs(t, err, ErrNoProfiles)
}

func TestEngine_Fuzzify_FullRubric(t *testing.T) {
	e := newTestEngine(t, nil)
	raw := domain.RawScoreSet{}
	for _, c := range domain.AllCriteria() {
		raw[c] = 0.95
	}

	got, err := e.Fuzzify(raw, domain.RubricFull.Criteria())
	require.NoError(t, err)
	require.Len(t, got, 7)
	for c, v := range got {
		assert.Greater(t, v, 0.85, c)
		assert.LessOrEqual(t, v, 1.0, c)
	}
}

func TestEngine_Explain(t *testing.T) {
	e := newTestEngine(t, nil)
	got, err := e.Explain(standardEssay().Raw, domain.RubricStandard.Criteria())
	require.NoError(t, err)

	lt := got[domain.CriterionLanguageTone]
	assert.Equal(t, fuzzy.FallbackZeroMass, lt.Fallback)
	assert.Equal(t, fuzzy.FallbackNone, got[domain.CriterionGrammar].Fallback)
	assert.InDelta(t, 0.8969, got[domain.CriterionGrammar].Score, delta)
}

func TestEngine_ScoreBatch(t *testing.T) {
	e := newTestEngine(t, nil)
	e.SetMaxConcurrency(2)

	essays := make([]domain.EssayRecord, 0, 6)
	for i, v := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
		essays = append(essays, domain.EssayRecord{
			ID:   string(rune('a' + i)),
			Text: "text",
			Raw: domain.RawScoreSet{
				domain.CriterionIdeas:   v,
				domain.CriterionGrammar: v,
			},
		})
	}
	essays = append(essays, domain.EssayRecord{ID: "no-text"})

	results, failures, err := e.ScoreBatch(context.Background(), essays, domain.DefaultEvaluationConfig())
	require.NoError(t, err)

	require.Len(t, results, len(essays), "aligned with input")
	for i, r := range results[:5] {
		require.NotNil(t, r)
		assert.Equal(t, essays[i].ID, r.EssayID, "input order preserved")
	}
	assert.Nil(t, results[5])
	require.Len(t, failures, 1)
	assert.Equal(t, "no-text", failures[0].EssayID)
	assert.Equal(t, 5, failures[0].Index)
	assert.NotEmpty(t, failures[0].Error)
	assert.Len(t, domain.Scored(results), 5)

	assert.Less(t, results[0].Overall, results[4].Overall)
}

func TestEngine_ScoreBatch_DuplicateIDsKeepOwnScores(t *testing.T) {
	e := newTestEngine(t, nil)
	flat := func(v float64) domain.RawScoreSet {
		raw := domain.RawScoreSet{}
		for _, c := range domain.RubricStandard.Criteria() {
			raw[c] = v
		}
		return raw
	}
	essays := []domain.EssayRecord{
		{ID: "x", Text: "low", Raw: flat(0.05)},
		{ID: "x", Text: "high", Raw: flat(0.95)},
	}

	results, failures, err := e.ScoreBatch(context.Background(), essays, domain.DefaultEvaluationConfig())
	require.NoError(t, err)
	require.Empty(t, failures)
	require.Len(t, results, 2)
	assert.Equal(t, "14.1/100", results[0].Final)
	assert.Equal(t, "92.0/100", results[1].Final)
}

func TestEngine_ScoreBatch_InvalidConfig(t *testing.T) {
	e := newTestEngine(t, nil)
	_, _, err := e.ScoreBatch(context.Background(), []domain.EssayRecord{standardEssay()}, domain.EvaluationConfig{})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestEngine_ScoreBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var once atomic.Bool
	slow := evaluator.Func(func(ctx context.Context, _, _ string) (float64, error) {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
		return 0, ctx.Err()
	})
	e := newTestEngine(t, evaluator.Set{domain.CriterionIdeas: slow})

	essays := []domain.EssayRecord{{ID: "a", Text: "t"}, {ID: "b", Text: "t"}}
	go func() {
		<-started
		cancel()
	}()

	_, _, err := e.ScoreBatch(ctx, essays, domain.DefaultEvaluationConfig())
	require.True(t, errors.Is(err, context.Canceled))
}

func BenchmarkEngine_Score(b *testing.B) {
	e := newTestEngine(b, nil)
	essay := standardEssay()
	cfg, err := domain.NewEvaluationConfig(domain.RubricFull, nil, domain.ScaleLetterPlusMinus)
	require.NoError(b, err)

	for b.Loop() {
		if _, err := e.Score(context.Background(), essay, cfg); err != nil {
			b.Fatal(err)
		}
	}
}
