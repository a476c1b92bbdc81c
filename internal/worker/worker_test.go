package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	sdkworkflow "go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-essaygrade/internal/aggregation"
	"github.com/ahrav/go-essaygrade/internal/config"
	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/internal/scoring"
	"github.com/ahrav/go-essaygrade/internal/store"
	"github.com/ahrav/go-essaygrade/internal/workflow"
	"github.com/ahrav/go-essaygrade/pkg/events"
)

type recordingRegistry struct {
	workflows  []string
	activities []string
}

func (r *recordingRegistry) RegisterWorkflowWithOptions(_ any, o sdkworkflow.RegisterOptions) {
	r.workflows = append(r.workflows, o.Name)
}

func (r *recordingRegistry) RegisterActivityWithOptions(_ any, o activity.RegisterOptions) {
	r.activities = append(r.activities, o.Name)
}

func TestRegisterAll_Names(t *testing.T) {
	engine, err := scoring.NewDefaultEngine(nil)
	require.NoError(t, err)

	var reg recordingRegistry
	RegisterAll(&reg, engine, nil)

	assert.Equal(t, []string{workflow.BatchScoringWorkflowName}, reg.workflows)
	assert.ElementsMatch(t,
		[]string{scoring.ActivityScoreEssay, aggregation.ActivitySummarizeBatch},
		reg.activities)
}

func TestRegisterAll_RunsBatchWithOutbox(t *testing.T) {
	db, err := store.NewDB(filepath.Join(t.TempDir(), "worker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	engine, err := scoring.NewDefaultEngine(nil)
	require.NoError(t, err)
	sink := NewEventSink(db, nil)
	require.IsType(t, &store.OutboxSink{}, sink)

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	RegisterAll(env, engine, sink)

	raw := domain.RawScoreSet{
		domain.CriterionIdeas:        0.9,
		domain.CriterionEvidence:     0.2,
		domain.CriterionLanguageTone: 0.7,
		domain.CriterionGrammar:      0.95,
	}
	env.ExecuteWorkflow(workflow.BatchScoringWorkflowName, domain.BatchRequest{
		BatchID: "b-7",
		Essays: []domain.EssayRecord{
			{ID: "a", Text: "first", Raw: raw},
			{ID: "b", Text: "second"},
		},
		Config: domain.DefaultEvaluationConfig(),
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var got domain.BatchResult
	require.NoError(t, env.GetWorkflowResult(&got))
	require.Len(t, got.Results, 2)
	assert.Equal(t, "60.8/100", got.Results[0].Final)
	assert.InDelta(t, 0.5, got.Results[1].Overall, 1e-9)
	assert.Equal(t, 2, got.Summary.TotalEssays)

	pending, err := store.NewOutboxSink(db).Pending(context.Background(), 10)
	require.NoError(t, err)
	var types []string
	for _, e := range pending {
		types = append(types, e.Envelope.Type)
	}
	assert.ElementsMatch(t, []string{
		domain.EventTypeEssayScored,
		domain.EventTypeEssayScored,
		domain.EventTypeBatchSummarized,
	}, types)
}

func TestNewEventSink_LogWithoutDB(t *testing.T) {
	assert.IsType(t, &events.LogSink{}, NewEventSink(nil, nil))
}

func TestNewEngine(t *testing.T) {
	t.Run("without evaluator uses carried scores", func(t *testing.T) {
		engine, err := NewEngine(config.DefaultConfig(), nil)
		require.NoError(t, err)

		res, err := engine.Score(context.Background(), domain.EssayRecord{ID: "x", Text: "t"}, domain.DefaultEvaluationConfig())
		require.NoError(t, err)
		assert.InDelta(t, 0.5, res.Overall, 1e-9)
	})

	t.Run("remote evaluator fills missing scores", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]float64{"score": 0.95})
		}))
		t.Cleanup(srv.Close)

		cfg := config.DefaultConfig()
		cfg.Evaluator.BaseURL = srv.URL
		engine, err := NewEngine(cfg, srv.Client())
		require.NoError(t, err)

		res, err := engine.Score(context.Background(),
			domain.EssayRecord{ID: "x", Text: "t"},
			domain.DefaultEvaluationConfig())
		require.NoError(t, err)
		assert.Equal(t, int32(len(domain.DefaultRubric.Criteria())), calls.Load())
		assert.Greater(t, res.Overall, 0.5)
	})

	t.Run("invalid evaluator url", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Evaluator.BaseURL = "not a url"
		_, err := NewEngine(cfg, nil)
		require.Error(t, err)
	})
}
