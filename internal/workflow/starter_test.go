package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/ahrav/go-essaygrade/internal/domain"
)

type fakeRun struct {
	client.WorkflowRun
	id, runID string
	result    *domain.BatchResult
	err       error
}

func (r *fakeRun) GetID() string    { return r.id }
func (r *fakeRun) GetRunID() string { return r.runID }

func (r *fakeRun) Get(_ context.Context, valuePtr any) error {
	if r.err != nil {
		return r.err
	}
	*valuePtr.(*domain.BatchResult) = *r.result
	return nil
}

type fakeWorkflowClient struct {
	opts     client.StartWorkflowOptions
	workflow any
	args     []any
	startErr error

	gotID, gotRunID string
	run             client.WorkflowRun
}

func (c *fakeWorkflowClient) ExecuteWorkflow(
	_ context.Context,
	options client.StartWorkflowOptions,
	wf any,
	args ...any,
) (client.WorkflowRun, error) {
	if c.startErr != nil {
		return nil, c.startErr
	}
	c.opts, c.workflow, c.args = options, wf, args
	return &fakeRun{id: options.ID, runID: "run-1"}, nil
}

func (c *fakeWorkflowClient) GetWorkflow(_ context.Context, workflowID, runID string) client.WorkflowRun {
	c.gotID, c.gotRunID = workflowID, runID
	return c.run
}

func batchRequest() domain.BatchRequest {
	return domain.BatchRequest{
		BatchID: "b-1",
		Essays:  []domain.EssayRecord{{ID: "a", Text: "t"}, {ID: "b", Text: "u"}},
		Config:  domain.DefaultEvaluationConfig(),
	}
}

func TestStarter_StartBatch(t *testing.T) {
	fc := &fakeWorkflowClient{}
	s := NewStarter(fc, "")

	exec, err := s.StartBatch(context.Background(), batchRequest())
	require.NoError(t, err)

	assert.Equal(t, Execution{WorkflowID: "essay-batch-b-1", RunID: "run-1"}, exec)
	assert.Equal(t, "essay-batch-b-1", fc.opts.ID)
	assert.Equal(t, TaskQueue, fc.opts.TaskQueue)
	assert.Equal(t, BatchScoringWorkflowName, fc.workflow)
	require.Len(t, fc.args, 1)
	assert.Equal(t, "b-1", fc.args[0].(domain.BatchRequest).BatchID)
}

func TestStarter_StartBatch_CustomQueue(t *testing.T) {
	fc := &fakeWorkflowClient{}
	_, err := NewStarter(fc, "grading-eu").StartBatch(context.Background(), batchRequest())
	require.NoError(t, err)
	assert.Equal(t, "grading-eu", fc.opts.TaskQueue)
}

func TestStarter_StartBatch_Errors(t *testing.T) {
	t.Run("duplicate essay ids rejected before start", func(t *testing.T) {
		fc := &fakeWorkflowClient{}
		req := batchRequest()
		req.Essays[1].ID = "a"

		_, err := NewStarter(fc, "").StartBatch(context.Background(), req)
		require.ErrorIs(t, err, domain.ErrInvalidRequest)
		assert.Empty(t, fc.opts.ID, "workflow never started")
	})

	t.Run("client failure wrapped", func(t *testing.T) {
		boom := errors.New("frontend unavailable")
		_, err := NewStarter(&fakeWorkflowClient{startErr: boom}, "").StartBatch(context.Background(), batchRequest())
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "b-1")
	})
}

func TestStarter_BatchResult(t *testing.T) {
	want := &domain.BatchResult{
		BatchID: "b-1",
		Results: []domain.ScoredEssay{{EssayID: "a", Overall: 0.6}},
		Summary: domain.BatchSummary{TotalEssays: 1, AvgScore: 60},
	}
	fc := &fakeWorkflowClient{run: &fakeRun{result: want}}

	got, err := NewStarter(fc, "").BatchResult(context.Background(), "b-1", "run-9")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "essay-batch-b-1", fc.gotID)
	assert.Equal(t, "run-9", fc.gotRunID)
}

func TestStarter_BatchResult_Errors(t *testing.T) {
	tests := []struct {
		name    string
		run     client.WorkflowRun
		wantErr error
	}{
		{"no run", nil, ErrBatchNotFound},
		{"unknown workflow", &fakeRun{err: serviceerror.NewNotFound("workflow not found")}, ErrBatchNotFound},
		{"deadline", &fakeRun{err: context.DeadlineExceeded}, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStarter(&fakeWorkflowClient{run: tt.run}, "").BatchResult(context.Background(), "b-2", "")
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
