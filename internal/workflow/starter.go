package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/ahrav/go-essaygrade/internal/domain"
)

// WorkflowClient is the subset of client.Client the starter needs.
type WorkflowClient interface {
	ExecuteWorkflow(
		ctx context.Context,
		options client.StartWorkflowOptions,
		workflow any,
		args ...any,
	) (client.WorkflowRun, error)
	GetWorkflow(ctx context.Context, workflowID, runID string) client.WorkflowRun
}

// Execution identifies a started batch workflow.
type Execution struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// Starter launches batch workflows on a task queue.
type Starter struct {
	client    WorkflowClient
	taskQueue string
}

// NewStarter creates a starter. An empty taskQueue selects TaskQueue.
func NewStarter(c WorkflowClient, taskQueue string) *Starter {
	if taskQueue == "" {
		taskQueue = TaskQueue
	}
	return &Starter{client: c, taskQueue: taskQueue}
}

// BatchWorkflowID derives the workflow ID for a batch so a batch ID maps to
// one workflow execution.
func BatchWorkflowID(batchID string) string { return "essay-batch-" + batchID }

// StartBatch validates req and starts BatchScoringWorkflow without waiting.
func (s *Starter) StartBatch(ctx context.Context, req domain.BatchRequest) (Execution, error) {
	if err := req.Validate(); err != nil {
		return Execution{}, err
	}
	run, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        BatchWorkflowID(req.BatchID),
		TaskQueue: s.taskQueue,
	}, BatchScoringWorkflowName, req)
	if err != nil {
		return Execution{}, fmt.Errorf("start batch %s: %w", req.BatchID, err)
	}
	return Execution{WorkflowID: run.GetID(), RunID: run.GetRunID()}, nil
}

// ErrBatchNotFound is returned when no workflow exists for a batch.
var ErrBatchNotFound = errors.New("batch not found")

// BatchResult blocks until the batch workflow completes or ctx ends and
// returns its result. An empty runID selects the latest run.
func (s *Starter) BatchResult(ctx context.Context, batchID, runID string) (*domain.BatchResult, error) {
	run := s.client.GetWorkflow(ctx, BatchWorkflowID(batchID), runID)
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	var out domain.BatchResult
	if err := run.Get(ctx, &out); err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
		}
		return nil, fmt.Errorf("batch %s: %w", batchID, err)
	}
	return &out, nil
}
