package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-essaygrade/internal/aggregation"
	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/internal/scoring"
)

// TaskQueue is the task queue shared by the scoring worker and starters.
const TaskQueue = "essay-scoring"

// BatchScoringWorkflowName is the registered name of BatchScoringWorkflow.
const BatchScoringWorkflowName = "BatchScoringWorkflow"

// maxInFlight bounds concurrently scheduled ScoreEssay activities.
const maxInFlight = 32

// DefaultActivityOptions returns the timeouts and retry policy applied to
// every activity the batch workflow schedules.
func DefaultActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
}

// BatchScoringWorkflow scores every essay in req and summarizes the batch.
// Essays whose activity fails after retries are reported in Failed and do
// not fail the workflow. Results keep the request order.
func BatchScoringWorkflow(ctx workflow.Context, req domain.BatchRequest) (*domain.BatchResult, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "batch.v", workflow.DefaultVersion, currentVersion)

	if err := req.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			"invalid batch request",
			"Validation",
			err,
		)
	}

	ctx = workflow.WithActivityOptions(ctx, DefaultActivityOptions())
	logger := workflow.GetLogger(ctx)
	logger.Info("batch scoring started",
		"batch_id", req.BatchID,
		"essays", len(req.Essays),
		"rubric", req.Config.Rubric)

	outputs := make([]*domain.ScoreEssayOutput, len(req.Essays))
	errs := make([]error, len(req.Essays))

	for start := 0; start < len(req.Essays); start += maxInFlight {
		end := min(start+maxInFlight, len(req.Essays))

		futures := make([]workflow.Future, 0, end-start)
		for i := start; i < end; i++ {
			futures = append(futures, workflow.ExecuteActivity(ctx, scoring.ActivityScoreEssay, domain.ScoreEssayInput{
				BatchID: req.BatchID,
				Index:   i,
				Essay:   req.Essays[i],
				Config:  req.Config,
			}))
		}
		for j, f := range futures {
			i := start + j
			var out domain.ScoreEssayOutput
			if err := f.Get(ctx, &out); err != nil {
				errs[i] = err
				continue
			}
			outputs[i] = &out
		}
	}

	result := &domain.BatchResult{
		BatchID: req.BatchID,
		Results: make([]domain.ScoredEssay, 0, len(req.Essays)),
	}
	for i, out := range outputs {
		if errs[i] != nil {
			logger.Warn("essay failed",
				"batch_id", req.BatchID,
				"essay_id", req.Essays[i].ID,
				"error", errs[i])
			result.Failed = append(result.Failed, domain.EssayFailure{
				Index:   i,
				EssayID: req.Essays[i].ID,
				Error:   errs[i].Error(),
			})
			continue
		}
		result.Results = append(result.Results, out.Result)
	}

	var summary domain.BatchSummary
	if err := workflow.ExecuteActivity(ctx, aggregation.ActivitySummarizeBatch, domain.SummarizeBatchInput{
		BatchID: req.BatchID,
		Results: result.Results,
		Failed:  len(result.Failed),
	}).Get(ctx, &summary); err != nil {
		return nil, err
	}
	result.Summary = summary

	logger.Info("batch scoring completed",
		"batch_id", req.BatchID,
		"scored", len(result.Results),
		"failed", len(result.Failed),
		"avg_score", summary.AvgScore)
	return result, nil
}
