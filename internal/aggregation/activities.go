package aggregation

import (
	"context"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/pkg/activity"
)

// ActivitySummarizeBatch is the registered name of SummarizeBatch.
const ActivitySummarizeBatch = "SummarizeBatch"

// Activities handles aggregation-specific Temporal activities.
type Activities struct {
	activity.BaseActivities
	events *EventEmitter
}

// NewActivities creates aggregation activities with the provided base.
func NewActivities(base activity.BaseActivities) *Activities {
	return &Activities{
		BaseActivities: base,
		events:         NewEventEmitter(base),
	}
}

// SummarizeBatch computes the batch summary and emits a BatchSummarized event.
// Invalid input fails without retry, since retrying cannot fix it.
func (a *Activities) SummarizeBatch(
	ctx context.Context,
	input domain.SummarizeBatchInput,
) (*domain.BatchSummary, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable(ActivitySummarizeBatch, err, "invalid input")
	}

	exec := a.Execution(ctx)
	activity.SafeLog(ctx, "summarizing batch",
		"batch_id", input.BatchID,
		"workflow_id", exec.WorkflowID,
		"results", len(input.Results),
		"failed", input.Failed)

	summary := Summarize(input.Results)
	a.events.EmitBatchSummarized(ctx, input.BatchID, summary, input.Failed)

	activity.SafeLog(ctx, "batch summarized",
		"batch_id", input.BatchID,
		"avg_score", summary.AvgScore,
		"min_score", summary.MinScore,
		"max_score", summary.MaxScore)

	return &summary, nil
}

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}
