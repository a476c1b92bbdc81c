package scoring

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/internal/fuzzy"
	"github.com/ahrav/go-essaygrade/pkg/activity"
)

// ActivityScoreEssay is the registered name of ScoreEssay.
const ActivityScoreEssay = "ScoreEssay"

// Activities exposes the engine to Temporal workflows.
type Activities struct {
	activity.BaseActivities
	engine *Engine
	events *EventEmitter
}

// NewActivities creates scoring activities backed by engine.
func NewActivities(base activity.BaseActivities, engine *Engine) *Activities {
	return &Activities{
		BaseActivities: base,
		engine:         engine,
		events:         NewEventEmitter(base),
	}
}

// ScoreEssay scores one essay of a batch and emits an EssayScored event.
// Validation failures and unknown criteria are non-retryable; anything else
// is left to the workflow's retry policy.
func (a *Activities) ScoreEssay(ctx context.Context, input domain.ScoreEssayInput) (*domain.ScoreEssayOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable(ActivityScoreEssay, err, "invalid input")
	}

	exec := a.Execution(ctx)
	activity.SafeLog(ctx, "scoring essay",
		"batch_id", input.BatchID,
		"essay_id", input.Essay.ID,
		"index", input.Index,
		"workflow_id", exec.WorkflowID,
		"attempt", exec.Attempt)
	a.RecordHeartbeat(ctx, input.Index)

	result, err := a.engine.Score(ctx, input.Essay, input.Config)
	if err != nil {
		if isPermanent(err) {
			return nil, nonRetryable(ActivityScoreEssay, err, "essay cannot be scored")
		}
		return nil, retryable(ActivityScoreEssay, err, "scoring failed")
	}

	a.events.EmitEssayScored(ctx, input.BatchID, result)

	activity.SafeLog(ctx, "essay scored",
		"essay_id", result.EssayID,
		"overall", result.Overall,
		"final", result.Final)
	return &domain.ScoreEssayOutput{Result: *result}, nil
}

func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrInvalidRequest) ||
		errors.Is(err, domain.ErrInvalidConfig) ||
		errors.Is(err, fuzzy.ErrProfileNotFound)
}

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

func retryable(tag string, cause error, msg string) error {
	return temporal.NewApplicationError(msg, tag, cause)
}
