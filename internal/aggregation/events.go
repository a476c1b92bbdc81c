package aggregation

import (
	"context"

	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/pkg/activity"
	"github.com/ahrav/go-essaygrade/pkg/events"
)

const eventSource = "aggregation-activity"

// EventEmitter builds and emits aggregation events. Emission is best effort.
type EventEmitter struct {
	base activity.BaseActivities
}

// NewEventEmitter creates an EventEmitter on top of base.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// EmitBatchSummarized emits a BatchSummarized event keyed by the batch ID, so
// activity retries produce the same idempotency key.
func (e *EventEmitter) EmitBatchSummarized(ctx context.Context, batchID string, summary domain.BatchSummary, failed int) {
	payload := domain.BatchSummarizedPayload{BatchID: batchID, Summary: summary, Failed: failed}
	if err := payload.Validate(); err != nil {
		activity.SafeLogError(ctx, "invalid BatchSummarized payload",
			"batch_id", batchID,
			"error", err)
		return
	}

	env, err := events.NewEnvelope(
		domain.EventTypeBatchSummarized,
		eventSource,
		batchID,
		domain.BatchSummarizedIdempotencyKey(batchID),
		payload,
	)
	if err != nil {
		activity.SafeLogError(ctx, "failed to build BatchSummarized event",
			"batch_id", batchID,
			"error", err)
		return
	}

	e.base.EmitEventSafe(ctx, env, "BatchSummarized["+batchID+"]")
}
