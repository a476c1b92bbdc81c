package scoring

import (
	"context"

	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/pkg/activity"
	"github.com/ahrav/go-essaygrade/pkg/events"
)

const eventSource = "scoring-activity"

// EventEmitter builds and emits scoring events. Emission is best effort and
// never fails the calling activity.
type EventEmitter struct {
	base activity.BaseActivities
}

// NewEventEmitter creates an EventEmitter on top of base.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// EmitEssayScored emits an EssayScored event. The idempotency key depends
// only on the batch and essay IDs, so retried attempts deduplicate.
func (e *EventEmitter) EmitEssayScored(ctx context.Context, batchID string, s *domain.ScoredEssay) {
	payload, err := domain.NewEssayScoredPayload(batchID, s)
	if err != nil {
		activity.SafeLogError(ctx, "failed to build EssayScored payload",
			"essay_id", s.EssayID,
			"error", err)
		return
	}

	env, err := events.NewEnvelope(
		domain.EventTypeEssayScored,
		eventSource,
		s.EssayID,
		domain.EssayScoredIdempotencyKey(batchID, s.EssayID),
		payload,
	)
	if err != nil {
		activity.SafeLogError(ctx, "failed to build EssayScored event",
			"essay_id", s.EssayID,
			"error", err)
		return
	}

	e.base.EmitEventSafe(ctx, env, "EssayScored["+s.EssayID+"]")
}
