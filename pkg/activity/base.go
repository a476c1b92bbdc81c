// Package activity provides shared plumbing for the Temporal activities:
// execution metadata lookup, logging that works inside and outside an
// activity context, heartbeats, and best-effort event emission.
package activity

import (
	"context"
	"log/slog"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/ahrav/go-essaygrade/pkg/events"
)

// Event emission retry settings.
const (
	emitAttempts   = 2
	emitRetryDelay = 200 * time.Millisecond
)

// ExecutionInfo identifies the workflow execution an activity runs under.
// Outside an activity context the fields are empty and InActivity is false.
type ExecutionInfo struct {
	WorkflowID string
	RunID      string
	ActivityID string
	Attempt    int32
	InActivity bool
}

// BaseActivities is embedded by every activity struct. It owns the event sink.
type BaseActivities struct {
	eventSink events.EventSink
}

// NewBaseActivities returns a BaseActivities that emits to sink. A nil sink
// disables emission.
func NewBaseActivities(sink events.EventSink) BaseActivities {
	return BaseActivities{eventSink: sink}
}

// Execution reads the Temporal execution metadata from ctx. activity.GetInfo
// panics outside an activity, which happens when activities are called
// directly from tests or from the HTTP path.
func (b *BaseActivities) Execution(ctx context.Context) ExecutionInfo {
	return Execution(ctx)
}

// Execution is the package-level form of BaseActivities.Execution.
func Execution(ctx context.Context) (info ExecutionInfo) {
	defer func() {
		if recover() != nil {
			info = ExecutionInfo{}
		}
	}()
	ai := activity.GetInfo(ctx)
	return ExecutionInfo{
		WorkflowID: ai.WorkflowExecution.ID,
		RunID:      ai.WorkflowExecution.RunID,
		ActivityID: ai.ActivityID,
		Attempt:    ai.Attempt,
		InActivity: true,
	}
}

// EmitEventSafe appends envelope to the sink, retrying once after a short
// delay. Failures are logged and swallowed. The envelope's workflow fields are
// filled from ctx when empty.
func (b *BaseActivities) EmitEventSafe(ctx context.Context, envelope events.Envelope, description string) {
	if b.eventSink == nil {
		return
	}
	if envelope.WorkflowID == "" {
		if info := Execution(ctx); info.InActivity {
			envelope.WorkflowID = info.WorkflowID
			envelope.RunID = info.RunID
		}
	}

	var lastErr error
	for attempt := range emitAttempts {
		if attempt > 0 {
			select {
			case <-time.After(emitRetryDelay):
			case <-ctx.Done():
				SafeLogError(ctx, "event emission cancelled: "+description,
					"event_type", envelope.Type)
				return
			}
		}
		if err := b.eventSink.Append(ctx, envelope); err != nil {
			lastErr = err
			continue
		}
		SafeLog(ctx, "event emitted: "+description,
			"event_type", envelope.Type,
			"idempotency_key", envelope.IdempotencyKey)
		return
	}

	SafeLogError(ctx, "event emission failed: "+description,
		"event_type", envelope.Type,
		"attempts", emitAttempts,
		"error", lastErr)
}

// RecordHeartbeat records a heartbeat when running inside an activity.
func (b *BaseActivities) RecordHeartbeat(ctx context.Context, details ...any) {
	RecordHeartbeat(ctx, details...)
}

// SafeLog logs at info level through the activity logger, or through slog
// outside an activity context.
func SafeLog(ctx context.Context, msg string, keyvals ...any) {
	logAt(ctx, slog.LevelInfo, msg, keyvals...)
}

// SafeLogError logs at error level through the activity logger, or through
// slog outside an activity context.
func SafeLogError(ctx context.Context, msg string, keyvals ...any) {
	logAt(ctx, slog.LevelError, msg, keyvals...)
}

func logAt(ctx context.Context, level slog.Level, msg string, keyvals ...any) {
	if !Execution(ctx).InActivity {
		slog.Default().Log(ctx, level, msg, keyvals...)
		return
	}
	logger := activity.GetLogger(ctx)
	if level >= slog.LevelError {
		logger.Error(msg, keyvals...)
		return
	}
	logger.Info(msg, keyvals...)
}

// RecordHeartbeat records an activity heartbeat. Outside an activity context
// it does nothing.
func RecordHeartbeat(ctx context.Context, details ...any) {
	if !Execution(ctx).InActivity {
		return
	}
	activity.RecordHeartbeat(ctx, details...)
}
