// Package events provides the event plumbing used to publish scoring
// outcomes. It defines the Envelope that wraps every domain payload with
// routing and deduplication metadata, and the EventSink interface with a few
// small implementations.
//
// Sinks are best effort: emitters log sink failures and carry on, since a
// missed event must never fail the scoring that produced it.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Envelope carries one domain event.
//
// The envelope gives downstream consumers:
//   - a stable Type for routing
//   - an IdempotencyKey derived from the producing workflow, identical across retries
//   - the Subject (batch or essay) the event is about
//   - a schema Version for the Payload.
type Envelope struct {
	// ID uniquely identifies this emission. Retries of the same logical event
	// get new IDs but share the IdempotencyKey.
	ID string `json:"id"`

	// Type names the event, e.g. "scoring.essay_scored".
	Type string `json:"type"`

	// Source names the emitting component, e.g. "scoring-activity".
	Source string `json:"source"`

	// Version is the payload schema version.
	Version string `json:"version"`

	// Timestamp is the wall-clock emission time.
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey deduplicates retried emissions.
	IdempotencyKey string `json:"idempotency_key"`

	// Subject identifies what the event is about: an essay or batch ID.
	Subject string `json:"subject"`

	// WorkflowID and RunID tie the event to a Temporal execution when there is one.
	WorkflowID string `json:"workflow_id,omitempty"`
	RunID      string `json:"run_id,omitempty"`

	// Payload is the JSON-encoded domain event. Its schema depends on Type and Version.
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload and fills in ID, Version and Timestamp.
func NewEnvelope(eventType, source, subject, idempotencyKey string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:             uuid.NewString(),
		Type:           eventType,
		Source:         source,
		Version:        "1.0.0",
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
		Subject:        subject,
		Payload:        body,
	}, nil
}

// EventSink receives events for downstream consumers such as an outbox table
// or a log stream.
type EventSink interface {
	// Append records an event. Implementations should treat a repeated
	// IdempotencyKey as a no-op and return quickly.
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every event.
type NoOpEventSink struct{}

// Append implements EventSink.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error { return nil }

// NewNoOpEventSink returns a sink that discards events.
func NewNoOpEventSink() EventSink { return &NoOpEventSink{} }

// LogSink writes each event as a structured log record.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink that logs to logger, or to the default logger when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "events")}
}

// Append implements EventSink.
func (s *LogSink) Append(ctx context.Context, e Envelope) error {
	s.logger.InfoContext(ctx, "event",
		"type", e.Type,
		"source", e.Source,
		"subject", e.Subject,
		"idempotency_key", e.IdempotencyKey,
		"workflow_id", e.WorkflowID,
		"payload", string(e.Payload))
	return nil
}

// MultiSink fans an event out to several sinks. Every sink is attempted; the
// joined errors are returned.
type MultiSink []EventSink

// Append implements EventSink.
func (m MultiSink) Append(ctx context.Context, e Envelope) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
