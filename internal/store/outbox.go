package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ahrav/go-essaygrade/pkg/events"
)

// OutboxSink appends events to the event_outbox table. Appends are
// idempotent on the envelope's idempotency key: a retried emission of the
// same logical event is dropped.
type OutboxSink struct {
	db  *sql.DB
	now func() time.Time
}

var _ events.EventSink = (*OutboxSink)(nil)

// NewOutboxSink creates an outbox sink on db.
func NewOutboxSink(db *sql.DB) *OutboxSink {
	return &OutboxSink{db: db, now: time.Now}
}

// Append implements events.EventSink.
func (s *OutboxSink) Append(ctx context.Context, e events.Envelope) error {
	if e.IdempotencyKey == "" {
		return fmt.Errorf("outbox: event %s has no idempotency key", e.ID)
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("outbox: encode event: %w", err)
	}
	const q = `INSERT INTO event_outbox (event_id, idempotency_key, event_type, subject, envelope_json, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(idempotency_key) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, q,
		e.ID,
		e.IdempotencyKey,
		e.Type,
		e.Subject,
		string(body),
		s.now().UnixNano(),
	); err != nil {
		return fmt.Errorf("outbox: append: %w", err)
	}
	return nil
}

// OutboxEntry is an event waiting in the outbox.
type OutboxEntry struct {
	Seq      int64
	Envelope events.Envelope
}

// Pending returns up to limit unpublished events in append order.
func (s *OutboxSink) Pending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id, envelope_json FROM event_outbox
WHERE published_at = 0 ORDER BY id ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: pending: %w", err)
	}
	defer rows.Close()

	var out []OutboxEntry
	for rows.Next() {
		var (
			entry OutboxEntry
			body  string
		)
		if err := rows.Scan(&entry.Seq, &body); err != nil {
			return nil, fmt.Errorf("outbox: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &entry.Envelope); err != nil {
			return nil, fmt.Errorf("outbox: decode %d: %w", entry.Seq, err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// MarkPublished flags entries as delivered.
func (s *OutboxSink) MarkPublished(ctx context.Context, seqs ...int64) error {
	if len(seqs) == 0 {
		return nil
	}
	args := make([]any, 0, len(seqs)+1)
	args = append(args, s.now().UnixNano())
	for _, seq := range seqs {
		args = append(args, seq)
	}
	q := `UPDATE event_outbox SET published_at = ? WHERE id IN (?` + strings.Repeat(",?", len(seqs)-1) + `)`
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("outbox: mark published: %w", err)
	}
	return nil
}

// Relay drains pending events into sink, marking each batch published once
// the sink accepts it. It stops at the first sink error and returns the
// number of events relayed.
func (s *OutboxSink) Relay(ctx context.Context, sink events.EventSink, batchSize int) (int, error) {
	relayed := 0
	for {
		pending, err := s.Pending(ctx, batchSize)
		if err != nil || len(pending) == 0 {
			return relayed, err
		}
		done := make([]int64, 0, len(pending))
		for _, p := range pending {
			if err := sink.Append(ctx, p.Envelope); err != nil {
				if mErr := s.MarkPublished(ctx, done...); mErr != nil {
					return relayed, mErr
				}
				return relayed + len(done), fmt.Errorf("outbox: relay %s: %w", p.Envelope.ID, err)
			}
			done = append(done, p.Seq)
		}
		if err := s.MarkPublished(ctx, done...); err != nil {
			return relayed, err
		}
		relayed += len(done)
	}
}
