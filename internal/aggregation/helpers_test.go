package aggregation

import (
	"context"
	"errors"
	"sync"

	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/pkg/activity"
	"github.com/ahrav/go-essaygrade/pkg/events"
)

// CapturingEventSink records emitted events for assertions. It can be told to
// fail a number of Append calls first.
type CapturingEventSink struct {
	mu           sync.Mutex
	events       []events.Envelope
	failuresLeft int
}

// NewCapturingEventSink creates an empty capturing sink.
func NewCapturingEventSink() *CapturingEventSink { return &CapturingEventSink{} }

// FailNext makes the next n Append calls fail.
func (s *CapturingEventSink) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failuresLeft = n
}

// Append implements events.EventSink.
func (s *CapturingEventSink) Append(_ context.Context, e events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of the captured events.
func (s *CapturingEventSink) Events() []events.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Envelope, len(s.events))
	copy(out, s.events)
	return out
}

func newTestActivities(sink events.EventSink) *Activities {
	return NewActivities(activity.NewBaseActivities(sink))
}

func scored(id string, overall float64, final string) domain.ScoredEssay {
	return domain.ScoredEssay{EssayID: id, Overall: overall, Final: final}
}
