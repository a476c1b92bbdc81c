//nolint:testpackage // Tests need access to unexported helpers like nonRetryable
package aggregation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/ahrav/go-essaygrade/internal/domain"
)

func TestSummarizeBatch(t *testing.T) {
	t.Run("summarizes and emits one event", func(t *testing.T) {
		sink := NewCapturingEventSink()
		a := newTestActivities(sink)

		got, err := a.SummarizeBatch(context.Background(), domain.SummarizeBatchInput{
			BatchID: "batch-7",
			Results: []domain.ScoredEssay{scored("e1", 0.4, "D"), scored("e2", 0.8, "B")},
			Failed:  1,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, got.TotalEssays)
		assert.Equal(t, 60.0, got.AvgScore)

		evs := sink.Events()
		require.Len(t, evs, 1)
		assert.Equal(t, domain.EventTypeBatchSummarized, evs[0].Type)
		assert.Equal(t, "batch-7", evs[0].Subject)
		assert.Equal(t, domain.BatchSummarizedIdempotencyKey("batch-7"), evs[0].IdempotencyKey)

		var payload domain.BatchSummarizedPayload
		require.NoError(t, json.Unmarshal(evs[0].Payload, &payload))
		assert.Equal(t, 1, payload.Failed)
		assert.Equal(t, *got, payload.Summary)
	})

	t.Run("invalid input is non-retryable", func(t *testing.T) {
		a := newTestActivities(nil)

		got, err := a.SummarizeBatch(context.Background(), domain.SummarizeBatchInput{})
		require.Error(t, err)
		assert.Nil(t, got)

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, ActivitySummarizeBatch, appErr.Type())
		assert.True(t, appErr.NonRetryable())
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("sink failure does not fail the activity", func(t *testing.T) {
		sink := NewCapturingEventSink()
		sink.FailNext(5)
		a := newTestActivities(sink)

		got, err := a.SummarizeBatch(context.Background(), domain.SummarizeBatchInput{
			BatchID: "b",
			Results: []domain.ScoredEssay{scored("e1", 0.5, "C")},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, got.TotalEssays)
		assert.Empty(t, sink.Events())
	})

	t.Run("sink recovers on retry", func(t *testing.T) {
		sink := NewCapturingEventSink()
		sink.FailNext(1)
		a := newTestActivities(sink)

		_, err := a.SummarizeBatch(context.Background(), domain.SummarizeBatchInput{BatchID: "b"})
		require.NoError(t, err)
		assert.Len(t, sink.Events(), 1)
	})
}

func TestSummarizeBatch_ActivityEnvironment(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()

	sink := NewCapturingEventSink()
	a := newTestActivities(sink)
	env.RegisterActivityWithOptions(a.SummarizeBatch, sdkactivity.RegisterOptions{Name: ActivitySummarizeBatch})

	val, err := env.ExecuteActivity(ActivitySummarizeBatch, domain.SummarizeBatchInput{
		BatchID: "batch-env",
		Results: []domain.ScoredEssay{scored("e1", 1, "A")},
	})
	require.NoError(t, err)

	var summary domain.BatchSummary
	require.NoError(t, val.Get(&summary))
	assert.Equal(t, 100.0, summary.MaxScore)

	evs := sink.Events()
	require.Len(t, evs, 1)
	assert.NotEmpty(t, evs[0].WorkflowID, "workflow fields are filled inside an activity")
}

func TestNonRetryable(t *testing.T) {
	cause := errors.New("boom")
	err := nonRetryable("Tag", cause, "message")

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Tag", appErr.Type())
	assert.True(t, appErr.NonRetryable())
	assert.ErrorIs(t, err, cause)
}
