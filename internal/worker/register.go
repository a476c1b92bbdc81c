// Package worker exposes helpers to register workflows/activities with a Temporal worker.
package worker

import (
	"go.temporal.io/sdk/activity"
	sdkworkflow "go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-essaygrade/internal/aggregation"
	"github.com/ahrav/go-essaygrade/internal/scoring"
	"github.com/ahrav/go-essaygrade/internal/workflow"
	pkgactivity "github.com/ahrav/go-essaygrade/pkg/activity"
	"github.com/ahrav/go-essaygrade/pkg/events"
)

// Registry is the registration surface shared by sdkworker.Worker and the
// SDK test environment.
type Registry interface {
	RegisterWorkflowWithOptions(w any, options sdkworkflow.RegisterOptions)
	RegisterActivityWithOptions(a any, options activity.RegisterOptions)
}

// RegisterAll registers the batch workflow and its activities under their
// stable names. It must be called once, before the worker starts.
func RegisterAll(r Registry, engine *scoring.Engine, sink events.EventSink) {
	if sink == nil {
		sink = events.NewNoOpEventSink()
	}
	base := pkgactivity.NewBaseActivities(sink)

	scoringActivities := scoring.NewActivities(base, engine)
	aggregationActivities := aggregation.NewActivities(base)

	r.RegisterWorkflowWithOptions(workflow.BatchScoringWorkflow,
		sdkworkflow.RegisterOptions{Name: workflow.BatchScoringWorkflowName})

	r.RegisterActivityWithOptions(scoringActivities.ScoreEssay,
		activity.RegisterOptions{Name: scoring.ActivityScoreEssay})
	r.RegisterActivityWithOptions(aggregationActivities.SummarizeBatch,
		activity.RegisterOptions{Name: aggregation.ActivitySummarizeBatch})
}
