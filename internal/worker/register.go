// Package worker wires the dataset workflow and stage activities into a
// Temporal worker and builds the dependencies they run with.
package worker

import (
	"github.com/ahrav/go-synth/internal/activity"
	"github.com/ahrav/go-synth/internal/workflow"
	base "github.com/ahrav/go-synth/pkg/activity"
	"github.com/ahrav/go-synth/pkg/events"
)

// Registry is the registration surface shared by a Temporal worker and the
// SDK's test environments.
type Registry interface {
	RegisterWorkflow(w interface{})
	RegisterActivity(a interface{})
}

// RegisterAll registers DatasetWorkflow and the stage activities. Call it
// once, before the worker starts.
func RegisterAll(w Registry, runner activity.StageRunner, sink events.EventSink) {
	acts := activity.NewStageActivities(base.NewBase(sink, activity.Source), runner)

	w.RegisterWorkflow(workflow.DatasetWorkflow)
	w.RegisterActivity(acts.RunStage)
	w.RegisterActivity(acts.StatFile)
}
