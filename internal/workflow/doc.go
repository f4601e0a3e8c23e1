// Package workflow runs the dataset pipeline as a Temporal workflow.
//
// DatasetWorkflow drives the same pipeline.Driver the CLI uses, with a host
// that turns every side effect into a workflow-safe call: stages and file
// checks become activities and delays become durable timers. A worker crash
// mid-run resumes from the last completed stage instead of starting over.
//
// Workflow code must stay deterministic. File access, model calls and wall
// clock time belong in activities.
package workflow
