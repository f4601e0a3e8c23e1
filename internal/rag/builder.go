// Package rag builds and executes the small generative workflows used to
// produce question and answer pairs for retrieval-augmented generation
// evaluation.
package rag

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Operator selects what a step does with its prompt.
type Operator string

// OperatorGeneration sends the rendered prompt to the model.
const OperatorGeneration Operator = "GENERATION"

// EndNode is the terminal edge target.
const EndNode = "_end"

// Builder errors.
var (
	ErrNoSteps          = errors.New("workflow has no steps")
	ErrUnknownEdgeNode  = errors.New("edge references an unknown step")
	ErrNoEntryEdge      = errors.New("no edge leaves the entry step")
	ErrReturnValueUnset = errors.New("return value is not written by any step")
	ErrInvalidLimit     = errors.New("workflow limits must be positive")
	ErrUnknownOperator  = errors.New("unknown step operator")
)

// Write stores a step's output in workflow memory under Key.
type Write struct {
	Key string
}

// NewWrite returns a Write for key.
func NewWrite(key string) Write { return Write{Key: key} }

// Step is one node of the workflow graph. IDs are assigned in order
// starting at "0".
type Step struct {
	ID       string
	Prompt   string
	Operator Operator
	Outputs  []Write
}

// Edge connects two steps, or a step to EndNode.
type Edge struct {
	Source string
	Target string
}

// Workflow is a validated, executable graph.
type Workflow struct {
	Memory      map[string]string
	MaxTokens   int64
	MaxTime     time.Duration
	MaxSteps    int
	Steps       []Step
	Edges       []Edge
	ReturnValue string
}

// Step returns the step with id.
func (w *Workflow) Step(id string) (Step, bool) {
	for _, s := range w.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// Next returns the target of the edge leaving id.
func (w *Workflow) Next(id string) (string, bool) {
	for _, e := range w.Edges {
		if e.Source == id {
			return e.Target, true
		}
	}
	return "", false
}

// Builder assembles a Workflow.
type Builder struct {
	wf Workflow
}

// NewBuilder starts a workflow whose memory holds inputs.
func NewBuilder(inputs map[string]string) *Builder {
	mem := make(map[string]string, len(inputs))
	for k, v := range inputs {
		mem[k] = v
	}
	return &Builder{wf: Workflow{Memory: mem}}
}

func (b *Builder) SetMaxTokens(n int64) *Builder { b.wf.MaxTokens = n; return b }

func (b *Builder) SetMaxTime(d time.Duration) *Builder { b.wf.MaxTime = d; return b }

func (b *Builder) SetMaxSteps(n int) *Builder { b.wf.MaxSteps = n; return b }

// GenerativeStep appends a step rendering prompt against memory.
func (b *Builder) GenerativeStep(prompt string, op Operator, outputs ...Write) *Builder {
	b.wf.Steps = append(b.wf.Steps, Step{
		ID:       strconv.Itoa(len(b.wf.Steps)),
		Prompt:   prompt,
		Operator: op,
		Outputs:  outputs,
	})
	return b
}

// Flow sets the edges.
func (b *Builder) Flow(edges []Edge) *Builder {
	b.wf.Edges = append([]Edge(nil), edges...)
	return b
}

func (b *Builder) SetReturnValue(key string) *Builder { b.wf.ReturnValue = key; return b }

// Build validates the graph and returns the workflow.
func (b *Builder) Build() (*Workflow, error) {
	wf := b.wf
	if len(wf.Steps) == 0 {
		return nil, ErrNoSteps
	}
	if wf.MaxTokens <= 0 || wf.MaxTime <= 0 || wf.MaxSteps <= 0 {
		return nil, ErrInvalidLimit
	}

	ids := make(map[string]bool, len(wf.Steps))
	written := make(map[string]bool)
	for _, s := range wf.Steps {
		if s.Operator != OperatorGeneration {
			return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, s.Operator)
		}
		ids[s.ID] = true
		for _, w := range s.Outputs {
			written[w.Key] = true
		}
	}
	for _, e := range wf.Edges {
		if !ids[e.Source] {
			return nil, fmt.Errorf("%w: source %q", ErrUnknownEdgeNode, e.Source)
		}
		if e.Target != EndNode && !ids[e.Target] {
			return nil, fmt.Errorf("%w: target %q", ErrUnknownEdgeNode, e.Target)
		}
	}
	if _, ok := wf.Next(wf.Steps[0].ID); !ok {
		return nil, ErrNoEntryEdge
	}
	if !written[wf.ReturnValue] {
		return nil, fmt.Errorf("%w: %q", ErrReturnValueUnset, wf.ReturnValue)
	}

	wf.Steps = append([]Step(nil), wf.Steps...)
	return &wf, nil
}
