// Package workflow implements the step-DAG engine both the memorize and
// retrieve pipelines run on: a sequence of named steps executed in order,
// each declaring which state fields it requires and produces so the
// pipeline can be validated at build time, with injected capabilities
// (llm client, vector index, repositories) rather than globals.
//
// This generalizes original_source/src/memu/app/memorize.py's
// WorkflowStep/requires/produces contract into a typed Go engine: state is
// a concrete struct per pipeline (memorize.State, retrieve.State), not a
// dict, per the spec's explicit design note.
package workflow

import (
	"context"
	"fmt"
)

// Capability names the externally-injected collaborators a step may
// declare a dependency on.
type Capability string

const (
	CapabilityLLM    Capability = "llm"
	CapabilityVector Capability = "vector"
	CapabilityDB     Capability = "db"
	CapabilityIO     Capability = "io"
)

// Capabilities is the set of collaborators available to a running
// pipeline, looked up by name and type-asserted by each step's handler.
type Capabilities map[Capability]any

// Handler runs one step's logic against the shared state.
type Handler[S any] func(ctx context.Context, state *S, caps Capabilities) error

// Step is a single named unit of pipeline work.
type Step[S any] struct {
	ID       string
	Role     string
	Requires []string
	Produces []string
	Needs    []Capability
	Handler  Handler[S]
}

// Pipeline is a validated, ordered sequence of steps sharing state S.
type Pipeline[S any] struct {
	name  string
	steps []Step[S]
}

// New builds a pipeline, checking that every step's Requires is satisfied
// by the Produces of the steps before it. Capabilities are not checked
// here: Run checks each step's Needs against the caps it is given.
func New[S any](name string, steps ...Step[S]) (*Pipeline[S], error) {
	available := make(map[string]struct{})
	for _, step := range steps {
		for _, req := range step.Requires {
			if _, ok := available[req]; !ok {
				return nil, fmt.Errorf("workflow %s: step %s requires %q, produced by no earlier step", name, step.ID, req)
			}
		}
		for _, p := range step.Produces {
			available[p] = struct{}{}
		}
	}
	return &Pipeline[S]{name: name, steps: steps}, nil
}

// Run executes every step in order against state, passing caps through to
// each handler. A step whose declared Needs are missing from caps fails
// before its handler runs. Errors are wrapped with the failing step's id
// and role so callers and logs can attribute failures precisely.
func (p *Pipeline[S]) Run(ctx context.Context, state *S, caps Capabilities) error {
	for _, step := range p.steps {
		for _, need := range step.Needs {
			if _, ok := caps[need]; !ok {
				return fmt.Errorf("workflow %s: step %s (%s) missing capability %q", p.name, step.ID, step.Role, need)
			}
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("workflow %s: step %s (%s): %w", p.name, step.ID, step.Role, err)
		}
		if err := step.Handler(ctx, state, caps); err != nil {
			return fmt.Errorf("workflow %s: step %s (%s): %w", p.name, step.ID, step.Role, err)
		}
	}
	return nil
}

// Steps returns the pipeline's steps in execution order, for
// introspection (logging step lists, building documentation).
func (p *Pipeline[S]) Steps() []Step[S] {
	out := make([]Step[S], len(p.steps))
	copy(out, p.steps)
	return out
}
