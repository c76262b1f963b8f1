// Package pipeline runs composite operations as an ordered list of steps with
// declared inputs and outputs.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/sourceplane/khiopsctl/internal/logger"
)

// StepKind tells engine invocations apart from local work.
type StepKind int

const (
	EngineCall StepKind = iota
	LocalDerivation
)

func (k StepKind) String() string {
	switch k {
	case EngineCall:
		return "engine"
	case LocalDerivation:
		return "local"
	}
	return fmt.Sprintf("StepKind(%d)", int(k))
}

// Step is one unit of a pipeline. Inputs and Outputs name artifacts held in
// the run State.
type Step struct {
	Name    string
	Kind    StepKind
	Inputs  []string
	Outputs []string
	Run     func(ctx context.Context, state *State) error
}

// State carries the artifact paths of a run.
type State struct {
	Scope     *ArtifactScope
	artifacts map[string]string
}

// Get returns the path of a named artifact.
func (s *State) Get(name string) string { return s.artifacts[name] }

// Set records the path of a named artifact.
func (s *State) Set(name, path string) { s.artifacts[name] = path }

// Lookup returns the path of a named artifact and whether it is set.
func (s *State) Lookup(name string) (string, bool) {
	path, ok := s.artifacts[name]
	return path, ok
}

// Pipeline is an ordered list of steps.
type Pipeline struct {
	Name   string
	Inputs []string
	Steps  []Step
	// Progress, when set, receives one line per step.
	Progress io.Writer
}

// Validate checks that every step input is a pipeline input or the output of
// an earlier step, and that no artifact is produced twice.
func (p *Pipeline) Validate() error {
	available := make(map[string]string)
	for _, in := range p.Inputs {
		available[in] = "input"
	}
	seen := make(map[string]bool)
	for _, step := range p.Steps {
		if step.Name == "" {
			return fmt.Errorf("pipeline %s: step without a name", p.Name)
		}
		if seen[step.Name] {
			return fmt.Errorf("pipeline %s: step %s is declared twice", p.Name, step.Name)
		}
		seen[step.Name] = true
		if step.Run == nil {
			return fmt.Errorf("pipeline %s: step %s has nothing to run", p.Name, step.Name)
		}
		for _, in := range step.Inputs {
			if _, ok := available[in]; !ok {
				return fmt.Errorf("pipeline %s: step %s reads %s before any step produces it", p.Name, step.Name, in)
			}
		}
		for _, out := range step.Outputs {
			if producer, ok := available[out]; ok {
				return fmt.Errorf("pipeline %s: step %s produces %s already provided by %s", p.Name, step.Name, out, producer)
			}
			available[out] = step.Name
		}
	}
	return nil
}

// Run executes the steps in order and stops at the first failure. A failure
// marks the scope failed; produced outputs are left in place.
func (p *Pipeline) Run(ctx context.Context, scope *ArtifactScope, inputs map[string]string) (*State, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	state := &State{Scope: scope, artifacts: make(map[string]string)}
	for _, in := range p.Inputs {
		path, ok := inputs[in]
		if !ok || path == "" {
			return nil, fmt.Errorf("pipeline %s: missing input %s", p.Name, in)
		}
		state.Set(in, path)
	}

	log := logger.FromContext(ctx).With("pipeline", p.Name)
	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			scope.MarkFailed()
			return state, fmt.Errorf("pipeline %s cancelled before step %s: %w", p.Name, step.Name, err)
		}
		p.progress("□ [%d/%d] %s (%s)\n", i+1, len(p.Steps), step.Name, step.Kind)
		log.Debug("running step", "step", step.Name, "kind", step.Kind.String())

		if err := step.Run(ctx, state); err != nil {
			scope.MarkFailed()
			p.progress("✗ %s\n", step.Name)
			return state, fmt.Errorf("step %s failed: %w", step.Name, err)
		}
		for _, out := range step.Outputs {
			if path, ok := state.Lookup(out); !ok || path == "" {
				scope.MarkFailed()
				return state, fmt.Errorf("step %s did not record its output %s", step.Name, out)
			}
		}
		p.progress("✓ %s\n", step.Name)
	}
	return state, nil
}

func (p *Pipeline) progress(format string, args ...any) {
	if p.Progress != nil {
		fmt.Fprintf(p.Progress, format, args...)
	}
}
