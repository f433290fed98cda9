// ABOUTME: Workflow pipeline: an ordered sequence of named steps run over a shared
// ABOUTME: work state, with per-step progress percents, observation, and cancellation.

package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/2389-research/spyglass/task"
)

// ErrCancelled is returned by Execute when the Cancelled poll reports true
// between steps. Work already merged into the state is kept.
var ErrCancelled = errors.New("pipeline: cancelled")

// WorkState is the mutable blackboard shared by a pipeline's steps. Each step
// reads what earlier steps wrote and merges its own output.
type WorkState map[string]any

// Clone returns a shallow copy of the state.
func (s WorkState) Clone() WorkState {
	out := make(WorkState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Result is the output of one step attempt: key/value pairs to merge into the
// work state plus a short human-readable summary for step records.
type Result struct {
	Output  map[string]any
	Summary string
}

// StepFunc performs the real work of a step.
type StepFunc func(ctx context.Context, state WorkState) (Result, error)

// FallbackFunc produces a degraded Result when a step has exhausted its
// retries. It must not fail.
type FallbackFunc func(state WorkState) Result

// Step is one named unit of a pipeline.
type Step struct {
	// Name identifies the step in records and events.
	Name string

	// Percent is the overall progress after this step completes.
	Percent int

	// Run performs the step.
	Run StepFunc

	// Fallback supplies degraded output when Run exhausts its retries.
	// When nil, a failed step contributes nothing to the state.
	Fallback FallbackFunc
}

// Options carries the per-execution collaborators. They are arguments rather
// than Pipeline fields so one pipeline value can serve concurrent executions.
type Options struct {
	// Observe receives every step record transition: a running record when a
	// step starts, then exactly one completed or failed record when it ends.
	// The percent is the overall progress as of that record.
	Observe func(percent int, rec task.StepRecord)

	// Cancelled is polled before each step. A true result stops the
	// execution with ErrCancelled.
	Cancelled func() bool
}

// Pipeline is an immutable ordered list of steps sharing an executor.
type Pipeline struct {
	name  string
	exec  *Executor
	steps []Step
}

// New builds a pipeline. The executor supplies retry behavior for every step.
func New(name string, exec *Executor, steps ...Step) *Pipeline {
	if exec == nil {
		exec = NewExecutor(DefaultRetryPolicy(), slog.Default())
	}
	return &Pipeline{name: name, exec: exec, steps: steps}
}

// Name returns the pipeline's name.
func (p *Pipeline) Name() string { return p.name }

// Steps returns the pipeline's step list.
func (p *Pipeline) Steps() []Step { return p.steps }

// Execute runs the steps in order against state, merging each step's output as
// it goes. Step failures never abort the run: the executor falls back and the
// pipeline continues. The only early exit is cancellation. The final state is
// returned even on cancellation so partial work is observable.
func (p *Pipeline) Execute(ctx context.Context, state WorkState, opts Options) (WorkState, error) {
	if state == nil {
		state = make(WorkState)
	}

	percent := 0
	for _, step := range p.steps {
		if cancelled(ctx, opts) {
			return state, ErrCancelled
		}

		res := p.exec.RunStep(ctx, step, state, percent, opts.Observe)
		for k, v := range res.Output {
			state[k] = v
		}
		percent = step.Percent
	}

	if cancelled(ctx, opts) {
		return state, ErrCancelled
	}
	return state, nil
}

func cancelled(ctx context.Context, opts Options) bool {
	if ctx.Err() != nil {
		return true
	}
	return opts.Cancelled != nil && opts.Cancelled()
}
