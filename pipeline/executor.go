// ABOUTME: Step executor: runs a single step under the retry policy, emits step
// ABOUTME: records, and degrades to the step's fallback when retries are exhausted.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389-research/spyglass/task"
)

// Executor runs individual steps. A step run never returns an error to its
// pipeline: exhausted retries degrade to the step's fallback output, and the
// failure is reported through the observer as exactly one failed step record.
type Executor struct {
	policy RetryPolicy
	logger *slog.Logger
}

// NewExecutor builds an Executor with the given retry policy.
func NewExecutor(policy RetryPolicy, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{policy: policy, logger: logger}
}

// RunStep executes one step with retries. startPercent is the overall progress
// before the step runs; observe (optional) receives a running record at start
// and one completed or failed record at the end.
func (e *Executor) RunStep(ctx context.Context, step Step, state WorkState, startPercent int, observe func(int, task.StepRecord)) Result {
	started := time.Now().UTC()

	if observe != nil {
		observe(startPercent, task.RunningStep(step.Name, started))
	}

	policy := e.policy
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		e.logger.Warn("step attempt failed, retrying",
			"step", step.Name,
			"attempt", attempt+1,
			"delay", delay,
			"error", err)
	}

	var res Result
	err := Retry(ctx, policy, func() error {
		var runErr error
		res, runErr = step.Run(ctx, state.Clone())
		return runErr
	})

	completed := time.Now().UTC()

	if err != nil {
		e.logger.Error("step failed after retries, applying fallback",
			"step", step.Name,
			"error", err)
		if observe != nil {
			msg := fmt.Sprintf("failed after %d retries: %s", e.policy.MaxRetries, err)
			observe(step.Percent, task.FailedStep(step.Name, msg, started, completed))
		}
		if step.Fallback != nil {
			return step.Fallback(state)
		}
		return Result{Output: map[string]any{}}
	}

	e.logger.Info("step completed",
		"step", step.Name,
		"duration", completed.Sub(started))
	if observe != nil {
		observe(step.Percent, task.CompletedStep(step.Name, res.Summary, started, completed))
	}
	return res
}
