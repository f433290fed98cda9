// ABOUTME: Task orchestrator: creates tasks, schedules their workflow runs in the
// ABOUTME: background, and drives the status state machine from run outcomes.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389-research/spyglass/pipeline"
	"github.com/2389-research/spyglass/report"
	"github.com/2389-research/spyglass/task"
)

// TaskRepository is the persistence surface the orchestrator needs. The store
// package provides memory, SQLite, and Postgres implementations.
type TaskRepository interface {
	Save(ctx context.Context, t *task.Task) error
	Get(ctx context.Context, id task.ID) (*task.Task, error)
	ListRecent(ctx context.Context, limit, offset int) ([]*task.Task, error)
	Delete(ctx context.Context, id task.ID) error
	CountByStatus(ctx context.Context) (map[task.Status]int, error)
}

// Scheduler starts a background run. The default runs each task in its own
// goroutine; tests substitute a synchronous one.
type Scheduler func(run func())

// GoScheduler runs each task in a new goroutine.
func GoScheduler(run func()) { go run() }

// Stats summarizes the repository by task status.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Orchestrator owns the task lifecycle: creation, background execution,
// cancellation, and lookups.
type Orchestrator struct {
	repo        TaskRepository
	emitter     Emitter
	research    *pipeline.Pipeline
	credibility *pipeline.Pipeline
	schedule    Scheduler
	logger      *slog.Logger
}

// Config wires an Orchestrator. Repo, Research, and Credibility are required;
// nil Emitter, Scheduler, and Logger get working defaults.
type Config struct {
	Repo        TaskRepository
	Emitter     Emitter
	Research    *pipeline.Pipeline
	Credibility *pipeline.Pipeline
	Scheduler   Scheduler
	Logger      *slog.Logger
}

// New builds an Orchestrator from cfg.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Repo == nil {
		return nil, errors.New("engine: repository is required")
	}
	if cfg.Research == nil || cfg.Credibility == nil {
		return nil, errors.New("engine: both workflows are required")
	}
	if cfg.Emitter == nil {
		cfg.Emitter = NopEmitter{}
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = GoScheduler
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		repo:        cfg.Repo,
		emitter:     cfg.Emitter,
		research:    cfg.Research,
		credibility: cfg.Credibility,
		schedule:    cfg.Scheduler,
		logger:      cfg.Logger,
	}, nil
}

// CreateTask validates the request, persists a Pending task, and schedules
// its run. It returns as soon as the task is stored: execution is
// asynchronous and progress flows through the emitter.
func (o *Orchestrator) CreateTask(ctx context.Context, taskType task.Type, query string) (*task.Task, error) {
	if _, err := task.ParseType(string(taskType)); err != nil {
		return nil, err
	}

	if taskType == task.TypeCredibilityVerification {
		if _, _, err := splitCredibilityQuery(query); err != nil {
			return nil, err
		}
	}

	t, err := task.New(taskType, query)
	if err != nil {
		return nil, err
	}
	if err := o.repo.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("save new task: %w", err)
	}

	o.logger.Info("task created", "task_id", t.ID, "type", t.Type)

	id := t.ID
	o.schedule(func() { o.run(id) })
	return t, nil
}

// GetTask returns the task by ID.
func (o *Orchestrator) GetTask(ctx context.Context, id task.ID) (*task.Task, error) {
	return o.repo.Get(ctx, id)
}

// ListRecent returns up to limit tasks, newest first, skipping offset tasks.
func (o *Orchestrator) ListRecent(ctx context.Context, limit, offset int) ([]*task.Task, error) {
	return o.repo.ListRecent(ctx, limit, offset)
}

// DeleteTask removes a finished task from the repository. Live tasks cannot
// be deleted: cancel first, then delete once the run loop has let go.
func (o *Orchestrator) DeleteTask(ctx context.Context, id task.ID) error {
	t, err := o.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !t.Status.Terminal() {
		return &task.InvalidStateError{Op: "delete", From: t.Status}
	}
	if err := o.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	o.logger.Info("task deleted", "task_id", id)
	return nil
}

// Stats returns the status breakdown of the repository.
func (o *Orchestrator) Stats(ctx context.Context) (Stats, error) {
	counts, err := o.repo.CountByStatus(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{
		Pending:   counts[task.StatusPending],
		Running:   counts[task.StatusRunning],
		Completed: counts[task.StatusCompleted],
		Failed:    counts[task.StatusFailed],
		Cancelled: counts[task.StatusCancelled],
	}
	s.Total = s.Pending + s.Running + s.Completed + s.Failed + s.Cancelled
	return s, nil
}

// CancelTask marks a Pending or Running task Cancelled. The in-flight run, if
// any, notices at its next checkpoint; already-finished work is kept.
func (o *Orchestrator) CancelTask(ctx context.Context, id task.ID) (*task.Task, error) {
	t, err := o.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.Cancel(); err != nil {
		return nil, err
	}
	if err := o.repo.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("save cancelled task: %w", err)
	}
	o.logger.Info("task cancelled", "task_id", id)
	return t, nil
}

// run drives one task from Pending to a terminal state. It is the only writer
// of Running/Completed/Failed transitions; Cancel may race it, so every write
// reloads the task and checks it is still live first.
func (o *Orchestrator) run(id task.ID) {
	ctx := context.Background()
	log := o.logger.With("task_id", id)

	// A panic in a step or builder must fail this task only, never take the
	// process down with it.
	defer func() {
		if r := recover(); r != nil {
			log.Error("task run panicked", "panic", r)
			o.fail(ctx, id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	t, err := o.repo.Get(ctx, id)
	if err != nil {
		log.Error("load scheduled task", "error", err)
		return
	}
	if err := t.Start(); err != nil {
		// Cancelled before the run began.
		log.Info("task not startable, skipping run", "status", t.Status)
		return
	}
	if err := o.repo.Save(ctx, t); err != nil {
		log.Error("save running task", "error", err)
		return
	}

	p, state, buildErr := o.prepare(t)
	if buildErr != nil {
		o.fail(ctx, id, buildErr.Error())
		return
	}

	finalState, execErr := p.Execute(ctx, state, pipeline.Options{
		Observe:   func(percent int, rec task.StepRecord) { o.observeStep(ctx, id, percent, rec) },
		Cancelled: func() bool { return !o.isLive(ctx, id) },
	})
	if errors.Is(execErr, pipeline.ErrCancelled) {
		log.Info("task run stopped at cancellation checkpoint")
		return
	}
	if execErr != nil {
		o.fail(ctx, id, execErr.Error())
		return
	}

	result, buildErr := o.buildResult(t, finalState)
	if buildErr != nil {
		o.fail(ctx, id, buildErr.Error())
		return
	}
	o.complete(ctx, id, result)
}

// prepare selects the workflow and seeds its initial state from the task.
func (o *Orchestrator) prepare(t *task.Task) (*pipeline.Pipeline, pipeline.WorkState, error) {
	switch t.Type {
	case task.TypeIndustryResearch:
		return o.research, pipeline.WorkState{report.KeyQuery: t.Query}, nil
	case task.TypeCredibilityVerification:
		code, concept, err := splitCredibilityQuery(t.Query)
		if err != nil {
			return nil, nil, err
		}
		return o.credibility, pipeline.WorkState{
			report.KeyStockCode: code.String(),
			report.KeyConcept:   concept,
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown task type: %q", t.Type)
	}
}

// buildResult maps the final work state into the task's report shape.
func (o *Orchestrator) buildResult(t *task.Task, state pipeline.WorkState) (report.Report, error) {
	switch t.Type {
	case task.TypeIndustryResearch:
		return report.BuildIndustryInsight(t.Query, state), nil
	case task.TypeCredibilityVerification:
		code, concept, err := splitCredibilityQuery(t.Query)
		if err != nil {
			return nil, err
		}
		return report.BuildCredibilityReport(code, concept, state), nil
	default:
		return nil, fmt.Errorf("unknown task type: %q", t.Type)
	}
}

// observeStep persists a step record and pushes a progress event. The task is
// reloaded first: if cancellation won the race, the record is dropped.
func (o *Orchestrator) observeStep(ctx context.Context, id task.ID, percent int, rec task.StepRecord) {
	t, err := o.repo.Get(ctx, id)
	if err != nil {
		o.logger.Error("load task for progress", "task_id", id, "error", err)
		return
	}
	if t.Status != task.StatusRunning {
		return
	}
	t.UpdateProgress(percent, rec)
	if err := o.repo.Save(ctx, t); err != nil {
		o.logger.Error("save task progress", "task_id", id, "error", err)
		return
	}
	o.emitter.Emit(ProgressEvent{TaskID: id, Progress: t.Progress, AgentStep: rec})
}

// isLive reports whether the task still exists and is Running. A load error
// is logged and treated as not live: stopping the run is the safe side of
// that ambiguity, and the terminal write path re-checks through fresh reads.
func (o *Orchestrator) isLive(ctx context.Context, id task.ID) bool {
	t, err := o.repo.Get(ctx, id)
	if err != nil {
		o.logger.Error("load task for liveness check", "task_id", id, "error", err)
		return false
	}
	return t.Status == task.StatusRunning
}

// complete finishes a run with its result, unless cancellation won the race.
func (o *Orchestrator) complete(ctx context.Context, id task.ID, result report.Report) {
	t, err := o.repo.Get(ctx, id)
	if err != nil {
		o.logger.Error("load task for completion", "task_id", id, "error", err)
		return
	}
	if err := t.Complete(result); err != nil {
		o.logger.Info("completion skipped", "task_id", id, "status", t.Status)
		return
	}
	if err := o.repo.Save(ctx, t); err != nil {
		o.logger.Error("save completed task", "task_id", id, "error", err)
		return
	}
	o.logger.Info("task completed", "task_id", id)
	o.emitter.Emit(CompletedEvent{TaskID: id, Result: result})
}

// fail finishes a run with an error message, unless cancellation won the race.
func (o *Orchestrator) fail(ctx context.Context, id task.ID, message string) {
	t, err := o.repo.Get(ctx, id)
	if err != nil {
		o.logger.Error("load task for failure", "task_id", id, "error", err)
		return
	}
	if err := t.Fail(message); err != nil {
		o.logger.Info("failure skipped", "task_id", id, "status", t.Status)
		return
	}
	if err := o.repo.Save(ctx, t); err != nil {
		o.logger.Error("save failed task", "task_id", id, "error", err)
		return
	}
	o.logger.Warn("task failed", "task_id", id, "error", message)
	o.emitter.Emit(FailedEvent{TaskID: id, Error: message})
}

// splitCredibilityQuery parses a credibility query of the form
// "<subject code> <concept>", e.g. "600519.SH solid-state batteries".
func splitCredibilityQuery(query string) (report.SubjectCode, string, error) {
	fields := strings.Fields(strings.TrimSpace(query))
	if len(fields) < 2 {
		return "", "", errors.New("credibility query must be \"<stock code> <concept>\"")
	}
	code, err := report.ParseSubjectCode(fields[0])
	if err != nil {
		return "", "", err
	}
	return code, strings.Join(fields[1:], " "), nil
}
