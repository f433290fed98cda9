// ABOUTME: Task is the investigation task aggregate: identity, type, query, status,
// ABOUTME: progress, ordered step history, and the state machine over its lifecycle.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389-research/spyglass/report"
)

// ID is the opaque unique identifier for a task. Generated at creation,
// never reused.
type ID string

// NewID returns a fresh random task ID in canonical string form.
func NewID() ID {
	return ID(uuid.NewString())
}

// ParseID validates a task ID string and returns it in canonical form.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse task id %q: %w", s, err)
	}
	return ID(u.String()), nil
}

func (id ID) String() string { return string(id) }

// Type is the kind of investigation a task performs. Fixed at creation.
type Type string

const (
	TypeIndustryResearch        Type = "industry_research"
	TypeCredibilityVerification Type = "credibility_verification"
)

// ParseType validates a task type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeIndustryResearch, TypeCredibilityVerification:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown task type: %q", s)
}

// Status is the lifecycle state of a task.
//
//	Pending -> Running -> {Completed, Failed}
//	Pending|Running -> Cancelled
//
// Completed, Failed, and Cancelled are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions may leave this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ErrEmptyQuery is returned when a task is created with a blank query.
var ErrEmptyQuery = errors.New("query must not be empty")

// ErrNotFound is returned by repositories when no task has the requested ID.
var ErrNotFound = errors.New("task not found")

// InvalidStateError reports a state transition attempted from an illegal
// state. It always indicates a programming or race bug in the caller.
type InvalidStateError struct {
	Op   string
	From Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s task in state %q", e.Op, string(e.From))
}

// Task is the persisted investigation task aggregate. Fields are exported for
// persistence mapping; all lifecycle mutation must go through the transition
// methods below. Persistence after a mutation is the caller's responsibility.
type Task struct {
	ID          ID
	Type        Type
	Query       string
	Status      Status
	Progress    int
	Steps       []StepRecord
	Result      report.Report
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// New creates a Pending task with a fresh ID. The query is trimmed and must
// be non-empty.
func New(taskType Type, query string) (*Task, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	now := time.Now().UTC()
	return &Task{
		ID:        NewID(),
		Type:      taskType,
		Query:     q,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Start transitions Pending -> Running.
func (t *Task) Start() error {
	if t.Status != StatusPending {
		return &InvalidStateError{Op: "start", From: t.Status}
	}
	t.Status = StatusRunning
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete transitions Running -> Completed, attaching the result and
// forcing progress to 100.
func (t *Task) Complete(result report.Report) error {
	if t.Status != StatusRunning {
		return &InvalidStateError{Op: "complete", From: t.Status}
	}
	now := time.Now().UTC()
	t.Status = StatusCompleted
	t.Result = result
	t.Progress = 100
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// Fail transitions Running -> Failed, recording the error message.
func (t *Task) Fail(message string) error {
	if t.Status != StatusRunning {
		return &InvalidStateError{Op: "fail", From: t.Status}
	}
	now := time.Now().UTC()
	t.Status = StatusFailed
	t.Error = message
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// Cancel transitions Pending or Running -> Cancelled. Cancellation is
// cooperative: an in-flight pipeline run observes the new status at its next
// checkpoint rather than being preempted.
func (t *Task) Cancel() error {
	if t.Status != StatusPending && t.Status != StatusRunning {
		return &InvalidStateError{Op: "cancel", From: t.Status}
	}
	now := time.Now().UTC()
	t.Status = StatusCancelled
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// UpdateProgress clamps percent to [0,100], records it, and appends step to
// the history. It does not check liveness: the run loop verifies the task is
// still Running before calling this.
func (t *Task) UpdateProgress(percent int, step StepRecord) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	t.Progress = percent
	t.Steps = append(t.Steps, step)
	t.UpdatedAt = time.Now().UTC()
}

// Duration returns the elapsed time from creation to completion. The second
// return value is false while the task is not finished.
func (t *Task) Duration() (time.Duration, bool) {
	if t.CompletedAt == nil {
		return 0, false
	}
	return t.CompletedAt.Sub(t.CreatedAt), true
}
