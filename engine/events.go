// ABOUTME: Wire event payloads pushed to subscribers over the live channel:
// ABOUTME: task_progress, task_completed, and task_failed with fixed field names.

package engine

import (
	"encoding/json"
	"fmt"

	"github.com/2389-research/spyglass/report"
	"github.com/2389-research/spyglass/task"
)

// Event names on the wire.
const (
	EventTaskProgress  = "task_progress"
	EventTaskCompleted = "task_completed"
	EventTaskFailed    = "task_failed"
)

// Event is one push notification about a task. The concrete payload types
// below are the only implementations.
type Event interface {
	EventName() string
	EventTaskID() task.ID
}

// ProgressEvent reports a step transition and the task's overall progress.
type ProgressEvent struct {
	TaskID    task.ID         `json:"task_id"`
	Progress  int             `json:"progress"`
	AgentStep task.StepRecord `json:"agent_step"`
}

func (ProgressEvent) EventName() string      { return EventTaskProgress }
func (e ProgressEvent) EventTaskID() task.ID { return e.TaskID }

// CompletedEvent carries the final report of a finished task.
type CompletedEvent struct {
	TaskID task.ID       `json:"task_id"`
	Result report.Report `json:"result"`
}

func (CompletedEvent) EventName() string      { return EventTaskCompleted }
func (e CompletedEvent) EventTaskID() task.ID { return e.TaskID }

// MarshalJSON inlines the result with its type discriminator.
func (e CompletedEvent) MarshalJSON() ([]byte, error) {
	result, err := report.MarshalReport(e.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal completed event result: %w", err)
	}
	return json.Marshal(struct {
		TaskID task.ID         `json:"task_id"`
		Result json.RawMessage `json:"result"`
	}{TaskID: e.TaskID, Result: result})
}

// FailedEvent reports a task that ended in failure.
type FailedEvent struct {
	TaskID task.ID `json:"task_id"`
	Error  string  `json:"error"`
}

func (FailedEvent) EventName() string      { return EventTaskFailed }
func (e FailedEvent) EventTaskID() task.ID { return e.TaskID }

// Emitter pushes events toward subscribers. Implementations must not block
// the caller: the run loop treats emission as fire-and-forget.
type Emitter interface {
	Emit(event Event)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}
