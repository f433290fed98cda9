// ABOUTME: JSON request and response shapes for the task API, mapping the task
// ABOUTME: aggregate to wire field names.

package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/2389-research/spyglass/report"
	"github.com/2389-research/spyglass/task"
)

// createTaskRequest is the body of POST /api/tasks.
type createTaskRequest struct {
	TaskType string `json:"task_type"`
	Query    string `json:"query"`
}

// taskResponse is the wire shape of a task.
type taskResponse struct {
	TaskID      string            `json:"task_id"`
	TaskType    string            `json:"task_type"`
	Query       string            `json:"query"`
	Status      string            `json:"status"`
	Progress    int               `json:"progress"`
	Steps       []task.StepRecord `json:"steps"`
	Result      json.RawMessage   `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

func toTaskResponse(t *task.Task) (taskResponse, error) {
	resp := taskResponse{
		TaskID:      t.ID.String(),
		TaskType:    string(t.Type),
		Query:       t.Query,
		Status:      string(t.Status),
		Progress:    t.Progress,
		Steps:       t.Steps,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CompletedAt: t.CompletedAt,
	}
	if resp.Steps == nil {
		resp.Steps = []task.StepRecord{}
	}
	if t.Result != nil {
		data, err := report.MarshalReport(t.Result)
		if err != nil {
			return taskResponse{}, fmt.Errorf("marshal task result: %w", err)
		}
		resp.Result = data
	}
	return resp, nil
}

// errorResponse is the wire shape of all API errors.
type errorResponse struct {
	Error string `json:"error"`
}
