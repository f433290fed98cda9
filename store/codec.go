// ABOUTME: Row codec shared by the SQL stores: tasks flatten to one row with the
// ABOUTME: step history and result serialized as JSON columns.

package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/2389-research/spyglass/report"
	"github.com/2389-research/spyglass/task"
)

const timeLayout = time.RFC3339Nano

// taskRow is the flat SQL representation of a task.
type taskRow struct {
	ID          string
	Type        string
	Query       string
	Status      string
	Progress    int
	StepsJSON   string
	ResultJSON  *string
	ErrorMsg    string
	CreatedAt   string
	UpdatedAt   string
	CompletedAt *string
}

func encodeTask(t *task.Task) (taskRow, error) {
	steps := t.Steps
	if steps == nil {
		steps = []task.StepRecord{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return taskRow{}, fmt.Errorf("encode steps: %w", err)
	}

	row := taskRow{
		ID:        t.ID.String(),
		Type:      string(t.Type),
		Query:     t.Query,
		Status:    string(t.Status),
		Progress:  t.Progress,
		StepsJSON: string(stepsJSON),
		ErrorMsg:  t.Error,
		CreatedAt: t.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt: t.UpdatedAt.UTC().Format(timeLayout),
	}
	if t.Result != nil {
		data, err := report.MarshalReport(t.Result)
		if err != nil {
			return taskRow{}, fmt.Errorf("encode result: %w", err)
		}
		s := string(data)
		row.ResultJSON = &s
	}
	if t.CompletedAt != nil {
		s := t.CompletedAt.UTC().Format(timeLayout)
		row.CompletedAt = &s
	}
	return row, nil
}

func decodeTask(row taskRow) (*task.Task, error) {
	t := &task.Task{
		ID:       task.ID(row.ID),
		Type:     task.Type(row.Type),
		Query:    row.Query,
		Status:   task.Status(row.Status),
		Progress: row.Progress,
		Error:    row.ErrorMsg,
	}

	if err := json.Unmarshal([]byte(row.StepsJSON), &t.Steps); err != nil {
		return nil, fmt.Errorf("decode steps for task %s: %w", row.ID, err)
	}
	if row.ResultJSON != nil && *row.ResultJSON != "" {
		result, err := report.UnmarshalReport([]byte(*row.ResultJSON))
		if err != nil {
			return nil, fmt.Errorf("decode result for task %s: %w", row.ID, err)
		}
		t.Result = result
	}

	var err error
	if t.CreatedAt, err = time.Parse(timeLayout, row.CreatedAt); err != nil {
		return nil, fmt.Errorf("decode created_at for task %s: %w", row.ID, err)
	}
	if t.UpdatedAt, err = time.Parse(timeLayout, row.UpdatedAt); err != nil {
		return nil, fmt.Errorf("decode updated_at for task %s: %w", row.ID, err)
	}
	if row.CompletedAt != nil {
		at, err := time.Parse(timeLayout, *row.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("decode completed_at for task %s: %w", row.ID, err)
		}
		t.CompletedAt = &at
	}
	return t, nil
}
