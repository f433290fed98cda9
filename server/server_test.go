// ABOUTME: HTTP API tests: task creation, lookup, listing, cancellation, stats,
// ABOUTME: report rendering, and SSE streams over a memory store and stub workflows.

package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/2389-research/spyglass/engine"
	"github.com/2389-research/spyglass/pipeline"
	"github.com/2389-research/spyglass/report"
	"github.com/2389-research/spyglass/store"
	"github.com/2389-research/spyglass/task"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func quietExecutor() *pipeline.Executor {
	policy := pipeline.DefaultRetryPolicy()
	policy.BaseDelay = 0
	return pipeline.NewExecutor(policy, quietLogger())
}

// fixture holds a server over a memory store with stub workflows. Runs are
// deferred: drain executes all scheduled runs synchronously.
type fixture struct {
	t    *testing.T
	srv  *Server
	hub  *Hub
	runs []func()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t}

	exec := quietExecutor()
	research := pipeline.New("industry_research", exec,
		pipeline.Step{
			Name:    "industry_overview",
			Percent: 95,
			Run: func(ctx context.Context, state pipeline.WorkState) (pipeline.Result, error) {
				return pipeline.Result{
					Output: map[string]any{
						report.KeyIndustrySummary: "compact summary",
						report.KeyHeatScore:       70,
					},
					Summary: "overview ready",
				}, nil
			},
		},
		pipeline.Step{
			Name:    "aggregate_results",
			Percent: 100,
			Run: func(ctx context.Context, state pipeline.WorkState) (pipeline.Result, error) {
				return pipeline.Result{Summary: "results aggregated"}, nil
			},
		},
	)
	credibility := pipeline.New("credibility_verification", exec,
		pipeline.Step{
			Name:    "main_business_match",
			Percent: 90,
			Run: func(ctx context.Context, state pipeline.WorkState) (pipeline.Result, error) {
				return pipeline.Result{
					Output: map[string]any{
						report.KeyStockName:       "Example Co",
						report.KeyBusinessScore:   80,
						report.KeyEvidenceScore:   80,
						report.KeyHypeScore:       80,
						report.KeySupplyChainScore: 80,
					},
					Summary: "dimensions scored",
				}, nil
			},
		},
	)

	f.hub = NewHub()
	orch, err := engine.New(engine.Config{
		Repo:        store.NewMemoryStore(),
		Emitter:     f.hub,
		Research:    research,
		Credibility: credibility,
		Scheduler:   func(run func()) { f.runs = append(f.runs, run) },
		Logger:      quietLogger(),
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	f.srv = NewServer(orch, f.hub, quietLogger(), 50)
	return f
}

// drain executes all deferred runs.
func (f *fixture) drain() {
	runs := f.runs
	f.runs = nil
	for _, run := range runs {
		run()
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) decodeTask(rec *httptest.ResponseRecorder) taskResponse {
	f.t.Helper()
	var resp taskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		f.t.Fatalf("decode task response: %v\nbody: %s", err, rec.Body.String())
	}
	return resp
}

func (f *fixture) createTask(taskType, query string) taskResponse {
	f.t.Helper()
	body, _ := json.Marshal(createTaskRequest{TaskType: taskType, Query: query})
	rec := f.do(http.MethodPost, "/api/tasks", string(body))
	if rec.Code != http.StatusAccepted {
		f.t.Fatalf("create task: status = %d, want %d\nbody: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	return f.decodeTask(rec)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestCreateTaskAccepted(t *testing.T) {
	f := newFixture(t)
	resp := f.createTask("industry_research", "solid-state batteries")

	if resp.Status != "pending" {
		t.Errorf("status = %q, want %q before the run drains", resp.Status, "pending")
	}
	if resp.TaskType != "industry_research" {
		t.Errorf("task_type = %q", resp.TaskType)
	}
	if resp.Steps == nil || len(resp.Steps) != 0 {
		t.Errorf("steps = %v, want empty non-nil slice", resp.Steps)
	}
	if _, err := task.ParseID(resp.TaskID); err != nil {
		t.Errorf("task_id %q is not valid: %v", resp.TaskID, err)
	}
}

func TestCreateTaskRejections(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", "{not json"},
		{"unknown type", `{"task_type":"mystery","query":"x"}`},
		{"empty query", `{"task_type":"industry_research","query":"  "}`},
		{"bad credibility query", `{"task_type":"credibility_verification","query":"no-code-here"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/tasks", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d\nbody: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
		})
	}
	if len(f.runs) != 0 {
		t.Errorf("scheduled %d runs from rejected requests", len(f.runs))
	}
}

func TestGetTaskAfterRun(t *testing.T) {
	f := newFixture(t)
	created := f.createTask("industry_research", "solid-state batteries")
	f.drain()

	rec := f.do(http.MethodGet, "/api/tasks/"+created.TaskID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d\nbody: %s", rec.Code, rec.Body.String())
	}
	resp := f.decodeTask(rec)

	if resp.Status != "completed" {
		t.Fatalf("status = %q, want %q", resp.Status, "completed")
	}
	if resp.Progress != 100 {
		t.Errorf("progress = %d, want 100", resp.Progress)
	}
	if resp.CompletedAt == nil {
		t.Errorf("completed_at missing on finished task")
	}
	if len(resp.Steps) != 4 {
		t.Errorf("len(steps) = %d, want 4 (running+completed per step)", len(resp.Steps))
	}

	var result struct {
		Type      string `json:"type"`
		HeatScore int    `json:"heat_score"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Type != report.TypeIndustryInsight {
		t.Errorf("result type = %q, want %q", result.Type, report.TypeIndustryInsight)
	}
	if result.HeatScore != 70 {
		t.Errorf("heat_score = %d, want 70", result.HeatScore)
	}
}

func TestGetTaskErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/tasks/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = f.do(http.MethodGet, "/api/tasks/"+task.NewID().String(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestListTasks(t *testing.T) {
	f := newFixture(t)
	f.createTask("industry_research", "humanoid robots")
	f.createTask("industry_research", "solid-state batteries")
	f.drain()

	rec := f.do(http.MethodGet, "/api/tasks?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Tasks []taskResponse `json:"tasks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(resp.Tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want 1", len(resp.Tasks))
	}

	rec = f.do(http.MethodGet, "/api/tasks?limit=1&offset=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("offset page: status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode offset page: %v", err)
	}
	if len(resp.Tasks) != 1 || resp.Tasks[0].Query != "humanoid robots" {
		t.Errorf("offset page = %+v, want the older task", resp.Tasks)
	}

	for _, bad := range []string{"limit=zero", "limit=0", "limit=101", "offset=-1", "offset=x"} {
		rec = f.do(http.MethodGet, "/api/tasks?"+bad, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", bad, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestDeleteTaskEndpoint(t *testing.T) {
	f := newFixture(t)
	created := f.createTask("industry_research", "solid-state batteries")

	rec := f.do(http.MethodDelete, "/api/tasks/"+created.TaskID, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete pending task: status = %d, want %d", rec.Code, http.StatusConflict)
	}

	f.drain()
	rec = f.do(http.MethodDelete, "/api/tasks/"+created.TaskID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete completed task: status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = f.do(http.MethodGet, "/api/tasks/"+created.TaskID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = f.do(http.MethodDelete, "/api/tasks/"+created.TaskID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCancelTask(t *testing.T) {
	f := newFixture(t)
	created := f.createTask("industry_research", "solid-state batteries")

	rec := f.do(http.MethodPost, "/api/tasks/"+created.TaskID+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: status = %d\nbody: %s", rec.Code, rec.Body.String())
	}
	if resp := f.decodeTask(rec); resp.Status != "cancelled" {
		t.Errorf("status = %q, want %q", resp.Status, "cancelled")
	}

	// The deferred run must notice the cancellation and do nothing.
	f.drain()
	resp := f.decodeTask(f.do(http.MethodGet, "/api/tasks/"+created.TaskID, ""))
	if resp.Status != "cancelled" || len(resp.Steps) != 0 {
		t.Errorf("after drain: status = %q steps = %d, want cancelled with no steps", resp.Status, len(resp.Steps))
	}

	rec = f.do(http.MethodPost, "/api/tasks/"+created.TaskID+"/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("second cancel: status = %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = f.do(http.MethodPost, "/api/tasks/"+task.NewID().String()+"/cancel", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown task cancel: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.createTask("industry_research", "humanoid robots")
	f.createTask("credibility_verification", "600519.SH solid-state batteries")
	f.drain()

	rec := f.do(http.MethodGet, "/api/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats engine.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 2 || stats.Completed != 2 {
		t.Errorf("stats = %+v, want total 2 completed 2", stats)
	}
}

func TestTaskReportEndpoint(t *testing.T) {
	f := newFixture(t)
	created := f.createTask("credibility_verification", "600519.SH solid-state batteries")

	rec := f.do(http.MethodGet, "/api/tasks/"+created.TaskID+"/report", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("report before run: status = %d, want %d", rec.Code, http.StatusConflict)
	}

	f.drain()
	rec = f.do(http.MethodGet, "/api/tasks/"+created.TaskID+"/report", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("report: status = %d\nbody: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"Credibility Report", "Example Co", "600519.SH"} {
		if !strings.Contains(body, want) {
			t.Errorf("report HTML missing %q", want)
		}
	}
}

func TestEventsTerminalSnapshot(t *testing.T) {
	f := newFixture(t)
	created := f.createTask("industry_research", "solid-state batteries")
	f.drain()

	rec := f.do(http.MethodGet, "/api/tasks/"+created.TaskID+"/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: "+engine.EventTaskCompleted) {
		t.Errorf("snapshot missing completed event:\n%s", body)
	}
	if !strings.Contains(body, `"task_id":"`+created.TaskID+`"`) {
		t.Errorf("snapshot missing task id:\n%s", body)
	}
}

func TestEventsUnknownTask(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/tasks/"+task.NewID().String()+"/events", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
