// ABOUTME: HTTP server for the task API behind a chi router: task CRUD, stats,
// ABOUTME: live SSE event streams, and rendered HTML reports.

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389-research/spyglass/engine"
	"github.com/2389-research/spyglass/task"
)

// Server exposes the orchestrator over HTTP.
type Server struct {
	orch      *engine.Orchestrator
	hub       *Hub
	router    chi.Router
	logger    *slog.Logger
	listLimit int
}

// NewServer builds the HTTP server. The hub must be the same one wired into
// the orchestrator as its emitter, or event streams will stay silent.
func NewServer(orch *engine.Orchestrator, hub *Hub, logger *slog.Logger, listLimit int) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if listLimit <= 0 {
		listLimit = 50
	}
	s := &Server{orch: orch, hub: hub, logger: logger, listLimit: listLimit}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/tasks", s.handleCreateTask)
		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{taskID}", s.handleGetTask)
		r.Delete("/tasks/{taskID}", s.handleDeleteTask)
		r.Post("/tasks/{taskID}/cancel", s.handleCancelTask)
		r.Get("/tasks/{taskID}/events", s.handleTaskEvents)
		r.Get("/tasks/{taskID}/report", s.handleTaskReport)
		r.Get("/stats", s.handleStats)
	})
	r.Get("/healthz", s.handleHealth)

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	t, err := s.orch.CreateTask(r.Context(), task.Type(req.TaskType), req.Query)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := toTaskResponse(t)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTask(w, r)
	if !ok {
		return
	}
	resp, err := toTaskResponse(t)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

const maxListLimit = 100

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit := s.listLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			s.writeError(w, http.StatusBadRequest,
				fmt.Errorf("limit must be an integer in [1,%d], got %q", maxListLimit, v))
			return
		}
		limit = n
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("offset must be a non-negative integer, got %q", v))
			return
		}
		offset = n
	}

	tasks, err := s.orch.ListRecent(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp, err := toTaskResponse(t)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, resp)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}

	t, err := s.orch.CancelTask(r.Context(), id)
	if err != nil {
		var ise *task.InvalidStateError
		switch {
		case errors.Is(err, task.ErrNotFound):
			s.writeError(w, http.StatusNotFound, err)
		case errors.As(err, &ise):
			s.writeError(w, http.StatusConflict, err)
		default:
			s.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	resp, err := toTaskResponse(t)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}

	if err := s.orch.DeleteTask(r.Context(), id); err != nil {
		var ise *task.InvalidStateError
		switch {
		case errors.Is(err, task.ErrNotFound):
			s.writeError(w, http.StatusNotFound, err)
		case errors.As(err, &ise):
			s.writeError(w, http.StatusConflict, err)
		default:
			s.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.orch.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// handleTaskEvents streams a task's events as SSE. Subscribers joining after
// the task finished get a single terminal event and an immediate close.
func (s *Server) handleTaskEvents(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTask(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the terminal check so no event can fall between them.
	events, cancel := s.hub.Subscribe(t.ID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if t.Status.Terminal() {
		s.writeTerminalSnapshot(w, flusher, t)
		return
	}

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
			name := ev.Event.EventName()
			if name == engine.EventTaskCompleted || name == engine.EventTaskFailed {
				return
			}
		}
	}
}

// writeTerminalSnapshot replays the terminal outcome for late subscribers.
// Cancelled tasks have no terminal event; the stream just closes.
func (s *Server) writeTerminalSnapshot(w http.ResponseWriter, flusher http.Flusher, t *task.Task) {
	var event engine.Event
	switch t.Status {
	case task.StatusCompleted:
		event = engine.CompletedEvent{TaskID: t.ID, Result: t.Result}
	case task.StatusFailed:
		event = engine.FailedEvent{TaskID: t.ID, Error: t.Error}
	default:
		return
	}
	if err := writeSSE(w, HubEvent{ID: "snapshot", Event: event}); err != nil {
		return
	}
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, ev HubEvent) error {
	data, err := json.Marshal(ev.Event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Event.EventName(), data)
	return err
}

func (s *Server) handleTaskReport(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTask(w, r)
	if !ok {
		return
	}
	if t.Result == nil {
		s.writeError(w, http.StatusConflict,
			fmt.Errorf("task %s has no report: status is %q", t.ID, t.Status))
		return
	}

	html, err := RenderReportHTML(t)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}

func (s *Server) taskID(w http.ResponseWriter, r *http.Request) (task.ID, bool) {
	id, err := task.ParseID(chi.URLParam(r, "taskID"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return "", false
	}
	return id, true
}

func (s *Server) loadTask(w http.ResponseWriter, r *http.Request) (*task.Task, bool) {
	id, ok := s.taskID(w, r)
	if !ok {
		return nil, false
	}
	t, err := s.orch.GetTask(r.Context(), id)
	if errors.Is(err, task.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return t, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
