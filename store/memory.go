// ABOUTME: In-memory task store: the default repository when no database DSN is
// ABOUTME: configured, and the fixture store for tests.

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/2389-research/spyglass/task"
)

// MemoryStore keeps tasks in a mutex-guarded map. Saved and returned tasks
// are copied so callers never share mutable state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[task.ID]*task.Task
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[task.ID]*task.Task)}
}

// Save upserts the task.
func (s *MemoryStore) Save(ctx context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

// Get returns the task with the given ID, or task.ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id task.ID) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, task.ErrNotFound
	}
	return cloneTask(t), nil
}

// ListRecent returns up to limit tasks, newest first, skipping offset tasks.
func (s *MemoryStore) ListRecent(ctx context.Context, limit, offset int) ([]*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset > 0 {
		if offset >= len(out) {
			return []*task.Task{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes the task with the given ID, or returns task.ErrNotFound.
func (s *MemoryStore) Delete(ctx context.Context, id task.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return task.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// CountByStatus returns the number of tasks in each status.
func (s *MemoryStore) CountByStatus(ctx context.Context) (map[task.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[task.Status]int)
	for _, t := range s.tasks {
		counts[t.Status]++
	}
	return counts, nil
}

func cloneTask(t *task.Task) *task.Task {
	c := *t
	if t.Steps != nil {
		c.Steps = make([]task.StepRecord, len(t.Steps))
		copy(c.Steps, t.Steps)
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
