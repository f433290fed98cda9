// ABOUTME: Shared conformance tests run against the memory and SQLite stores:
// ABOUTME: round trips with results and steps, upsert semantics, listing, counts.

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/2389-research/spyglass/report"
	"github.com/2389-research/spyglass/task"
)

type taskStore interface {
	Save(ctx context.Context, t *task.Task) error
	Get(ctx context.Context, id task.ID) (*task.Task, error)
	ListRecent(ctx context.Context, limit, offset int) ([]*task.Task, error)
	Delete(ctx context.Context, id task.ID) error
	CountByStatus(ctx context.Context) (map[task.Status]int, error)
}

func eachStore(t *testing.T, run func(t *testing.T, s taskStore)) {
	t.Run("memory", func(t *testing.T) {
		run(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "tasks.db"))
		if err != nil {
			t.Fatalf("OpenSQLite() error = %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		run(t, s)
	})
}

func newTask(t *testing.T, query string) *task.Task {
	t.Helper()
	tk, err := task.New(task.TypeIndustryResearch, query)
	if err != nil {
		t.Fatal(err)
	}
	return tk
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s taskStore) {
		ctx := context.Background()
		tk := newTask(t, "solid-state batteries")
		if err := tk.Start(); err != nil {
			t.Fatal(err)
		}
		started := time.Now().UTC()
		tk.UpdateProgress(20, task.CompletedStep("industry_overview", "drafted", started, started))
		tk.UpdateProgress(40, task.FailedStep("market_heat", "model timeout", started, started))

		if err := s.Save(ctx, tk); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := s.Get(ctx, tk.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.ID != tk.ID || got.Type != tk.Type || got.Query != tk.Query {
			t.Errorf("identity fields = %v/%v/%q, want %v/%v/%q",
				got.ID, got.Type, got.Query, tk.ID, tk.Type, tk.Query)
		}
		if got.Status != task.StatusRunning || got.Progress != 40 {
			t.Errorf("status/progress = %q/%d, want running/40", got.Status, got.Progress)
		}
		if len(got.Steps) != 2 {
			t.Fatalf("Steps = %d, want 2", len(got.Steps))
		}
		if got.Steps[1].Status != task.StepFailed || got.Steps[1].ErrorMessage != "model timeout" {
			t.Errorf("Steps[1] = %+v, want failed with message", got.Steps[1])
		}
		if got.Result != nil {
			t.Errorf("Result = %v, want nil for unfinished task", got.Result)
		}
	})
}

func TestSavePersistsResult(t *testing.T) {
	eachStore(t, func(t *testing.T, s taskStore) {
		ctx := context.Background()
		tk := newTask(t, "robotics")
		if err := tk.Start(); err != nil {
			t.Fatal(err)
		}
		insight := report.IndustryInsight{
			IndustryName: "robotics",
			HeatScore:    70,
			TopStocks: []report.StockCredibility{
				{StockCode: "600519.SH", StockName: "Alpha", CredibilityScore: 82},
			},
		}
		if err := tk.Complete(insight); err != nil {
			t.Fatal(err)
		}
		if err := s.Save(ctx, tk); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := s.Get(ctx, tk.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.CompletedAt == nil {
			t.Fatal("CompletedAt = nil, want set")
		}
		back, ok := got.Result.(report.IndustryInsight)
		if !ok {
			t.Fatalf("Result = %T, want IndustryInsight", got.Result)
		}
		if back.HeatScore != 70 || len(back.TopStocks) != 1 {
			t.Errorf("round-tripped result = %+v, want original values", back)
		}
		if back.TopStocks[0].StockCode != "600519.SH" {
			t.Errorf("TopStocks[0].StockCode = %q, want 600519.SH", back.TopStocks[0].StockCode)
		}
	})
}

func TestSaveUpserts(t *testing.T) {
	eachStore(t, func(t *testing.T, s taskStore) {
		ctx := context.Background()
		tk := newTask(t, "robotics")
		if err := s.Save(ctx, tk); err != nil {
			t.Fatal(err)
		}
		if err := tk.Start(); err != nil {
			t.Fatal(err)
		}
		if err := s.Save(ctx, tk); err != nil {
			t.Fatal(err)
		}

		got, err := s.Get(ctx, tk.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status != task.StatusRunning {
			t.Errorf("Status = %q, want running after second save", got.Status)
		}

		all, err := s.ListRecent(ctx, 10, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 1 {
			t.Errorf("ListRecent() = %d tasks, want 1 (no duplicate rows)", len(all))
		}
	})
}

func TestGetUnknownID(t *testing.T) {
	eachStore(t, func(t *testing.T, s taskStore) {
		_, err := s.Get(context.Background(), task.NewID())
		if !errors.Is(err, task.ErrNotFound) {
			t.Errorf("Get() error = %v, want task.ErrNotFound", err)
		}
	})
}

func TestListRecentOrdersAndLimits(t *testing.T) {
	eachStore(t, func(t *testing.T, s taskStore) {
		ctx := context.Background()

		base := time.Now().UTC().Add(-time.Hour)
		var ids []task.ID
		for i := 0; i < 3; i++ {
			tk := newTask(t, "q")
			tk.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			tk.UpdatedAt = tk.CreatedAt
			if err := s.Save(ctx, tk); err != nil {
				t.Fatal(err)
			}
			ids = append(ids, tk.ID)
		}

		recent, err := s.ListRecent(ctx, 2, 0)
		if err != nil {
			t.Fatalf("ListRecent() error = %v", err)
		}
		if len(recent) != 2 {
			t.Fatalf("ListRecent(2, 0) = %d tasks, want 2", len(recent))
		}
		if recent[0].ID != ids[2] || recent[1].ID != ids[1] {
			t.Errorf("order = [%v %v], want newest first [%v %v]",
				recent[0].ID, recent[1].ID, ids[2], ids[1])
		}

		page, err := s.ListRecent(ctx, 2, 2)
		if err != nil {
			t.Fatalf("ListRecent() error = %v", err)
		}
		if len(page) != 1 || page[0].ID != ids[0] {
			t.Errorf("ListRecent(2, 2) = %v, want only the oldest task %v", page, ids[0])
		}

		empty, err := s.ListRecent(ctx, 2, 10)
		if err != nil {
			t.Fatalf("ListRecent() error = %v", err)
		}
		if len(empty) != 0 {
			t.Errorf("ListRecent(2, 10) = %d tasks, want 0 past the end", len(empty))
		}
	})
}

func TestDelete(t *testing.T) {
	eachStore(t, func(t *testing.T, s taskStore) {
		ctx := context.Background()
		tk := newTask(t, "robotics")
		if err := s.Save(ctx, tk); err != nil {
			t.Fatal(err)
		}

		if err := s.Delete(ctx, tk.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := s.Get(ctx, tk.ID); !errors.Is(err, task.ErrNotFound) {
			t.Errorf("Get() after delete error = %v, want task.ErrNotFound", err)
		}
		if err := s.Delete(ctx, tk.ID); !errors.Is(err, task.ErrNotFound) {
			t.Errorf("second Delete() error = %v, want task.ErrNotFound", err)
		}
	})
}

func TestCountByStatus(t *testing.T) {
	eachStore(t, func(t *testing.T, s taskStore) {
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			if err := s.Save(ctx, newTask(t, "pending one")); err != nil {
				t.Fatal(err)
			}
		}
		running := newTask(t, "running one")
		if err := running.Start(); err != nil {
			t.Fatal(err)
		}
		if err := s.Save(ctx, running); err != nil {
			t.Fatal(err)
		}

		counts, err := s.CountByStatus(ctx)
		if err != nil {
			t.Fatalf("CountByStatus() error = %v", err)
		}
		if counts[task.StatusPending] != 2 || counts[task.StatusRunning] != 1 {
			t.Errorf("counts = %v, want 2 pending, 1 running", counts)
		}
	})
}

func TestMemoryStoreIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	tk := newTask(t, "robotics")
	if err := s.Save(ctx, tk); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's copy after save must not leak into the store.
	if err := tk.Start(); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get(ctx, tk.ID)
	if got.Status != task.StatusPending {
		t.Errorf("stored Status = %q, want pending (save must copy)", got.Status)
	}

	// Mutating a returned copy must not affect the store either.
	got.Status = task.StatusFailed
	again, _ := s.Get(ctx, tk.ID)
	if again.Status != task.StatusPending {
		t.Errorf("stored Status = %q, want pending (get must copy)", again.Status)
	}
}
