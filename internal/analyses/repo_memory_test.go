package analyses

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedMemoryRepo(t *testing.T, repo *MemoryRepo, n int) []string {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		a := Analysis{
			ID:        id,
			ImageKey:  id + ".png",
			Status:    StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(context.Background(), a); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestMemoryRepoListRecentOrdering(t *testing.T) {
	repo := NewMemoryRepo()
	seedMemoryRepo(t, repo, 3)

	out, err := repo.ListRecent(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3, got %d", len(out))
	}
	// Newest first.
	if out[0].ID != "c" || out[2].ID != "a" {
		t.Fatalf("unexpected order: %s %s %s", out[0].ID, out[1].ID, out[2].ID)
	}
}

func TestMemoryRepoListRecentPagination(t *testing.T) {
	repo := NewMemoryRepo()
	seedMemoryRepo(t, repo, 5)

	page, err := repo.ListRecent(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2, got %d", len(page))
	}
	if page[0].ID != "c" {
		t.Fatalf("unexpected page start %s", page[0].ID)
	}

	empty, err := repo.ListRecent(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}
}

func TestMemoryRepoUpdateResultClearsError(t *testing.T) {
	repo := NewMemoryRepo()
	seedMemoryRepo(t, repo, 1)

	if err := repo.UpdateFailure(context.Background(), "a", "boom"); err != nil {
		t.Fatalf("update failure: %v", err)
	}
	if err := repo.UpdateResult(context.Background(), "a", &Result{HealthScore: 50}); err != nil {
		t.Fatalf("update result: %v", err)
	}

	a, err := repo.GetByID(context.Background(), "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.Status != StatusCompleted || a.Result == nil || a.ErrorMessage != nil {
		t.Fatalf("result write must clear the error: %+v", a)
	}
}

func TestMemoryRepoUpdateFailureClearsResult(t *testing.T) {
	repo := NewMemoryRepo()
	seedMemoryRepo(t, repo, 1)

	if err := repo.UpdateResult(context.Background(), "a", &Result{HealthScore: 50}); err != nil {
		t.Fatalf("update result: %v", err)
	}
	if err := repo.UpdateFailure(context.Background(), "a", "boom"); err != nil {
		t.Fatalf("update failure: %v", err)
	}

	a, _ := repo.GetByID(context.Background(), "a")
	if a.Status != StatusFailed || a.Result != nil || a.ErrorMessage == nil {
		t.Fatalf("failure write must clear the result: %+v", a)
	}
}

func TestMemoryRepoNotFound(t *testing.T) {
	repo := NewMemoryRepo()
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdateStatus(context.Background(), "missing", StatusProcessing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
