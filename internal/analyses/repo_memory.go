package analyses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Analysis
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Analysis)}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[analysis.ID] = analysis
	return nil
}

// GetByID returns an analysis by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// UpdateStatus updates only the status of an existing analysis.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, analysisID, status string) error {
	return r.mutate(ctx, analysisID, func(a *Analysis) {
		a.Status = status
	})
}

// UpdateOCRText stores the raw OCR text.
func (r *MemoryRepo) UpdateOCRText(ctx context.Context, analysisID, text string) error {
	return r.mutate(ctx, analysisID, func(a *Analysis) {
		a.OCRText = &text
	})
}

// UpdateConfirmedText stores the user-edited text.
func (r *MemoryRepo) UpdateConfirmedText(ctx context.Context, analysisID, text string) error {
	return r.mutate(ctx, analysisID, func(a *Analysis) {
		a.ConfirmedText = &text
	})
}

// UpdateResult stores the result and completes the record.
func (r *MemoryRepo) UpdateResult(ctx context.Context, analysisID string, result *Result) error {
	return r.mutate(ctx, analysisID, func(a *Analysis) {
		a.Status = StatusCompleted
		a.Result = result
		a.ErrorMessage = nil
	})
}

// UpdateFailure stores the error message and fails the record.
func (r *MemoryRepo) UpdateFailure(ctx context.Context, analysisID, message string) error {
	return r.mutate(ctx, analysisID, func(a *Analysis) {
		a.Status = StatusFailed
		a.ErrorMessage = &message
		a.Result = nil
	})
}

// ListRecent returns analyses newest-first with limit/offset.
func (r *MemoryRepo) ListRecent(ctx context.Context, limit, offset int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	all := make([]Analysis, 0, len(r.byID))
	for _, a := range r.byID {
		all = append(all, a)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []Analysis{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (r *MemoryRepo) mutate(ctx context.Context, analysisID string, fn func(*Analysis)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	fn(&analysis)
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = analysis
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
