package analyses

import "context"

// Repo defines persistence operations for analyses.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	UpdateStatus(ctx context.Context, analysisID, status string) error
	UpdateOCRText(ctx context.Context, analysisID, text string) error
	UpdateConfirmedText(ctx context.Context, analysisID, text string) error
	// UpdateResult stores the result and moves the record to completed in one
	// write so the status and result can never drift apart.
	UpdateResult(ctx context.Context, analysisID string, result *Result) error
	// UpdateFailure stores the error message and moves the record to failed,
	// discarding any previous result.
	UpdateFailure(ctx context.Context, analysisID, message string) error
	ListRecent(ctx context.Context, limit, offset int) ([]Analysis, error)
}
