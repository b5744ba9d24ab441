package llm

import (
	"context"
	"errors"
)

// Client abstracts LLM providers for ingredient-label analysis. The returned
// string is the raw model reply; callers run it through ExtractJSON before
// decoding.
type Client interface {
	AnalyzeLabel(ctx context.Context, input AnalyzeInput) (string, error)
}

// AnalyzeInput captures the inputs needed for a label analysis.
type AnalyzeInput struct {
	LabelText  string
	Preference string
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("LLM not configured")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// AnalyzeLabel returns ErrNotConfigured.
func (PlaceholderClient) AnalyzeLabel(ctx context.Context, input AnalyzeInput) (string, error) {
	_ = ctx
	_ = input
	return "", ErrNotConfigured
}
