package ocr

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Provider extracts text from a label image on disk. Implementations are
// selected at construction time via configuration; the orchestrator never
// cares which backend is behind the interface.
type Provider interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// LengthError reports recognized text outside the configured bounds. It is a
// pipeline failure, not a transient condition, so callers must not retry it.
type LengthError struct {
	Length int
	Min    int
	Max    int
}

func (e LengthError) Error() string {
	if e.Length < e.Min {
		return fmt.Sprintf("recognized text too short (%d chars, minimum %d)", e.Length, e.Min)
	}
	return fmt.Sprintf("recognized text too long (%d chars, maximum %d)", e.Length, e.Max)
}

// ValidateLength checks the recognized text against [min, max] rune bounds.
func ValidateLength(text string, min, max int) error {
	n := utf8.RuneCountInString(text)
	if n < min || n > max {
		return LengthError{Length: n, Min: min, Max: max}
	}
	return nil
}
