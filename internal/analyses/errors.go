package analyses

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrEmptyText = errors.New("confirmed text is empty")
)

// TransitionError reports an illegal state-machine transition.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s->%s", e.From, e.To)
}

const (
	ErrorCodePreprocess        = "PREPROCESS_ERROR"
	ErrorCodeOCR               = "OCR_ERROR"
	ErrorCodeTextLength        = "TEXT_LENGTH"
	ErrorCodeLLMTimeout        = "LLM_TIMEOUT"
	ErrorCodeLLMSchemaMismatch = "LLM_SCHEMA_MISMATCH"
	ErrorCodeStorage           = "STORAGE_ERROR"
	ErrorCodeInternal          = "INTERNAL_ERROR"
)
