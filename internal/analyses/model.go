package analyses

import "time"

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Analysis represents one label submission's lifecycle record.
type Analysis struct {
	ID            string    `json:"id"`
	ImageKey      string    `json:"imageKey"`
	Preference    string    `json:"preference"`
	Status        string    `json:"status"`
	OCRText       *string   `json:"ocrText,omitempty"`
	ConfirmedText *string   `json:"confirmedText,omitempty"`
	Result        *Result   `json:"result,omitempty"`
	ErrorMessage  *string   `json:"errorMessage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// legalTransitions encodes the state machine: pending → processing →
// {completed | failed}. Completed and failed are terminal for an attempt; a
// confirm or re-analyze starts a new pass by re-entering processing.
var legalTransitions = map[string][]string{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusProcessing, StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusProcessing},
	StatusFailed:     {StatusProcessing},
}

func canTransition(from, to string) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// MarkProcessing returns a copy of the record in the processing state, or an
// error if the transition is illegal from the current state.
func (a Analysis) MarkProcessing() (Analysis, error) {
	if !canTransition(a.Status, StatusProcessing) {
		return Analysis{}, &TransitionError{From: a.Status, To: StatusProcessing}
	}
	a.Status = StatusProcessing
	return a, nil
}

// Complete returns a copy of the record in the completed state carrying the
// result. The result is required; a completed record without one would break
// the status/result invariant.
func (a Analysis) Complete(result *Result) (Analysis, error) {
	if result == nil {
		return Analysis{}, &TransitionError{From: a.Status, To: StatusCompleted}
	}
	if !canTransition(a.Status, StatusCompleted) {
		return Analysis{}, &TransitionError{From: a.Status, To: StatusCompleted}
	}
	a.Status = StatusCompleted
	a.Result = result
	a.ErrorMessage = nil
	return a, nil
}

// Fail returns a copy of the record in the failed state carrying the error
// message, discarding any partial result.
func (a Analysis) Fail(message string) (Analysis, error) {
	if !canTransition(a.Status, StatusFailed) {
		return Analysis{}, &TransitionError{From: a.Status, To: StatusFailed}
	}
	a.Status = StatusFailed
	a.ErrorMessage = &message
	a.Result = nil
	return a, nil
}

// CurrentText returns the text the LLM stage should analyze: the confirmed
// (user-edited) text when present, otherwise the raw OCR text.
func (a Analysis) CurrentText() string {
	if a.ConfirmedText != nil && *a.ConfirmedText != "" {
		return *a.ConfirmedText
	}
	if a.OCRText != nil {
		return *a.OCRText
	}
	return ""
}
