package analyses

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"labelscan-backend/internal/llm"
	"labelscan-backend/internal/ocr"
	"labelscan-backend/internal/preprocess"
	"labelscan-backend/internal/rules"
	"labelscan-backend/internal/shared/storage/object"
	"labelscan-backend/internal/shared/telemetry"
)

// validPreferences enumerates the dietary-preference dimensions a submission
// may carry. Anything else collapses to "none".
var validPreferences = map[string]bool{
	"none":        true,
	"allergy":     true,
	"kids":        true,
	"weight_loss": true,
	"health":      true,
	"fitness":     true,
	"diabetes":    true,
	"pregnancy":   true,
	"elderly":     true,
}

// Service contains business logic for label analyses. It owns the submission
// state machine and drives preprocess, OCR, rule matching and the LLM stage.
type Service struct {
	Repo       Repo
	Store      object.ImageStore
	Pre        *preprocess.Preprocessor
	OCR        ocr.Provider
	Rules      *rules.Engine
	LLM        llm.Client
	MinTextLen int
	MaxTextLen int
}

// Create registers a new submission in the pending state. The image must
// already be saved in the store under imageKey.
func (s *Service) Create(ctx context.Context, imageKey, preference string) (Analysis, error) {
	if imageKey == "" {
		return Analysis{}, errors.New("imageKey is required")
	}

	now := time.Now().UTC()
	analysis := Analysis{
		ID:         uuid.NewString(),
		ImageKey:   imageKey,
		Preference: normalizePreference(preference),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, err
	}
	return analysis, nil
}

// Get returns an analysis by ID.
func (s *Service) Get(ctx context.Context, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, errors.New("analysisID is required")
	}
	return s.Repo.GetByID(ctx, analysisID)
}

// List returns analyses ordered newest-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Analysis, error) {
	return s.Repo.ListRecent(ctx, limit, offset)
}

// Analyze runs the full pipeline for one submission: preprocess, OCR, rule
// matching and the LLM stage. On a completed or failed record it starts a
// fresh pass; when text is already present (a previous OCR or a user
// confirmation) the image stages are skipped. The call is synchronous so the
// caller observes OCR failures directly.
func (s *Service) Analyze(ctx context.Context, analysisID string) (Analysis, error) {
	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, fmt.Errorf("analysis lookup: %w", err)
	}

	updated, err := analysis.MarkProcessing()
	if err != nil {
		return Analysis{}, err
	}
	if err := s.Repo.UpdateStatus(ctx, analysis.ID, StatusProcessing); err != nil {
		return s.failAnalysis(ctx, analysis, fmt.Errorf("set processing failed: %w", err))
	}
	s.logTransition(ctx, analysis, analysis.Status+"->"+StatusProcessing)
	analysis = updated

	text := analysis.CurrentText()
	if text == "" {
		text, err = s.runImageStages(ctx, analysis)
		if err != nil {
			return s.failAnalysis(ctx, analysis, err)
		}
	}

	return s.finish(ctx, analysis, text)
}

// Confirm stores user-corrected label text and re-runs the text stages with
// it. The image stages never run again for a confirmed submission.
func (s *Service) Confirm(ctx context.Context, analysisID, text string) (Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Analysis{}, ErrEmptyText
	}
	if err := ocr.ValidateLength(text, s.minTextLen(), s.maxTextLen()); err != nil {
		return Analysis{}, err
	}

	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, fmt.Errorf("analysis lookup: %w", err)
	}
	updated, err := analysis.MarkProcessing()
	if err != nil {
		return Analysis{}, err
	}

	if err := s.Repo.UpdateConfirmedText(ctx, analysis.ID, text); err != nil {
		return s.failAnalysis(ctx, analysis, fmt.Errorf("set confirmed text failed: %w", err))
	}
	if err := s.Repo.UpdateStatus(ctx, analysis.ID, StatusProcessing); err != nil {
		return s.failAnalysis(ctx, analysis, fmt.Errorf("set processing failed: %w", err))
	}
	s.logTransition(ctx, analysis, analysis.Status+"->"+StatusProcessing)
	analysis = updated
	analysis.ConfirmedText = &text

	return s.finish(ctx, analysis, text)
}

// runImageStages resolves the stored image, preprocesses it and runs OCR,
// persisting the recognized text. The preprocessed temporary file is removed
// before returning.
func (s *Service) runImageStages(ctx context.Context, analysis Analysis) (string, error) {
	if s.Store == nil || s.OCR == nil {
		return "", errors.New("missing image pipeline dependencies")
	}

	imagePath, err := s.Store.Path(analysis.ImageKey)
	if err != nil {
		return "", fmt.Errorf("image path key=%s: %w", analysis.ImageKey, err)
	}

	ocrPath := imagePath
	if s.Pre != nil {
		processed, err := s.Pre.Run(imagePath)
		if err != nil {
			return "", err
		}
		if processed != "" {
			ocrPath = processed
			defer s.removeTemp(ctx, analysis.ID, processed)
		}
	}

	text, err := s.OCR.ExtractText(ctx, ocrPath)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if err := ocr.ValidateLength(text, s.minTextLen(), s.maxTextLen()); err != nil {
		return "", err
	}

	if err := s.Repo.UpdateOCRText(ctx, analysis.ID, text); err != nil {
		return "", fmt.Errorf("set ocr text failed: %w", err)
	}
	return text, nil
}

// finish runs rule matching and the LLM stage over the given text and
// completes the record. Rule matching runs concurrently with the LLM call;
// its outcome is merged only after the LLM succeeds, so a rule hit alone
// never produces a completed analysis.
func (s *Service) finish(ctx context.Context, analysis Analysis, text string) (Analysis, error) {
	if s.LLM == nil {
		return s.failAnalysis(ctx, analysis, errors.New("missing llm client"))
	}

	evalCh := make(chan rules.RuleEvaluation, 1)
	go func() {
		evalCh <- s.evaluateRules(text, analysis.Preference)
	}()

	llmClient := newRetryingLLM(s.LLM, analysis.ID, requestIDFromContext(ctx))
	content, err := llmClient.AnalyzeLabel(ctx, llm.AnalyzeInput{
		LabelText:  text,
		Preference: analysis.Preference,
	})
	if err != nil {
		return s.failAnalysis(ctx, analysis, fmt.Errorf("llm analyze: %w", err))
	}

	result, err := ParseResult(content)
	if err != nil {
		return s.failAnalysis(ctx, analysis, err)
	}
	result.Finalize(<-evalCh)

	completed, err := analysis.Complete(result)
	if err != nil {
		return s.failAnalysis(ctx, analysis, err)
	}
	if err := s.Repo.UpdateResult(ctx, completed.ID, completed.Result); err != nil {
		return s.failAnalysis(ctx, analysis, fmt.Errorf("set result failed: %w", err))
	}
	s.logTransition(ctx, completed, StatusProcessing+"->"+StatusCompleted)

	done, err := s.Repo.GetByID(ctx, analysis.ID)
	if err != nil {
		return Analysis{}, fmt.Errorf("analysis lookup: %w", err)
	}
	return done, nil
}

func (s *Service) evaluateRules(text, preference string) rules.RuleEvaluation {
	if s.Rules == nil {
		return rules.RuleEvaluation{
			Confidence: rules.Confidence{
				Level:   rules.ConfidenceLow,
				Reasons: []string{"rule engine unavailable"},
			},
		}
	}
	return s.Rules.Evaluate(text, preference)
}

// failAnalysis moves the record to failed with a sanitized message, gated by
// the state machine: when the record never reached processing the failed
// write is skipped and the record keeps its prior state. The write uses a
// background context so a canceled request still records the failure.
func (s *Service) failAnalysis(ctx context.Context, analysis Analysis, err error) (Analysis, error) {
	code, retryable := classifyFailure(err)
	msg := userFacingMessage(err)

	var parseErr *ResultParseError
	if errors.As(err, &parseErr) {
		telemetry.Error("llm.parse_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysis.ID,
			"raw_reply":   parseErr.Snippet(),
		})
	}

	failed, guardErr := analysis.Fail(msg)
	if guardErr != nil {
		telemetry.Error("analysis.fail_skipped", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysis.ID,
			"status":      analysis.Status,
			"error":       sanitizeError(err),
		})
		return Analysis{}, err
	}

	if updateErr := s.Repo.UpdateFailure(context.Background(), failed.ID, *failed.ErrorMessage); updateErr != nil {
		telemetry.Error("analysis.fail_write", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysis.ID,
			"error":       sanitizeError(updateErr),
			"original":    sanitizeError(err),
		})
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysis.ID,
		"status":            StatusFailed,
		"status_transition": analysis.Status + "->" + StatusFailed,
		"error_code":        code,
		"retryable":         retryable,
	})
	return Analysis{}, err
}

func (s *Service) removeTemp(ctx context.Context, analysisID, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		telemetry.Warn("preprocess.temp_leak", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysisID,
			"path":        path,
			"error":       sanitizeError(err),
		})
	}
}

func (s *Service) logTransition(ctx context.Context, analysis Analysis, transition string) {
	parts := strings.SplitN(transition, "->", 2)
	status := transition
	if len(parts) == 2 {
		status = parts[1]
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysis.ID,
		"status":            status,
		"status_transition": transition,
	})
}

func (s *Service) minTextLen() int {
	if s.MinTextLen > 0 {
		return s.MinTextLen
	}
	return 1
}

func (s *Service) maxTextLen() int {
	if s.MaxTextLen > 0 {
		return s.MaxTextLen
	}
	return 5000
}

func normalizePreference(preference string) string {
	preference = strings.ToLower(strings.TrimSpace(preference))
	if !validPreferences[preference] {
		return "none"
	}
	return preference
}

func classifyFailure(err error) (string, bool) {
	if err == nil {
		return ErrorCodeInternal, false
	}
	var lenErr ocr.LengthError
	if errors.As(err, &lenErr) {
		return ErrorCodeTextLength, false
	}
	var parseErr *ResultParseError
	if errors.As(err, &parseErr) {
		return ErrorCodeLLMSchemaMismatch, false
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "preprocess:") {
		return ErrorCodePreprocess, false
	}
	if strings.Contains(msg, "tesseract:") || strings.Contains(msg, "remote ocr:") {
		return ErrorCodeOCR, true
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "llm request timeout") {
		return ErrorCodeLLMTimeout, true
	}
	if strings.Contains(msg, "llm output invalid") {
		return ErrorCodeLLMSchemaMismatch, false
	}
	if strings.Contains(msg, "image path") ||
		strings.Contains(msg, "set processing") ||
		strings.Contains(msg, "set ocr text") ||
		strings.Contains(msg, "set confirmed text") ||
		strings.Contains(msg, "set result") {
		return ErrorCodeStorage, true
	}
	return ErrorCodeInternal, false
}

// userFacingMessage maps an internal error to the message stored on the
// record. Raw model output stays out of it.
func userFacingMessage(err error) string {
	var parseErr *ResultParseError
	if errors.As(err, &parseErr) {
		return "llm output invalid: model reply could not be parsed into an analysis result"
	}
	return sanitizeError(err)
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
