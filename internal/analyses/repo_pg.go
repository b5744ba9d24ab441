package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (id, image_key, preference, status, ocr_text, confirmed_text, result, error_message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	resultPayload, err := marshalResult(analysis.Result)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.ImageKey,
		analysis.Preference,
		analysis.Status,
		analysis.OCRText,
		analysis.ConfirmedText,
		resultPayload,
		analysis.ErrorMessage,
		analysis.CreatedAt,
		analysis.UpdatedAt,
	)
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	const query = `
SELECT id, image_key, preference, status, ocr_text, confirmed_text, result, error_message, created_at, updated_at
FROM analyses
WHERE id = $1
LIMIT 1`
	return scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID))
}

// UpdateStatus updates only the status.
func (r *PGRepo) UpdateStatus(ctx context.Context, analysisID, status string) error {
	const query = `UPDATE analyses SET status = $2, updated_at = $3 WHERE id = $1`
	return r.exec(ctx, query, analysisID, status, time.Now().UTC())
}

// UpdateOCRText stores the raw OCR text.
func (r *PGRepo) UpdateOCRText(ctx context.Context, analysisID, text string) error {
	const query = `UPDATE analyses SET ocr_text = $2, updated_at = $3 WHERE id = $1`
	return r.exec(ctx, query, analysisID, text, time.Now().UTC())
}

// UpdateConfirmedText stores the user-edited text.
func (r *PGRepo) UpdateConfirmedText(ctx context.Context, analysisID, text string) error {
	const query = `UPDATE analyses SET confirmed_text = $2, updated_at = $3 WHERE id = $1`
	return r.exec(ctx, query, analysisID, text, time.Now().UTC())
}

// UpdateResult stores the result and completes the record in one write.
func (r *PGRepo) UpdateResult(ctx context.Context, analysisID string, result *Result) error {
	const query = `
UPDATE analyses SET status = $2, result = $3, error_message = NULL, updated_at = $4 WHERE id = $1`
	payload, err := marshalResult(result)
	if err != nil {
		return err
	}
	return r.exec(ctx, query, analysisID, StatusCompleted, payload, time.Now().UTC())
}

// UpdateFailure stores the error message and fails the record in one write.
func (r *PGRepo) UpdateFailure(ctx context.Context, analysisID, message string) error {
	const query = `
UPDATE analyses SET status = $2, error_message = $3, result = NULL, updated_at = $4 WHERE id = $1`
	return r.exec(ctx, query, analysisID, StatusFailed, message, time.Now().UTC())
}

// ListRecent returns analyses newest-first with limit/offset.
func (r *PGRepo) ListRecent(ctx context.Context, limit, offset int) ([]Analysis, error) {
	const query = `
SELECT id, image_key, preference, status, ocr_text, confirmed_text, result, error_message, created_at, updated_at
FROM analyses
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Analysis, 0, limit)
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, analysis)
	}
	return out, rows.Err()
}

func (r *PGRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var ocrText, confirmedText, resultJSON, errorMessage sql.NullString
	err := row.Scan(
		&a.ID,
		&a.ImageKey,
		&a.Preference,
		&a.Status,
		&ocrText,
		&confirmedText,
		&resultJSON,
		&errorMessage,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, err
	}
	if ocrText.Valid {
		a.OCRText = &ocrText.String
	}
	if confirmedText.Valid {
		a.ConfirmedText = &confirmedText.String
	}
	if errorMessage.Valid {
		a.ErrorMessage = &errorMessage.String
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var result Result
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return Analysis{}, fmt.Errorf("decode stored result: %w", err)
		}
		a.Result = &result
	}
	return a, nil
}

func marshalResult(result *Result) (any, error) {
	if result == nil {
		return nil, nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return string(payload), nil
}

var _ Repo = (*PGRepo)(nil)
