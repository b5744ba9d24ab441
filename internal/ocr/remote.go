package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const remoteBodyLimit = 1 << 20

// Remote posts the image as multipart form data to an HTTP OCR service and
// expects a JSON body with the recognized text.
type Remote struct {
	endpoint   string
	httpClient *http.Client
}

// NewRemote constructs a Remote provider against the given endpoint URL.
func NewRemote(endpoint string, timeout time.Duration) (*Remote, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("OCR_REMOTE_URL is required for the remote provider")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Remote{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type remoteResponse struct {
	Text string `json:"text"`
}

// ExtractText uploads the image and returns the recognized text.
func (r *Remote) ExtractText(ctx context.Context, imagePath string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("remote ocr: open image: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return "", fmt.Errorf("remote ocr: build form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("remote ocr: read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("remote ocr: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("remote ocr: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote ocr: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, remoteBodyLimit))
	if err != nil {
		return "", fmt.Errorf("remote ocr: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("remote ocr: http status %d: %s", resp.StatusCode, truncate(string(body), 500))
	}

	var parsed remoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("remote ocr: response parse: %w", err)
	}
	return strings.TrimSpace(parsed.Text), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

var _ Provider = (*Remote)(nil)
