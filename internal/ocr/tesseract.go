package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text with a locally installed Tesseract engine via
// gosseract. Recognition runs under a watchdog timeout because the engine
// itself has no deadline support.
type Tesseract struct {
	language    string
	pageSegMode int
	timeout     time.Duration

	clientFactory func() *gosseract.Client
}

// NewTesseract constructs a Tesseract provider. language accepts the usual
// "+"-joined list (e.g. "chi_sim+eng"). The OCR engine mode is not
// configurable: gosseract fixes it at engine init, before any variable can
// take effect.
func NewTesseract(language string, pageSegMode int, timeout time.Duration) *Tesseract {
	if strings.TrimSpace(language) == "" {
		language = "eng"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Tesseract{
		language:      language,
		pageSegMode:   pageSegMode,
		timeout:       timeout,
		clientFactory: gosseract.NewClient,
	}
}

// ExtractText runs recognition on the image at imagePath.
func (t *Tesseract) ExtractText(ctx context.Context, imagePath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := t.recognize(imagePath)
		done <- outcome{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("tesseract: %w", ctx.Err())
	case out := <-done:
		if out.err != nil {
			return "", fmt.Errorf("tesseract: %w", out.err)
		}
		return out.text, nil
	}
}

func (t *Tesseract) recognize(imagePath string) (string, error) {
	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	langs := strings.Split(t.language, "+")
	if err := c.SetLanguage(langs...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if t.pageSegMode >= 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(t.pageSegMode)); err != nil {
			return "", fmt.Errorf("set page segmentation mode: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return strings.TrimSpace(text), nil
}

var _ Provider = (*Tesseract)(nil)
