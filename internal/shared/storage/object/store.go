package object

import (
	"context"
	"io"
)

// ImageStore defines the contract for saving and retrieving submitted label images.
type ImageStore interface {
	Save(ctx context.Context, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	// Path resolves a storage key to a local filesystem path for consumers
	// that need file access (preprocessing, local OCR).
	Path(storageKey string) (string, error)
}
