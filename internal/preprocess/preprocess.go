package preprocess

import (
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoding
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"labelscan-backend/internal/shared/telemetry"
)

// Config controls which transforms run and the target width bounds.
type Config struct {
	Enabled           bool
	MinWidth          int
	MaxWidth          int
	CLAHE             bool
	Denoise           bool
	Sharpen           bool
	AdaptiveThreshold bool
	Close             bool
	Deskew            bool
}

// Preprocessor prepares label photographs for OCR. All transforms are
// deterministic and applied in a fixed order; the input file is never
// modified.
type Preprocessor struct {
	cfg Config
}

// New constructs a Preprocessor.
func New(cfg Config) *Preprocessor {
	return &Preprocessor{cfg: cfg}
}

// Run reads the image at path and writes an OCR-optimized grayscale PNG to a
// new temporary file, returning its path. The caller owns the returned file
// and must remove it after use. When preprocessing is disabled it returns ""
// and the caller should OCR the original image.
func (p *Preprocessor) Run(path string) (string, error) {
	if !p.cfg.Enabled {
		return "", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("preprocess: open image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("preprocess: decode image: %w", err)
	}

	src = p.resize(src)
	gray := toGray(src)

	if p.cfg.CLAHE {
		gray = equalizeTiles(gray, 8, 8, 2.0)
	}
	if p.cfg.Denoise {
		gray = boxBlur3(gray)
	}
	if p.cfg.Sharpen {
		gray = unsharpMask(gray, 1.5, 0.5)
	}
	if p.cfg.AdaptiveThreshold {
		gray = adaptiveMeanThreshold(gray, 15, 10)
	}
	if p.cfg.Close {
		gray = morphClose(gray)
	}
	if p.cfg.Deskew {
		rotated, err := deskew(gray)
		if err != nil {
			// Deskew is best-effort; OCR can proceed on the skewed image.
			telemetry.Warn("preprocess.deskew_failed", map[string]any{
				"image": path,
				"error": err.Error(),
			})
		} else {
			gray = rotated
		}
	}

	out, err := os.CreateTemp("", "labelscan-ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("preprocess: create temp file: %w", err)
	}
	if err := png.Encode(out, gray); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("preprocess: encode: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("preprocess: close temp file: %w", err)
	}
	return out.Name(), nil
}

// resize clamps the image width into [MinWidth, MaxWidth], preserving aspect
// ratio. CatmullRom gives better quality when growing; ApproxBiLinear is
// cheaper and adequate when shrinking.
func (p *Preprocessor) resize(src image.Image) image.Image {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return src
	}

	target := width
	var scaler draw.Scaler
	switch {
	case p.cfg.MinWidth > 0 && width < p.cfg.MinWidth:
		target = p.cfg.MinWidth
		scaler = draw.CatmullRom
	case p.cfg.MaxWidth > 0 && width > p.cfg.MaxWidth:
		target = p.cfg.MaxWidth
		scaler = draw.ApproxBiLinear
	default:
		return src
	}

	targetHeight := height * target / width
	if targetHeight < 1 {
		targetHeight = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, target, targetHeight))
	scaler.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		out := image.NewGray(g.Bounds())
		copy(out.Pix, g.Pix)
		return out
	}
	bounds := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	return dst
}
