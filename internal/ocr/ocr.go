package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parsebank-dev/parsebank/internal/config"
)

// ErrNoEngine is returned by the "none" engine for every request.
var ErrNoEngine = errors.New("no OCR engine configured")

// Engine turns a page image into text. format is the image type such as
// "png", "jpeg" or "tiff".
type Engine interface {
	Recognize(ctx context.Context, image []byte, format string) (string, error)
}

// None fails every request with ErrNoEngine.
type None struct{}

func (None) Recognize(context.Context, []byte, string) (string, error) {
	return "", ErrNoEngine
}

// New builds the engine named by cfg.Engine. The returned close function
// releases any client the engine holds and is never nil.
func New(ctx context.Context, cfg config.OCRConfig) (Engine, func() error, error) {
	noop := func() error { return nil }
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch strings.ToLower(cfg.Engine) {
	case "", "tesseract":
		return &Tesseract{
			Path:      cfg.TesseractPath,
			Languages: cfg.Languages,
			PSM:       cfg.PSM,
			Timeout:   timeout,
		}, noop, nil
	case "vertex":
		v, err := NewVertex(ctx, cfg.Vertex.Project, cfg.Vertex.Region, cfg.Vertex.Model)
		if err != nil {
			return nil, noop, err
		}
		v.Timeout = timeout
		return v, v.Close, nil
	case "none":
		return None{}, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown OCR engine %q", cfg.Engine)
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// CleanText strips markdown code fences and trailing spaces that engines
// wrap around transcriptions.
func CleanText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return strings.Trim(strings.Join(out, "\n"), "\n")
}
