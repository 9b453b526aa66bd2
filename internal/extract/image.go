package extract

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/parsebank-dev/parsebank/internal/model"
	"github.com/parsebank-dev/parsebank/internal/ocr"
)

// ImageExtractor sends a whole image through OCR.
type ImageExtractor struct {
	OCR    ocr.Engine
	Logger *slog.Logger
}

func (e *ImageExtractor) Kind() model.Kind { return model.KindImage }

// Extract recognizes the image lazily on first range. An OCR failure leaves
// the stream empty with one skipped unit.
func (e *ImageExtractor) Extract(ctx context.Context, doc model.RawDocument) (*Stream, error) {
	data := doc.Bytes()
	return newStream(func(yield func(model.RawRow) bool, skip func()) error {
		text, err := e.OCR.Recognize(ctx, data, imageFormat(data))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger().Warn("OCR failed", "document_id", doc.ID, "error", err)
			skip()
			return nil
		}
		for _, row := range SplitText(text, 1) {
			if !yield(row) {
				return nil
			}
		}
		return nil
	}), nil
}

func (e *ImageExtractor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// imageFormat names the image type of data for OCR engines.
func imageFormat(data []byte) string {
	if bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")) {
		return "tiff"
	}
	ct := http.DetectContentType(data)
	if sub, ok := strings.CutPrefix(ct, "image/"); ok {
		return sub
	}
	return "png"
}
