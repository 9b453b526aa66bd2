package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parsebank-dev/parsebank/internal/model"
	"github.com/parsebank-dev/parsebank/internal/ocr"
)

// Extractor turns one kind of document into raw rows.
type Extractor interface {
	Kind() model.Kind
	Extract(ctx context.Context, doc model.RawDocument) (*Stream, error)
}

// Registry dispatches documents to extractors by kind.
type Registry struct {
	extractors map[model.Kind]Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[model.Kind]Extractor)}
}

// Register adds an extractor. Panics on duplicate kind.
func (r *Registry) Register(e Extractor) {
	if _, ok := r.extractors[e.Kind()]; ok {
		panic("duplicate extractor kind: " + string(e.Kind()))
	}
	r.extractors[e.Kind()] = e
}

// Get returns the extractor for kind, or nil.
func (r *Registry) Get(kind model.Kind) Extractor {
	return r.extractors[kind]
}

// Extract runs the extractor registered for doc.Kind.
func (r *Registry) Extract(ctx context.Context, doc model.RawDocument) (*Stream, error) {
	e := r.Get(doc.Kind)
	if e == nil {
		return nil, fmt.Errorf("kind %q: %w", doc.Kind, model.ErrUnsupportedFileType)
	}
	return e.Extract(ctx, doc)
}

// Options configures the built-in extractors.
type Options struct {
	Delimiter    rune // 0 = detect
	MinTableRows int
	Workers      int
	Logger       *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// DefaultRegistry returns a registry with every built-in extractor. engine
// serves the image path and the PDF fallback.
func DefaultRegistry(opts Options, engine ocr.Engine) *Registry {
	r := NewRegistry()
	r.Register(&CSVExtractor{Delimiter: opts.Delimiter})
	r.Register(&XLSXExtractor{})
	r.Register(&PDFExtractor{
		MinTableRows: opts.MinTableRows,
		Workers:      opts.Workers,
		OCR:          engine,
		Logger:       opts.logger(),
	})
	r.Register(&ImageExtractor{OCR: engine, Logger: opts.logger()})
	return r
}
