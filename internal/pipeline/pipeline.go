// Package pipeline runs one document through extraction and normalization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/parsebank-dev/parsebank/internal/config"
	"github.com/parsebank-dev/parsebank/internal/extract"
	"github.com/parsebank-dev/parsebank/internal/model"
	"github.com/parsebank-dev/parsebank/internal/normalize"
	"github.com/parsebank-dev/parsebank/internal/ocr"
)

// Pipeline holds the long-lived pieces; everything produced for a document
// lives in its Report.
type Pipeline struct {
	Registry   *extract.Registry
	Normalizer *normalize.Normalizer
	Metrics    *Metrics // optional
	Logger     *slog.Logger
}

// Report is the outcome of one run.
type Report struct {
	DocumentID   string
	Name         string
	Kind         model.Kind
	Table        model.Table
	InvalidRows  int
	SkippedUnits int
	HeaderRows   int
	Matcher      string
	Rejects      []normalize.RowError
	Elapsed      time.Duration
}

// New wires the built-in extractors and a normalizer from cfg.
func New(cfg *config.Config, engine ocr.Engine, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		Registry: extract.DefaultRegistry(extract.Options{
			Delimiter:    cfg.Extract.DelimiterRune(),
			MinTableRows: cfg.Extract.MinTableRows,
			Workers:      cfg.Extract.Workers,
			Logger:       logger,
		}, engine),
		Normalizer: normalize.New(normalize.Options{
			DayFirst:     cfg.Normalize.DayFirst,
			HeaderWindow: cfg.Normalize.HeaderWindow,
			Currencies:   cfg.Normalize.Currencies,
		}),
		Logger: logger,
	}
}

// Run extracts and normalizes doc. Unsupported or unreadable documents and
// context cancellation are returned as errors; row-level problems are
// counted in the report.
func (p *Pipeline) Run(ctx context.Context, doc model.RawDocument) (*Report, error) {
	start := time.Now()
	log := p.logger().With("document_id", doc.ID, "name", doc.Name, "kind", doc.Kind)

	stream, err := p.Registry.Extract(ctx, doc)
	if err != nil {
		p.Metrics.observeFailure(doc.Kind, err)
		return nil, fmt.Errorf("extracting %s: %w", doc.Name, err)
	}

	res := p.Normalizer.Normalize(stream.Rows())
	if err := stream.Err(); err != nil {
		p.Metrics.observeFailure(doc.Kind, err)
		return nil, fmt.Errorf("extracting %s: %w", doc.Name, err)
	}

	rep := &Report{
		DocumentID:   doc.ID,
		Name:         doc.Name,
		Kind:         doc.Kind,
		Table:        res.Table,
		InvalidRows:  res.Invalid,
		SkippedUnits: stream.Skipped(),
		HeaderRows:   res.HeaderRows,
		Matcher:      res.Matcher,
		Rejects:      res.Rejects,
		Elapsed:      time.Since(start),
	}
	for _, r := range rep.Rejects {
		log.Debug("row rejected", "page", r.Page, "line", r.Line, "column", r.Column, "reason", r.Reason)
	}
	log.Info("document processed",
		"transactions", len(rep.Table),
		"invalid", rep.InvalidRows,
		"skipped", rep.SkippedUnits,
		"matcher", rep.Matcher,
		"elapsed", rep.Elapsed)
	p.Metrics.observe(rep)
	return rep, nil
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}

// Outcome labels a run for metrics and run logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrUnsupportedFileType):
		return "unsupported"
	case errors.Is(err, model.ErrUnreadableDocument):
		return "unreadable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}
