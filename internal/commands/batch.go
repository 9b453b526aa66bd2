package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/parsebank-dev/parsebank/internal/acquire"
	"github.com/parsebank-dev/parsebank/internal/config"
	"github.com/parsebank-dev/parsebank/internal/export"
	"github.com/parsebank-dev/parsebank/internal/pipeline"
	"github.com/parsebank-dev/parsebank/internal/runlog"
)

// outDir holds the CSV written for each processed statement.
const outDir = "out"

func newBatchCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "batch [directory]",
		Short: "Extract every statement waiting in inbox/",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runBatch(cmd.Context(), g, absDir, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runBatch(ctx context.Context, g *globalOptions, dir string, stdout, stderr io.Writer) error {
	cfg, err := g.loadConfig(filepath.Join(dir, config.FileName))
	if err != nil {
		return err
	}
	logger := g.logger(stderr, slog.LevelWarn, false)

	files, err := acquire.Scan(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(stdout, "No statements in inbox/")
		return nil
	}

	if err := os.MkdirAll(filepath.Join(dir, outDir), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	p, closeEngine, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine()
	acq := acquire.New(cfg.Extract.MaxBytes)

	var entries []runlog.Entry
	failed := 0
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		entry, err := processFile(ctx, p, acq, dir, f)
		entries = append(entries, entry)
		if err != nil {
			failed++
			fmt.Fprintf(stderr, "%s: %v\n", f.Name, err)
			continue
		}
		fmt.Fprintf(stdout, "%s: %d transactions, %d invalid rows, %d skipped\n",
			f.Name, entry.Rows, entry.Invalid, entry.Skipped)
	}

	if err := runlog.Append(dir, entries); err != nil {
		return fmt.Errorf("writing extract log: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d statements failed", failed, len(files))
	}
	return nil
}

// processFile extracts one inbox file, writes out/<name>.csv and moves the
// source to inbox/processed. Failed files stay in the inbox.
func processFile(ctx context.Context, p *pipeline.Pipeline, acq *acquire.Acquirer, dir string, f acquire.FileInfo) (runlog.Entry, error) {
	entry := runlog.Entry{Timestamp: time.Now(), File: f.Name}

	doc, err := acq.ReadFile(f.Path, "")
	if err != nil {
		entry.Status = pipeline.Outcome(err)
		return entry, err
	}
	entry.DocumentID = doc.ID

	rep, err := p.Run(ctx, doc)
	if err == nil {
		err = writeCSVFile(filepath.Join(dir, outDir, export.FileName(f.Name)), rep)
	}
	if err == nil {
		err = acquire.MarkProcessed(dir, f.Name)
	}
	entry.Status = pipeline.Outcome(err)
	if err != nil {
		return entry, err
	}

	entry.Rows = len(rep.Table)
	entry.Invalid = rep.InvalidRows
	entry.Skipped = rep.SkippedUnits
	return entry, nil
}
