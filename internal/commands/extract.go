package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/parsebank-dev/parsebank/internal/acquire"
	"github.com/parsebank-dev/parsebank/internal/config"
	"github.com/parsebank-dev/parsebank/internal/export"
	"github.com/parsebank-dev/parsebank/internal/ocr"
	"github.com/parsebank-dev/parsebank/internal/pipeline"
)

type extractOptions struct {
	kind    string
	out     string
	rejects bool
}

func newExtractCommand(g *globalOptions) *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract transactions from one statement",
		Long: "Extract transactions from a PDF, image, CSV or XLSX statement and write\n" +
			"them as CSV to --out or stdout. A summary goes to stderr.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.Context(), g, args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.kind, "type", "t", "", "file type: pdf, image, csv, xlsx, an extension or a MIME type")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output CSV file (default stdout)")
	cmd.Flags().BoolVar(&opts.rejects, "rejects", false, "list rows that could not be parsed")

	return cmd
}

func runExtract(ctx context.Context, g *globalOptions, path string, opts extractOptions, stdout, stderr io.Writer) error {
	cfg, err := g.loadConfig(config.FileName)
	if err != nil {
		return err
	}
	logger := g.logger(stderr, slog.LevelWarn, false)

	p, closeEngine, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine()

	doc, err := acquire.New(cfg.Extract.MaxBytes).ReadFile(path, opts.kind)
	if err != nil {
		return err
	}
	rep, err := p.Run(ctx, doc)
	if err != nil {
		return err
	}

	if opts.out == "" {
		if err := export.WriteCSV(stdout, rep.Table); err != nil {
			return err
		}
	} else if err := writeCSVFile(opts.out, rep); err != nil {
		return err
	}

	printSummary(stderr, rep)
	if opts.rejects {
		for _, r := range rep.Rejects {
			fmt.Fprintf(stderr, "rejected %s\n", r.Error())
		}
	}
	return nil
}

// newPipeline builds the OCR engine and pipeline from cfg. The returned
// close function is never nil.
func newPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, func() error, error) {
	engine, closeEngine, err := ocr.New(ctx, cfg.OCR)
	if err != nil {
		return nil, closeEngine, fmt.Errorf("creating OCR engine: %w", err)
	}
	return pipeline.New(cfg, engine, logger), closeEngine, nil
}

func writeCSVFile(path string, rep *pipeline.Report) error {
	data, err := export.CSV(rep.Table)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func printSummary(w io.Writer, rep *pipeline.Report) {
	fmt.Fprintf(w, "%s: %d transactions, %d invalid rows, %d skipped\n",
		rep.Name, len(rep.Table), rep.InvalidRows, rep.SkippedUnits)
}
