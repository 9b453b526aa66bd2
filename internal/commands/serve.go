package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/parsebank-dev/parsebank/internal/acquire"
	"github.com/parsebank-dev/parsebank/internal/api"
	"github.com/parsebank-dev/parsebank/internal/buildinfo"
	"github.com/parsebank-dev/parsebank/internal/config"
	"github.com/parsebank-dev/parsebank/internal/pipeline"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(g *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the extraction API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), g, addr, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}

// runServe blocks until ctx is canceled, then shuts the server down.
func runServe(ctx context.Context, g *globalOptions, addr string, stderr io.Writer) error {
	cfg, err := g.loadConfig(config.FileName)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	logger := g.logger(stderr, slog.LevelInfo, true)

	p, closeEngine, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	p.Metrics = pipeline.NewMetrics(reg)

	e := api.NewServer(api.Dependencies{
		Pipeline: p,
		Acquirer: acquire.New(int64(cfg.Server.MaxUploadMB) << 20),
		Gatherer: reg,
		Version:  buildinfo.Version,
		Logger:   logger,
	}).Echo()

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(cfg.Server.Addr)
	}()
	logger.Info("listening", "addr", cfg.Server.Addr, "ocr_engine", cfg.OCR.Engine)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", cfg.Server.Addr, err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
