package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/parsebank-dev/parsebank/internal/buildinfo"
	"github.com/parsebank-dev/parsebank/internal/config"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "parsebank",
		Short:   "Extract bank statement transactions to CSV",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ./"+config.FileName+")")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newExtractCommand(opts))
	rootCmd.AddCommand(newBatchCommand(opts))
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newServeCommand(opts))

	return rootCmd
}

// loadConfig reads the --config file, or fallback when the flag is unset.
// A missing file means defaults; environment overrides always apply.
func (o *globalOptions) loadConfig(fallback string) (*config.Config, error) {
	if o.configPath != "" {
		cfg, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplyEnv(); err != nil {
			return nil, fmt.Errorf("applying environment: %w", err)
		}
		return cfg, nil
	}
	return config.LoadOrDefault(fallback)
}

// logger returns a text logger for CLI use or a JSON logger for servers.
// base is the level used without --verbose.
func (o *globalOptions) logger(w io.Writer, base slog.Level, json bool) *slog.Logger {
	level := base
	if o.verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}
