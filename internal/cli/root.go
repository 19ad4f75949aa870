// Package cli implements the asklens command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/asklens/internal/config"
)

// rootOptions holds the persistent flags and the configuration they produce.
type rootOptions struct {
	cfg *config.Config

	model    string
	cache    string
	source   string
	logLevel string
	quiet    bool
}

// NewRootCmd builds the asklens command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "asklens",
		Short: "Group similar questions and report what users ask",
		Long: `asklens clusters near-duplicate questions by embedding similarity and
builds per-organization reports from a question log.

Example usage:
  asklens group questions.txt             # Cluster one question per line
  asklens group --lexical --glob 'logs/**/*.txt'
  asklens report --org acme --start 2025-01-01 --format json
  asklens record --org acme "How do I reset my password?"`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.model, "model", "", "embedding model version (overrides ASKLENS_EMBEDDING_MODEL)")
	pf.StringVar(&opts.cache, "cache", "", "embedding cache: none, bolt or pgvector")
	pf.StringVar(&opts.source, "source", "", "question source: sqlite or postgres")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress logs and progress output")

	cmd.AddCommand(
		newGroupCmd(opts),
		newReportCmd(opts),
		newModelsCmd(opts),
		newCacheCmd(opts),
		newRecordCmd(opts),
	)
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, version string) int {
	cmd := NewRootCmd(version)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

// setup loads the configuration, applies flag overrides and configures logging.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if o.model != "" {
		cfg.EmbeddingModel = o.model
	}
	if cmd.Flags().Changed("cache") {
		cfg.EmbeddingCache = o.cache
		if o.cache == "none" {
			cfg.EmbeddingCache = ""
		}
	}
	if o.source != "" {
		cfg.QuestionSource = o.source
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	o.cfg = cfg

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}
	if o.quiet {
		level = zerolog.Disabled
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

// stdinIsTerminal reports whether stdin is an interactive terminal.
func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
