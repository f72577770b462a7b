package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/mwantia/dircount"
	"github.com/mwantia/dircount/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Backend    string
	LogLevel   string
	Format     string // "json" | "text"

	config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dircount CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dircount",
		Short: "Per-directory entry counts with versioned maintenance hooks",
		Long: `dircount keeps one counter per directory equal to the number of its entries.

The counting logic is bound to the metadata table as a versioned hook.
"dircount install" upgrades that binding and never downgrades it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.loadConfig()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "backend address, overrides the config")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level, overrides the config")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewInstallCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewCountsCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewStatCommand(opts))

	return cmd
}

func (opts *RootOptions) loadConfig() error {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	opts.config = cfg
	return cfg.Validate()
}

// withService runs fn against a service built from the loaded config.
func withService(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *dircount.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Metrics are not served by one-shot commands.
	s, err := dircount.NewService(ctx, opts.config, dircount.WithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	return fn(ctx, s)
}

// withBoundService is withService for commands writing entries. Entries are
// only accepted while a hook is bound, so the configured hook is ensured first.
func withBoundService(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *dircount.Service) error) error {
	return withService(cmd, opts, func(ctx context.Context, s *dircount.Service) error {
		if _, err := s.EnsureHook(ctx); err != nil {
			return fmt.Errorf("failed to ensure hook: %w", err)
		}
		return fn(ctx, s)
	})
}

// output writes v as JSON or calls text for the text format.
func output(w io.Writer, opts *RootOptions, v any, text func(w io.Writer) error) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}
