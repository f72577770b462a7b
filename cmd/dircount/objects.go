package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mwantia/dircount"
	"github.com/mwantia/dircount/data"
	"github.com/spf13/cobra"
)

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	var contentType string
	var dir bool

	cmd := &cobra.Command{
		Use:   "put <key> [file|-]",
		Short: "Create an entry, counted towards its parent directory",
		Long: `Create a file entry from the given file or stdin, or a directory entry with --dir.

The content is hashed with BLAKE3 for the ETag and stored in the configured
blob store, if any.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoundService(cmd, rootOpts, func(ctx context.Context, s *dircount.Service) error {
				var meta *data.Metadata
				var err error

				if dir {
					meta, err = s.Catalog.Mkdir(ctx, args[0])
				} else {
					var r io.Reader = cmd.InOrStdin()
					if len(args) > 1 && args[1] != "-" {
						f, err := os.Open(args[1])
						if err != nil {
							return err
						}
						defer f.Close()
						r = f
					}
					meta, err = s.Catalog.Put(ctx, args[0], r, contentType)
				}
				if err != nil {
					return err
				}

				return printMeta(cmd.OutOrStdout(), rootOpts, meta)
			})
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "content type of the file, guessed from the key if empty")
	cmd.Flags().BoolVar(&dir, "dir", false, "create a directory entry")

	return cmd
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>",
		Short: "Remove an entry and uncount it from its parent directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoundService(cmd, rootOpts, func(ctx context.Context, s *dircount.Service) error {
				meta, err := s.Catalog.Remove(ctx, args[0])
				if err != nil {
					return err
				}

				return printMeta(cmd.OutOrStdout(), rootOpts, meta)
			})
		},
	}
}

// NewStatCommand creates the stat command.
func NewStatCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <key>",
		Short: "Show an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, rootOpts, func(ctx context.Context, s *dircount.Service) error {
				meta, err := s.Catalog.Stat(ctx, args[0])
				if err != nil {
					return err
				}

				return printMeta(cmd.OutOrStdout(), rootOpts, meta)
			})
		},
	}
}

func printMeta(w io.Writer, opts *RootOptions, meta *data.Metadata) error {
	return output(w, opts, meta, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s %10d %s %s\n", meta.Mode, meta.Size, meta.ModifyTime.Format("2006-01-02 15:04:05"), meta.Key)
		return err
	})
}
