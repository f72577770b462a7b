package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mwantia/dircount"
	"github.com/spf13/cobra"
)

// NewCountsCommand creates the counts command.
func NewCountsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "counts [prefix]",
		Short: "List directory counters",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) > 0 {
				prefix = args[0]
			}

			return withService(cmd, rootOpts, func(ctx context.Context, s *dircount.Service) error {
				counters, err := s.Catalog.Counts(ctx, prefix)
				if err != nil {
					return err
				}

				return output(cmd.OutOrStdout(), rootOpts, counters, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "DIRECTORY\tCOUNT")
					for _, c := range counters {
						fmt.Fprintf(tw, "%s\t%d\n", c.Key, c.Count)
					}
					return tw.Flush()
				})
			})
		},
	}
}

var errMismatches = errors.New("counters do not match the metadata table")

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Recount all directories and compare with the stored counters",
		Long: `Recount all directories from the metadata table and compare the result with
the stored counters. Only exact while no writer is active.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, rootOpts, func(ctx context.Context, s *dircount.Service) error {
				mismatches, err := s.Catalog.Verify(ctx)
				if err != nil {
					return err
				}

				err = output(cmd.OutOrStdout(), rootOpts, mismatches, func(w io.Writer) error {
					if len(mismatches) == 0 {
						_, err := fmt.Fprintln(w, "all counters match")
						return err
					}
					for _, m := range mismatches {
						if _, err := fmt.Fprintln(w, m); err != nil {
							return err
						}
					}
					return nil
				})
				if err != nil {
					return err
				}

				if len(mismatches) > 0 {
					return fmt.Errorf("%w: %d mismatches", errMismatches, len(mismatches))
				}
				return nil
			})
		},
	}
}
