package main

import (
	"context"
	"fmt"
	"io"

	"github.com/mwantia/dircount"
	"github.com/spf13/cobra"
)

type installResult struct {
	Table          string `json:"table"`
	Hook           string `json:"hook"`
	Version        int    `json:"version"`
	Implementation string `json:"implementation"`
	Outcome        string `json:"outcome"`
}

// NewInstallCommand creates the install command.
func NewInstallCommand(rootOpts *RootOptions) *cobra.Command {
	var table, hookName, implementation string
	var version int

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Ensure a hook version is bound to its table",
		Long: `Ensure that the given version of the counter hook, or a newer one, is bound.

Without flags the hook from the config is installed. Installing an older
version than the bound one is a no-op.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h := rootOpts.config.Hook
			if cmd.Flags().Changed("table") {
				h.Table = table
			}
			if cmd.Flags().Changed("hook") {
				h.Hook = hookName
			}
			if cmd.Flags().Changed("version") {
				h.Version = version
			}
			if cmd.Flags().Changed("implementation") {
				h.Implementation = implementation
			}

			return withService(cmd, rootOpts, func(ctx context.Context, s *dircount.Service) error {
				slot := h.Slot()
				outcome, err := s.EnsureVersion(ctx, slot, h.Version, h.Implementation)
				if err != nil {
					return err
				}

				result := installResult{
					Table:          h.Table,
					Hook:           h.Hook,
					Version:        h.Version,
					Implementation: h.Implementation,
					Outcome:        outcome.String(),
				}
				return output(cmd.OutOrStdout(), rootOpts, result, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s v%d (%s): %s\n", slot, h.Version, h.Implementation, outcome)
					return err
				})
			})
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "table the hook is bound to")
	cmd.Flags().StringVar(&hookName, "hook", "", "logical hook name")
	cmd.Flags().IntVar(&version, "version", 0, "version to ensure")
	cmd.Flags().StringVar(&implementation, "implementation", "", "registered implementation reference")

	return cmd
}
