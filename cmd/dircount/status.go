package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/mwantia/dircount"
	"github.com/mwantia/dircount/data"
	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List bound hooks and registered implementations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, rootOpts, func(ctx context.Context, s *dircount.Service) error {
				bindings, err := s.Catalog.Bindings(ctx)
				if err != nil {
					return err
				}

				result := struct {
					Backend         string          `json:"backend"`
					Bindings        []*data.Binding `json:"bindings"`
					Implementations []string        `json:"implementations"`
				}{s.Backend.Name(), bindings, s.Registry.Refs()}

				return output(cmd.OutOrStdout(), rootOpts, result, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "SLOT\tVERSION\tIMPLEMENTATION\tINSTALLED")
					for _, b := range bindings {
						fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", b.Slot, b.Version, b.Implementation, b.InstallTime.Format(time.RFC3339))
					}
					if err := tw.Flush(); err != nil {
						return err
					}

					_, err := fmt.Fprintf(w, "\nbackend: %s\nimplementations: %v\n", s.Backend.Name(), s.Registry.Refs())
					return err
				})
			})
		},
	}
}
