package client

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewPlotsCommand constructs the `plots` command.
func NewPlotsCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "plots",
		Short: "List plots and their counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := httpTransport(baseURL).Plots(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tROWS\tUPDATES\tSKIPPED\tDELIVERED\tDROPPED")
			for _, p := range list.Plots {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n", p.ID, p.Title, p.Rows, p.Updates, p.Skipped, p.Delivered, p.Dropped)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if list.Recorder.Enabled {
				fmt.Fprintf(cmd.OutOrStdout(), "recorder: %d appended, %d trimmed\n", list.Recorder.Appended, list.Recorder.Trimmed)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "recorder: disabled")
			}
			return nil
		},
	}
}
