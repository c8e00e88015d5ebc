package client

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// NewHistoryCommand constructs the `history` command.
func NewHistoryCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history PLOT_ID",
		Short: "Print recorded samples for a plot as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			samples, err := httpTransport(baseURL).History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, s := range samples {
				if err := enc.Encode(s); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 100, "Number of most recent samples")
	return cmd
}
