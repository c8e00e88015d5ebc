package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the livesense client.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "livesense",
		Short: "livesense client commands",
	}
	AddCommands(root, baseURL)
	return root
}

// AddCommands registers the client commands on root.
func AddCommands(root *cobra.Command, baseURL BaseURLFunc) {
	root.AddCommand(
		NewPlotsCommand(baseURL),
		NewControlCommand(baseURL),
		NewHistoryCommand(baseURL),
		NewTailCommand(),
	)
}
