package client

import (
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	transports "github.com/rzbill/livesense/internal/cmd/client/transports"
)

// NewTailCommand constructs the `tail` command.
func NewTailCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream dashboard events over gRPC as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			buf, _ := cmd.Flags().GetInt("buf")
			out := cmd.OutOrStdout()
			return grpcTransport().Watch(cmd.Context(), transports.WatchRequest{Filter: filter, Limit: limit, Buffer: buf},
				func(ev *structpb.Struct) error {
					b, err := protojson.Marshal(ev)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(out, string(b))
					return err
				})
		},
	}
	cmd.Flags().String("filter", "", "CEL filter over plot, x, values, at_ms (server-side)")
	cmd.Flags().Int("limit", 0, "Stop after N samples (0 = infinite)")
	cmd.Flags().Int("buf", 0, "Server-side buffer for this watcher (0 = server default)")
	return cmd
}
