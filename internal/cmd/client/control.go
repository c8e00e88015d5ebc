package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	transports "github.com/rzbill/livesense/internal/cmd/client/transports"
	"github.com/rzbill/livesense/internal/dashboard"
)

// NewControlCommand constructs the `control` command.
func NewControlCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "control",
		Short: "Toggle plotting, resize the window or change the sensor delay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var u dashboard.ControlUpdate
			if cmd.Flags().Changed("plotting") {
				v, _ := cmd.Flags().GetString("plotting")
				on, err := parseOnOff(v)
				if err != nil {
					return err
				}
				u.Plotting = &on
			}
			if cmd.Flags().Changed("window") {
				n, _ := cmd.Flags().GetInt("window")
				w := float64(n)
				u.Window = &w
			}
			if cmd.Flags().Changed("delay") {
				d, _ := cmd.Flags().GetFloat64("delay")
				u.Delay = &d
			}
			if u.Empty() {
				return fmt.Errorf("nothing to change; pass --plotting, --window or --delay")
			}
			var t transports.ControlsTransport = httpTransport(baseURL)
			if useGRPC, _ := cmd.Flags().GetBool("grpc"); useGRPC {
				t = grpcTransport()
			}
			c, err := t.SetControls(cmd.Context(), u)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(c)
		},
	}
	cmd.Flags().String("plotting", "", "Enable plotting: on|off")
	cmd.Flags().Int("window", 0, "Window width in points")
	cmd.Flags().Float64("delay", 0, "Sensor delay in seconds")
	cmd.Flags().Bool("grpc", false, "Send the update over gRPC instead of HTTP")
	return cmd
}

func parseOnOff(v string) (bool, error) {
	switch v {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid --plotting %q; use on|off", v)
}
