// Package transports provides the HTTP and gRPC clients used by the CLI.
package transports

import (
	"context"

	"github.com/rzbill/livesense/internal/dashboard"
	"github.com/rzbill/livesense/internal/recorder"
	"github.com/rzbill/livesense/internal/sensor"
)

// PlotList is the decoded body of GET /v1/plots.
type PlotList struct {
	Plots    []dashboard.PlotStats `json:"plots"`
	Recorder recorder.Stats        `json:"recorder"`
}

// WatchRequest describes a Watch/tail request.
type WatchRequest struct {
	Filter string
	Buffer int
	// Limit stops after N sample events (0 = until ctx is done).
	Limit int
}

// ControlsTransport updates the dashboard widgets. Both transports implement it.
type ControlsTransport interface {
	SetControls(ctx context.Context, u dashboard.ControlUpdate) (dashboard.Controls, error)
}

// HistoryTransport reads recorded samples.
type HistoryTransport interface {
	History(ctx context.Context, plot string, limit int) ([]sensor.Sample, error)
}
