package controllers

import (
	"github.com/rzbill/livesense/internal/dashboard"
	"github.com/rzbill/livesense/internal/recorder"
	"github.com/rzbill/livesense/internal/sensor"
)

// plotListResp is the body of GET /v1/plots.
type plotListResp struct {
	Plots    []dashboard.PlotStats `json:"plots"`
	Stats    statsJSON             `json:"stats"`
	Recorder recorder.Stats        `json:"recorder"`
}

// statsJSON is the document-wide part of the plot list.
type statsJSON struct {
	Subscribers       int    `json:"subscribers"`
	LoopQueued        int    `json:"loopQueued"`
	LoopDropped       uint64 `json:"loopDropped"`
	EventsDelivered   uint64 `json:"eventsDelivered"`
	EventsDropped     uint64 `json:"eventsDropped"`
	ConsumerScheduled uint64 `json:"consumerScheduled"`
	ConsumerDropped   uint64 `json:"consumerDropped"`
}

// historyResp is the body of GET /v1/plots/{id}/history.
type historyResp struct {
	Plot    string          `json:"plot"`
	Samples []sensor.Sample `json:"samples"`
}
