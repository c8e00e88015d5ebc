package dashboard

import "github.com/rzbill/livesense/internal/config"

// EventType names a subscriber event.
type EventType string

const (
	EventLayout   EventType = "layout"
	EventSnapshot EventType = "snapshot"
	EventSample   EventType = "sample"
	EventControl  EventType = "control"
)

// Event is delivered to subscribers. Exactly one payload field is set,
// matching Type. Events are shared between subscribers and must not be
// modified.
type Event struct {
	Type     EventType    `json:"type"`
	ID       string       `json:"id,omitempty"`
	Layout   *Layout      `json:"layout,omitempty"`
	Plots    []PlotData   `json:"plots,omitempty"`
	Sample   *SampleEvent `json:"sample,omitempty"`
	Controls *Controls    `json:"controls,omitempty"`
}

// SampleEvent is one row streamed into a plot.
type SampleEvent struct {
	Plot     string             `json:"plot"`
	X        float64            `json:"x"`
	Values   map[string]float64 `json:"values"`
	AtMs     int64              `json:"atMs"`
	Rollover int                `json:"rollover"`
}

// Controls is the state of the page's three widgets.
type Controls struct {
	Plotting bool    `json:"plotting"`
	Window   int     `json:"window"`
	Delay    float64 `json:"delay"`
}

// ControlUpdate carries optional new widget values.
type ControlUpdate struct {
	Plotting *bool    `json:"plotting,omitempty"`
	Window   *float64 `json:"window,omitempty"`
	Delay    *float64 `json:"delay,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ControlUpdate) Empty() bool { return u.Plotting == nil && u.Window == nil && u.Delay == nil }

// PageLayout is the static description of the parent canvas.
type PageLayout struct {
	Title       string        `json:"title"`
	TitleColour string        `json:"titleColour"`
	TitleWidth  int           `json:"titleWidth"`
	TitleHeight int           `json:"titleHeight"`
	Theme       string        `json:"theme"`
	Columns     int           `json:"columns"`
	Window      config.Slider `json:"window"`
	Delay       config.Slider `json:"delay"`
}

// Layout is the full page description sent to new subscribers.
type Layout struct {
	Page     PageLayout   `json:"page"`
	Plots    []PlotLayout `json:"plots"`
	Controls Controls     `json:"controls"`
}

// PlotStats reports counters for one plot.
type PlotStats struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Rows    int    `json:"rows"`
	Updates uint64 `json:"updates"`
	Skipped uint64 `json:"skipped"`
	Trimmed uint64 `json:"trimmed"`
	// Delivered counts this plot's sample events queued to subscribers.
	Delivered uint64 `json:"delivered"`
	// Dropped counts hand-offs the event loop refused for this plot plus
	// this plot's sample events that overflowed a subscriber queue.
	Dropped uint64 `json:"dropped"`
}

// Stats reports counters for the whole document.
type Stats struct {
	Plots           []PlotStats `json:"plots"`
	Subscribers     int         `json:"subscribers"`
	LoopQueued      int         `json:"loopQueued"`
	LoopDropped     uint64      `json:"loopDropped"`
	EventsDelivered uint64      `json:"eventsDelivered"`
	EventsDropped   uint64      `json:"eventsDropped"`
}
