package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/rzbill/livesense/internal/render"
	"github.com/rzbill/livesense/internal/runtime"
)

const (
	defaultHistory = 100
	maxHistory     = 10000
	snapshotTTL    = 250 * time.Millisecond
)

// PlotsController lists plots and serves per-plot history and snapshots.
type PlotsController struct {
	rt        *runtime.Runtime
	snapshots *cache.Cache
}

// NewPlotsController creates a new plots controller.
func NewPlotsController(rt *runtime.Runtime) *PlotsController {
	return &PlotsController{rt: rt, snapshots: cache.New(snapshotTTL, 4*snapshotTTL)}
}

// RegisterRoutes registers /v1/plots and /v1/plots/{id}/...
func (c *PlotsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/plots", c.handleList)
	mux.HandleFunc("/v1/plots/", c.handlePlot)
}

// handleList returns every plot with its counters, plus document and
// recorder stats.
func (c *PlotsController) handleList(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	st, err := c.rt.Document().Stats(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	scheduled, dropped := c.rt.ConsumerStats()
	writeJSON(w, plotListResp{
		Plots: st.Plots,
		Stats: statsJSON{
			Subscribers:       st.Subscribers,
			LoopQueued:        st.LoopQueued,
			LoopDropped:       st.LoopDropped,
			EventsDelivered:   st.EventsDelivered,
			EventsDropped:     st.EventsDropped,
			ConsumerScheduled: scheduled,
			ConsumerDropped:   dropped,
		},
		Recorder: c.rt.Recorder().Stats(),
	})
}

// handlePlot dispatches /v1/plots/{id}/history and /v1/plots/{id}/snapshot.png.
func (c *PlotsController) handlePlot(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/plots/")
	id, action, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	switch action {
	case "history":
		c.handleHistory(w, r, id)
	case "snapshot.png":
		c.handleSnapshot(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// handleHistory returns up to ?limit recorded samples, oldest first.
func (c *PlotsController) handleHistory(w http.ResponseWriter, r *http.Request, id string) {
	if !c.knownPlot(id) {
		writeError(w, http.StatusNotFound, "Unknown plot")
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), defaultHistory, maxHistory)
	samples, err := c.rt.Recorder().Recent(id, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, historyResp{Plot: id, Samples: samples})
}

// handleSnapshot renders the plot's current window to PNG. Renders are
// cached briefly per plot and size.
func (c *PlotsController) handleSnapshot(w http.ResponseWriter, r *http.Request, id string) {
	cfg := c.rt.Config()
	q := r.URL.Query()
	width := parseLimit(q.Get("w"), cfg.Plot.Width, 4000)
	height := parseLimit(q.Get("h"), cfg.Plot.Height, 4000)
	key := fmt.Sprintf("%s@%dx%d", id, width, height)

	if b, ok := c.snapshots.Get(key); ok {
		writePNG(w, b.([]byte))
		return
	}
	pd, err := c.rt.Document().PlotData(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	var buf bytes.Buffer
	err = render.PNG(&buf, pd, render.Options{
		Width:      width,
		Height:     height,
		XAxisLabel: cfg.Plot.XAxisLabel,
		YAxisLabel: cfg.Plot.YAxisLabel,
		Theme:      cfg.Page.Theme,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	c.snapshots.SetDefault(key, buf.Bytes())
	writePNG(w, buf.Bytes())
}

func (c *PlotsController) knownPlot(id string) bool {
	for _, p := range c.rt.Document().PlotIDs() {
		if p == id {
			return true
		}
	}
	return false
}

func writePNG(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
}
