package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/rzbill/livesense/internal/dashboard"
	"github.com/rzbill/livesense/internal/runtime"
)

// ControlsController reads and updates the page widgets: plotting, window
// width and sensor delay.
type ControlsController struct {
	rt *runtime.Runtime
}

// NewControlsController creates a new controls controller.
func NewControlsController(rt *runtime.Runtime) *ControlsController {
	return &ControlsController{rt: rt}
}

// RegisterRoutes registers /v1/controls.
func (c *ControlsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/controls", c.handleControls)
}

// handleControls returns the current values on GET. On POST it applies a
// JSON body with optional "plotting", "window" and "delay" fields and
// returns the values in effect afterwards, clamped to the sliders.
func (c *ControlsController) handleControls(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	doc := c.rt.Document()
	if r.Method == http.MethodGet {
		ctl, err := doc.Controls(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, ctl)
		return
	}
	var req dashboard.ControlUpdate
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Empty() {
		writeError(w, http.StatusBadRequest, "No control values given")
		return
	}
	ctl, err := doc.SetControls(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, ctl)
}
