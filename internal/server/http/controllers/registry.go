package controllers

import (
	"net/http"

	"github.com/rzbill/livesense/internal/runtime"
	logpkg "github.com/rzbill/livesense/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general  *GeneralController
	controls *ControlsController
	events   *EventsController
	plots    *PlotsController
}

// NewControllerRegistry initializes all controllers with the provided runtime.
func NewControllerRegistry(rt *runtime.Runtime, logger logpkg.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general:  NewGeneralController(rt),
		controls: NewControlsController(rt),
		events:   NewEventsController(rt, logger),
		plots:    NewPlotsController(rt),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.controls.RegisterRoutes(mux)
	r.events.RegisterRoutes(mux)
	r.plots.RegisterRoutes(mux)
}
