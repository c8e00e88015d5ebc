package controllers

import (
	"net/http"
	"time"

	"github.com/rzbill/livesense/internal/dashboard"
	"github.com/rzbill/livesense/internal/runtime"
	logpkg "github.com/rzbill/livesense/pkg/log"
)

// maxFilterLen bounds subscription filters.
const maxFilterLen = 2048

// EventsController streams dashboard events over SSE.
type EventsController struct {
	rt        *runtime.Runtime
	logger    logpkg.Logger
	heartbeat time.Duration
}

// NewEventsController creates a new events controller.
func NewEventsController(rt *runtime.Runtime, logger logpkg.Logger) *EventsController {
	return &EventsController{rt: rt, logger: logger, heartbeat: 15 * time.Second}
}

// RegisterRoutes registers /v1/events.
func (c *EventsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/events", c.handleEvents)
}

// handleEvents subscribes to the document. Query parameters: filter (CEL
// over plot, x, values, at_ms) and buf (per-subscriber queue length).
func (c *EventsController) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	filter := q.Get("filter")
	if len(filter) > maxFilterLen {
		writeError(w, http.StatusBadRequest, "Filter too long")
		return
	}
	opts := dashboard.SubscribeOptions{
		Filter: filter,
		Buffer: parseLimit(q.Get("buf"), 0, 65536),
	}
	sub, err := c.rt.Document().Subscribe(r.Context(), opts)
	if err != nil {
		writeErr(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	sink := sseSink{w: w}
	sink.Flush()

	log := c.logger.With(logpkg.Str("subscription", sub.ID.String()))
	log.Debug("sse subscriber connected", logpkg.Str("remote", r.RemoteAddr))
	defer func() {
		log.Debug("sse subscriber disconnected", logpkg.Uint64("dropped", sub.Dropped()))
	}()

	ping := time.NewTicker(c.heartbeat)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := sink.Ping(); err != nil {
				return
			}
			sink.Flush()
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := sink.Send(ev); err != nil {
				return
			}
			// drain whatever else is queued before flushing
			for drained := false; !drained; {
				select {
				case ev, ok := <-sub.Events:
					if !ok {
						sink.Flush()
						return
					}
					if err := sink.Send(ev); err != nil {
						return
					}
				default:
					drained = true
				}
			}
			sink.Flush()
		}
	}
}
