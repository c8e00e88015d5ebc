package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/rzbill/livesense/internal/dashboard"
)

// sseSink writes dashboard events as Server-Sent Events.
type sseSink struct {
	w http.ResponseWriter
}

// Send writes one event: "event:" carries the type, "id:" the sample id when
// there is one, and "data:" the JSON-encoded event.
func (s sseSink) Send(ev dashboard.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(b)+64)
	buf = append(buf, "event: "...)
	buf = append(buf, string(ev.Type)...)
	buf = append(buf, '\n')
	if ev.ID != "" {
		buf = append(buf, "id: "...)
		buf = append(buf, ev.ID...)
		buf = append(buf, '\n')
	}
	buf = append(buf, "data: "...)
	buf = append(buf, b...)
	buf = append(buf, "\n\n"...)
	_, err = s.w.Write(buf)
	return err
}

// Ping writes a comment line so idle connections stay open through proxies.
func (s sseSink) Ping() error {
	_, err := s.w.Write([]byte(": ping\n\n"))
	return err
}

// Flush pushes buffered events to the client.
func (s sseSink) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}
