package transports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rzbill/livesense/internal/dashboard"
	"github.com/rzbill/livesense/internal/sensor"
)

// HTTPTransport talks to the JSON API under /v1.
type HTTPTransport struct {
	base   string
	client *http.Client
}

// NewHTTPTransport constructs a transport rooted at base (e.g. http://127.0.0.1:8080).
func NewHTTPTransport(base string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{base: strings.TrimRight(base, "/"), client: client}
}

// apiError is the server's error body.
type apiError struct {
	Error string `json:"error"`
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.base+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e apiError
		b, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, e.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Plots lists plots with their counters.
func (t *HTTPTransport) Plots(ctx context.Context) (PlotList, error) {
	var out PlotList
	err := t.do(ctx, http.MethodGet, "/v1/plots", nil, &out)
	return out, err
}

// SetControls posts a control update.
func (t *HTTPTransport) SetControls(ctx context.Context, u dashboard.ControlUpdate) (dashboard.Controls, error) {
	var out dashboard.Controls
	err := t.do(ctx, http.MethodPost, "/v1/controls", u, &out)
	return out, err
}

// History returns up to limit recorded samples for plot, oldest first.
func (t *HTTPTransport) History(ctx context.Context, plot string, limit int) ([]sensor.Sample, error) {
	var out struct {
		Samples []sensor.Sample `json:"samples"`
	}
	path := "/v1/plots/" + url.PathEscape(plot) + "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	err := t.do(ctx, http.MethodGet, path, nil, &out)
	return out.Samples, err
}
