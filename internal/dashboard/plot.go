package dashboard

import (
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/rzbill/livesense/internal/config"
	"github.com/rzbill/livesense/internal/sensor"
)

// XColumn is the column holding sample positions.
const XColumn = "x"

// Series is one legend entry of a plot.
type Series struct {
	Key    string `json:"key"`
	Legend string `json:"legend"`
	Color  string `json:"color"`
}

// PlotLayout is the static description of a plot.
type PlotLayout struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	XAxisLabel string   `json:"xAxisLabel"`
	YAxisLabel string   `json:"yAxisLabel"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Tools      string   `json:"tools"`
	Series     []Series `json:"series"`
}

// PlotData is a copy of a plot's current rows.
type PlotData struct {
	ID      string               `json:"id"`
	Title   string               `json:"title"`
	Series  []Series             `json:"series"`
	Columns map[string][]float64 `json:"columns"`
}

// Rows returns the number of rows in the copy.
func (p PlotData) Rows() int { return len(p.Columns[XColumn]) }

// columnSource is a set of equal-length float columns, the browser chart's
// data model. Not safe for concurrent use.
type columnSource struct {
	keys []string
	cols map[string][]float64
}

func newColumnSource(keys []string) *columnSource {
	c := &columnSource{keys: keys, cols: make(map[string][]float64, len(keys))}
	for _, k := range keys {
		c.cols[k] = []float64{0}
	}
	return c
}

func (c *columnSource) Len() int { return len(c.cols[XColumn]) }

// stream appends row and keeps at most rollover rows. Keys missing from row
// repeat the previous value. It returns how many rows were trimmed.
func (c *columnSource) stream(row map[string]float64, rollover int) int {
	for _, k := range c.keys {
		col := c.cols[k]
		v, ok := row[k]
		if !ok && len(col) > 0 {
			v = col[len(col)-1]
		}
		c.cols[k] = append(col, v)
	}
	return c.trim(rollover)
}

func (c *columnSource) trim(rollover int) int {
	if rollover < 1 {
		rollover = 1
	}
	n := c.Len() - rollover
	if n <= 0 {
		return 0
	}
	for _, k := range c.keys {
		col := c.cols[k]
		copy(col, col[n:])
		c.cols[k] = col[:rollover]
	}
	return n
}

func (c *columnSource) copyData() map[string][]float64 {
	out := make(map[string][]float64, len(c.keys))
	for _, k := range c.keys {
		out[k] = append([]float64(nil), c.cols[k]...)
	}
	return out
}

// plot is one figure on the page. Owned by the event loop.
type plot struct {
	layout   PlotLayout
	source   *columnSource
	plotting bool
	updates  uint64
	skipped  uint64
	trimmed  uint64
	// subscriber counters, loop only
	delivered  uint64
	overflowed uint64
	// refused is written by consumer goroutines
	refused atomic.Uint64
}

func newPlot(idx int, d *sensor.Details, pc config.PlotConfig, plotting bool) *plot {
	palette := pc.Palette
	if len(palette) == 0 {
		palette = config.Dark2_5
	}
	l := PlotLayout{
		ID:         PlotID(idx, d.Title),
		Title:      d.Title,
		XAxisLabel: pc.XAxisLabel,
		YAxisLabel: pc.YAxisLabel,
		Width:      pc.Width,
		Height:     pc.Height,
		Tools:      pc.Tools,
	}
	keys := []string{XColumn}
	for i, ch := range d.Channels {
		l.Series = append(l.Series, Series{Key: ch.Key, Legend: ch.Legend, Color: palette[i%len(palette)]})
		keys = append(keys, ch.Key)
	}
	return &plot{layout: l, source: newColumnSource(keys), plotting: plotting}
}

func (p *plot) data() PlotData {
	return PlotData{
		ID:      p.layout.ID,
		Title:   p.layout.Title,
		Series:  append([]Series(nil), p.layout.Series...),
		Columns: p.source.copyData(),
	}
}

// PlotID builds the stable identifier for the idx-th plot, e.g. "0-cos-sine-waves".
func PlotID(idx int, title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "plot"
	}
	return fmt.Sprintf("%d-%s", idx, slug)
}
