// Package render draws a plot's current window to PNG with go-chart. It is
// the server-side counterpart of the browser chart, used for snapshots.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/rzbill/livesense/internal/dashboard"
)

// Options controls the image.
type Options struct {
	Width      int
	Height     int
	XAxisLabel string
	YAxisLabel string
	// Theme "dark_minimal" renders light-on-dark; anything else is light.
	Theme string
}

const (
	minSize = 100
	maxSize = 4000
)

// ErrNoSeries is returned for plots without any y column.
var ErrNoSeries = errors.New("render: plot has no series")

func clampSize(v, def int) int {
	if v <= 0 {
		v = def
	}
	return max(minSize, min(v, maxSize))
}

// PNG renders pd as a line chart with a point per sample and a legend.
func PNG(w io.Writer, pd dashboard.PlotData, opts Options) error {
	if len(pd.Series) == 0 {
		return ErrNoSeries
	}
	xs := pd.Columns[dashboard.XColumn]
	fg, bg := drawing.ColorBlack, drawing.ColorWhite
	if opts.Theme == "dark_minimal" {
		fg, bg = drawing.ColorFromHex("e0e0e0"), drawing.ColorFromHex("20262b")
	}
	axis := chart.Style{FontColor: fg, StrokeColor: fg}

	yMin, yMax := math.Inf(1), math.Inf(-1)
	series := make([]chart.Series, 0, len(pd.Series))
	for _, s := range pd.Series {
		ys := pd.Columns[s.Key]
		n := min(len(xs), len(ys))
		for _, y := range ys[:n] {
			yMin, yMax = math.Min(yMin, y), math.Max(yMax, y)
		}
		c := drawing.ColorFromHex(strings.TrimPrefix(s.Color, "#"))
		series = append(series, chart.ContinuousSeries{
			Name:    s.Legend,
			XValues: xs[:n],
			YValues: ys[:n],
			Style: chart.Style{
				StrokeColor: c,
				StrokeWidth: 2,
				DotColor:    c,
				DotWidth:    3,
			},
		})
	}
	xMin, xMax := bounds(xs)

	graph := chart.Chart{
		Title:      pd.Title,
		TitleStyle: chart.Style{FontColor: fg},
		Width:      clampSize(opts.Width, 1000),
		Height:     clampSize(opts.Height, 500),
		Background: chart.Style{FillColor: bg, Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		Canvas:     chart.Style{FillColor: bg},
		XAxis: chart.XAxis{
			Name:      opts.XAxisLabel,
			NameStyle: axis,
			Style:     axis,
			Range:     padRange(xMin, xMax),
		},
		YAxis: chart.YAxis{
			Name:      opts.YAxisLabel,
			NameStyle: axis,
			Style:     axis,
			Range:     padRange(yMin, yMax),
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s: %w", pd.ID, err)
	}
	return nil
}

func bounds(vs []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	return lo, hi
}

// padRange returns an explicit axis range; go-chart refuses zero-width ranges,
// which a single row or a flat signal would otherwise produce.
func padRange(lo, hi float64) *chart.ContinuousRange {
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		lo, hi = 0, 1
	}
	if hi-lo < 1e-9 {
		lo, hi = lo-1, hi+1
	}
	pad := (hi - lo) * 0.05
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
