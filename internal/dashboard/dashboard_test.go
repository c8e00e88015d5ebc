package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/livesense/internal/config"
	"github.com/rzbill/livesense/internal/ring"
	"github.com/rzbill/livesense/internal/sensor"
	"github.com/rzbill/livesense/pkg/id"
)

type harness struct {
	doc   *Document
	gate  *sensor.Gate
	delay *ring.Stack[time.Duration]
	ids   *id.Generator
	ctx   context.Context
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	cfg := config.Default()
	delay := ring.New(1, time.Duration(0))
	ds, err := sensor.Build(sensor.DefaultCatalog(), 2, delay)
	require.NoError(t, err)
	gate := sensor.NewGate(false)
	opts := Options{
		Page:             cfg.Page,
		Plot:             cfg.Plot,
		Sensors:          ds,
		Gate:             gate,
		Delay:            delay,
		Plotting:         true,
		LoopQueue:        64,
		SubscriberBuffer: 64,
	}
	if mutate != nil {
		mutate(&opts)
	}
	doc := New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = doc.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{doc: doc, gate: gate, delay: delay, ids: id.NewGenerator(), ctx: context.Background()}
}

// push schedules a sample for plot idx the way a consumer does.
func (h *harness) push(t *testing.T, idx int, x float64) sensor.Sample {
	t.Helper()
	s := sensor.Sample{ID: h.ids.Next(), X: x, Values: map[string]float64{"y": x * 2, "y1": -x}}
	target := h.doc.Target(idx)
	require.True(t, h.doc.AddNextTickCallback(func() { target.Update(s) }))
	return s
}

func (h *harness) stats(t *testing.T) Stats {
	t.Helper()
	st, err := h.doc.Stats(h.ctx)
	require.NoError(t, err)
	return st
}

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events:
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestNewLayoutDefaults(t *testing.T) {
	h := newHarness(t, nil)
	l, err := h.doc.Layout(h.ctx)
	require.NoError(t, err)

	require.Equal(t, "Real Time Sensor Data", l.Page.Title)
	require.Equal(t, "white", l.Page.TitleColour)
	require.Equal(t, 3, l.Page.Columns)
	require.Len(t, l.Plots, 2)
	require.Equal(t, "0-cos-sine-waves", l.Plots[0].ID)
	require.Equal(t, "1-simple-sin-wave", l.Plots[1].ID)
	require.Equal(t, "TS", l.Plots[0].XAxisLabel)
	require.Equal(t, "Value", l.Plots[0].YAxisLabel)
	require.Equal(t, []Series{
		{Key: "y", Legend: "Cos(x)", Color: config.Dark2_5[0]},
		{Key: "y1", Legend: "Sin(x)", Color: config.Dark2_5[1]},
	}, l.Plots[0].Series)

	require.Equal(t, Controls{Plotting: true, Window: 30, Delay: 0.015}, l.Controls)
	require.Equal(t, 15*time.Millisecond, h.delay.Latest())
	require.True(t, h.gate.IsSet())
}

func TestUpdateStreamsWithRollover(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.doc.SetWindowWidth(h.ctx, 3)
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		h.push(t, 0, float64(i))
	}
	pd, err := h.doc.PlotData(h.ctx, "0-cos-sine-waves")
	require.NoError(t, err)
	require.Equal(t, []float64{3, 4, 5}, pd.Columns[XColumn])
	require.Equal(t, []float64{6, 8, 10}, pd.Columns["y"])
	require.Equal(t, []float64{-3, -4, -5}, pd.Columns["y1"])

	st := h.stats(t)
	require.Equal(t, 3, st.Plots[0].Rows)
	require.Equal(t, uint64(5), st.Plots[0].Updates)
	require.Equal(t, 1, st.Plots[1].Rows, "untouched plot keeps its seed row")
}

func TestWindowShrinkAppliesOnNextUpdate(t *testing.T) {
	h := newHarness(t, nil)
	for i := 1; i <= 5; i++ {
		h.push(t, 1, float64(i))
	}
	require.Equal(t, 6, h.stats(t).Plots[1].Rows)

	c, err := h.doc.SetWindowWidth(h.ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, c.Window)
	require.Equal(t, 6, h.stats(t).Plots[1].Rows)

	h.push(t, 1, 6)
	pd, err := h.doc.PlotData(h.ctx, "1-simple-sin-wave")
	require.NoError(t, err)
	require.Equal(t, []float64{5, 6}, pd.Columns[XColumn])
}

func TestPlottingToggle(t *testing.T) {
	h := newHarness(t, nil)
	c, err := h.doc.SetPlotting(h.ctx, false)
	require.NoError(t, err)
	require.False(t, c.Plotting)
	require.False(t, h.gate.IsSet())

	h.push(t, 0, 1)
	st := h.stats(t)
	require.Equal(t, 1, st.Plots[0].Rows)
	require.Equal(t, uint64(1), st.Plots[0].Skipped)

	_, err = h.doc.SetPlotting(h.ctx, true)
	require.NoError(t, err)
	require.True(t, h.gate.IsSet())
	h.push(t, 0, 2)
	require.Equal(t, 2, h.stats(t).Plots[0].Rows)
}

func TestControlsClamp(t *testing.T) {
	h := newHarness(t, nil)
	cases := []struct {
		delay float64
		want  float64
	}{
		{0.0123, 0.01},
		{0.0137, 0.015},
		{1.0, 0.25},
		{-3, 0.01},
	}
	for _, tc := range cases {
		c, err := h.doc.SetSensorDelay(h.ctx, tc.delay)
		require.NoError(t, err)
		require.InDelta(t, tc.want, c.Delay, 1e-9, "delay %v", tc.delay)
		require.InDelta(t, tc.want, h.delay.Latest().Seconds(), 1e-9)
	}

	c, err := h.doc.SetWindowWidth(h.ctx, 500)
	require.NoError(t, err)
	require.Equal(t, 200, c.Window)
	c, err = h.doc.SetWindowWidth(h.ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, c.Window)
}

func TestSubscribeOrdering(t *testing.T) {
	h := newHarness(t, nil)
	h.push(t, 0, 1)

	sub, err := h.doc.Subscribe(h.ctx, SubscribeOptions{})
	require.NoError(t, err)
	defer sub.Close()

	ev := recv(t, sub)
	require.Equal(t, EventLayout, ev.Type)
	require.Len(t, ev.Layout.Plots, 2)

	ev = recv(t, sub)
	require.Equal(t, EventSnapshot, ev.Type)
	require.Len(t, ev.Plots, 2)
	require.Equal(t, []float64{0, 1}, ev.Plots[0].Columns[XColumn])

	s := h.push(t, 1, 7)
	ev = recv(t, sub)
	require.Equal(t, EventSample, ev.Type)
	require.Equal(t, s.ID.String(), ev.ID)
	require.Equal(t, "1-simple-sin-wave", ev.Sample.Plot)
	require.Equal(t, 7.0, ev.Sample.X)
	require.Equal(t, 30, ev.Sample.Rollover)

	_, err = h.doc.SetWindowWidth(h.ctx, 10)
	require.NoError(t, err)
	ev = recv(t, sub)
	require.Equal(t, EventControl, ev.Type)
	require.Equal(t, 10, ev.Controls.Window)

	// unchanged controls are not broadcast
	_, err = h.doc.SetWindowWidth(h.ctx, 10)
	require.NoError(t, err)
	h.push(t, 0, 8)
	require.Equal(t, EventSample, recv(t, sub).Type)
}

func TestSubscribeFilter(t *testing.T) {
	h := newHarness(t, nil)
	sub, err := h.doc.Subscribe(h.ctx, SubscribeOptions{Filter: `plot == "1-simple-sin-wave" && values.y > 4.0`})
	require.NoError(t, err)
	defer sub.Close()
	recv(t, sub)
	recv(t, sub)

	h.push(t, 0, 5)
	h.push(t, 1, 1)
	h.push(t, 1, 3)
	ev := recv(t, sub)
	require.Equal(t, "1-simple-sin-wave", ev.Sample.Plot)
	require.Equal(t, 3.0, ev.Sample.X)

	_, err = h.doc.Subscribe(h.ctx, SubscribeOptions{Filter: "plot =="})
	require.True(t, errors.Is(err, ErrBadFilter))
	_, err = h.doc.Subscribe(h.ctx, SubscribeOptions{Filter: "x + 1.0"})
	require.ErrorIs(t, err, ErrBadFilter)
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	h := newHarness(t, nil)
	sub, err := h.doc.Subscribe(h.ctx, SubscribeOptions{Buffer: MinSubscriberBuffer})
	require.NoError(t, err)
	defer sub.Close()

	var last sensor.Sample
	for i := 1; i <= 10; i++ {
		last = h.push(t, 0, float64(i))
	}
	h.stats(t)

	var got []Event
	for len(got) < MinSubscriberBuffer {
		got = append(got, recv(t, sub))
	}
	require.Equal(t, EventSample, got[0].Type)
	require.Equal(t, 7.0, got[0].Sample.X)
	require.Equal(t, last.ID.String(), got[len(got)-1].ID)
	require.Equal(t, uint64(8), sub.Dropped())
	require.Equal(t, uint64(8), h.stats(t).EventsDropped)
}

func TestPlotStatsCountDeliveredAndDropped(t *testing.T) {
	h := newHarness(t, nil)
	slow, err := h.doc.Subscribe(h.ctx, SubscribeOptions{Buffer: MinSubscriberBuffer})
	require.NoError(t, err)
	defer slow.Close()
	onlyOne, err := h.doc.Subscribe(h.ctx, SubscribeOptions{Filter: `plot == "1-simple-sin-wave"`})
	require.NoError(t, err)
	defer onlyOne.Close()

	for i := 1; i <= 10; i++ {
		h.push(t, 0, float64(i))
	}
	h.push(t, 1, 1)

	st := h.stats(t)
	// plot 0 reaches only the slow subscriber, which overflows after two samples
	require.Equal(t, uint64(10), st.Plots[0].Delivered)
	require.Equal(t, uint64(8), st.Plots[0].Dropped)
	// plot 1 reaches both; the slow queue is already full
	require.Equal(t, uint64(2), st.Plots[1].Delivered)
	require.Equal(t, uint64(1), st.Plots[1].Dropped)
}

func TestPlotSchedulerCountsRefusals(t *testing.T) {
	cfg := config.Default()
	ds, err := sensor.Build(sensor.DefaultCatalog(), 2, ring.New(1, time.Duration(0)))
	require.NoError(t, err)
	doc := New(Options{Page: cfg.Page, Plot: cfg.Plot, Sensors: ds, LoopQueue: 1})

	require.True(t, doc.Scheduler(1).AddNextTickCallback(func() {}))
	require.False(t, doc.Scheduler(1).AddNextTickCallback(func() {}))
	require.False(t, doc.Scheduler(0).AddNextTickCallback(func() {}))
	require.False(t, doc.Scheduler(7).AddNextTickCallback(func() {}))

	require.Equal(t, uint64(1), doc.plots[0].refused.Load())
	require.Equal(t, uint64(1), doc.plots[1].refused.Load())
	require.Equal(t, uint64(3), doc.loopDropped.Load())
}

func TestSubscriptionClose(t *testing.T) {
	h := newHarness(t, nil)
	sub, err := h.doc.Subscribe(h.ctx, SubscribeOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, h.stats(t).Subscribers)

	sub.Close()
	sub.Close()
	require.Equal(t, 0, h.stats(t).Subscribers)
	for range sub.Events {
	}
}

func TestRunStopClosesEverything(t *testing.T) {
	cfg := config.Default()
	doc := New(Options{Page: cfg.Page, Plot: cfg.Plot, Plotting: true})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = doc.Run(ctx)
		close(done)
	}()

	sub, err := doc.Subscribe(context.Background(), SubscribeOptions{})
	require.NoError(t, err)
	cancel()
	<-done

	for range sub.Events {
	}
	sub.Close()
	require.False(t, doc.AddNextTickCallback(func() {}))
	_, err = doc.Controls(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestAddNextTickCallbackNeverBlocks(t *testing.T) {
	cfg := config.Default()
	doc := New(Options{Page: cfg.Page, Plot: cfg.Plot, LoopQueue: 1})
	require.True(t, doc.AddNextTickCallback(func() {}))
	require.False(t, doc.AddNextTickCallback(func() {}))
	require.Equal(t, uint64(1), doc.loopDropped.Load())
}

func TestPlotDataUnknown(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.doc.PlotData(h.ctx, "nope")
	require.ErrorIs(t, err, ErrUnknownPlot)
}

func TestPlotID(t *testing.T) {
	require.Equal(t, "0-cos-sine-waves", PlotID(0, "Cos & Sine Waves"))
	require.Equal(t, "4-sweep", PlotID(4, "Sweep"))
	require.Equal(t, "2-plot", PlotID(2, "!!!"))
}
