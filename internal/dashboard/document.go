package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/livesense/internal/config"
	"github.com/rzbill/livesense/internal/ring"
	"github.com/rzbill/livesense/internal/sensor"
	logpkg "github.com/rzbill/livesense/pkg/log"
)

var (
	// ErrClosed is returned once the event loop has stopped.
	ErrClosed = errors.New("dashboard: event loop stopped")
	// ErrUnknownPlot is returned for plot ids that are not on the page.
	ErrUnknownPlot = errors.New("dashboard: unknown plot")
)

// Options configures a Document.
type Options struct {
	Page config.PageConfig
	Plot config.PlotConfig
	// Sensors are laid out one plot each, in order.
	Sensors []*sensor.Details
	// Gate is switched by the plotting control.
	Gate *sensor.Gate
	// Delay is the shared sensor delay stack switched by the delay control.
	Delay *ring.Stack[time.Duration]
	// Plotting is the initial state of the plotting control.
	Plotting         bool
	LoopQueue        int
	SubscriberBuffer int
	Logger           logpkg.Logger
}

// Document is the page model. Create with New and start with Run.
type Document struct {
	queue  chan func()
	done   chan struct{}
	logger logpkg.Logger

	gate  *sensor.Gate
	delay *ring.Stack[time.Duration]

	loopDropped atomic.Uint64

	// owned by the loop goroutine
	page     PageLayout
	plots    []*plot
	index    map[string]int
	window   int
	plotting bool
	subs     map[uuid.UUID]*subscriber
	subBuf   int
	// counters of subscribers that have gone away
	goneDelivered uint64
	goneDropped   uint64
}

// New lays out one plot per sensor. The initial delay and window come from
// the page sliders; the delay stack is set to the clamped delay.
func New(opts Options) *Document {
	if opts.LoopQueue < 1 {
		opts.LoopQueue = 1024
	}
	if opts.SubscriberBuffer < MinSubscriberBuffer {
		opts.SubscriberBuffer = MinSubscriberBuffer
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	if opts.Gate == nil {
		opts.Gate = sensor.NewGate(opts.Plotting)
	}
	if opts.Delay == nil {
		opts.Delay = ring.New(1, time.Duration(0))
	}
	pc := opts.Page
	d := &Document{
		queue:  make(chan func(), opts.LoopQueue),
		done:   make(chan struct{}),
		logger: opts.Logger.WithComponent("dashboard"),
		gate:   opts.Gate,
		delay:  opts.Delay,
		page: PageLayout{
			Title:       pc.Title,
			TitleColour: pc.TitleColour,
			TitleWidth:  pc.TitleWidth,
			TitleHeight: pc.TitleHeight,
			Theme:       pc.Theme,
			Columns:     pc.Columns,
			Window:      pc.Window,
			Delay:       pc.Delay,
		},
		index:    make(map[string]int, len(opts.Sensors)),
		window:   int(pc.Window.Clamp(pc.Window.Value)),
		plotting: opts.Plotting,
		subs:     make(map[uuid.UUID]*subscriber),
		subBuf:   opts.SubscriberBuffer,
	}
	for i, s := range opts.Sensors {
		p := newPlot(i, s, opts.Plot, opts.Plotting)
		d.index[p.layout.ID] = i
		d.plots = append(d.plots, p)
	}
	d.delay.Replace(secondsToDuration(pc.Delay.Clamp(pc.Delay.Value)))
	if opts.Plotting {
		d.gate.Set()
	} else {
		d.gate.Clear()
	}
	return d
}

// Run executes queued callbacks until ctx is done. On return every
// subscription's Events channel is closed.
func (d *Document) Run(ctx context.Context) error {
	d.logger.Info("event loop started", logpkg.Int("plots", len(d.plots)), logpkg.Int("window", d.window))
	defer func() {
		close(d.done)
		for id, s := range d.subs {
			close(s.ch)
			delete(d.subs, id)
		}
		d.logger.Info("event loop stopped", logpkg.Uint64("loop_dropped", d.loopDropped.Load()))
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-d.queue:
			fn()
		}
	}
}

// AddNextTickCallback queues fn to run on the event loop. It never blocks:
// when the queue is full or the loop has stopped fn is dropped and false is
// returned.
func (d *Document) AddNextTickCallback(fn func()) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.queue <- fn:
		return true
	default:
		d.loopDropped.Add(1)
		return false
	}
}

// call runs fn on the loop and waits for it.
func (d *Document) call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	select {
	case d.queue <- func() { fn(); close(ran) }:
	case <-d.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
		return nil
	case <-d.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Target returns the sensor.Target for the idx-th plot. Its Update must run
// on the event loop, which is what a Consumer scheduling through this
// Document does.
func (d *Document) Target(idx int) sensor.Target { return plotTarget{doc: d, idx: idx} }

type plotTarget struct {
	doc *Document
	idx int
}

func (t plotTarget) Update(s sensor.Sample) { t.doc.update(t.idx, s) }

// Scheduler returns the document's scheduler for the idx-th plot; refused
// hand-offs are counted against that plot.
func (d *Document) Scheduler(idx int) sensor.Scheduler { return plotScheduler{doc: d, idx: idx} }

type plotScheduler struct {
	doc *Document
	idx int
}

func (s plotScheduler) AddNextTickCallback(fn func()) bool {
	if s.doc.AddNextTickCallback(fn) {
		return true
	}
	if s.idx >= 0 && s.idx < len(s.doc.plots) {
		s.doc.plots[s.idx].refused.Add(1)
	}
	return false
}

// PlotIDs returns plot ids in page order. Safe from any goroutine.
func (d *Document) PlotIDs() []string {
	out := make([]string, len(d.plots))
	for i, p := range d.plots {
		out[i] = p.layout.ID
	}
	return out
}

func (d *Document) update(idx int, s sensor.Sample) {
	if idx < 0 || idx >= len(d.plots) {
		return
	}
	p := d.plots[idx]
	if !p.plotting {
		p.skipped++
		return
	}
	row := make(map[string]float64, len(s.Values)+1)
	for k, v := range s.Values {
		row[k] = v
	}
	row[XColumn] = s.X
	p.trimmed += uint64(p.source.stream(row, d.window))
	p.updates++
	ev := Event{
		Type: EventSample,
		ID:   s.ID.String(),
		Sample: &SampleEvent{
			Plot:     p.layout.ID,
			X:        s.X,
			Values:   s.Values,
			AtMs:     s.AtMs,
			Rollover: d.window,
		},
	}
	for _, sub := range d.subs {
		queued, dropped := sub.offer(ev)
		if queued {
			p.delivered++
		}
		if dropped {
			p.overflowed++
		}
	}
}

func (d *Document) broadcast(ev Event) {
	for _, s := range d.subs {
		s.offer(ev)
	}
}

func (d *Document) controls() Controls {
	return Controls{
		Plotting: d.plotting,
		Window:   d.window,
		Delay:    d.delay.Latest().Seconds(),
	}
}

func (d *Document) layout() *Layout {
	l := &Layout{Page: d.page, Controls: d.controls()}
	for _, p := range d.plots {
		pl := p.layout
		pl.Series = append([]Series(nil), p.layout.Series...)
		l.Plots = append(l.Plots, pl)
	}
	return l
}

// Layout returns the page and plot layout with the current control values.
func (d *Document) Layout(ctx context.Context) (*Layout, error) {
	var out *Layout
	if err := d.call(ctx, func() { out = d.layout() }); err != nil {
		return nil, err
	}
	return out, nil
}

// Controls returns the current control values.
func (d *Document) Controls(ctx context.Context) (Controls, error) {
	var out Controls
	err := d.call(ctx, func() { out = d.controls() })
	return out, err
}

// SetControls applies u and returns the resulting values. Window and delay
// are clamped to their sliders; the delay is also snapped to the slider step.
// A control event is broadcast when anything changed.
func (d *Document) SetControls(ctx context.Context, u ControlUpdate) (Controls, error) {
	var out Controls
	err := d.call(ctx, func() {
		before := d.controls()
		if u.Plotting != nil {
			d.setPlotting(*u.Plotting)
		}
		if u.Window != nil {
			d.window = int(d.page.Window.Clamp(*u.Window))
		}
		if u.Delay != nil {
			d.delay.Replace(secondsToDuration(d.page.Delay.Clamp(*u.Delay)))
		}
		out = d.controls()
		if out != before {
			d.logger.Info("controls changed",
				logpkg.Bool("plotting", out.Plotting),
				logpkg.Int("window", out.Window),
				logpkg.Float("delay_s", out.Delay))
			c := out
			d.broadcast(Event{Type: EventControl, Controls: &c})
		}
	})
	return out, err
}

// SetPlotting toggles plotting for every plot and the sensor gate.
func (d *Document) SetPlotting(ctx context.Context, on bool) (Controls, error) {
	return d.SetControls(ctx, ControlUpdate{Plotting: &on})
}

// SetWindowWidth sets the number of rows each plot keeps. Rows beyond the
// new width are trimmed on each plot's next update.
func (d *Document) SetWindowWidth(ctx context.Context, n float64) (Controls, error) {
	return d.SetControls(ctx, ControlUpdate{Window: &n})
}

// SetSensorDelay sets the shared sensor delay in seconds.
func (d *Document) SetSensorDelay(ctx context.Context, seconds float64) (Controls, error) {
	return d.SetControls(ctx, ControlUpdate{Delay: &seconds})
}

func (d *Document) setPlotting(on bool) {
	d.plotting = on
	for _, p := range d.plots {
		p.plotting = on
	}
	if on {
		d.gate.Set()
	} else {
		d.gate.Clear()
	}
}

// PlotData returns a copy of one plot's rows.
func (d *Document) PlotData(ctx context.Context, id string) (PlotData, error) {
	var (
		out PlotData
		ok  bool
	)
	err := d.call(ctx, func() {
		var i int
		if i, ok = d.index[id]; ok {
			out = d.plots[i].data()
		}
	})
	if err != nil {
		return PlotData{}, err
	}
	if !ok {
		return PlotData{}, fmt.Errorf("%w: %s", ErrUnknownPlot, id)
	}
	return out, nil
}

// Stats returns per-plot and delivery counters.
func (d *Document) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	err := d.call(ctx, func() {
		for _, p := range d.plots {
			out.Plots = append(out.Plots, PlotStats{
				ID:        p.layout.ID,
				Title:     p.layout.Title,
				Rows:      p.source.Len(),
				Updates:   p.updates,
				Skipped:   p.skipped,
				Trimmed:   p.trimmed,
				Delivered: p.delivered,
				Dropped:   p.refused.Load() + p.overflowed,
			})
		}
		out.Subscribers = len(d.subs)
		out.EventsDelivered = d.goneDelivered
		out.EventsDropped = d.goneDropped
		for _, s := range d.subs {
			out.EventsDelivered += s.delivered.Load()
			out.EventsDropped += s.dropped.Load()
		}
	})
	out.LoopQueued = len(d.queue)
	out.LoopDropped = d.loopDropped.Load()
	return out, err
}

// Subscribe registers a new subscriber. Its first two events are the layout
// and a snapshot of every plot.
func (d *Document) Subscribe(ctx context.Context, opts SubscribeOptions) (*Subscription, error) {
	f, err := newSampleFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	buf := opts.Buffer
	if buf <= 0 {
		buf = d.subBuf
	}
	if buf < MinSubscriberBuffer {
		buf = MinSubscriberBuffer
	}
	s := &subscriber{id: uuid.New(), ch: make(chan Event, buf), filter: f}
	err = d.call(ctx, func() {
		snap := make([]PlotData, 0, len(d.plots))
		for _, p := range d.plots {
			snap = append(snap, p.data())
		}
		s.offer(Event{Type: EventLayout, Layout: d.layout()})
		s.offer(Event{Type: EventSnapshot, Plots: snap})
		d.subs[s.id] = s
		d.logger.Debug("subscriber added", logpkg.Str("subscription", s.id.String()), logpkg.Int("buffer", buf))
	})
	if err != nil {
		if !errors.Is(err, ErrClosed) {
			// the registration may still run after ctx gave up
			d.AddNextTickCallback(func() { d.removeSubscriber(s.id) })
		}
		return nil, err
	}
	return &Subscription{ID: s.id, Events: s.ch, doc: d, sub: s}, nil
}

func (d *Document) removeSubscriber(id uuid.UUID) {
	s, ok := d.subs[id]
	if !ok {
		return
	}
	delete(d.subs, id)
	d.goneDelivered += s.delivered.Load()
	d.goneDropped += s.dropped.Load()
	close(s.ch)
	d.logger.Debug("subscriber removed", logpkg.Str("subscription", id.String()), logpkg.Uint64("dropped", s.dropped.Load()))
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
