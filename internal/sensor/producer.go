package sensor

import (
	"context"
	"math"
	"time"

	"github.com/rzbill/livesense/pkg/id"
	logpkg "github.com/rzbill/livesense/pkg/log"
)

// xScale divides elapsed milliseconds to get the sample position.
const xScale = 300.0

// Producer samples a sensor's waveforms into its Data stack.
type Producer struct {
	details *Details
	gate    *Gate
	ids     *id.Generator
	start   time.Time
	now     func() time.Time
	sink    func(Sample)
	logger  logpkg.Logger
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithSink registers fn to receive every produced sample (e.g. a recorder).
// fn runs on the producer goroutine.
func WithSink(fn func(Sample)) ProducerOption { return func(p *Producer) { p.sink = fn } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ProducerOption { return func(p *Producer) { p.now = now } }

// WithProducerLogger sets the logger.
func WithProducerLogger(l logpkg.Logger) ProducerOption {
	return func(p *Producer) { p.logger = l }
}

// NewProducer prepares a producer; the start time is taken now.
func NewProducer(d *Details, gate *Gate, opts ...ProducerOption) *Producer {
	p := &Producer{details: d, gate: gate, ids: id.NewGenerator(), now: time.Now}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	p.start = p.now()
	return p
}

// Details returns the sensor this producer feeds.
func (p *Producer) Details() *Details { return p.details }

// Read returns the newest sample.
func (p *Producer) Read() Sample { return p.details.Data.Latest() }

// Step computes one sample at the current time and appends it. It reports
// false when a channel produced NaN or Inf; nothing is appended then.
func (p *Producer) Step() (Sample, bool) {
	now := p.now()
	x := float64(now.Sub(p.start).Milliseconds()) / xScale
	s := Sample{X: x, Values: make(map[string]float64, len(p.details.Channels)), AtMs: now.UnixMilli()}
	for _, ch := range p.details.Channels {
		y := ch.Fn(x)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			p.logger.Debug("dropping non-finite sample", logpkg.Str("channel", ch.Key), logpkg.Float("x", x))
			return Sample{}, false
		}
		s.Values[ch.Key] = y
	}
	s.ID = p.ids.Next()
	p.details.Data.Append(s)
	if p.sink != nil {
		p.sink(s)
	}
	return s, true
}

// Run samples until ctx is done. While the gate is clear it keeps sleeping
// on the current delay without sampling.
func (p *Producer) Run(ctx context.Context) error {
	p.logger.Info("producer started", logpkg.Str("sensor", p.details.Title), logpkg.Int("channels", len(p.details.Channels)))
	defer p.logger.Info("producer stopped", logpkg.Str("sensor", p.details.Title))
	for {
		if !sleepCtx(ctx, p.details.Delay.Latest()) {
			return nil
		}
		if p.gate.IsSet() {
			p.Step()
		}
	}
}

// sleepCtx sleeps for d or until ctx is done; it reports whether ctx is still live.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
