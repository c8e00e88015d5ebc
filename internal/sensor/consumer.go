package sensor

import (
	"context"
	"sync/atomic"

	"github.com/rzbill/livesense/pkg/id"
	logpkg "github.com/rzbill/livesense/pkg/log"
)

// Scheduler queues a callback onto the UI event loop. It must not block;
// it returns false when the callback was not accepted.
type Scheduler interface {
	AddNextTickCallback(fn func()) bool
}

// Target receives samples on the event loop.
type Target interface {
	Update(Sample)
}

// Consumer hands a producer's newest sample to a Target via a Scheduler.
type Consumer struct {
	producer *Producer
	target   Target
	sched    Scheduler
	gate     *Gate
	logger   logpkg.Logger

	last      id.ID
	scheduled atomic.Uint64
	dropped   atomic.Uint64
}

// NewConsumer wires a producer to a target.
func NewConsumer(p *Producer, target Target, sched Scheduler, gate *Gate, logger logpkg.Logger) *Consumer {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	return &Consumer{producer: p, target: target, sched: sched, gate: gate, logger: logger}
}

// Tick performs one hand-off. Samples already handed over, and the zero-ID
// seed, are skipped.
func (c *Consumer) Tick() bool {
	if !c.gate.IsSet() {
		return false
	}
	s := c.producer.Read()
	if s.ID.IsZero() || s.ID == c.last {
		return false
	}
	c.last = s.ID
	if !c.sched.AddNextTickCallback(func() { c.target.Update(s) }) {
		n := c.dropped.Add(1)
		if n == 1 || n%1000 == 0 {
			c.logger.Warn("event loop saturated; dropping updates", logpkg.Str("sensor", c.producer.details.Title), logpkg.Uint64("dropped", n))
		}
		return false
	}
	c.scheduled.Add(1)
	return true
}

// Run hands off samples until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if !sleepCtx(ctx, c.producer.details.Delay.Latest()) {
			return nil
		}
		c.Tick()
	}
}

// Scheduled returns how many callbacks were accepted by the scheduler.
func (c *Consumer) Scheduled() uint64 { return c.scheduled.Load() }

// Dropped returns how many callbacks the scheduler refused.
func (c *Consumer) Dropped() uint64 { return c.dropped.Load() }
