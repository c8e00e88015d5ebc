package recorder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rzbill/livesense/internal/sensor"
	pebblestore "github.com/rzbill/livesense/internal/storage/pebble"
	logpkg "github.com/rzbill/livesense/pkg/log"
)

// ErrDisabled is returned by every method of a nil Recorder.
var ErrDisabled = errors.New("recorder: disabled")

// Options configures a Recorder.
type Options struct {
	DB           *pebblestore.DB
	Retain       int
	TrimInterval time.Duration
	Logger       logpkg.Logger
}

// Recorder persists samples per plot. A nil *Recorder is valid and reports
// ErrDisabled.
type Recorder struct {
	db       *pebblestore.DB
	retain   int
	interval time.Duration
	metrics  *Metrics
	logger   logpkg.Logger

	mu   sync.Mutex
	logs map[string]*plotLog

	appended   atomic.Uint64
	trimmed    atomic.Uint64
	failures   atomic.Uint64
	lastTrimNs atomic.Int64
}

// New creates a Recorder on an open store. Storage counters in Stats are
// read from the store's hook, so open the store with NewMetrics to get them.
func New(opts Options) *Recorder {
	if opts.Retain < 1 {
		opts.Retain = 2000
	}
	if opts.TrimInterval <= 0 {
		opts.TrimInterval = time.Second
	}
	metrics, ok := opts.DB.Metrics().(*Metrics)
	if !ok {
		metrics = &Metrics{}
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	return &Recorder{
		db:       opts.DB,
		retain:   opts.Retain,
		interval: opts.TrimInterval,
		metrics:  metrics,
		logger:   opts.Logger.WithComponent("recorder"),
		logs:     make(map[string]*plotLog),
	}
}

func (r *Recorder) log(plot string) (*plotLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.logs[plot]; ok {
		return l, nil
	}
	l, err := openLog(r.db, plot)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", plot, err)
	}
	r.logs[plot] = l
	return l, nil
}

// Append stores s at the end of plot's log and returns its sequence.
func (r *Recorder) Append(ctx context.Context, plot string, s sensor.Sample) (uint64, error) {
	if r == nil {
		return 0, ErrDisabled
	}
	l, err := r.log(plot)
	if err != nil {
		return 0, err
	}
	payload, err := msgpack.Marshal(&s)
	if err != nil {
		return 0, fmt.Errorf("encode sample: %w", err)
	}
	seq, err := l.append(ctx, tsHeader(s.AtMs), payload)
	if err != nil {
		r.failures.Add(1)
		return 0, fmt.Errorf("append %s: %w", plot, err)
	}
	r.appended.Add(1)
	return seq, nil
}

// Sink returns a function suitable for sensor.WithSink that records into
// plot. Errors are logged, not returned, since the producer cannot act on them.
func (r *Recorder) Sink(ctx context.Context, plot string) func(sensor.Sample) {
	if r == nil {
		return nil
	}
	return func(s sensor.Sample) {
		if _, err := r.Append(ctx, plot, s); err != nil && ctx.Err() == nil {
			r.logger.Warn("record sample failed", logpkg.Str("plot", plot), logpkg.Err(err))
		}
	}
}

// Recent returns up to n of the newest samples of plot, oldest first.
// Unknown plots yield an empty slice.
func (r *Recorder) Recent(plot string, n int) ([]sensor.Sample, error) {
	if r == nil {
		return nil, ErrDisabled
	}
	l, err := r.log(plot)
	if err != nil {
		return nil, err
	}
	entries, err := l.last(n)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", plot, err)
	}
	out := make([]sensor.Sample, 0, len(entries))
	for _, e := range entries {
		var s sensor.Sample
		if err := msgpack.Unmarshal(e.Payload, &s); err != nil {
			r.logger.Debug("skipping undecodable sample", logpkg.Str("plot", plot), logpkg.Uint64("seq", e.Seq), logpkg.Err(err))
			continue
		}
		if s.AtMs == 0 {
			s.AtMs, _ = tsFromHeader(e.Header)
		}
		out = append(out, s)
	}
	return out, nil
}

// TrimToMax deletes plot's oldest samples so at most keep remain.
func (r *Recorder) TrimToMax(ctx context.Context, plot string, keep int) (int, error) {
	if r == nil {
		return 0, ErrDisabled
	}
	l, err := r.log(plot)
	if err != nil {
		return 0, err
	}
	n, err := l.trimToMax(ctx, keep)
	if err != nil {
		return 0, fmt.Errorf("trim %s: %w", plot, err)
	}
	r.trimmed.Add(uint64(n))
	return n, nil
}

// Plots returns the ids of plots written or read since start, sorted.
func (r *Recorder) Plots() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for id := range r.logs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// TrimAll trims every known plot to the retain limit.
func (r *Recorder) TrimAll(ctx context.Context) (int, error) {
	if r == nil {
		return 0, ErrDisabled
	}
	var (
		total int
		errs  []error
	)
	for _, plot := range r.Plots() {
		n, err := r.TrimToMax(ctx, plot, r.retain)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	r.lastTrimNs.Store(time.Now().UnixNano())
	return total, errors.Join(errs...)
}

// Run trims on every interval until ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	if r == nil {
		return ErrDisabled
	}
	r.logger.Info("trimmer started", logpkg.Int("retain", r.retain), logpkg.Dur("interval", r.interval))
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := r.TrimAll(ctx)
			if err != nil && ctx.Err() == nil {
				r.logger.Warn("trim failed", logpkg.Err(err))
			}
			if n > 0 {
				r.logger.Debug("trimmed samples", logpkg.Int("deleted", n))
			}
		}
	}
}

// Stats reports recorder counters.
type Stats struct {
	Enabled      bool      `json:"enabled"`
	Retain       int       `json:"retain"`
	Plots        int       `json:"plots"`
	Appended     uint64    `json:"appended"`
	Trimmed      uint64    `json:"trimmed"`
	Failures     uint64    `json:"failures"`
	Commits      uint64    `json:"commits"`
	BytesWritten uint64    `json:"bytesWritten"`
	BytesRead    uint64    `json:"bytesRead"`
	LastTrim     time.Time `json:"lastTrim,omitempty"`
}

// Stats returns a snapshot of the counters.
func (r *Recorder) Stats() Stats {
	if r == nil {
		return Stats{}
	}
	st := Stats{
		Enabled:      true,
		Retain:       r.retain,
		Plots:        len(r.Plots()),
		Appended:     r.appended.Load(),
		Trimmed:      r.trimmed.Load(),
		Failures:     r.failures.Load(),
		Commits:      r.metrics.commits.Load(),
		BytesWritten: r.metrics.bytesWritten.Load(),
		BytesRead:    r.metrics.bytesRead.Load(),
	}
	if ns := r.lastTrimNs.Load(); ns > 0 {
		st.LastTrim = time.Unix(0, ns)
	}
	return st
}

// Metrics implements pebblestore.MetricsHook with counters.
type Metrics struct {
	commits      atomic.Uint64
	bytesWritten atomic.Uint64
	bytesRead    atomic.Uint64
}

var _ pebblestore.MetricsHook = (*Metrics)(nil)

// NewMetrics returns the hook to pass to pebblestore.Open for a store the
// recorder will write to.
func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) ObserveRead(_ time.Duration, bytes int) { m.bytesRead.Add(uint64(bytes)) }

func (m *Metrics) ObserveBatchCommit(_ time.Duration, _ int, bytes int) {
	m.commits.Add(1)
	m.bytesWritten.Add(uint64(bytes))
}
