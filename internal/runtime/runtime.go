package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cfgpkg "github.com/rzbill/livesense/internal/config"
	"github.com/rzbill/livesense/internal/dashboard"
	"github.com/rzbill/livesense/internal/recorder"
	"github.com/rzbill/livesense/internal/ring"
	"github.com/rzbill/livesense/internal/sensor"
	pebblestore "github.com/rzbill/livesense/internal/storage/pebble"
	logpkg "github.com/rzbill/livesense/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	// DataDir holds the recorder's Pebble store. Required when recording.
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        logpkg.Logger
}

// Runtime owns the event loop, the sensors and the optional recorder.
type Runtime struct {
	config cfgpkg.Config
	logger logpkg.Logger

	db       *pebblestore.DB
	recorder *recorder.Recorder
	delay    *ring.Stack[time.Duration]
	gate     *sensor.Gate
	sensors  []*sensor.Details
	doc      *dashboard.Document

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	consumers []*sensor.Consumer
}

// Open validates the configuration, opens storage when recording is enabled
// and lays out the page. Nothing runs until Start.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	r := &Runtime{config: cfg, logger: logger, gate: sensor.NewGate(cfg.Plotting)}
	r.delay = ring.New(1, time.Duration(0))

	sensors, err := sensor.Catalog(cfg.Sensors, cfg.Plots, r.delay)
	if err != nil {
		return nil, err
	}
	r.sensors = sensors

	if cfg.Recorder.Enabled {
		if opts.DataDir == "" {
			return nil, errors.New("runtime: DataDir is required when recording")
		}
		fsync := opts.Fsync
		if fsync == pebblestore.FsyncModeUnspecified {
			if fsync, err = pebblestore.ParseFsyncMode(cfg.Recorder.Fsync); err != nil {
				return nil, err
			}
		}
		metrics := recorder.NewMetrics()
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir:       opts.DataDir,
			Fsync:         fsync,
			FsyncInterval: opts.FsyncInterval,
			Metrics:       metrics,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		r.db = db
		r.recorder = recorder.New(recorder.Options{
			DB:           db,
			Retain:       cfg.Recorder.Retain,
			TrimInterval: time.Duration(cfg.Recorder.TrimIntervalMs) * time.Millisecond,
			Logger:       logger,
		})
	}

	r.doc = dashboard.New(dashboard.Options{
		Page:             cfg.Page,
		Plot:             cfg.Plot,
		Sensors:          sensors,
		Gate:             r.gate,
		Delay:            r.delay,
		Plotting:         cfg.Plotting,
		LoopQueue:        cfg.Stream.LoopQueue,
		SubscriberBuffer: cfg.Stream.SubscriberBuffer,
		Logger:           logger,
	})
	return r, nil
}

// Start launches the event loop, one producer and one consumer per plot,
// and the recorder's trimmer. Everything stops when ctx is done or on Close.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("runtime: already started")
	}
	r.started = true
	ctx, r.cancel = context.WithCancel(ctx)

	r.spawn(func() { _ = r.doc.Run(ctx) })
	ids := r.doc.PlotIDs()
	sensorLog := r.logger.WithComponent("sensor")
	for i, d := range r.sensors {
		popts := []sensor.ProducerOption{sensor.WithProducerLogger(sensorLog)}
		if sink := r.recorder.Sink(ctx, ids[i]); sink != nil {
			popts = append(popts, sensor.WithSink(sink))
		}
		p := sensor.NewProducer(d, r.gate, popts...)
		c := sensor.NewConsumer(p, r.doc.Target(i), r.doc.Scheduler(i), r.gate, sensorLog)
		r.consumers = append(r.consumers, c)
		r.spawn(func() { _ = p.Run(ctx) })
		r.spawn(func() { _ = c.Run(ctx) })
	}
	if r.recorder != nil {
		r.spawn(func() { _ = r.recorder.Run(ctx) })
	}
	r.logger.Info("runtime started",
		logpkg.Int("plots", len(r.sensors)),
		logpkg.Bool("plotting", r.gate.IsSet()),
		logpkg.Dur("delay", r.delay.Latest()),
		logpkg.Bool("recording", r.recorder != nil))
	return nil
}

func (r *Runtime) spawn(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
}

// Close stops all goroutines and closes storage.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// CheckHealth reports whether the event loop answers and storage is readable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if _, err := r.doc.Controls(ctx); err != nil {
		return fmt.Errorf("event loop: %w", err)
	}
	if r.recorder == nil {
		return nil
	}
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// ApplyConfig pushes the control values of a reloaded configuration onto the
// live page. Layout-affecting fields need a restart and are ignored.
func (r *Runtime) ApplyConfig(ctx context.Context, cfg cfgpkg.Config) (dashboard.Controls, error) {
	plotting := cfg.Plotting
	window := cfg.Page.Window.Value
	delay := cfg.Page.Delay.Value
	return r.doc.SetControls(ctx, dashboard.ControlUpdate{Plotting: &plotting, Window: &window, Delay: &delay})
}

// ConsumerStats sums scheduled and dropped hand-offs across consumers.
func (r *Runtime) ConsumerStats() (scheduled, dropped uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.consumers {
		scheduled += c.Scheduled()
		dropped += c.Dropped()
	}
	return scheduled, dropped
}

// Document returns the page model.
func (r *Runtime) Document() *dashboard.Document { return r.doc }

// Recorder returns the sample recorder, or nil when recording is disabled.
func (r *Runtime) Recorder() *recorder.Recorder { return r.recorder }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the process logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }
