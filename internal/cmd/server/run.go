package serverrun

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	cfgpkg "github.com/rzbill/livesense/internal/config"
	"github.com/rzbill/livesense/internal/runtime"
	grpcserver "github.com/rzbill/livesense/internal/server/grpc"
	httpserver "github.com/rzbill/livesense/internal/server/http"
	pebblestore "github.com/rzbill/livesense/internal/storage/pebble"
	logpkg "github.com/rzbill/livesense/pkg/log"
)

// Options configures Run.
type Options struct {
	DataDir  string
	GRPCAddr string // empty disables gRPC
	HTTPAddr string
	UIBase   string
	// ConfigPath, when set, is watched and control values are applied live.
	ConfigPath string
	// LogLevelPinned keeps the startup log level across reloads, set when
	// the level came from the command line.
	LogLevelPinned bool
	Fsync          pebblestore.FsyncMode
	FsyncInterval  time.Duration
	Config         cfgpkg.Config
	// Ready, if set, is called once both listeners are bound.
	Ready func(httpAddr, grpcAddr string)
}

// Run starts the runtime with gRPC and HTTP servers and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	storeDir := filepath.Join(opts.DataDir, "store")

	procLogger := buildLogger(&opts.Config.Log)
	// Pebble and net/http log through the stdlib logger
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{
		DataDir:       storeDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
		Logger:        procLogger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.Start(sctx); err != nil {
		return err
	}

	hl, err := net.Listen("tcp", opts.HTTPAddr)
	if err != nil {
		return err
	}
	var gl net.Listener
	if opts.GRPCAddr != "" {
		if gl, err = net.Listen("tcp", opts.GRPCAddr); err != nil {
			_ = hl.Close()
			return err
		}
	}

	procLogger.Info("starting livesense server",
		logpkg.Str("http", hl.Addr().String()),
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("ui_base", opts.UIBase),
		logpkg.Int("plots", opts.Config.Plots),
		logpkg.Bool("record", opts.Config.Recorder.Enabled),
		logpkg.Str("level", opts.Config.Log.Level),
		logpkg.Str("format", opts.Config.Log.Format),
	)

	hsrv := httpserver.New(rt, procLogger)
	if opts.UIBase != "" {
		hsrv.SetUIBase(opts.UIBase)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.Serve(sctx, hl); err != nil && !errors.Is(err, net.ErrClosed) && sctx.Err() == nil {
			procLogger.Error("http server failed", logpkg.Err(err))
		}
	}()

	var gsrv *grpcserver.Server
	grpcAddr := ""
	if gl != nil {
		gsrv = grpcserver.New(rt, procLogger)
		grpcAddr = gl.Addr().String()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gsrv.Serve(sctx, gl); err != nil && sctx.Err() == nil {
				procLogger.Error("grpc server failed", logpkg.Err(err))
			}
		}()
	}

	if opts.ConfigPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			watchConfig(sctx, opts.ConfigPath, rt, procLogger, opts.LogLevelPinned)
		}()
	}

	if opts.Ready != nil {
		opts.Ready(hl.Addr().String(), grpcAddr)
	}

	<-sctx.Done()
	// stop transports before the runtime closes the store
	if gsrv != nil {
		gsrv.Close()
	}
	hsrv.Close()
	wg.Wait()
	return nil
}

// buildLogger applies cfg, falling back to a text logger at the parsed level.
func buildLogger(cfg *logpkg.Config) logpkg.Logger {
	l, err := logpkg.ApplyConfig(cfg)
	if err == nil {
		return l
	}
	lvl := logpkg.InfoLevel
	if parsed, e := logpkg.ParseLevel(cfg.Level); e == nil {
		lvl = parsed
	}
	return logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}), logpkg.WithOutput(logpkg.NewConsoleOutput()))
}

// watchConfig applies control values and the log level from path on every change.
// cfg arrives with the environment already applied.
func watchConfig(ctx context.Context, path string, rt *runtime.Runtime, logger logpkg.Logger, pinned bool) {
	logger = logger.WithComponent("config")
	err := cfgpkg.Watch(ctx, path, func(cfg cfgpkg.Config) {
		reloadLogLevel(logger, cfg.Log.Level, pinned)
		c, err := rt.ApplyConfig(ctx, cfg)
		if err != nil {
			logger.Warn("apply reloaded config", logpkg.Err(err))
			return
		}
		logger.Info("config reloaded",
			logpkg.Bool("plotting", c.Plotting),
			logpkg.Int("window", c.Window),
			logpkg.Float("delay", c.Delay))
	}, func(err error) {
		logger.Warn("config reload failed", logpkg.Str("path", path), logpkg.Err(err))
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("config watch stopped", logpkg.Err(err))
	}
}

// reloadLogLevel sets the level from a reloaded config unless it is pinned.
func reloadLogLevel(logger logpkg.Logger, level string, pinned bool) {
	if pinned {
		return
	}
	if lvl, err := logpkg.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
}
