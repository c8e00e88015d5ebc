package runtime

import (
	"context"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/livesense/internal/config"
	pebblestore "github.com/rzbill/livesense/internal/storage/pebble"
)

func openRuntime(t *testing.T, mutate func(*cfgpkg.Config)) *Runtime {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Plots = 2
	cfg.Page.Delay = cfgpkg.Slider{Start: 0.001, End: 0.25, Value: 0.001, Step: 0.001}
	if mutate != nil {
		mutate(&cfg)
	}
	rt, err := Open(Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever, Config: cfg})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestOpenStartHealth(t *testing.T) {
	rt := openRuntime(t, nil)
	ctx := context.Background()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := rt.Start(ctx); err == nil {
		t.Fatalf("expected second Start to fail")
	}
	if err := rt.CheckHealth(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
	ids := rt.Document().PlotIDs()
	if len(ids) != 2 || ids[0] != "0-cos-sine-waves" {
		t.Fatalf("unexpected plot ids %v", ids)
	}
}

func TestPipelineFillsPlotsAndHistory(t *testing.T) {
	rt := openRuntime(t, nil)
	ctx := context.Background()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	id := rt.Document().PlotIDs()[1]
	deadline := time.Now().Add(3 * time.Second)
	for {
		pd, err := rt.Document().PlotData(ctx, id)
		if err != nil {
			t.Fatalf("plot data: %v", err)
		}
		hist, err := rt.Recorder().Recent(id, 10)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if pd.Rows() > 3 && len(hist) > 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pipeline did not produce data: rows=%d history=%d", pd.Rows(), len(hist))
		}
		time.Sleep(10 * time.Millisecond)
	}
	if scheduled, _ := rt.ConsumerStats(); scheduled == 0 {
		t.Fatalf("expected consumers to schedule updates")
	}
}

func TestRecorderDisabled(t *testing.T) {
	rt := openRuntime(t, func(c *cfgpkg.Config) { c.Recorder.Enabled = false })
	if rt.Recorder() != nil {
		t.Fatalf("expected nil recorder")
	}
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestApplyConfig(t *testing.T) {
	rt := openRuntime(t, nil)
	ctx := context.Background()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	cfg := rt.Config()
	cfg.Plotting = false
	cfg.Page.Window.Value = 12
	c, err := rt.ApplyConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if c.Plotting || c.Window != 12 {
		t.Fatalf("unexpected controls %+v", c)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Plots = 0
	if _, err := Open(Options{DataDir: t.TempDir(), Config: cfg}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestHealthFailsAfterClose(t *testing.T) {
	rt := openRuntime(t, nil)
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err == nil {
		t.Fatalf("expected health failure after close")
	}
}
