package serverrun

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/livesense/internal/config"
	"github.com/rzbill/livesense/internal/dashboard"
	pebblestore "github.com/rzbill/livesense/internal/storage/pebble"
	logpkg "github.com/rzbill/livesense/pkg/log"
)

func testConfig() cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfg.Plots = 2
	cfg.Log = logpkg.Config{Level: "error", Format: "text", Outputs: []string{"null"}}
	return cfg
}

type readyAddrs struct{ http, grpc string }

// startRun runs Run in the background and waits for the listeners.
func startRun(t *testing.T, opts Options) (readyAddrs, context.CancelFunc) {
	t.Helper()
	ready := make(chan readyAddrs, 1)
	opts.Ready = func(h, g string) { ready <- readyAddrs{h, g} }
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, opts) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("run did not stop")
		}
	})
	select {
	case a := <-ready:
		return a, cancel
	case err := <-done:
		t.Fatalf("run exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("server never became ready")
	}
	return readyAddrs{}, cancel
}

func getControls(t *testing.T, base string) dashboard.Controls {
	t.Helper()
	resp, err := http.Get(base + "/v1/controls")
	if err != nil {
		t.Fatalf("get controls: %v", err)
	}
	defer resp.Body.Close()
	var c dashboard.Controls
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return c
}

func TestRunServesHTTPAndGRPC(t *testing.T) {
	addrs, _ := startRun(t, Options{
		DataDir:  t.TempDir(),
		HTTPAddr: "127.0.0.1:0",
		GRPCAddr: "127.0.0.1:0",
		Fsync:    pebblestore.FsyncModeNever,
		Config:   testConfig(),
	})
	if addrs.grpc == "" {
		t.Fatalf("grpc listener not reported")
	}
	resp, err := http.Get("http://" + addrs.http + "/v1/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}
}

func TestRunWithoutGRPC(t *testing.T) {
	cfg := testConfig()
	cfg.Recorder.Enabled = false
	addrs, _ := startRun(t, Options{DataDir: t.TempDir(), HTTPAddr: "127.0.0.1:0", Config: cfg})
	if addrs.grpc != "" {
		t.Fatalf("grpc should be disabled, got %q", addrs.grpc)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Plots = 0
	err := Run(context.Background(), Options{DataDir: t.TempDir(), HTTPAddr: "127.0.0.1:0", Config: cfg})
	if err == nil {
		t.Fatalf("expected config error")
	}
}

func TestRunReloadsControlsFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livesense.yaml")
	if err := os.WriteFile(path, []byte("page:\n  window:\n    start: 1\n    end: 200\n    value: 30\n    step: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	addrs, _ := startRun(t, Options{
		DataDir:    dir,
		HTTPAddr:   "127.0.0.1:0",
		ConfigPath: path,
		Fsync:      pebblestore.FsyncModeNever,
		Config:     testConfig(),
	})
	base := "http://" + addrs.http
	if c := getControls(t, base); c.Window != 30 {
		t.Fatalf("initial window %d", c.Window)
	}

	// give the watcher a moment to register before the write
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("plots: 2\npage:\n  window:\n    start: 1\n    end: 200\n    value: 75\n    step: 1\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if c := getControls(t, base); c.Window == 75 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("window never reloaded")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestReloadKeepsPinnedLogLevel(t *testing.T) {
	base := logpkg.NewLogger(logpkg.WithLevel(logpkg.WarnLevel), logpkg.WithOutput(logpkg.NullOutput{}))
	logger := base.WithComponent("config")

	reloadLogLevel(logger, "debug", true)
	if got := base.GetLevel(); got != logpkg.WarnLevel {
		t.Fatalf("pinned level changed to %v", got)
	}

	reloadLogLevel(logger, "debug", false)
	if got := base.GetLevel(); got != logpkg.DebugLevel {
		t.Fatalf("level = %v, want debug", got)
	}

	reloadLogLevel(logger, "nonsense", false)
	if got := base.GetLevel(); got != logpkg.DebugLevel {
		t.Fatalf("bad level applied: %v", got)
	}
}
