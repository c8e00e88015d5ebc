package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rzbill/livesense/internal/waveform"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Plots != 6 {
		t.Fatalf("plots default")
	}
	if cfg.Page.Columns != 3 {
		t.Fatalf("columns default")
	}
	if cfg.Page.Window.Value != 30 {
		t.Fatalf("window default: %v", cfg.Page.Window.Value)
	}
	if cfg.Page.Delay.Value != 0.015 {
		t.Fatalf("delay default: %v", cfg.Page.Delay.Value)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default should validate: %v", err)
	}
}

func TestSliderClamp(t *testing.T) {
	s := Slider{Start: 0.01, End: 0.25, Step: 0.005}
	cases := map[float64]float64{
		0:     0.01,
		1:     0.25,
		0.012: 0.01,
		0.013: 0.015,
		0.1:   0.1,
	}
	for in, want := range cases {
		if got := s.Clamp(in); got != want {
			t.Fatalf("Clamp(%v) = %v want %v", in, got, want)
		}
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "livesense.json")
	data := []byte(`{"plots":2,"page":{"title":"Bench","columns":2,"window":{"start":1,"end":50,"value":10,"step":1}},"recorder":{"enabled":false}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Plots != 2 || cfg.Page.Title != "Bench" || cfg.Page.Window.Value != 10 {
		t.Fatalf("unexpected cfg: %+v", cfg.Page)
	}
	if cfg.Recorder.Enabled {
		t.Fatalf("expected recorder disabled")
	}
	// untouched fields keep defaults
	if cfg.Plot.XAxisLabel != "TS" {
		t.Fatalf("expected default axis label")
	}
}

func TestLoadYAMLSensors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "livesense.yaml")
	data := []byte(`
plots: 2
sensors:
  - title: Custom
    channels:
      - key: y
        legend: "wobble(x)"
        kind: expr
        expr: "sin(x) * cos(x / 3.0)"
  - title: Duty
    channels:
      - key: y
        legend: "square(x)"
        kind: square
        params: {duty: 0.25}
`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Sensors) != 2 {
		t.Fatalf("expected 2 sensors, got %d", len(cfg.Sensors))
	}
	ch := cfg.Sensors[1].Channels[0]
	if ch.Kind != "square" || ch.Params["duty"] != 0.25 {
		t.Fatalf("unexpected channel: %+v", ch)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cfg := Default()
	cfg.Plots = 0
	cfg.Sensors = []SensorConfig{{Title: "bad", Channels: []ChannelConfig{{Key: "x"}}}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidateRejectsDuplicateChannelKeys(t *testing.T) {
	cfg := Default()
	cfg.Sensors = []SensorConfig{{Title: "twice", Channels: []ChannelConfig{
		{Key: "y", Spec: waveform.Spec{Kind: "sin"}},
		{Key: "y", Spec: waveform.Spec{Kind: "cos"}},
	}}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate key \"y\"") {
		t.Fatalf("expected duplicate key error, got %v", err)
	}

	cfg.Sensors[0].Channels[1].Key = "y1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("distinct keys should validate: %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("LIVESENSE_PLOTS", "4")
	t.Setenv("LIVESENSE_DELAY", "0.05")
	t.Setenv("LIVESENSE_RECORD", "false")
	t.Setenv("LIVESENSE_SUB_BUF", "999999")
	FromEnv(&cfg)
	if cfg.Plots != 4 {
		t.Fatalf("env override plots")
	}
	if cfg.Page.Delay.Value != 0.05 {
		t.Fatalf("env override delay")
	}
	if cfg.Recorder.Enabled {
		t.Fatalf("env override record")
	}
	if cfg.Stream.SubscriberBuffer != 65536 {
		t.Fatalf("expected sub buf cap, got %d", cfg.Stream.SubscriberBuffer)
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "livesense.json")
	if err := os.WriteFile(file, []byte(`{"page":{"window":{"start":1,"end":200,"value":30,"step":1}}}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Config, 4)
	go func() { _ = Watch(ctx, file, func(c Config) { got <- c }, nil) }()

	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(file, []byte(`{"page":{"window":{"start":1,"end":200,"value":75,"step":1}}}`), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	select {
	case c := <-got:
		if c.Page.Window.Value != 75 {
			t.Fatalf("expected reloaded window 75, got %v", c.Page.Window.Value)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for reload")
	}
}
