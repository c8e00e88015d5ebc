package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/rzbill/livesense/internal/waveform"
	logpkg "github.com/rzbill/livesense/pkg/log"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// Plots is the number of plots on the page; sensors are taken cyclically.
	Plots    int            `json:"plots" yaml:"plots"`
	Page     PageConfig     `json:"page" yaml:"page"`
	Plot     PlotConfig     `json:"plot" yaml:"plot"`
	Sensors  []SensorConfig `json:"sensors,omitempty" yaml:"sensors,omitempty"`
	Recorder RecorderConfig `json:"recorder" yaml:"recorder"`
	Stream   StreamConfig   `json:"stream" yaml:"stream"`
	Log      logpkg.Config  `json:"log" yaml:"log"`
	// Plotting is the initial state of the "Enable Plotting" control.
	Plotting bool `json:"plotting" yaml:"plotting"`
}

// Slider describes a bounded, stepped control.
type Slider struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Value float64 `json:"value" yaml:"value"`
	Step  float64 `json:"step" yaml:"step"`
}

// Clamp bounds v to [Start, End] and snaps it to the nearest step.
func (s Slider) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return s.Start
	}
	if v < s.Start {
		v = s.Start
	}
	if v > s.End {
		v = s.End
	}
	if s.Step > 0 {
		n := math.Round((v - s.Start) / s.Step)
		v = s.Start + n*s.Step
		if v > s.End {
			v -= s.Step
		}
		// trim float noise from the multiply
		v = math.Round(v*1e9) / 1e9
	}
	return v
}

// PageConfig holds the parent canvas defaults.
type PageConfig struct {
	Title       string `json:"title" yaml:"title"`
	TitleColour string `json:"titleColour" yaml:"titleColour"`
	TitleWidth  int    `json:"titleWidth" yaml:"titleWidth"`
	TitleHeight int    `json:"titleHeight" yaml:"titleHeight"`
	Theme       string `json:"theme" yaml:"theme"`
	Columns     int    `json:"columns" yaml:"columns"`
	// Window is how many points each plot scrolls through.
	Window Slider `json:"window" yaml:"window"`
	// Delay is the sensor update delay in seconds.
	Delay Slider `json:"delay" yaml:"delay"`
}

// PlotConfig holds per-plot defaults.
type PlotConfig struct {
	Tools      string   `json:"tools" yaml:"tools"`
	XAxisLabel string   `json:"xAxisLabel" yaml:"xAxisLabel"`
	YAxisLabel string   `json:"yAxisLabel" yaml:"yAxisLabel"`
	Width      int      `json:"width" yaml:"width"`
	Height     int      `json:"height" yaml:"height"`
	Palette    []string `json:"palette" yaml:"palette"`
}

// SensorConfig describes one synthetic sensor and its series.
type SensorConfig struct {
	Title    string          `json:"title" yaml:"title"`
	Channels []ChannelConfig `json:"channels" yaml:"channels"`
}

// ChannelConfig is one y series of a sensor.
type ChannelConfig struct {
	Key           string `json:"key" yaml:"key"`
	Legend        string `json:"legend" yaml:"legend"`
	waveform.Spec `yaml:",inline"`
}

// RecorderConfig controls sample history persistence.
type RecorderConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Retain is the number of samples kept per plot.
	Retain int `json:"retain" yaml:"retain"`
	// TrimIntervalMs is how often the trimmer runs.
	TrimIntervalMs int `json:"trimIntervalMs" yaml:"trimIntervalMs"`
	// Fsync is the WAL sync policy: always, interval or never.
	Fsync string `json:"fsync" yaml:"fsync"`
}

// StreamConfig tunes event delivery.
type StreamConfig struct {
	// SubscriberBuffer is the per-subscriber event queue length.
	SubscriberBuffer int `json:"subscriberBuffer" yaml:"subscriberBuffer"`
	// LoopQueue is the event loop's callback queue length.
	LoopQueue int `json:"loopQueue" yaml:"loopQueue"`
}

// Dark2_5 is the default series palette.
var Dark2_5 = []string{"#1b9e77", "#d95f02", "#7570b3", "#e7298a", "#66a61e"}

// Default returns built-in defaults.
func Default() Config {
	const plots = 6
	cfg := Config{
		Plots:    plots,
		Plotting: true,
		Page: PageConfig{
			Title:       "Real Time Sensor Data",
			TitleColour: "white",
			TitleWidth:  1000,
			TitleHeight: 75,
			Theme:       "dark_minimal",
			Columns:     3,
			Window:      Slider{Start: 1, End: 200, Value: 30, Step: 1},
			Delay:       Slider{Start: 0.01, End: 0.25, Value: 0.0025 * plots, Step: 0.005},
		},
		Plot: PlotConfig{
			Tools:      "box_zoom,pan,wheel_zoom,reset",
			XAxisLabel: "TS",
			YAxisLabel: "Value",
			Width:      1000,
			Height:     500,
			Palette:    append([]string(nil), Dark2_5...),
		},
		Recorder: RecorderConfig{Enabled: true, Retain: 2000, TrimIntervalMs: 1000, Fsync: "never"},
		Stream:   StreamConfig{SubscriberBuffer: 256, LoopQueue: 1024},
		Log:      logpkg.Config{Level: "info", Format: "text"},
	}
	cfg.Page.Delay.Value = cfg.Page.Delay.Clamp(cfg.Page.Delay.Value)
	return cfg
}

// Load reads configuration from a JSON or YAML file (by extension) on top of
// Default. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate checks ranges and normalises slider values in place.
func (c *Config) Validate() error {
	var errs []error
	if c.Plots < 1 {
		errs = append(errs, fmt.Errorf("plots must be >= 1, got %d", c.Plots))
	}
	if c.Page.Columns < 1 {
		errs = append(errs, fmt.Errorf("page.columns must be >= 1, got %d", c.Page.Columns))
	}
	if c.Page.Window.Start < 1 || c.Page.Window.End < c.Page.Window.Start {
		errs = append(errs, fmt.Errorf("page.window range [%v, %v] invalid", c.Page.Window.Start, c.Page.Window.End))
	}
	if c.Page.Delay.Start <= 0 || c.Page.Delay.End < c.Page.Delay.Start {
		errs = append(errs, fmt.Errorf("page.delay range [%v, %v] invalid", c.Page.Delay.Start, c.Page.Delay.End))
	}
	if len(c.Plot.Palette) == 0 {
		c.Plot.Palette = append([]string(nil), Dark2_5...)
	}
	for i, s := range c.Sensors {
		if len(s.Channels) == 0 {
			errs = append(errs, fmt.Errorf("sensors[%d] %q has no channels", i, s.Title))
		}
		seen := make(map[string]bool, len(s.Channels))
		for j, ch := range s.Channels {
			if ch.Key == "" || ch.Key == "x" {
				errs = append(errs, fmt.Errorf("sensors[%d].channels[%d]: key must be set and not \"x\"", i, j))
			} else if seen[ch.Key] {
				errs = append(errs, fmt.Errorf("sensors[%d].channels[%d]: duplicate key %q", i, j, ch.Key))
			}
			seen[ch.Key] = true
			if _, err := waveform.Lookup(ch.Spec); err != nil {
				errs = append(errs, fmt.Errorf("sensors[%d].channels[%d]: %w", i, j, err))
			}
		}
	}
	if c.Recorder.Retain < 1 {
		c.Recorder.Retain = 1
	}
	if c.Recorder.TrimIntervalMs <= 0 {
		c.Recorder.TrimIntervalMs = 1000
	}
	switch c.Recorder.Fsync {
	case "", "always", "interval", "never":
	default:
		errs = append(errs, fmt.Errorf("recorder.fsync must be always, interval or never, got %q", c.Recorder.Fsync))
	}
	if c.Stream.SubscriberBuffer < 1 {
		c.Stream.SubscriberBuffer = 1
	}
	if c.Stream.LoopQueue < 1 {
		c.Stream.LoopQueue = 1
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	c.Page.Window.Value = c.Page.Window.Clamp(c.Page.Window.Value)
	c.Page.Delay.Value = c.Page.Delay.Clamp(c.Page.Delay.Value)
	return nil
}
