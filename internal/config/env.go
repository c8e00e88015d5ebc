package config

import (
	"os"
	"strconv"
)

// FromEnv overlays LIVESENSE_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("LIVESENSE_PLOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Plots = n
		}
	}
	if v := os.Getenv("LIVESENSE_PAGE_TITLE"); v != "" {
		cfg.Page.Title = v
	}
	if v := os.Getenv("LIVESENSE_COLUMNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Page.Columns = n
		}
	}
	if v := os.Getenv("LIVESENSE_WINDOW"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Page.Window.Value = f
		}
	}
	if v := os.Getenv("LIVESENSE_DELAY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Page.Delay.Value = f
		}
	}
	if v := os.Getenv("LIVESENSE_PLOTTING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Plotting = b
		}
	}
	if v := os.Getenv("LIVESENSE_RECORD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Recorder.Enabled = b
		}
	}
	if v := os.Getenv("LIVESENSE_RECORD_RETAIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Recorder.Retain = n
		}
	}
	if v := os.Getenv("LIVESENSE_SUB_BUF"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			if n > 65536 {
				n = 65536
			}
			cfg.Stream.SubscriberBuffer = n
		}
	}
	if v := os.Getenv("LIVESENSE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LIVESENSE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
