// Package config provides loading, environment overlay and live reload for
// livesense configuration: page and plot layout defaults, the sensor
// catalog, recorder retention and subscriber buffering.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/livesense.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { /* handle */ }
//
//	// Apply control changes whenever the file is edited
//	go config.Watch(ctx, "/etc/livesense.yaml", func(c config.Config) { /* apply */ }, nil)
package config
