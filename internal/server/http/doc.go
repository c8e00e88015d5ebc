// Package httpserver is the browser-facing transport: JSON endpoints for the
// layout, controls, plots and history, an SSE event stream, PNG snapshots,
// and the embedded dashboard UI.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Config: config.Default()})
//	_ = rt.Start(ctx)
//	s := httpserver.New(rt, logger)
//	s.SetUIBase("/ui/")
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
