// Package runtime wires configuration, storage and the sensor pipeline into
// a single livesense instance. It exposes Open/Start/Close, a health check,
// and accessors used by the HTTP and gRPC servers.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Config: config.Default()})
//	defer rt.Close()
//	_ = rt.Start(ctx)
//	_ = rt.CheckHealth(ctx)
//	layout, _ := rt.Document().Layout(ctx)
package runtime
