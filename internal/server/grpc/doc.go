// Package grpcserver hosts the gRPC transport: the standard grpc.health.v1
// service and livesense.v1.Dashboard, both backed by the shared runtime.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Config: config.Default()})
//	_ = rt.Start(ctx)
//	s := grpcserver.New(rt, logger)
//	_ = s.ListenAndServe(ctx, ":50051")
package grpcserver
