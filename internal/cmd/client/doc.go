// Package client provides the `livesense` command-line client.
//
// The CLI talks to a running dashboard over HTTP (plots, control, history)
// and gRPC (tail, control --grpc).
//
// # Address configuration
//
// The HTTP base URL comes from the embedding application via a BaseURLFunc;
// the standalone binary reads LIVESENSE_HTTP (default http://127.0.0.1:8080).
// The gRPC address is read from LIVESENSE_GRPC (default 127.0.0.1:50051).
//
// Usage
//
//	livesense plots
//	livesense control --plotting off
//	livesense control --window 120 --delay 0.05
//	livesense history 1-simple-sin-wave --limit 20
//
//	# Stream events as JSON lines; stop after 10 samples
//	livesense tail --filter 'plot == "0-cos-sine-waves" && values["y1"] > 0.5' --limit 10
package client
