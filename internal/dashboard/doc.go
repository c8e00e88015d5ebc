// Package dashboard holds the document model of the live page and the single
// event loop that owns it.
//
// All plot state (column sources, window width, plotting flags, subscriber
// registry) is touched only by the goroutine running Document.Run. Sensor
// consumers hand samples over with AddNextTickCallback, which never blocks;
// HTTP and gRPC handlers use the context-aware methods (SetControls, Layout,
// Subscribe, ...) which post a closure and wait for it to run.
//
// Subscribers receive a layout event, then a snapshot of every plot, then
// sample and control events as they happen. Each subscriber has a bounded
// queue; when it is full the oldest queued event is discarded.
package dashboard
