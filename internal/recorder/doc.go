// Package recorder keeps a bounded history of every plot's samples in Pebble.
//
// Each plot has its own append-only log. Keys sort lexicographically:
//   - plots/{id}/m           (log metadata: last sequence)
//   - plots/{id}/e/{seq_be8} (entries)
//
// Entries are framed as varint(headerLen) | header | payload | crc32c, where
// the header is the sample's wall-clock ms (8 bytes BE) and the payload is
// the msgpack-encoded sensor.Sample. A background trimmer keeps the newest
// Retain entries per plot.
//
//	rec := recorder.New(recorder.Options{DB: db, Retain: 2000})
//	go rec.Run(ctx)
//	_, _ = rec.Append(ctx, "0-cos-sine-waves", sample)
//	recent, _ := rec.Recent("0-cos-sine-waves", 100)
package recorder
