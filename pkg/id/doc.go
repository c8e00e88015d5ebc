// Package id provides 128-bit, lexicographically sortable sample identifiers.
//
// An ID is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence].
// Byte-wise comparison preserves production order, which lets the SSE
// transport hand IDs to browsers as Last-Event-ID values and resume from
// them later.
//
// The Generator is monotonic per process: a regressing wall clock pins to the
// last seen millisecond and bumps the sequence instead.
//
//	g := id.NewGenerator()
//	v := g.Next()
//	s := v.String()          // 32 hex chars
//	back, _ := id.Parse(s)   // back == v
package id
