// Package sensor implements the synthetic sensors that feed the dashboard.
//
// Each sensor is a pair of goroutines joined by a ring.Stack:
//
//	Producer --Append--> Details.Data (ring.Stack, cap 3) --Latest--> Consumer --AddNextTickCallback--> event loop
//
// The producer samples its waveform functions every Delay.Latest() and
// appends the result; the consumer wakes on the same delay, reads the newest
// sample and schedules a plot update onto the single-threaded event loop.
// Neither side ever waits for the other. A shared Gate pauses both.
package sensor
