// Package waveform holds the synthetic signal functions that stand in for
// real sensors: cosine, sine, sawtooth, square, frequency chirps, polynomial
// sweeps, and user-supplied CEL expressions over x.
//
// Example:
//
//	fn, err := waveform.Lookup(waveform.Spec{Kind: "chirp", Method: "linear", Params: map[string]float64{"f0": 6, "f1": 1, "t1": 10}})
//	if err != nil { /* handle */ }
//	y := fn(1.5)
//
//	custom, _ := waveform.Lookup(waveform.Spec{Kind: "expr", Expr: "sin(x) * cos(x / 3.0)"})
package waveform
