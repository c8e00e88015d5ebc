package waveform

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Func maps a sample position to a value.
type Func func(x float64) float64

// ErrUnknownWaveform is returned by Lookup for an unrecognised kind.
var ErrUnknownWaveform = errors.New("waveform: unknown kind")

// Spec selects and parameterises a waveform. Params not used by a kind are ignored.
type Spec struct {
	Kind   string             `json:"kind" yaml:"kind"`
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
	// Method selects the chirp frequency law: linear, quadratic, logarithmic, hyperbolic.
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
	// Poly holds sweep polynomial coefficients, highest order first.
	Poly []float64 `json:"poly,omitempty" yaml:"poly,omitempty"`
	// Expr is a CEL expression over the double variable x.
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`
}

func (s Spec) param(name string, def float64) float64 {
	if v, ok := s.Params[name]; ok {
		return v
	}
	return def
}

// Defaults used by the stock sensor catalog.
var (
	DefaultChirp = Spec{Kind: "chirp", Method: "linear", Params: map[string]float64{"f0": 6, "f1": 1, "t1": 10}}
	DefaultSweep = Spec{Kind: "sweep", Poly: []float64{0.025, -0.36, 1.25, 2.0}}
)

// Lookup resolves a Spec to a Func.
func Lookup(s Spec) (Func, error) {
	switch strings.ToLower(strings.TrimSpace(s.Kind)) {
	case "cos":
		return math.Cos, nil
	case "sin":
		return math.Sin, nil
	case "sawtooth":
		w := s.param("width", 1)
		if w < 0 || w > 1 {
			return nil, fmt.Errorf("waveform: sawtooth width %v outside [0,1]", w)
		}
		return func(x float64) float64 { return Sawtooth(x, w) }, nil
	case "square":
		d := s.param("duty", 0.5)
		if d < 0 || d > 1 {
			return nil, fmt.Errorf("waveform: square duty %v outside [0,1]", d)
		}
		return func(x float64) float64 { return Square(x, d) }, nil
	case "chirp":
		method := s.Method
		if method == "" {
			method = "linear"
		}
		f0, t1, f1 := s.param("f0", 6), s.param("t1", 10), s.param("f1", 1)
		phi := s.param("phi", 0)
		if _, err := chirpPhase(0, f0, t1, f1, method); err != nil {
			return nil, err
		}
		return func(x float64) float64 {
			y, _ := Chirp(x, f0, t1, f1, method, phi)
			return y
		}, nil
	case "sweep":
		poly := s.Poly
		if len(poly) == 0 {
			poly = DefaultSweep.Poly
		}
		integ := polyInt(poly)
		return func(x float64) float64 { return math.Cos(2 * math.Pi * polyVal(integ, x)) }, nil
	case "expr":
		return CompileExpr(s.Expr)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownWaveform, s.Kind)
}

// Sawtooth returns a sawtooth of period 2π rising from -1 to 1 over
// width·2π and falling back over the remainder. width=1 is a rising ramp.
func Sawtooth(x, width float64) float64 {
	if width < 0 || width > 1 {
		return math.NaN()
	}
	t := math.Mod(x, 2*math.Pi)
	if t < 0 {
		t += 2 * math.Pi
	}
	if t < width*2*math.Pi {
		return t/(math.Pi*width) - 1
	}
	return math.Pi*(width+1)/(math.Pi*(1-width)) - t/(math.Pi*(1-width))
}

// Square returns +1 for the first duty·2π of each 2π period and -1 after.
func Square(x, duty float64) float64 {
	if duty < 0 || duty > 1 {
		return math.NaN()
	}
	t := math.Mod(x, 2*math.Pi)
	if t < 0 {
		t += 2 * math.Pi
	}
	if t < duty*2*math.Pi {
		return 1
	}
	return -1
}

// Chirp returns cos(phase(t) + phi), with the instantaneous frequency moving
// from f0 at t=0 to f1 at t=t1 under the given method. phi is in degrees.
func Chirp(t, f0, t1, f1 float64, method string, phi float64) (float64, error) {
	ph, err := chirpPhase(t, f0, t1, f1, method)
	if err != nil {
		return math.NaN(), err
	}
	return math.Cos(ph + phi*math.Pi/180), nil
}

func chirpPhase(t, f0, t1, f1 float64, method string) (float64, error) {
	if t1 == 0 {
		return 0, errors.New("waveform: chirp t1 must be non-zero")
	}
	switch strings.ToLower(method) {
	case "linear", "lin", "li":
		beta := (f1 - f0) / t1
		return 2 * math.Pi * (f0*t + 0.5*beta*t*t), nil
	case "quadratic", "quad", "q":
		beta := (f1 - f0) / (t1 * t1)
		return 2 * math.Pi * (f0*t + beta*t*t*t/3), nil
	case "logarithmic", "log", "lo":
		if f0*f1 <= 0 {
			return 0, errors.New("waveform: logarithmic chirp needs f0 and f1 of the same sign")
		}
		if f0 == f1 {
			return 2 * math.Pi * f0 * t, nil
		}
		beta := t1 / math.Log(f1/f0)
		return 2 * math.Pi * beta * f0 * (math.Pow(f1/f0, t/t1) - 1), nil
	case "hyperbolic", "hyp":
		if f0 == 0 || f1 == 0 {
			return 0, errors.New("waveform: hyperbolic chirp needs non-zero f0 and f1")
		}
		if f0 == f1 {
			return 2 * math.Pi * f0 * t, nil
		}
		sing := -f1 * t1 / (f0 - f1)
		return 2 * math.Pi * (-sing * f0) * math.Log(math.Abs(1-t/sing)), nil
	}
	return 0, fmt.Errorf("waveform: unknown chirp method %q", method)
}

// polyInt integrates coefficients (highest order first) with a zero constant.
func polyInt(p []float64) []float64 {
	n := len(p)
	out := make([]float64, n+1)
	for i, c := range p {
		out[i] = c / float64(n-i)
	}
	return out
}

func polyVal(p []float64, x float64) float64 {
	var y float64
	for _, c := range p {
		y = y*x + c
	}
	return y
}
