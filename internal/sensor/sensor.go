package sensor

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rzbill/livesense/internal/config"
	"github.com/rzbill/livesense/internal/ring"
	"github.com/rzbill/livesense/internal/waveform"
	"github.com/rzbill/livesense/pkg/id"
)

// DataDepth is the capacity of each sensor's sample stack.
const DataDepth = 3

// Sample is one reading across all channels of a sensor.
type Sample struct {
	ID     id.ID              `json:"id" msgpack:"id"`
	X      float64            `json:"x" msgpack:"x"`
	Values map[string]float64 `json:"values" msgpack:"values"`
	AtMs   int64              `json:"at_ms" msgpack:"at_ms"`
}

// Channel is one y series: a column key, its legend text and the waveform.
type Channel struct {
	Key    string
	Legend string
	Fn     waveform.Func
}

// Details describes a sensor and owns its stacks.
type Details struct {
	Title    string
	Channels []Channel
	// Delay is shared by all sensors; it holds the current update delay.
	Delay *ring.Stack[time.Duration]
	// Data holds the newest samples.
	Data *ring.Stack[Sample]
}

// Gate is a shared on/off switch, the equivalent of an event flag.
type Gate struct{ on atomic.Bool }

// NewGate returns a Gate in the given state.
func NewGate(on bool) *Gate {
	g := &Gate{}
	g.on.Store(on)
	return g
}

// Set opens the gate; producers and consumers resume.
func (g *Gate) Set() { g.on.Store(true) }

// Clear closes the gate; producers and consumers idle.
func (g *Gate) Clear() { g.on.Store(false) }

// IsSet reports whether the gate is open.
func (g *Gate) IsSet() bool { return g.on.Load() }

// ChannelDef is the declarative form of a Channel.
type ChannelDef struct {
	Key    string
	Legend string
	Spec   waveform.Spec
}

// Definition is the declarative form of a sensor.
type Definition struct {
	Title    string
	Channels []ChannelDef
}

// DefaultCatalog is the stock cycle of sensors.
func DefaultCatalog() []Definition {
	return []Definition{
		{Title: "Cos & Sine Waves", Channels: []ChannelDef{
			{Key: "y", Legend: "Cos(x)", Spec: waveform.Spec{Kind: "cos"}},
			{Key: "y1", Legend: "Sin(x)", Spec: waveform.Spec{Kind: "sin"}},
		}},
		{Title: "Simple Sin Wave", Channels: []ChannelDef{{Key: "y", Legend: "Sin(x)", Spec: waveform.Spec{Kind: "sin"}}}},
		{Title: "Sawtooth", Channels: []ChannelDef{{Key: "y", Legend: "Sawtooth(x)", Spec: waveform.Spec{Kind: "sawtooth"}}}},
		{Title: "Chirp", Channels: []ChannelDef{{Key: "y", Legend: "chirp(x)", Spec: waveform.DefaultChirp}}},
		{Title: "Sweep", Channels: []ChannelDef{{Key: "y", Legend: "Sweep(x)", Spec: waveform.DefaultSweep}}},
		{Title: "Square", Channels: []ChannelDef{{Key: "y", Legend: "Square Wave(x)", Spec: waveform.Spec{Kind: "square"}}}},
	}
}

// DefinitionsFromConfig converts configured sensors; an empty list yields DefaultCatalog.
func DefinitionsFromConfig(cs []config.SensorConfig) []Definition {
	if len(cs) == 0 {
		return DefaultCatalog()
	}
	out := make([]Definition, 0, len(cs))
	for _, c := range cs {
		d := Definition{Title: c.Title}
		for _, ch := range c.Channels {
			d.Channels = append(d.Channels, ChannelDef{Key: ch.Key, Legend: ch.Legend, Spec: ch.Spec})
		}
		out = append(out, d)
	}
	return out
}

// Build takes n sensors cyclically from defs, all sharing delay.
func Build(defs []Definition, n int, delay *ring.Stack[time.Duration]) ([]*Details, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("sensor: empty catalog")
	}
	out := make([]*Details, 0, n)
	for i := 0; i < n; i++ {
		def := defs[i%len(defs)]
		d := &Details{Title: def.Title, Delay: delay}
		seed := Sample{Values: make(map[string]float64, len(def.Channels))}
		for _, cd := range def.Channels {
			if cd.Key == "" || cd.Key == "x" {
				return nil, fmt.Errorf("sensor %q: channel key %q is reserved or empty", def.Title, cd.Key)
			}
			if _, dup := seed.Values[cd.Key]; dup {
				return nil, fmt.Errorf("sensor %q: duplicate channel key %q", def.Title, cd.Key)
			}
			fn, err := waveform.Lookup(cd.Spec)
			if err != nil {
				return nil, fmt.Errorf("sensor %q channel %q: %w", def.Title, cd.Key, err)
			}
			d.Channels = append(d.Channels, Channel{Key: cd.Key, Legend: cd.Legend, Fn: fn})
			seed.Values[cd.Key] = 0
		}
		d.Data = ring.New(DataDepth, seed)
		out = append(out, d)
	}
	return out, nil
}

// Catalog builds n sensors from configured definitions, or the defaults.
func Catalog(cs []config.SensorConfig, n int, delay *ring.Stack[time.Duration]) ([]*Details, error) {
	return Build(DefinitionsFromConfig(cs), n, delay)
}
