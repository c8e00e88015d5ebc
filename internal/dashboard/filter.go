package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// ErrBadFilter wraps CEL compile errors for subscription filters.
var ErrBadFilter = errors.New("invalid filter")

// sampleFilter wraps a compiled CEL program evaluated against sample events.
// When disabled, Match always returns true. Non-sample events always match.
type sampleFilter struct {
	prog    cel.Program
	enabled bool
}

func newSampleFilter(expr string) (sampleFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return sampleFilter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("plot", cel.StringType),
		cel.Variable("x", cel.DoubleType),
		cel.Variable("values", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("at_ms", cel.IntType),
	)
	if err != nil {
		return sampleFilter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return sampleFilter{}, fmt.Errorf("%w: %v", ErrBadFilter, iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return sampleFilter{}, fmt.Errorf("%w: expression must be bool, got %s", ErrBadFilter, ast.OutputType())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return sampleFilter{}, fmt.Errorf("%w: %v", ErrBadFilter, err)
	}
	return sampleFilter{prog: prog, enabled: true}, nil
}

// Match evaluates the filter. Evaluation errors (e.g. a missing map key)
// count as no match.
func (f sampleFilter) Match(ev Event) bool {
	if !f.enabled || ev.Type != EventSample || ev.Sample == nil {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"plot":   ev.Sample.Plot,
		"x":      ev.Sample.X,
		"values": ev.Sample.Values,
		"at_ms":  ev.Sample.AtMs,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
