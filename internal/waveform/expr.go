package waveform

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

func unaryDouble(name string, fn func(float64) float64) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(name+"_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
			cel.UnaryBinding(func(v ref.Val) ref.Val {
				d, ok := v.(types.Double)
				if !ok {
					return types.MaybeNoSuchOverloadErr(v)
				}
				return types.Double(fn(float64(d)))
			}),
		),
	)
}

func binaryDouble(name string, fn func(a, b float64) float64) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(name+"_double_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
			cel.BinaryBinding(func(a, b ref.Val) ref.Val {
				da, ok1 := a.(types.Double)
				db, ok2 := b.(types.Double)
				if !ok1 || !ok2 {
					return types.NewErr("%s expects doubles", name)
				}
				return types.Double(fn(float64(da), float64(db)))
			}),
		),
	)
}

func exprEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("x", cel.DoubleType),
		unaryDouble("sin", math.Sin),
		unaryDouble("cos", math.Cos),
		unaryDouble("tan", math.Tan),
		unaryDouble("abs", math.Abs),
		unaryDouble("sqrt", math.Sqrt),
		unaryDouble("exp", math.Exp),
		unaryDouble("log", math.Log),
		binaryDouble("pow", math.Pow),
		unaryDouble("sawtooth", func(x float64) float64 { return Sawtooth(x, 1) }),
		unaryDouble("square", func(x float64) float64 { return Square(x, 0.5) }),
		cel.Function("chirp",
			cel.Overload("chirp_double4", []*cel.Type{cel.DoubleType, cel.DoubleType, cel.DoubleType, cel.DoubleType}, cel.DoubleType,
				cel.FunctionBinding(func(args ...ref.Val) ref.Val {
					var f [4]float64
					for i, a := range args {
						d, ok := a.(types.Double)
						if !ok {
							return types.NewErr("chirp expects doubles")
						}
						f[i] = float64(d)
					}
					y, err := Chirp(f[0], f[1], f[2], f[3], "linear", 0)
					if err != nil {
						return types.WrapErr(err)
					}
					return types.Double(y)
				}),
			),
		),
	)
}

// CompileExpr compiles a CEL expression over x into a Func. The expression
// must yield a double; integer literals need a decimal point (2.0, not 2).
// Evaluation errors yield NaN.
func CompileExpr(expr string) (Func, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("waveform: empty expression")
	}
	env, err := exprEnv()
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("waveform: compile %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.DoubleType) {
		return nil, fmt.Errorf("waveform: %q yields %s, want double", expr, ast.OutputType())
	}
	prog, err := env.Program(ast, cel.EvalOptions(cel.OptOptimize))
	if err != nil {
		return nil, err
	}
	return func(x float64) float64 {
		out, _, err := prog.Eval(map[string]any{"x": x})
		if err != nil {
			return math.NaN()
		}
		d, ok := out.Value().(float64)
		if !ok {
			return math.NaN()
		}
		return d
	}, nil
}
