// Package formula evaluates numeric formulas attached to character sources.
// Formulas are CEL expressions evaluated against a flat resolution context
// whose dotted keys are exposed as nested maps (abilities.str.mod).
package formula

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"

	"github.com/suderio/draconic-bonus/internal/dice"
)

// Result is the numeric outcome of a formula. Deterministic is false when
// the formula rolled dice during evaluation.
type Result struct {
	Value         float64
	Deterministic bool
}

// Evaluator wraps a CEL environment configured for sheet formulas.
// It is not safe for concurrent use; a host serializes recompute passes.
type Evaluator struct {
	env      *cel.Env
	roller   *dice.Roller
	rolls    int
	envs     map[string]*cel.Env
	programs map[string]cel.Program
}

// NewEvaluator creates a CEL environment with the RPG helper functions.
// A nil roller rolls with crypto/rand.
func NewEvaluator(roller *dice.Roller) (*Evaluator, error) {
	if roller == nil {
		roller = dice.NewRoller(nil)
	}
	ev := &Evaluator{
		roller:   roller,
		envs:     make(map[string]*cel.Env),
		programs: make(map[string]cel.Program),
	}

	env, err := cel.NewEnv(
		ext.Strings(),
		cel.Function("roll",
			cel.Overload("roll_string",
				[]*cel.Type{cel.StringType},
				cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					ev.rolls++
					notation, _ := val.Value().(string)
					res, err := ev.roller.Roll(notation)
					if err != nil {
						return types.NewErr("roll: %v", err)
					}
					return types.Int(res.Total)
				}),
			),
		),
		cel.Function("mod",
			cel.Overload("mod_int",
				[]*cel.Type{cel.IntType},
				cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					score := val.Value().(int64)
					return types.Int(int64(math.Floor(float64(score-10) / 2)))
				}),
			),
		),
		cel.Function("floor",
			cel.Overload("floor_double",
				[]*cel.Type{cel.DoubleType},
				cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					return types.Int(int64(math.Floor(val.Value().(float64))))
				}),
			),
			cel.Overload("floor_int",
				[]*cel.Type{cel.IntType},
				cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val { return val }),
			),
		),
		cel.Function("min",
			cel.Overload("min_int_int",
				[]*cel.Type{cel.IntType, cel.IntType},
				cel.IntType,
				cel.BinaryBinding(func(a, b ref.Val) ref.Val {
					return types.Int(min(a.Value().(int64), b.Value().(int64)))
				}),
			),
			cel.Overload("min_double_double",
				[]*cel.Type{cel.DoubleType, cel.DoubleType},
				cel.DoubleType,
				cel.BinaryBinding(func(a, b ref.Val) ref.Val {
					return types.Double(math.Min(a.Value().(float64), b.Value().(float64)))
				}),
			),
		),
		cel.Function("max",
			cel.Overload("max_int_int",
				[]*cel.Type{cel.IntType, cel.IntType},
				cel.IntType,
				cel.BinaryBinding(func(a, b ref.Val) ref.Val {
					return types.Int(max(a.Value().(int64), b.Value().(int64)))
				}),
			),
			cel.Overload("max_double_double",
				[]*cel.Type{cel.DoubleType, cel.DoubleType},
				cel.DoubleType,
				cel.BinaryBinding(func(a, b ref.Val) ref.Val {
					return types.Double(math.Max(a.Value().(float64), b.Value().(float64)))
				}),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ev.env = env
	return ev, nil
}

// Evaluate compiles (or reuses) the formula and evaluates it against ctx.
func (ev *Evaluator) Evaluate(formula string, ctx Context) (Result, error) {
	formula = strings.TrimSpace(formula)
	if formula == "" {
		return Result{}, fmt.Errorf("empty formula")
	}

	activation := ctx.Nest()
	prg, err := ev.program(formula, activation)
	if err != nil {
		return Result{}, err
	}

	before := ev.rolls
	out, _, err := prg.Eval(activation)
	if err != nil {
		return Result{}, fmt.Errorf("CEL eval error in %q: %w", formula, err)
	}

	value, ok := toNumber(out)
	if !ok {
		return Result{}, fmt.Errorf("formula %q did not produce a number (got %s)", formula, out.Type().TypeName())
	}
	return Result{Value: value, Deterministic: ev.rolls == before}, nil
}

// program returns a compiled program for the formula under the variable set of the activation.
func (ev *Evaluator) program(formula string, activation map[string]any) (cel.Program, error) {
	names := make([]string, 0, len(activation))
	for name := range activation {
		names = append(names, name)
	}
	sort.Strings(names)
	signature := strings.Join(names, ",")

	key := signature + "\x00" + formula
	if prg, ok := ev.programs[key]; ok {
		return prg, nil
	}

	env, err := ev.extendEnv(signature, names)
	if err != nil {
		return nil, fmt.Errorf("CEL env extension error: %w", err)
	}
	ast, issues := env.Compile(formula)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error in %q: %w", formula, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program error in %q: %w", formula, err)
	}
	ev.programs[key] = prg
	return prg, nil
}

// extendEnv declares every top-level context name as a dynamic variable.
func (ev *Evaluator) extendEnv(signature string, names []string) (*cel.Env, error) {
	if env, ok := ev.envs[signature]; ok {
		return env, nil
	}
	if len(names) == 0 {
		return ev.env, nil
	}
	opts := make([]cel.EnvOption, 0, len(names))
	for _, name := range names {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	env, err := ev.env.Extend(opts...)
	if err != nil {
		return nil, err
	}
	ev.envs[signature] = env
	return env, nil
}

// toNumber converts a CEL result into a float64.
func toNumber(val ref.Val) (float64, bool) {
	switch v := val.Value().(type) {
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
