// Package hooks is the synchronous value-transform pipeline feature modules
// use to observe and rewrite values without the engine knowing about them.
//
// Each hook point folds a starting value through its handlers in
// registration order. A panicking handler is logged and skipped; folding
// continues with the value it received.
package hooks

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrUnknownHook is returned when registering against a name outside the vocabulary.
var ErrUnknownHook = errors.New("unknown hook")

// Name is the closed vocabulary of hook points.
type Name uint8

const (
	// ModifierValue fires for every value about to be applied to an attribute.
	ModifierValue Name = iota + 1
	// Contributions fires for the modifier list a source produced in a pass.
	Contributions
	// RollData fires when roll data is about to be finalized for an action.
	RollData
	// SourceActive decides whether a source counts as active for a pass.
	SourceActive
)

var names = map[Name]string{
	ModifierValue: "modifierValue",
	Contributions: "contributions",
	RollData:      "rollData",
	SourceActive:  "sourceActive",
}

func (n Name) String() string {
	if s, ok := names[n]; ok {
		return s
	}
	return fmt.Sprintf("hook(%d)", uint8(n))
}

// Valid reports whether n is part of the vocabulary.
func (n Name) Valid() bool {
	_, ok := names[n]
	return ok
}

// Point binds a hook name to the value type T folded through it and the
// context type C handed to every handler.
type Point[T, C any] struct {
	name Name
}

// NewPoint declares a typed hook point.
func NewPoint[T, C any](name Name) Point[T, C] {
	return Point[T, C]{name: name}
}

// Name returns the hook name of the point.
func (p Point[T, C]) Name() Name { return p.name }

// Handler receives the current value and returns the value passed to the next handler.
type Handler[T, C any] func(value T, ctx C) T

type registration struct {
	label string
	fn    any
}

// Registry holds the handlers of every hook point. It is append-only and safe
// for concurrent registration.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Name][]registration
	log      *zap.Logger
}

// NewRegistry creates an empty registry. A nil logger discards diagnostics.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[Name][]registration),
		log:      log,
	}
}

// Register appends a handler to a hook point. The label identifies the handler in logs.
func Register[T, C any](r *Registry, p Point[T, C], label string, fn Handler[T, C]) error {
	if !p.name.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownHook, p.name)
	}
	if fn == nil {
		return fmt.Errorf("nil handler %q for hook %s", label, p.name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[p.name] = append(r.handlers[p.name], registration{label: label, fn: fn})
	return nil
}

// Invoke folds initial through every handler of the point in registration order.
// With no handlers it returns initial unchanged.
func Invoke[T, C any](r *Registry, p Point[T, C], initial T, ctx C) T {
	if r == nil {
		return initial
	}
	r.mu.RLock()
	regs := r.handlers[p.name]
	r.mu.RUnlock()

	value := initial
	for _, reg := range regs {
		fn, ok := reg.fn.(Handler[T, C])
		if !ok {
			r.log.Warn("hook handler has a mismatched signature, skipping",
				zap.Stringer("hook", p.name),
				zap.String("handler", reg.label))
			continue
		}
		next, err := call(fn, value, ctx)
		if err != nil {
			r.log.Error("hook handler failed, keeping previous value",
				zap.Stringer("hook", p.name),
				zap.String("handler", reg.label),
				zap.Error(err))
			continue
		}
		value = next
	}
	return value
}

// call runs one handler and turns a panic into an error.
func call[T, C any](fn Handler[T, C], value T, ctx C) (out T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = value
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return fn(value, ctx), nil
}

// Count returns the number of handlers registered for a hook.
func (r *Registry) Count(name Name) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[name])
}

// Labels lists handler labels for a hook in registration order.
func (r *Registry) Labels(name Name) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers[name]))
	for _, reg := range r.handlers[name] {
		out = append(out, reg.label)
	}
	return out
}
