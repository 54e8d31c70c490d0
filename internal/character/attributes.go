package character

import (
	"maps"
	"slices"
)

// Attributes is a flat attribute tree: dotted path -> number, plus the
// formulas that could not be resolved synchronously, per path.
type Attributes struct {
	values   map[string]float64
	deferred map[string][]string
}

// NewAttributes creates an empty tree.
func NewAttributes() *Attributes {
	return &Attributes{
		values:   make(map[string]float64),
		deferred: make(map[string][]string),
	}
}

// Clone copies values. Deferred formulas belong to a single pass and are not copied.
func (a *Attributes) Clone() *Attributes {
	return &Attributes{
		values:   maps.Clone(a.values),
		deferred: make(map[string][]string),
	}
}

func (a *Attributes) Get(path string) float64 {
	return a.values[path]
}

// Has reports whether the path was ever written.
func (a *Attributes) Has(path string) bool {
	_, ok := a.values[path]
	return ok
}

func (a *Attributes) Set(path string, v float64) {
	a.values[path] = v
}

func (a *Attributes) Add(path string, v float64) {
	a.values[path] += v
}

// Defer records a formula left for render-time evaluation.
func (a *Attributes) Defer(path, formula string) {
	a.deferred[path] = append(a.deferred[path], formula)
}

// Deferred returns the formulas recorded for path.
func (a *Attributes) Deferred(path string) []string {
	return a.deferred[path]
}

// DeferredPaths lists every path with pending formulas, sorted.
func (a *Attributes) DeferredPaths() []string {
	return slices.Sorted(maps.Keys(a.deferred))
}

// Paths lists every written path, sorted.
func (a *Attributes) Paths() []string {
	return slices.Sorted(maps.Keys(a.values))
}

// Values returns a copy of the numeric values.
func (a *Attributes) Values() map[string]float64 {
	return maps.Clone(a.values)
}

func (a *Attributes) Len() int {
	return len(a.values)
}
