// Package cache memoizes the numeric value of source flags so that a formula
// is evaluated (and its dice rolled) at most once per raw value and context.
package cache

import (
	"math"

	"go.uber.org/zap"

	"github.com/suderio/draconic-bonus/internal/flags"
	"github.com/suderio/draconic-bonus/internal/formula"
)

// Evaluator evaluates a formula against a resolution context.
type Evaluator interface {
	Evaluate(expr string, ctx formula.Context) (formula.Result, error)
}

type entryKey struct {
	source string
	key    flags.Key
}

type entry struct {
	raw           flags.Value
	version       uint64
	generation    uint64
	result        float64
	deterministic bool
}

// Cache is the per-character formula cache.
type Cache struct {
	eval        Evaluator
	log         *zap.Logger
	ctx         formula.Context
	generation  uint64
	entries     map[entryKey]*entry
	evaluations int
}

// New creates an empty cache. A nil logger discards diagnostics.
func New(eval Evaluator, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		eval:    eval,
		log:     log,
		ctx:     formula.Context{},
		entries: make(map[entryKey]*entry),
	}
}

// BeginPass installs the resolution context of a new pass. Cached results stay
// valid when the context content did not change; otherwise every entry is
// re-evaluated on its next lookup. It reports whether the context changed.
func (c *Cache) BeginPass(ctx formula.Context) bool {
	if c.ctx.Equal(ctx) && c.generation > 0 {
		return false
	}
	c.ctx = ctx.Clone()
	c.generation++
	return true
}

// Context returns the context formulas are evaluated against.
func (c *Cache) Context() formula.Context {
	return c.ctx
}

// Get returns the numeric value of a source's flag. Absent or falsy flags are 0,
// as is any source not attached to a character.
func (c *Cache) Get(src *flags.Source, key flags.Key) float64 {
	if src == nil || src.Owner() == "" {
		return 0
	}
	k := entryKey{source: src.ID, key: key}
	if e, ok := c.entries[k]; ok && e.generation == c.generation && e.version == src.Version() {
		return e.result
	}
	return c.Value(src, key, src.Flag(key))
}

// Value returns the numeric value of raw, cached under (source, key). It is the
// entry point for values that do not live in the flag dictionary, such as
// inline change formulas.
func (c *Cache) Value(src *flags.Source, key flags.Key, raw flags.Value) float64 {
	if src == nil || src.Owner() == "" {
		return 0
	}
	k := entryKey{source: src.ID, key: key}
	if !raw.Truthy() {
		delete(c.entries, k)
		return 0
	}
	if e, ok := c.entries[k]; ok && e.generation == c.generation && e.raw == raw {
		e.version = src.Version()
		return e.result
	}

	result, deterministic := c.evaluate(src, key, raw)
	c.entries[k] = &entry{
		raw:           raw,
		version:       src.Version(),
		generation:    c.generation,
		result:        result,
		deterministic: deterministic,
	}
	return result
}

func (c *Cache) evaluate(src *flags.Source, key flags.Key, raw flags.Value) (float64, bool) {
	if raw.Kind() == flags.KindNumber {
		if !finite(raw.Num()) {
			c.log.Warn("flag holds a non-finite number, using 0",
				zap.String("source", src.ID),
				zap.String("flag", string(key)))
			return 0, true
		}
		return raw.Num(), true
	}
	if c.eval == nil {
		c.log.Warn("no formula evaluator configured",
			zap.String("source", src.ID),
			zap.String("flag", string(key)))
		return 0, true
	}
	c.evaluations++
	res, err := c.eval.Evaluate(raw.Str(), c.ctx)
	if err != nil {
		c.log.Warn("formula evaluation failed, using 0",
			zap.String("source", src.ID),
			zap.String("flag", string(key)),
			zap.String("formula", raw.Str()),
			zap.Error(err))
		return 0, true
	}
	if !finite(res.Value) {
		c.log.Warn("formula produced a non-finite number, using 0",
			zap.String("source", src.ID),
			zap.String("flag", string(key)),
			zap.String("formula", raw.Str()),
			zap.Float64("value", res.Value))
		return 0, true
	}
	return res.Value, res.Deterministic
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Deterministic reports whether the cached value for (source, key) was
// produced without rolling dice. Unknown entries report true.
func (c *Cache) Deterministic(sourceID string, key flags.Key) bool {
	if e, ok := c.entries[entryKey{source: sourceID, key: key}]; ok {
		return e.deterministic
	}
	return true
}

// Invalidate drops every entry of a source, e.g. after it is detached.
func (c *Cache) Invalidate(sourceID string) {
	for k := range c.entries {
		if k.source == sourceID {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Evaluations counts how many times the evaluator was called.
func (c *Cache) Evaluations() int {
	return c.evaluations
}
