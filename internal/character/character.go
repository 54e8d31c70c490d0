// Package character holds the aggregate a recompute pass works on: the
// attached sources, the baseline and live attributes, the override table and
// the formula cache of one character.
package character

import (
	"maps"
	"slices"

	"github.com/suderio/draconic-bonus/internal/cache"
	"github.com/suderio/draconic-bonus/internal/flags"
	"github.com/suderio/draconic-bonus/internal/stacking"
)

// ConditionLosesDexToAC suppresses dodge bonuses to armor class.
const ConditionLosesDexToAC = "losesDexToAC"

// Character is the aggregate context of a recompute pass. None of its state
// is shared with other characters.
type Character struct {
	ID    string
	Name  string
	Level int

	store      *flags.Store
	base       *Attributes
	live       *Attributes
	conditions map[string]bool
	table      *stacking.OverrideTable
	cache      *cache.Cache
}

// New creates a character with no sources and an empty baseline.
func New(id, name string) *Character {
	return &Character{
		ID:         id,
		Name:       name,
		store:      flags.NewStore(id),
		base:       NewAttributes(),
		live:       NewAttributes(),
		conditions: make(map[string]bool),
		table:      stacking.NewOverrideTable(),
	}
}

// Attach adds a source. Duplicate IDs are rejected and the first source kept.
func (c *Character) Attach(src *flags.Source) error {
	return c.store.Attach(src)
}

// Detach removes a source and forgets its cached values.
func (c *Character) Detach(id string) error {
	if err := c.store.Detach(id); err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.Invalidate(id)
	}
	return nil
}

// Source looks up an attached source.
func (c *Character) Source(id string) (*flags.Source, bool) {
	return c.store.Get(id)
}

// Sources returns the attached sources in attach order.
func (c *Character) Sources() []*flags.Source {
	return c.store.Sources()
}

// Store exposes the flag store for aggregation.
func (c *Character) Store() *flags.Store {
	return c.store
}

// Base is the baseline attribute tree every pass starts from.
func (c *Character) Base() *Attributes {
	return c.base
}

// Live is the attribute tree produced by the last pass.
func (c *Character) Live() *Attributes {
	return c.live
}

func (c *Character) SetCondition(name string, on bool) {
	if on {
		c.conditions[name] = true
		return
	}
	delete(c.conditions, name)
}

func (c *Character) HasCondition(name string) bool {
	return c.conditions[name]
}

// Conditions lists the active conditions, sorted.
func (c *Character) Conditions() []string {
	return slices.Sorted(maps.Keys(c.conditions))
}

// Table is the override table of the current pass.
func (c *Character) Table() *stacking.OverrideTable {
	return c.table
}

// Cache returns the character's formula cache, nil until one is installed.
func (c *Character) Cache() *cache.Cache {
	return c.cache
}

// UseCache installs the formula cache. It is done once, by the first pass.
func (c *Character) UseCache(fc *cache.Cache) {
	c.cache = fc
}

// Reset starts a pass: live attributes return to the baseline and the
// override table is emptied. The returned sheet writes to the new live tree.
func (c *Character) Reset() *Sheet {
	c.live = c.base.Clone()
	c.table.Reset()
	return &Sheet{attrs: c.live, losesDex: c.HasCondition(ConditionLosesDexToAC)}
}

// Sheet adapts live attributes to the resolver.
type Sheet struct {
	attrs    *Attributes
	losesDex bool
}

func (s *Sheet) Get(path string) float64    { return s.attrs.Get(path) }
func (s *Sheet) Set(path string, v float64) { s.attrs.Set(path, v) }
func (s *Sheet) Defer(path, formula string) { s.attrs.Defer(path, formula) }
func (s *Sheet) LosesDexToAC() bool         { return s.losesDex }

// LoseDexToAC forces the condition for the rest of the pass, e.g. when a
// source carries the condition as a flag.
func (s *Sheet) LoseDexToAC() { s.losesDex = true }

var _ stacking.Sheet = (*Sheet)(nil)
