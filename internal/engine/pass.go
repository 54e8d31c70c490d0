package engine

import (
	"github.com/suderio/draconic-bonus/internal/cache"
	"github.com/suderio/draconic-bonus/internal/character"
	"github.com/suderio/draconic-bonus/internal/flags"
	"github.com/suderio/draconic-bonus/internal/formula"
	"github.com/suderio/draconic-bonus/internal/stacking"
)

// Pass is the state of one recompute of one character.
type Pass struct {
	Character *character.Character
	Context   formula.Context
	// Flags aggregates over the sources active in this pass.
	Flags   *flags.Aggregator
	Results []stacking.Result

	cache *cache.Cache
}

// Value returns a source flag's numeric value through the formula cache.
func (p *Pass) Value(src *flags.Source, key flags.Key) float64 {
	return p.cache.Get(src, key)
}

// Eval resolves a raw value that is not stored as a flag, cached under (src, key).
func (p *Pass) Eval(src *flags.Source, key flags.Key, raw flags.Value) float64 {
	return p.cache.Value(src, key, raw)
}

// Cache exposes the formula cache, e.g. as a flags.NumberResolver for Sum.
func (p *Pass) Cache() *cache.Cache {
	return p.cache
}

// Applied returns the results that changed the sheet.
func (p *Pass) Applied() []stacking.Result {
	return p.filter(stacking.Applied)
}

// Skipped returns the results that were dropped.
func (p *Pass) Skipped() []stacking.Result {
	return p.filter(stacking.Skipped)
}

// Deferred returns the formulas left for render-time evaluation, per path.
func (p *Pass) Deferred() map[string][]string {
	live := p.Character.Live()
	out := make(map[string][]string)
	for _, path := range live.DeferredPaths() {
		out[path] = live.Deferred(path)
	}
	return out
}

func (p *Pass) filter(o stacking.Outcome) []stacking.Result {
	var out []stacking.Result
	for _, r := range p.Results {
		if r.Outcome == o {
			out = append(out, r)
		}
	}
	return out
}
