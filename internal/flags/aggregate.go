package flags

import "sort"

// MatchMode controls how Matching treats the requested keys.
type MatchMode uint8

const (
	// MatchAll keeps sources that define every requested key.
	MatchAll MatchMode = iota
	// MatchAny keeps sources that define at least one requested key.
	MatchAny
)

// NumberResolver turns a source flag into a number, evaluating formulas as needed.
// The formula cache implements it.
type NumberResolver interface {
	Get(src *Source, key Key) float64
}

// Match is a source together with its truthy values for the requested keys.
type Match struct {
	Source *Source
	Values map[Key]Value
}

// Contribution is one source's value for a grouped key.
type Contribution struct {
	Source *Source
	Value  Value
}

// Aggregator answers grouping queries over the active sources of one character.
// A nil or empty aggregator answers every query with an empty result.
type Aggregator struct {
	sources []*Source
}

// NewAggregator aggregates the active sources of a store.
func NewAggregator(st *Store) *Aggregator {
	return &Aggregator{sources: st.Active()}
}

// Over aggregates an explicit list of sources, already filtered for activity.
func Over(sources []*Source) *Aggregator {
	return &Aggregator{sources: sources}
}

// Sources returns the sources the aggregator considers.
func (a *Aggregator) Sources() []*Source {
	if a == nil {
		return nil
	}
	return a.sources
}

// Matching returns, per source, the subset of truthy values restricted to keys.
func (a *Aggregator) Matching(mode MatchMode, keys ...Key) []Match {
	if a == nil || len(keys) == 0 {
		return nil
	}
	var out []Match
	for _, src := range a.sources {
		values := make(map[Key]Value, len(keys))
		for _, k := range keys {
			if v := src.Flag(k); v.Truthy() {
				values[k] = v
			}
		}
		if len(values) == 0 {
			continue
		}
		if mode == MatchAll && len(values) != len(keys) {
			continue
		}
		out = append(out, Match{Source: src, Values: values})
	}
	return out
}

// Group returns, per key, the ordered contributions of every source holding it.
func (a *Aggregator) Group(keys ...Key) map[Key][]Contribution {
	out := make(map[Key][]Contribution, len(keys))
	if a == nil {
		return out
	}
	for _, k := range keys {
		for _, src := range a.sources {
			if v := src.Flag(k); v.Truthy() {
				out[k] = append(out[k], Contribution{Source: src, Value: v})
			}
		}
	}
	return out
}

// Values returns the distinct truthy values held for key, in first-seen order.
func (a *Aggregator) Values(key Key) []Value {
	if a == nil {
		return nil
	}
	seen := make(map[Value]bool)
	var out []Value
	for _, src := range a.sources {
		v := src.Flag(key)
		if !v.Truthy() || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// SourcesWith returns the sources whose flag key equals value.
func (a *Aggregator) SourcesWith(key Key, value Value) []*Source {
	if a == nil || !value.Truthy() {
		return nil
	}
	var out []*Source
	for _, src := range a.sources {
		if src.Flag(key) == value {
			out = append(out, src)
		}
	}
	return out
}

// KeysWithValue is the reverse lookup value -> flags: every key, among the
// candidates, that some source holds with exactly this value. With no
// candidates every key on every source is considered.
func (a *Aggregator) KeysWithValue(value Value, candidates ...Key) []Key {
	if a == nil || !value.Truthy() {
		return nil
	}
	allowed := make(map[Key]bool, len(candidates))
	for _, k := range candidates {
		allowed[k] = true
	}
	found := make(map[Key]bool)
	for _, src := range a.sources {
		for _, k := range src.FlagKeys() {
			if len(allowed) > 0 && !allowed[k] {
				continue
			}
			if src.Flag(k) == value {
				found[k] = true
			}
		}
	}
	out := make([]Key, 0, len(found))
	for k := range found {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Sum adds the numeric value of key across every source holding it.
// Formula values are resolved through r; with a nil resolver only numbers count.
func (a *Aggregator) Sum(key Key, r NumberResolver) float64 {
	if a == nil {
		return 0
	}
	total := 0.0
	for _, src := range a.sources {
		v := src.Flag(key)
		if !v.Truthy() {
			continue
		}
		switch {
		case r != nil:
			total += r.Get(src, key)
		case v.Kind() == KindNumber:
			total += v.Num()
		}
	}
	return total
}

// HasBool reports whether any source carries the boolean flag.
func (a *Aggregator) HasBool(key Key) bool {
	return len(a.BoolSources(key)) > 0
}

// BoolSources returns the sources carrying the boolean flag.
func (a *Aggregator) BoolSources(key Key) []*Source {
	if a == nil {
		return nil
	}
	var out []*Source
	for _, src := range a.sources {
		if src.HasBool(key) {
			out = append(out, src)
		}
	}
	return out
}
