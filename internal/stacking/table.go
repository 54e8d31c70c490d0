package stacking

import "sort"

// TableKey identifies one (attribute path, operator, bonus type) triple.
type TableKey struct {
	Path     string
	Operator Operator
	Type     BonusType
}

// TableEntry is a recorded triple with its aggregate.
type TableEntry struct {
	TableKey
	Value float64
}

// OverrideTable remembers, for one pass, what has already been applied per
// triple so repeated applications yield deltas instead of double counting.
// It is rebuilt at the start of every pass and never persisted.
type OverrideTable struct {
	values map[TableKey]float64
}

// NewOverrideTable creates an empty table.
func NewOverrideTable() *OverrideTable {
	return &OverrideTable{values: make(map[TableKey]float64)}
}

// Lookup returns the recorded aggregate and whether the triple is set.
func (t *OverrideTable) Lookup(k TableKey) (float64, bool) {
	v, ok := t.values[k]
	return v, ok
}

// Record stores the aggregate for a triple.
func (t *OverrideTable) Record(k TableKey, v float64) {
	t.values[k] = v
}

// Reset discards every triple.
func (t *OverrideTable) Reset() {
	clear(t.values)
}

// Len returns the number of recorded triples.
func (t *OverrideTable) Len() int {
	return len(t.values)
}

// Total returns the aggregate recorded for an add triple, 0 when unset.
func (t *OverrideTable) Total(path string, bonus BonusType) float64 {
	return t.values[TableKey{Path: path, Operator: OpAdd, Type: bonus}]
}

// Entries lists the triples sorted by path, operator and type.
func (t *OverrideTable) Entries() []TableEntry {
	out := make([]TableEntry, 0, len(t.values))
	for k, v := range t.values {
		out = append(out, TableEntry{TableKey: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Operator != b.Operator {
			return a.Operator < b.Operator
		}
		return a.Type < b.Type
	})
	return out
}
