package stacking

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type sheet struct {
	values   map[string]float64
	deferred map[string][]string
	noDex    bool
}

func newSheet() *sheet {
	return &sheet{values: map[string]float64{}, deferred: map[string][]string{}}
}

func (s *sheet) Get(path string) float64    { return s.values[path] }
func (s *sheet) Set(path string, v float64) { s.values[path] = v }
func (s *sheet) Defer(path, formula string) { s.deferred[path] = append(s.deferred[path], formula) }
func (s *sheet) LosesDexToAC() bool         { return s.noDex }

func add(t BonusType, v float64, src string) Modifier {
	return Modifier{Target: "attributes.attack", Operator: OpAdd, Type: t, Amount: Num(v), SourceID: src}
}

func permutations(vs []float64) [][]float64 {
	if len(vs) <= 1 {
		return [][]float64{append([]float64(nil), vs...)}
	}
	var out [][]float64
	for i := range vs {
		rest := make([]float64, 0, len(vs)-1)
		rest = append(rest, vs[:i]...)
		rest = append(rest, vs[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]float64{vs[i]}, p...))
		}
	}
	return out
}

func TestNonStackingTakesMaxInAnyOrder(t *testing.T) {
	for _, order := range permutations([]float64{2, 5, 3}) {
		s := newSheet()
		s.Set("attributes.attack", 10)
		r := NewResolver(nil, nil, s, nil)
		for _, v := range order {
			r.Apply(add(Morale, v, "src"))
		}
		assert.Equal(t, 15.0, s.Get("attributes.attack"), "order %v", order)
		assert.Equal(t, 5.0, r.Table().Total("attributes.attack", Morale))
	}
}

func TestStackingSumsInAnyOrder(t *testing.T) {
	for _, order := range permutations([]float64{2, 5, -3, 1}) {
		s := newSheet()
		r := NewResolver(nil, nil, s, nil)
		for _, v := range order {
			r.Apply(add(Dodge, v, "src"))
		}
		assert.Equal(t, 5.0, s.Get("attributes.attack"), "order %v", order)
		assert.Equal(t, 5.0, r.Table().Total("attributes.attack", Dodge))
	}
}

func TestScenarios(t *testing.T) {
	t.Run("untyped does not stack", func(t *testing.T) {
		s := newSheet()
		r := NewResolver(nil, nil, s, nil)
		r.Apply(add(Untyped, 1, "a"))
		r.Apply(add(Untyped, 1, "b"))
		assert.Equal(t, 1.0, s.Get("attributes.attack"))
	})
	t.Run("untypedPerm stacks", func(t *testing.T) {
		s := newSheet()
		r := NewResolver(nil, nil, s, nil)
		r.Apply(add(UntypedPerm, 2, "a"))
		r.Apply(add(UntypedPerm, 3, "b"))
		assert.Equal(t, 5.0, s.Get("attributes.attack"))
	})
	t.Run("last set wins", func(t *testing.T) {
		s := newSheet()
		r := NewResolver(nil, nil, s, nil)
		rank := func(v float64, src string) Modifier {
			return Modifier{Target: "skills.acr.rank", Operator: OpSet, Type: Base, Amount: Num(v), SourceID: src}
		}
		r.Apply(rank(5, "a"))
		res := r.Apply(rank(7, "b"))
		assert.Equal(t, 7.0, s.Get("skills.acr.rank"))
		assert.Equal(t, 2.0, res.Delta)
		v, ok := r.Table().Lookup(TableKey{Path: "skills.acr.rank", Operator: OpSet, Type: Base})
		require.True(t, ok)
		assert.Equal(t, 7.0, v)
	})
}

func TestNegativeNonStackingValues(t *testing.T) {
	s := newSheet()
	r := NewResolver(nil, nil, s, nil)
	r.Apply(add(Size, -1, "small"))
	r.Apply(add(Size, -2, "tiny"))
	assert.Equal(t, -1.0, s.Get("attributes.attack"))
}

func TestEmptyTypeIsUntyped(t *testing.T) {
	s := newSheet()
	r := NewResolver(nil, nil, s, nil)
	res := r.Apply(add("", 2, "a"))
	r.Apply(add(Untyped, 3, "b"))
	assert.Equal(t, Untyped, res.Modifier.Type)
	assert.Equal(t, 3.0, s.Get("attributes.attack"))
}

func TestQualifierNarrowsPath(t *testing.T) {
	s := newSheet()
	r := NewResolver(nil, nil, s, nil)
	m := Modifier{Target: "attributes.attack", Qualifier: "longsword", Operator: OpAdd, Type: Competence, Amount: Num(1)}
	r.Apply(m)
	assert.Equal(t, 1.0, s.Get("attributes.attack.longsword"))
	assert.Zero(t, s.Get("attributes.attack"))
}

func TestDeferredFormula(t *testing.T) {
	s := newSheet()
	r := NewResolver(nil, nil, s, nil)
	res := r.Apply(Modifier{Target: "attributes.damage", Operator: OpAdd, Type: Morale, Amount: ParseAmount("1d6 + @level")})
	assert.Equal(t, Pending, res.Outcome)
	assert.Equal(t, []string{"1d6 + @level"}, s.deferred["attributes.damage"])
	assert.Zero(t, r.Table().Len())
}

func TestDodgeCarveOut(t *testing.T) {
	s := newSheet()
	s.noDex = true
	r := NewResolver(nil, nil, s, nil)

	res := r.Apply(Modifier{Target: "attributes.ac.normal", Operator: OpAdd, Type: Dodge, Amount: Num(1)})
	assert.Equal(t, Skipped, res.Outcome)
	assert.Zero(t, r.Table().Len(), "skipped modifiers leave no triple")

	r.Apply(Modifier{Target: "attributes.cmd.total", Operator: OpAdd, Type: Dodge, Amount: Num(2)})
	assert.Zero(t, s.Get("attributes.cmd.total"))

	r.Apply(Modifier{Target: "attributes.ac.normal", Operator: OpAdd, Type: Dodge, Amount: Num(-1)})
	assert.Equal(t, -1.0, s.Get("attributes.ac.normal"), "dodge penalties still apply")

	r.Apply(Modifier{Target: "attributes.ac.normal", Operator: OpAdd, Type: Deflection, Amount: Num(2)})
	assert.Equal(t, 1.0, s.Get("attributes.ac.normal"))

	r.Apply(Modifier{Target: "attributes.acp", Operator: OpAdd, Type: Dodge, Amount: Num(1)})
	assert.Equal(t, 1.0, s.Get("attributes.acp"))

	s.noDex = false
	r.Apply(Modifier{Target: "attributes.ac.normal", Operator: OpAdd, Type: Dodge, Amount: Num(1)})
	assert.Equal(t, 2.0, s.Get("attributes.ac.normal"))
}

func TestAbilityModifierRecomputed(t *testing.T) {
	s := newSheet()
	s.Set("abilities.str.total", 14)
	r := NewResolver(nil, nil, s, nil)

	r.Apply(Modifier{Target: "abilities.str.total", Operator: OpAdd, Type: Enhancement, Amount: Num(4)})
	assert.Equal(t, 18.0, s.Get("abilities.str.total"))
	assert.Equal(t, 4.0, s.Get("abilities.str.mod"))

	r.Apply(Modifier{Target: "abilities.str.damage", Operator: OpAdd, Type: Untyped, Amount: Num(3)})
	assert.Equal(t, 3.0, s.Get("abilities.str.mod"))

	r.Apply(Modifier{Target: "abilities.str.mod", Operator: OpAdd, Type: Untyped, Amount: Num(1)})
	assert.Equal(t, 4.0, s.Get("abilities.str.mod"), "writing the mod itself does not recompute")
}

func TestAbilityModifier(t *testing.T) {
	tests := []struct {
		total, penalty, damage, want float64
	}{
		{10, 0, 0, 0},
		{11, 0, 0, 0},
		{9, 0, 0, -1},
		{18, -2, 0, 3},
		{16, 0, 5, 1},
		{1, 0, 0, -5},
		{3, 4, 4, -5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AbilityModifier(tt.total, tt.penalty, tt.damage), "%+v", tt)
	}
}

func TestUnknownBonusTypeWarnsOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := newSheet()
	r := NewResolver(nil, nil, s, zap.New(core))
	r.Apply(add("mythic", 2, "a"))
	r.Apply(add("mythic", 4, "b"))
	assert.Equal(t, 4.0, s.Get("attributes.attack"))
	assert.Equal(t, 1, logs.FilterMessage("unknown bonus type, treating as non-stacking").Len())
}

func TestUnknownOperatorSkipped(t *testing.T) {
	s := newSheet()
	r := NewResolver(nil, nil, s, nil)
	res := r.Apply(Modifier{Target: "attributes.attack", Operator: "multiply", Type: Untyped, Amount: Num(2)})
	assert.Equal(t, Skipped, res.Outcome)
	assert.Zero(t, r.Table().Len())
}

func TestTableEntriesSorted(t *testing.T) {
	tab := NewOverrideTable()
	tab.Record(TableKey{Path: "b", Operator: OpAdd, Type: Luck}, 1)
	tab.Record(TableKey{Path: "a", Operator: OpSet, Type: Base}, 2)
	tab.Record(TableKey{Path: "a", Operator: OpAdd, Type: Morale}, 3)
	got := tab.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Path)
	assert.Equal(t, OpAdd, got[0].Operator)
	assert.Equal(t, OpSet, got[1].Operator)
	assert.Equal(t, "b", got[2].Path)
	tab.Reset()
	assert.Zero(t, tab.Len())
}

func TestParseOperatorAndAmount(t *testing.T) {
	op, err := ParseOperator("=")
	require.NoError(t, err)
	assert.Equal(t, OpSet, op)
	op, err = ParseOperator("")
	require.NoError(t, err)
	assert.Equal(t, OpAdd, op)
	_, err = ParseOperator("times")
	assert.Error(t, err)

	assert.True(t, ParseAmount(" 3 ").Numeric())
	assert.Equal(t, 3.0, ParseAmount("3").Value())
	assert.False(t, ParseAmount("@level / 2").Numeric())
	assert.False(t, ParseAmount("Inf").Numeric())
	_, ok := ParseNumber("NaN")
	assert.False(t, ok)
	assert.True(t, DefaultRules().Stacks(Racial))
	assert.False(t, DefaultRules().Stacks(Untyped))
}

func TestNonFiniteValueSkipped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := newSheet()
	r := NewResolver(nil, nil, s, zap.New(core))

	res := r.Apply(add(Luck, math.Inf(1), "charm"))
	assert.Equal(t, Skipped, res.Outcome)
	assert.Zero(t, s.Get("attributes.attack"))
	assert.Zero(t, r.Table().Len())
	assert.Equal(t, 1, logs.FilterMessage("non-finite modifier value skipped").Len())

	// A later finite value of the same triple is unaffected.
	r.Apply(add(Luck, 2, "charm"))
	assert.Equal(t, 2.0, s.Get("attributes.attack"))
}

func TestAmountJSON(t *testing.T) {
	for _, a := range []Amount{Num(3), Deferred("1d6"), Num(math.Inf(-1))} {
		data, err := json.Marshal(a)
		require.NoError(t, err)
		var back Amount
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, a, back)
	}

	data, err := json.Marshal(Num(math.NaN()))
	require.NoError(t, err)
	assert.JSONEq(t, `"NaN"`, string(data))
}
