package features

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suderio/draconic-bonus/internal/character"
	"github.com/suderio/draconic-bonus/internal/dice"
	"github.com/suderio/draconic-bonus/internal/engine"
	"github.com/suderio/draconic-bonus/internal/formula"
	"github.com/suderio/draconic-bonus/internal/hooks"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	ev, err := formula.NewEvaluator(dice.NewRoller(dice.Sequence(6)))
	require.NoError(t, err)
	e, err := engine.New(engine.Config{Evaluator: ev})
	require.NoError(t, err)
	m, err := Builtin()
	require.NoError(t, err)
	require.NoError(t, Register(e, m))
	return e
}

func decode(t *testing.T, doc string) *character.Character {
	t.Helper()
	ch, err := character.DecodeCharacter(strings.NewReader(doc), nil, nil)
	require.NoError(t, err)
	return ch
}

func TestBuiltinManifest(t *testing.T) {
	m, err := Builtin()
	require.NoError(t, err)
	assert.Len(t, m.Features, 9)

	e := newEngine(t)
	keys := e.Catalog().Keys()
	assert.Equal(t, ChangesKey, keys[0])
	assert.Contains(t, keys, "weaponFocus")
	assert.Equal(t, 1, e.Hooks().Count(hooks.ModifierValue))
}

func TestWeaponFocusStacksWithGreater(t *testing.T) {
	e := newEngine(t)
	ch := decode(t, `
id: valeros
attributes:
  attributes.attack.longsword: 8
sources:
  - id: wf
    flags: {weaponFocus: longsword}
  - id: gwf
    flags: {greaterWeaponFocus: longsword}
  - id: wf-axe
    flags: {weaponFocus: longsword}
  - id: keen
    flags: {critRange: 2, weaponFocus: longsword}
`)
	_, err := e.Recompute(ch)
	require.NoError(t, err)
	assert.Equal(t, 10.0, ch.Live().Get("attributes.attack.longsword"))
	assert.Equal(t, 2.0, ch.Live().Get("attributes.critRange.longsword"))
}

func TestSkillRankSetInAttachOrder(t *testing.T) {
	e := newEngine(t)
	ch := decode(t, `
id: seoni
sources:
  - id: background
    flags: {skillRank: 5, target: acr}
  - id: trained
    flags: {skillRank: 7, target: acr}
  - id: untargeted
    flags: {skillRank: 9}
`)
	_, err := e.Recompute(ch)
	require.NoError(t, err)
	assert.Equal(t, 7.0, ch.Live().Get("skills.acr.rank"))
	assert.False(t, ch.Live().Has("skills.rank"))
}

func TestFatesFavored(t *testing.T) {
	e := newEngine(t)
	ch := decode(t, `
id: harsk
attributes:
  attributes.attack: 5
sources:
  - id: trait
    kind: trait
    bools: [fatesFavored]
  - id: prayer
    kind: buff
    flags: {luckBonus: 1}
  - id: heroism
    kind: buff
    flags: {luckBonus: "2"}
  - id: curse
    kind: buff
    flags: {luckBonus: -1}
`)
	_, err := e.Recompute(ch)
	require.NoError(t, err)
	assert.Equal(t, 8.0, ch.Live().Get("attributes.attack"), "+2 luck raised to +3, the penalty does not stack")

	trait, _ := ch.Source("trait")
	trait.Active = false
	_, err = e.Recompute(ch)
	require.NoError(t, err)
	assert.Equal(t, 7.0, ch.Live().Get("attributes.attack"))
}

func TestInlineChanges(t *testing.T) {
	e := newEngine(t)
	ch := decode(t, `
id: kyra
attributes:
  abilities.str.total: 16
  attributes.damage: 0
sources:
  - id: belt
    kind: equipment
    changes:
      - {target: abilities.str.total, type: enhancement, formula: "2"}
      - {target: attributes.damage, type: morale, formula: "abilities.str.mod + 1"}
      - {target: attributes.damage, type: sacred, formula: "defer: 1d6"}
      - {target: attributes.size, operator: set, type: size, formula: "1"}
`)
	p, err := e.Recompute(ch)
	require.NoError(t, err)

	assert.Equal(t, 18.0, ch.Live().Get("abilities.str.total"))
	assert.Equal(t, 4.0, ch.Live().Get("abilities.str.mod"))
	assert.Equal(t, 4.0, ch.Live().Get("attributes.damage"), "formulas see the baseline context")
	assert.Equal(t, 1.0, ch.Live().Get("attributes.size"))
	assert.Equal(t, map[string][]string{"attributes.damage": {"1d6"}}, p.Deferred())
	assert.Len(t, p.Results, 4)
}

func TestLoadManifestAndMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
features:
  - key: inspireCourage
    requiresBools: [inspired]
    target: attributes.attack
    type: competence
    value: "floor(level / 5) + 1"
  - key: weaponFocus
    requires: [weaponFocus]
    target: attributes.attack
    type: untyped
    value: "5"
`), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Features, 2)

	builtin, err := Builtin()
	require.NoError(t, err)
	m.Merge(builtin)
	assert.Len(t, m.Features, 10, "the manifest's weaponFocus wins over the builtin one")

	ev, err := formula.NewEvaluator(nil)
	require.NoError(t, err)
	e, err := engine.New(engine.Config{Evaluator: ev})
	require.NoError(t, err)
	require.NoError(t, Register(e, m))

	ch := decode(t, `
id: lem
level: 10
attributes:
  attributes.attack: 0
sources:
  - id: song
    bools: [inspired]
`)
	_, err = e.Recompute(ch)
	require.NoError(t, err)
	assert.Equal(t, 3.0, ch.Live().Get("attributes.attack"))

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestManifestValidation(t *testing.T) {
	tests := map[string]string{
		"missing key":    "features:\n  - {target: a, value: '1', requires: [x]}\n",
		"missing target": "features:\n  - {key: k, value: '1', requires: [x]}\n",
		"both values":    "features:\n  - {key: k, target: a, value: '1', fromFlag: x}\n",
		"no value":       "features:\n  - {key: k, target: a, requires: [x]}\n",
		"bad operator":   "features:\n  - {key: k, target: a, value: '1', requires: [x], operator: times}\n",
		"unscoped":       "features:\n  - {key: k, target: a, value: '1'}\n",
		"bad flag":       "features:\n  - {key: k, target: a, value: '1', requires: ['1x']}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeManifest(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}

	m, err := DecodeManifest(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, m.Features)
}

func TestRegisterReportsDuplicates(t *testing.T) {
	e := newEngine(t)
	m, err := Builtin()
	require.NoError(t, err)
	err = Register(e, m)
	assert.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrDuplicateContributor)
	assert.Equal(t, len(m.Features)+1, e.Catalog().Len())
}
