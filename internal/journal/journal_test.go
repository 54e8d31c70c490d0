package journal

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suderio/draconic-bonus/internal/character"
	"github.com/suderio/draconic-bonus/internal/engine"
	"github.com/suderio/draconic-bonus/internal/flags"
	"github.com/suderio/draconic-bonus/internal/formula"
	"github.com/suderio/draconic-bonus/internal/stacking"
)

type changeAll struct{}

func (changeAll) Key() string                 { return "all" }
func (changeAll) IsActive(*flags.Source) bool { return true }
func (changeAll) Contribute(src *flags.Source, _ *engine.Pass) []stacking.Modifier {
	return []stacking.Modifier{
		{Target: "attributes.attack", Operator: stacking.OpAdd, Type: stacking.Morale, Amount: stacking.Num(2)},
		{Target: "attributes.damage", Operator: stacking.OpAdd, Type: stacking.Morale, Amount: stacking.Deferred("1d6")},
	}
}

type runaway struct{}

func (runaway) Key() string                 { return "runaway" }
func (runaway) IsActive(*flags.Source) bool { return true }
func (runaway) Contribute(*flags.Source, *engine.Pass) []stacking.Modifier {
	return []stacking.Modifier{
		{Target: "attributes.attack", Operator: stacking.OpAdd, Type: stacking.Luck, Amount: stacking.Num(math.Inf(1))},
	}
}

func TestJournalRecordsSkippedNonFinite(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "journal.jsonl"))
	require.NoError(t, err)
	defer j.Close()

	e, err := engine.New(engine.Config{})
	require.NoError(t, err)
	require.NoError(t, e.Catalog().Register(runaway{}))

	ch := character.New("seelah", "Seelah")
	require.NoError(t, ch.Attach(flags.NewSource("charm", "Charm", flags.KindEquipment)))

	p, err := e.Recompute(ch)
	require.NoError(t, err)
	require.NoError(t, j.RecordPass(1, p))

	entries, err := j.Load()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	resolved, ok := entries[1].(*ModifierResolved)
	require.True(t, ok)
	assert.Equal(t, stacking.Skipped, resolved.Result.Outcome)
	assert.True(t, math.IsInf(resolved.Result.Modifier.Amount.Value(), 1))

	_, ok = entries[2].(*PassFinished)
	assert.True(t, ok)
}

func TestJournalRecordsPasses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	ev, err := formula.NewEvaluator(nil)
	require.NoError(t, err)
	e, err := engine.New(engine.Config{Evaluator: ev})
	require.NoError(t, err)
	require.NoError(t, e.Catalog().Register(changeAll{}))

	ch := character.New("amiri", "Amiri")
	require.NoError(t, ch.Attach(flags.NewSource("rage", "Rage", flags.KindBuff)))

	n, err := j.NextPass(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p, err := e.Recompute(ch)
	require.NoError(t, err)
	require.NoError(t, j.RecordPass(n, p))

	entries, err := j.Load()
	require.NoError(t, err)
	require.Len(t, entries, 4)

	started, ok := entries[0].(*PassStarted)
	require.True(t, ok)
	assert.Equal(t, []string{"rage"}, started.Sources)

	resolved, ok := entries[1].(*ModifierResolved)
	require.True(t, ok)
	assert.Equal(t, stacking.Applied, resolved.Result.Outcome)
	assert.Equal(t, 2.0, resolved.Result.Modifier.Amount.Value())
	assert.Equal(t, "rage", resolved.Result.Modifier.SourceID)

	deferred, ok := entries[2].(*ModifierResolved)
	require.True(t, ok)
	assert.Equal(t, stacking.Pending, deferred.Result.Outcome)
	assert.Equal(t, "1d6", deferred.Result.Modifier.Amount.Formula())

	finished, ok := entries[3].(*PassFinished)
	require.True(t, ok)
	assert.Equal(t, 2.0, finished.Attributes["attributes.attack"])
	assert.Equal(t, []string{"1d6"}, finished.Deferred["attributes.damage"])

	n, err = j.NextPass(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = j.NextPass("someone-else")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJournalRejectsUnknownEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"Mystery","data":{}}`+"\n"), 0o644))
	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = j.Load()
	assert.Error(t, err)
}
