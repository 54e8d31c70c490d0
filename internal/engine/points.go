package engine

import (
	"github.com/suderio/draconic-bonus/internal/character"
	"github.com/suderio/draconic-bonus/internal/flags"
	"github.com/suderio/draconic-bonus/internal/formula"
	"github.com/suderio/draconic-bonus/internal/hooks"
	"github.com/suderio/draconic-bonus/internal/stacking"
)

// ModifierEvent describes the modifier whose value is about to land.
type ModifierEvent struct {
	Pass     *Pass
	Source   *flags.Source
	Modifier stacking.Modifier
}

// SourceEvent describes a source being processed by a pass.
type SourceEvent struct {
	Pass   *Pass
	Source *flags.Source
}

// RollEvent describes an action whose roll data is being finalized.
type RollEvent struct {
	Character *character.Character
	Action    string
}

// Typed hook points of a recompute pass.
var (
	ModifierValuePoint = hooks.NewPoint[float64, ModifierEvent](hooks.ModifierValue)
	ContributionsPoint = hooks.NewPoint[[]stacking.Modifier, SourceEvent](hooks.Contributions)
	RollDataPoint      = hooks.NewPoint[formula.Context, RollEvent](hooks.RollData)
	SourceActivePoint  = hooks.NewPoint[bool, SourceEvent](hooks.SourceActive)
)
