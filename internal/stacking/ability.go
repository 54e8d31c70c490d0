package stacking

import (
	"math"
	"regexp"
)

var abilityPart = regexp.MustCompile(`^abilities\.(str|dex|con|int|wis|cha)\.(total|penalty|base|damage)$`)

// AbilityModifier computes an ability modifier from its score, penalty and damage.
func AbilityModifier(total, penalty, damage float64) float64 {
	mod := math.Floor((total-10)/2) - math.Floor(math.Abs(penalty)/2) - math.Floor(math.Abs(damage)/2)
	return math.Max(-5, mod)
}

// deriveAbility refreshes abilities.<abl>.mod after a write to one of its inputs.
func deriveAbility(sheet Sheet, path string) {
	m := abilityPart.FindStringSubmatch(path)
	if m == nil {
		return
	}
	prefix := "abilities." + m[1] + "."
	sheet.Set(prefix+"mod", AbilityModifier(
		sheet.Get(prefix+"total"),
		sheet.Get(prefix+"penalty"),
		sheet.Get(prefix+"damage"),
	))
}
