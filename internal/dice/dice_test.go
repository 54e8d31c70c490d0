package dice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollBasic(t *testing.T) {
	res, err := NewRoller(nil).Roll("3d6")
	require.NoError(t, err)
	require.Len(t, res.RawRolls, 3)
	for _, v := range res.RawRolls {
		assert.GreaterOrEqual(t, v, 1)
		assert.LessOrEqual(t, v, 6)
	}
}

func TestRollAdvantage(t *testing.T) {
	res, err := NewRoller(Sequence(4, 17)).Roll("1d20a")
	require.NoError(t, err)
	assert.Len(t, res.RawRolls, 2)
	assert.Equal(t, []int{17}, res.Kept)
	assert.Equal(t, []int{4}, res.Dropped)
	assert.Equal(t, 17, res.Total)
}

func TestRollDisadvantage(t *testing.T) {
	res, err := NewRoller(Sequence(4, 17)).Roll("1d20d")
	require.NoError(t, err)
	assert.Equal(t, []int{4}, res.Kept)
	assert.Equal(t, 4, res.Total)
}

func TestRollModifier(t *testing.T) {
	res, err := NewRoller(nil).Roll("1d1+5")
	require.NoError(t, err)
	assert.Equal(t, 6, res.Total)
	assert.Equal(t, 5, res.Modifier)
}

func TestRollKeepDrop(t *testing.T) {
	res, err := NewRoller(Sequence(3, 6, 1, 5)).Roll("4d6kh3")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 6, 1, 5}, res.RawRolls)
	assert.Equal(t, []int{6, 5, 3}, res.Kept)
	assert.Equal(t, []int{1}, res.Dropped)
	assert.Equal(t, 14, res.Total)
}

func TestRollKeepLowest(t *testing.T) {
	res, err := NewRoller(Sequence(3, 6)).Roll("2d6kl1-1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}

func TestParseErrors(t *testing.T) {
	for _, notation := range []string{"", "d0", "abc", "5", "1000000000d6", "1001d6", "1d1001"} {
		_, err := Parse(notation)
		assert.Error(t, err, notation)
	}
}

func TestParseLimits(t *testing.T) {
	expr, err := Parse("1000d1000")
	require.NoError(t, err)
	assert.Equal(t, MaxDice, expr.Dice())
	assert.Equal(t, MaxSides, expr.Sides)
}

func TestRollInvalid(t *testing.T) {
	_, err := NewRoller(nil).Roll("not dice")
	assert.Error(t, err)
}
