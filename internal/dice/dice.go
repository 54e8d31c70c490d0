package dice

import (
	"crypto/rand"
	"math/big"
	"sort"
)

// Source returns a uniformly distributed integer in [1, sides].
type Source func(sides int) int

// Result contains the finalized answer alongside the raw rolls used.
type Result struct {
	Total    int
	RawRolls []int
	Kept     []int
	Dropped  []int
	Modifier int
}

// Roller evaluates dice notation with an injectable random source.
type Roller struct {
	source Source
}

// NewRoller creates a roller. A nil source uses crypto/rand.
func NewRoller(source Source) *Roller {
	if source == nil {
		source = safeRand
	}
	return &Roller{source: source}
}

// Sequence returns a Source that replays values in order and then falls back to crypto/rand.
// Useful for deterministic tests.
func Sequence(values ...int) Source {
	queue := append([]int(nil), values...)
	return func(sides int) int {
		if len(queue) == 0 {
			return safeRand(sides)
		}
		v := queue[0]
		queue = queue[1:]
		return v
	}
}

// safeRand fetches a strongly uniform random integer via crypto/rand.
func safeRand(sides int) int {
	if sides <= 0 {
		return 0
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(sides)))
	return int(n.Int64()) + 1
}

// Roll parses and rolls notation such as "1d20", "4d6kh3", "1d20a" or "2d6+3".
func (r *Roller) Roll(notation string) (Result, error) {
	expr, err := Parse(notation)
	if err != nil {
		return Result{}, err
	}
	return r.RollExpr(expr), nil
}

// RollExpr rolls an already parsed expression.
func (r *Roller) RollExpr(expr *Expr) Result {
	res := Result{}
	count := expr.Dice()
	for i := 0; i < count; i++ {
		res.RawRolls = append(res.RawRolls, r.source(expr.Sides))
	}

	keep, highest := expr.kept()
	if keep > count {
		keep = count
	} else if keep < 0 {
		keep = 0
	}

	// Sort a copy so RawRolls keeps the order the dice were thrown.
	sorted := make([]int, len(res.RawRolls))
	copy(sorted, res.RawRolls)
	if highest {
		sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	} else {
		sort.Ints(sorted)
	}

	res.Kept = sorted[:keep]
	if keep < count {
		res.Dropped = sorted[keep:]
	}
	for _, v := range res.Kept {
		res.Total += v
	}
	res.Modifier = expr.Flat()
	res.Total += res.Modifier
	return res
}
