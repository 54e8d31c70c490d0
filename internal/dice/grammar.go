package dice

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer splits dice notation into tokens. Letters are matched case-insensitively.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keep", Pattern: `(?i)k[hl]?`},
	{Name: "Die", Pattern: `(?i)d`},
	{Name: "Adv", Pattern: `(?i)a`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Sign", Pattern: `[+-]`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

// Expr is a parsed RPG-style dice roll: [N]dS[kh|kl Z][a|d][+/-M]...
type Expr struct {
	Count     *int   `parser:"@Int?"`
	Sides     int    `parser:"Die @Int"`
	Keep      *Keep  `parser:"( @@"`
	Advantage bool   `parser:"| @Adv"`
	Disadv    bool   `parser:"| @Die )?"`
	Modifiers []*Mod `parser:"@@*"`
}

// Keep selects how many dice survive the roll and from which end.
type Keep struct {
	Kind  string `parser:"@Keep"`
	Count *int   `parser:"@Int?"`
}

// Mod is a flat signed modifier appended to the dice total.
type Mod struct {
	Sign  string `parser:"@Sign"`
	Value int    `parser:"@Int"`
}

var grammar = participle.MustBuild[Expr](
	participle.Lexer(Lexer),
	participle.Elide("Whitespace"),
)

// Limits on a single expression; Parse rejects anything larger.
const (
	MaxDice  = 1000
	MaxSides = 1000
)

// Parse turns dice notation into an Expr.
func Parse(notation string) (*Expr, error) {
	notation = strings.TrimSpace(notation)
	if notation == "" {
		return nil, fmt.Errorf("dice expression cannot be empty")
	}
	expr, err := grammar.ParseString("", notation)
	if err != nil {
		return nil, fmt.Errorf("invalid dice expression %q: %w", notation, err)
	}
	if expr.Sides <= 0 {
		return nil, fmt.Errorf("cannot roll a die with 0 or negative sides")
	}
	if expr.Sides > MaxSides {
		return nil, fmt.Errorf("cannot roll a die with more than %d sides", MaxSides)
	}
	if expr.Count != nil && *expr.Count > MaxDice {
		return nil, fmt.Errorf("cannot roll more than %d dice at once", MaxDice)
	}
	return expr, nil
}

// Dice returns how many dice are physically rolled.
func (e *Expr) Dice() int {
	if e.Advantage || e.Disadv {
		return 2
	}
	if e.Count == nil {
		return 1
	}
	return *e.Count
}

// kept returns how many dice count toward the total and whether the highest are kept.
func (e *Expr) kept() (int, bool) {
	switch {
	case e.Advantage:
		return 1, true
	case e.Disadv:
		return 1, false
	case e.Keep != nil:
		highest := !strings.EqualFold(e.Keep.Kind, "kl")
		if e.Keep.Count == nil {
			return 1, highest
		}
		return *e.Keep.Count, highest
	}
	return e.Dice(), true
}

// Flat sums the flat modifiers.
func (e *Expr) Flat() int {
	total := 0
	for _, m := range e.Modifiers {
		if m.Sign == "-" {
			total -= m.Value
		} else {
			total += m.Value
		}
	}
	return total
}
