// Package stacking applies modifier records to a character's live attributes
// following the ruleset's bonus stacking law.
package stacking

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Operator is the application mode of a modifier.
type Operator string

const (
	OpAdd Operator = "add"
	OpSet Operator = "set"
)

// ParseOperator accepts "add", "set" and their "+"/"=" shorthands. Empty means add.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "add", "+":
		return OpAdd, nil
	case "set", "=":
		return OpSet, nil
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

// BonusType tags a modifier from the ruleset's closed bonus vocabulary.
type BonusType string

const (
	Untyped      BonusType = "untyped"
	UntypedPerm  BonusType = "untypedPerm"
	Alchemical   BonusType = "alchemical"
	Base         BonusType = "base"
	Circumstance BonusType = "circumstance"
	Competence   BonusType = "competence"
	Deflection   BonusType = "deflection"
	Dodge        BonusType = "dodge"
	Enhancement  BonusType = "enhancement"
	Inherent     BonusType = "inherent"
	Insight      BonusType = "insight"
	Luck         BonusType = "luck"
	Morale       BonusType = "morale"
	Profane      BonusType = "profane"
	Racial       BonusType = "racial"
	Resistance   BonusType = "resistance"
	Sacred       BonusType = "sacred"
	Size         BonusType = "size"
	Trait        BonusType = "trait"
	Penalty      BonusType = "penalty"
)

// Rules is the static stacking table: which bonus types exist and which of them sum.
type Rules struct {
	known    map[BonusType]bool
	stacking map[BonusType]bool
}

// DefaultRules returns the ruleset's vocabulary. Only untypedPerm, dodge,
// racial and penalty stack; every other type keeps the highest value.
func DefaultRules() *Rules {
	r := &Rules{
		known:    make(map[BonusType]bool),
		stacking: make(map[BonusType]bool),
	}
	for _, t := range []BonusType{
		Untyped, Alchemical, Base, Circumstance, Competence, Deflection, Enhancement,
		Inherent, Insight, Luck, Morale, Profane, Resistance, Sacred, Size, Trait,
	} {
		r.known[t] = true
	}
	for _, t := range []BonusType{UntypedPerm, Dodge, Racial, Penalty} {
		r.known[t] = true
		r.stacking[t] = true
	}
	return r
}

// Known reports whether t is part of the vocabulary.
func (r *Rules) Known(t BonusType) bool { return r.known[t] }

// Stacks reports whether multiple instances of t sum. Unknown types do not stack.
func (r *Rules) Stacks(t BonusType) bool { return r.stacking[t] }

// Types lists the vocabulary in sorted order.
func (r *Rules) Types() []BonusType {
	out := make([]BonusType, 0, len(r.known))
	for t := range r.known {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Amount is a modifier value: a resolved number or an unresolved formula
// left for deferred evaluation.
type Amount struct {
	number  float64
	formula string
	numeric bool
}

// Num builds a numeric amount.
func Num(v float64) Amount { return Amount{number: v, numeric: true} }

// Deferred builds an unresolved formula amount.
func Deferred(formula string) Amount { return Amount{formula: formula} }

// Finite reports whether v is neither NaN nor an infinity.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ParseNumber parses a finite numeric literal. "Inf" and "NaN" are not numbers here.
func ParseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !Finite(f) {
		return 0, false
	}
	return f, true
}

// ParseAmount turns a literal into a numeric amount when it parses as a number,
// and into a deferred formula otherwise.
func ParseAmount(s string) Amount {
	if f, ok := ParseNumber(s); ok {
		return Num(f)
	}
	return Deferred(s)
}

// Numeric reports whether the amount is resolved.
func (a Amount) Numeric() bool { return a.numeric }

// Value returns the numeric value (0 for formulas).
func (a Amount) Value() float64 { return a.number }

// Formula returns the unresolved formula.
func (a Amount) Formula() string { return a.formula }

func (a Amount) String() string {
	if a.numeric {
		return strconv.FormatFloat(a.number, 'f', -1, 64)
	}
	return a.formula
}

// MarshalJSON writes numbers as JSON numbers and formulas as strings.
// NaN and infinities have no JSON number form and are written as "NaN",
// "+Inf" or "-Inf".
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.numeric {
		if !Finite(a.number) {
			return json.Marshal(strconv.FormatFloat(a.number, 'g', -1, 64))
		}
		return json.Marshal(a.number)
	}
	return json.Marshal(a.formula)
}

// UnmarshalJSON reads either form written by MarshalJSON.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*a = Num(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("amount must be a number or a formula string: %w", err)
	}
	switch s {
	case "NaN", "+Inf", "-Inf":
		f, _ := strconv.ParseFloat(s, 64)
		*a = Num(f)
	default:
		*a = Deferred(s)
	}
	return nil
}

// Modifier is the transient record a feature produces for one resolution.
type Modifier struct {
	Target    string    `json:"target"`
	Operator  Operator  `json:"operator"`
	Type      BonusType `json:"bonusType"`
	Amount    Amount    `json:"value"`
	SourceID  string    `json:"sourceId"`
	Qualifier string    `json:"qualifier,omitempty"`
}

// Path is the attribute the modifier lands on: the target, narrowed by the qualifier.
func (m Modifier) Path() string {
	if m.Qualifier == "" {
		return m.Target
	}
	return m.Target + "." + m.Qualifier
}

func (m Modifier) String() string {
	return fmt.Sprintf("%s %s %s %s (%s)", m.Path(), m.Operator, m.Amount, m.Type, m.SourceID)
}
