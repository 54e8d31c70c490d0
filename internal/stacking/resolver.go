package stacking

import (
	"math"
	"regexp"

	"go.uber.org/zap"
)

// Sheet is the live attribute tree a resolver writes to.
type Sheet interface {
	Get(path string) float64
	Set(path string, value float64)
	Defer(path string, formula string)
	// LosesDexToAC reports the character-level "loses Dexterity to AC" condition.
	LosesDexToAC() bool
}

// Outcome describes what Apply did with a modifier.
type Outcome uint8

const (
	Applied Outcome = iota
	Pending
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Pending:
		return "deferred"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// MarshalText lets outcomes appear by name in journals.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses the names written by MarshalText.
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "applied":
		*o = Applied
	case "deferred":
		*o = Pending
	default:
		*o = Skipped
	}
	return nil
}

// Result records one application.
type Result struct {
	Modifier Modifier `json:"modifier"`
	Outcome  Outcome  `json:"outcome"`
	Delta    float64  `json:"delta"`
	Reason   string   `json:"reason,omitempty"`
}

// armorClassFamily matches the attributes the dodge carve-out protects.
var armorClassFamily = regexp.MustCompile(`^attributes\.(ac|cmd)(\.|$)`)

// Resolver applies modifiers to one sheet during one pass.
type Resolver struct {
	rules  *Rules
	table  *OverrideTable
	sheet  Sheet
	log    *zap.Logger
	warned map[BonusType]bool
}

// NewResolver binds the stacking rules, the pass's override table and the live sheet.
func NewResolver(rules *Rules, table *OverrideTable, sheet Sheet, log *zap.Logger) *Resolver {
	if rules == nil {
		rules = DefaultRules()
	}
	if table == nil {
		table = NewOverrideTable()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		rules:  rules,
		table:  table,
		sheet:  sheet,
		log:    log,
		warned: make(map[BonusType]bool),
	}
}

// Table returns the override table the resolver records into.
func (r *Resolver) Table() *OverrideTable { return r.table }

// Apply lands one modifier on the sheet.
//
// Stacking adds accumulate; non-stacking adds only contribute their excess
// over the running maximum of the triple, so any application order yields
// the same total. Set writes the value outright: the last writer wins.
func (r *Resolver) Apply(m Modifier) Result {
	if m.Type == "" {
		m.Type = Untyped
	}
	path := m.Path()
	res := Result{Modifier: m}

	if path == "" {
		res.Outcome, res.Reason = Skipped, "empty target"
		return res
	}

	if !m.Amount.Numeric() {
		r.sheet.Defer(path, m.Amount.Formula())
		res.Outcome = Pending
		return res
	}
	value := m.Amount.Value()
	if !Finite(value) {
		r.log.Warn("non-finite modifier value skipped",
			zap.String("path", path),
			zap.String("source", m.SourceID),
			zap.Float64("value", value))
		res.Outcome, res.Reason = Skipped, "non-finite value"
		return res
	}

	key := TableKey{Path: path, Operator: m.Operator, Type: m.Type}
	prior, seen := r.table.Lookup(key)

	switch m.Operator {
	case OpSet:
		res.Delta = value - r.sheet.Get(path)
		r.sheet.Set(path, value)
		r.table.Record(key, value)

	case OpAdd:
		if m.Type == Dodge && value > 0 && r.sheet.LosesDexToAC() && armorClassFamily.MatchString(path) {
			res.Outcome, res.Reason = Skipped, "loses Dexterity to AC"
			return res
		}
		if r.stacks(m.Type) {
			res.Delta = value
			r.table.Record(key, prior+value)
		} else {
			if !seen {
				res.Delta = value
				r.table.Record(key, value)
			} else {
				res.Delta = math.Max(0, value-prior)
				r.table.Record(key, math.Max(prior, value))
			}
		}
		if res.Delta != 0 {
			r.sheet.Set(path, r.sheet.Get(path)+res.Delta)
		}

	default:
		r.log.Warn("unknown operator, modifier skipped",
			zap.String("operator", string(m.Operator)),
			zap.String("target", path),
			zap.String("source", m.SourceID))
		res.Outcome, res.Reason = Skipped, "unknown operator"
		return res
	}

	deriveAbility(r.sheet, path)
	res.Outcome = Applied
	return res
}

// stacks consults the table, warning once per unknown bonus type.
func (r *Resolver) stacks(t BonusType) bool {
	if !r.rules.Known(t) && !r.warned[t] {
		r.warned[t] = true
		r.log.Warn("unknown bonus type, treating as non-stacking", zap.String("bonusType", string(t)))
	}
	return r.rules.Stacks(t)
}
