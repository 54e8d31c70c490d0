package flags

import (
	"fmt"
	"sort"
)

// Well-known flag keys used by the built-in features.
const (
	KeyWeaponFocus      Key = "weaponFocus"
	KeyGreaterFocus     Key = "greaterWeaponFocus"
	KeyElementalFocus   Key = "elementalFocus"
	KeySkillRank        Key = "skillRank"
	KeyLuckBonus        Key = "luckBonus"
	KeyBonusFormula     Key = "bonusFormula"
	KeyCritRange        Key = "critRange"
	KeySaveDC           Key = "saveDC"
	KeyFatesFavored     Key = "fatesFavored"
	KeyLosesDexToAC     Key = "losesDexToAC"
	KeyTargetQualifier  Key = "target"
	KeyDamageBonus      Key = "damageBonus"
	KeyAttackBonus      Key = "attackBonus"
	KeySkillRankFormula Key = "skillRankFormula"
)

// Schema declares the closed vocabulary of known flag keys and the kind each expects.
// Keys outside the schema are the open, user-authored subset and are only format checked.
type Schema struct {
	kinds map[Key]Kind
	bools map[Key]bool
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{
		kinds: make(map[Key]Kind),
		bools: make(map[Key]bool),
	}
}

// DefaultSchema returns a schema with the well-known keys declared.
func DefaultSchema() *Schema {
	s := NewSchema()
	s.Define(KeyWeaponFocus, KindText)
	s.Define(KeyGreaterFocus, KindText)
	s.Define(KeyElementalFocus, KindText)
	s.Define(KeyTargetQualifier, KindText)
	s.Define(KeySkillRank, KindNumber)
	s.Define(KeyCritRange, KindNumber)
	s.Define(KeyLuckBonus, KindNone)
	s.Define(KeyBonusFormula, KindNone)
	s.Define(KeySaveDC, KindNone)
	s.Define(KeyDamageBonus, KindNone)
	s.Define(KeyAttackBonus, KindNone)
	s.Define(KeySkillRankFormula, KindText)
	s.DefineBool(KeyFatesFavored)
	s.DefineBool(KeyLosesDexToAC)
	return s
}

// Define declares a dictionary key. KindNone accepts numbers and formulas.
func (s *Schema) Define(key Key, kind Kind) {
	s.kinds[key] = kind
}

// DefineBool declares a boolean presence key.
func (s *Schema) DefineBool(key Key) {
	s.bools[key] = true
}

// Known reports whether the key is part of the declared vocabulary.
func (s *Schema) Known(key Key) bool {
	_, ok := s.kinds[key]
	return ok || s.bools[key]
}

// Check validates one dictionary flag against the schema.
func (s *Schema) Check(key Key, value Value) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if s.bools[key] {
		return fmt.Errorf("flag %s is a boolean flag, not a dictionary flag", key)
	}
	want, ok := s.kinds[key]
	if !ok || want == KindNone || value.Kind() == KindNone {
		return nil
	}
	if value.Kind() != want {
		return fmt.Errorf("flag %s expects a %s value, got %s", key, want, value.Kind())
	}
	return nil
}

// Validate checks every flag on the source and returns all problems found.
func (s *Schema) Validate(src *Source) []error {
	var errs []error
	for _, key := range src.FlagKeys() {
		if err := s.Check(key, src.Flag(key)); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", src.ID, err))
		}
	}
	for _, key := range src.BoolKeys() {
		if _, dict := s.kinds[key]; dict {
			errs = append(errs, fmt.Errorf("source %s: flag %s is a dictionary flag, not a boolean flag", src.ID, key))
		}
	}
	return errs
}

// Keys lists the declared keys in sorted order.
func (s *Schema) Keys() []Key {
	keys := make([]Key, 0, len(s.kinds)+len(s.bools))
	for k := range s.kinds {
		keys = append(keys, k)
	}
	for k := range s.bools {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
