// Package flags implements the per-source flag dictionary and the aggregation
// queries feature modules use to discover which sources contribute a value.
package flags

import (
	"errors"
	"sort"
)

var (
	// ErrInvalidKey is returned for malformed flag keys.
	ErrInvalidKey = errors.New("invalid flag key")
	// ErrDuplicateSource is returned when a source ID is attached twice; the first one wins.
	ErrDuplicateSource = errors.New("duplicate source")
	// ErrSourceNotFound is returned when detaching an unknown source.
	ErrSourceNotFound = errors.New("source not found")
)

// SourceKind classifies what a source is on the sheet.
type SourceKind string

const (
	KindFeat      SourceKind = "feat"
	KindTrait     SourceKind = "trait"
	KindEquipment SourceKind = "equipment"
	KindBuff      SourceKind = "buff"
	KindOther     SourceKind = "other"
)

// Change is an inline modifier declared directly on a source, the way
// equipment carries its own changes.
type Change struct {
	Target    string `json:"target" yaml:"target"`
	Operator  string `json:"operator" yaml:"operator"`
	Type      string `json:"type" yaml:"type"`
	Formula   string `json:"formula" yaml:"formula"`
	Qualifier string `json:"qualifier,omitempty" yaml:"qualifier,omitempty"`
}

// Source is an entity attached to a character that may contribute modifiers.
// Every flag mutation bumps Version so caches can detect edits cheaply.
type Source struct {
	ID      string
	Name    string
	Kind    SourceKind
	Active  bool
	Changes []Change

	owner   string
	dict    map[Key]Value
	bools   map[Key]struct{}
	version uint64
}

// NewSource creates an active source with empty flag sets.
func NewSource(id, name string, kind SourceKind) *Source {
	if kind == "" {
		kind = KindOther
	}
	return &Source{
		ID:     id,
		Name:   name,
		Kind:   kind,
		Active: true,
		dict:   make(map[Key]Value),
		bools:  make(map[Key]struct{}),
	}
}

// Owner returns the ID of the character the source is attached to, or "".
func (s *Source) Owner() string { return s.owner }

// Version increases on every flag mutation.
func (s *Source) Version() uint64 { return s.version }

// SetFlag stores a dictionary flag.
func (s *Source) SetFlag(key Key, value Value) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if s.dict == nil {
		s.dict = make(map[Key]Value)
	}
	if old, ok := s.dict[key]; ok && old == value {
		return nil
	}
	s.dict[key] = value
	s.version++
	return nil
}

// RemoveFlag deletes a dictionary flag.
func (s *Source) RemoveFlag(key Key) {
	if _, ok := s.dict[key]; !ok {
		return
	}
	delete(s.dict, key)
	s.version++
}

// Flag returns the raw dictionary flag value (zero Value when absent).
func (s *Source) Flag(key Key) Value {
	if s == nil {
		return Value{}
	}
	return s.dict[key]
}

// HasFlag reports whether the source holds a truthy dictionary flag.
func (s *Source) HasFlag(key Key) bool {
	return s.Flag(key).Truthy()
}

// FlagKeys lists dictionary flag keys in sorted order.
func (s *Source) FlagKeys() []Key {
	keys := make([]Key, 0, len(s.dict))
	for k := range s.dict {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// SetBool sets or clears a presence-only boolean flag.
func (s *Source) SetBool(key Key, on bool) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if s.bools == nil {
		s.bools = make(map[Key]struct{})
	}
	_, had := s.bools[key]
	switch {
	case on && !had:
		s.bools[key] = struct{}{}
	case !on && had:
		delete(s.bools, key)
	default:
		return nil
	}
	s.version++
	return nil
}

// HasBool reports whether the boolean flag is present.
func (s *Source) HasBool(key Key) bool {
	if s == nil {
		return false
	}
	_, ok := s.bools[key]
	return ok
}

// BoolKeys lists boolean flags in sorted order.
func (s *Source) BoolKeys() []Key {
	keys := make([]Key, 0, len(s.bools))
	for k := range s.bools {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
