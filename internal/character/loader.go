package character

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/suderio/draconic-bonus/internal/flags"
	"github.com/suderio/draconic-bonus/internal/stacking"
)

// document is the YAML shape of a character file.
type document struct {
	ID         string             `yaml:"id"`
	Name       string             `yaml:"name"`
	Level      int                `yaml:"level"`
	Conditions []string           `yaml:"conditions"`
	Attributes map[string]float64 `yaml:"attributes"`
	Sources    []sourceDoc        `yaml:"sources"`
}

type sourceDoc struct {
	ID      string         `yaml:"id"`
	Name    string         `yaml:"name"`
	Kind    string         `yaml:"kind"`
	Active  *bool          `yaml:"active"`
	Flags   map[string]any `yaml:"flags"`
	Bools   []string       `yaml:"bools"`
	Changes []flags.Change `yaml:"changes"`
}

var abilities = []string{"str", "dex", "con", "int", "wis", "cha"}

// LoadCharacter reads a character YAML file and validates its flags against schema.
// A nil schema uses flags.DefaultSchema.
func LoadCharacter(path string, schema *flags.Schema, log *zap.Logger) (*Character, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open character %s: %w", path, err)
	}
	defer f.Close()

	ch, err := DecodeCharacter(f, schema, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load character %s: %w", path, err)
	}
	return ch, nil
}

// DecodeCharacter parses a character document. A source whose id repeats an
// earlier one is ignored with a warning; the first keeps its place.
func DecodeCharacter(r io.Reader, schema *flags.Schema, log *zap.Logger) (*Character, error) {
	if schema == nil {
		schema = flags.DefaultSchema()
	}
	if log == nil {
		log = zap.NewNop()
	}

	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode character: %w", err)
	}
	if doc.ID == "" {
		return nil, errors.New("character must have an id")
	}
	if doc.Name == "" {
		doc.Name = doc.ID
	}

	ch := New(doc.ID, doc.Name)
	ch.Level = doc.Level
	for _, cond := range doc.Conditions {
		ch.SetCondition(cond, true)
	}
	for path, v := range doc.Attributes {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("attribute %s is not a finite number", path)
		}
		ch.base.Set(path, v)
	}
	deriveAbilities(ch.base)

	var errs []error
	ignored := make(map[string]bool)
	for i, sd := range doc.Sources {
		if _, dup := ch.Source(sd.ID); dup {
			if !ignored[sd.ID] {
				log.Warn("duplicate source ignored, keeping the first",
					zap.String("character", ch.ID),
					zap.String("source", sd.ID),
					zap.Int("index", i))
				ignored[sd.ID] = true
			}
			continue
		}
		src, err := sd.build()
		if err != nil {
			errs = append(errs, fmt.Errorf("source #%d: %w", i, err))
			continue
		}
		errs = append(errs, schema.Validate(src)...)
		if err := ch.Attach(src); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return ch, nil
}

func (sd sourceDoc) build() (*flags.Source, error) {
	src := flags.NewSource(sd.ID, sd.Name, flags.SourceKind(sd.Kind))
	if src.Name == "" {
		src.Name = sd.ID
	}
	if sd.Active != nil {
		src.Active = *sd.Active
	}

	keys := make([]string, 0, len(sd.Flags))
	for k := range sd.Flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := flags.FromAny(sd.Flags[k])
		if err != nil {
			return nil, fmt.Errorf("%s flag %s: %w", sd.ID, k, err)
		}
		if err := src.SetFlag(flags.Key(k), v); err != nil {
			return nil, fmt.Errorf("%s: %w", sd.ID, err)
		}
	}
	for _, k := range sd.Bools {
		if err := src.SetBool(flags.Key(k), true); err != nil {
			return nil, fmt.Errorf("%s: %w", sd.ID, err)
		}
	}
	for i, c := range sd.Changes {
		if _, err := stacking.ParseOperator(c.Operator); err != nil {
			return nil, fmt.Errorf("%s change #%d: %w", sd.ID, i, err)
		}
		if c.Target == "" {
			return nil, fmt.Errorf("%s change #%d: missing target", sd.ID, i)
		}
	}
	src.Changes = sd.Changes
	return src, nil
}

// deriveAbilities fills in the modifier of every ability whose total is known.
func deriveAbilities(attrs *Attributes) {
	for _, abl := range abilities {
		prefix := "abilities." + abl + "."
		if !attrs.Has(prefix + "total") {
			continue
		}
		attrs.Set(prefix+"mod", stacking.AbilityModifier(
			attrs.Get(prefix+"total"),
			attrs.Get(prefix+"penalty"),
			attrs.Get(prefix+"damage"),
		))
	}
}
