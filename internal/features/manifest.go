// Package features holds the contributors that turn sources into modifier
// records: the inline changes a source declares, features declared in a YAML
// manifest, and the hook-driven features that rewrite other features' values.
package features

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/suderio/draconic-bonus/internal/flags"
	"github.com/suderio/draconic-bonus/internal/stacking"
)

//go:embed builtin.yaml
var builtinManifest []byte

// Manifest is a list of declared features.
type Manifest struct {
	Features []Definition `yaml:"features"`
}

// Definition declares one feature: which sources it applies to and the
// modifier each of them contributes.
type Definition struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
	// Requires lists flags a source must all hold.
	Requires []string `yaml:"requires"`
	// RequiresAny lists flags of which a source must hold at least one.
	RequiresAny []string `yaml:"requiresAny"`
	// RequiresBools lists boolean flags a source must all carry.
	RequiresBools []string `yaml:"requiresBools"`
	// Target may reference flags as {key}; they are replaced by the source's value.
	Target    string `yaml:"target"`
	Qualifier string `yaml:"qualifier"`
	Operator  string `yaml:"operator"`
	Type      string `yaml:"type"`
	// Exactly one of Value and FromFlag is set.
	Value    string `yaml:"value"`
	FromFlag string `yaml:"fromFlag"`
	// Deferred leaves Value unevaluated for render time.
	Deferred bool `yaml:"deferred"`
}

// Builtin returns the manifest shipped with the binary.
func Builtin() (*Manifest, error) {
	m, err := DecodeManifest(bytes.NewReader(builtinManifest))
	if err != nil {
		return nil, fmt.Errorf("builtin manifest: %w", err)
	}
	return m, nil
}

// LoadManifest reads a manifest YAML file.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", path, err)
	}
	defer f.Close()

	m, err := DecodeManifest(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest %s: %w", path, err)
	}
	return m, nil
}

// DecodeManifest parses and validates a manifest.
func DecodeManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	for i, d := range m.Features {
		if err := d.validate(); err != nil {
			return nil, fmt.Errorf("feature #%d (%s): %w", i, d.Key, err)
		}
	}
	return &m, nil
}

func (d Definition) validate() error {
	if d.Key == "" {
		return fmt.Errorf("missing key")
	}
	if d.Target == "" {
		return fmt.Errorf("missing target")
	}
	if _, err := stacking.ParseOperator(d.Operator); err != nil {
		return err
	}
	if (d.Value == "") == (d.FromFlag == "") {
		return fmt.Errorf("exactly one of value and fromFlag must be set")
	}
	if d.Deferred && d.Value == "" {
		return fmt.Errorf("deferred features need a value formula")
	}
	if len(d.Requires)+len(d.RequiresAny)+len(d.RequiresBools) == 0 && d.FromFlag == "" {
		return fmt.Errorf("feature would apply to every source; declare a requirement")
	}
	for _, k := range slices.Concat([]string{d.FromFlag}, d.Requires, d.RequiresAny, d.RequiresBools) {
		if k == "" {
			continue
		}
		if err := flags.Key(k).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Merge appends the features of other whose keys are not declared yet.
func (m *Manifest) Merge(other *Manifest) {
	if other == nil {
		return
	}
	seen := make(map[string]bool, len(m.Features))
	for _, d := range m.Features {
		seen[d.Key] = true
	}
	for _, d := range other.Features {
		if !seen[d.Key] {
			seen[d.Key] = true
			m.Features = append(m.Features, d)
		}
	}
}
