package features

import (
	"errors"
	"fmt"

	"github.com/suderio/draconic-bonus/internal/engine"
	"github.com/suderio/draconic-bonus/internal/flags"
	"github.com/suderio/draconic-bonus/internal/hooks"
	"github.com/suderio/draconic-bonus/internal/stacking"
)

// FatesFavored adds 1 to every positive luck bonus while any active source
// carries the fatesFavored flag.
func FatesFavored(v float64, ev engine.ModifierEvent) float64 {
	if ev.Modifier.Type != stacking.Luck || v <= 0 || ev.Pass == nil {
		return v
	}
	if ev.Pass.Flags.HasBool(flags.KeyFatesFavored) {
		return v + 1
	}
	return v
}

// Register installs the inline changes contributor, every declared feature
// of m and the hook-driven features. Duplicate keys are reported and the
// first registration kept; the pass stays usable.
func Register(e *engine.Engine, m *Manifest) error {
	var errs []error

	if err := e.Catalog().Register(NewChanges(e.Logger().Named("features"))); err != nil {
		errs = append(errs, err)
	}
	if m != nil {
		for _, def := range m.Features {
			d, err := NewDeclared(def)
			if err != nil {
				errs = append(errs, fmt.Errorf("feature %s: %w", def.Key, err))
				continue
			}
			if err := e.Catalog().Register(d); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := hooks.Register(e.Hooks(), engine.ModifierValuePoint, "fatesFavored", FatesFavored); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
