package features

import (
	"regexp"

	"github.com/suderio/draconic-bonus/internal/engine"
	"github.com/suderio/draconic-bonus/internal/flags"
	"github.com/suderio/draconic-bonus/internal/stacking"
)

var placeholder = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9_.:-]*)\}`)

// Declared is a contributor built from a manifest definition.
type Declared struct {
	def Definition
	op  stacking.Operator
}

// NewDeclared validates a definition and builds its contributor.
func NewDeclared(def Definition) (*Declared, error) {
	if err := def.validate(); err != nil {
		return nil, err
	}
	op, _ := stacking.ParseOperator(def.Operator)
	return &Declared{def: def, op: op}, nil
}

func (d *Declared) Key() string { return d.def.Key }

// Definition returns the definition the contributor was built from.
func (d *Declared) Definition() Definition { return d.def }

// IsActive reports whether src holds the flags the feature requires. A
// feature without requirements applies to sources holding its fromFlag.
func (d *Declared) IsActive(src *flags.Source) bool {
	for _, k := range d.def.Requires {
		if !src.HasFlag(flags.Key(k)) {
			return false
		}
	}
	for _, k := range d.def.RequiresBools {
		if !src.HasBool(flags.Key(k)) {
			return false
		}
	}
	if len(d.def.RequiresAny) > 0 && !slicesAny(d.def.RequiresAny, src.HasFlag) {
		return false
	}
	if len(d.def.Requires)+len(d.def.RequiresAny)+len(d.def.RequiresBools) == 0 {
		return src.HasFlag(flags.Key(d.def.FromFlag))
	}
	return true
}

func (d *Declared) Contribute(src *flags.Source, p *engine.Pass) []stacking.Modifier {
	target, ok := expand(d.def.Target, src)
	if !ok {
		return nil
	}
	qualifier, ok := expand(d.def.Qualifier, src)
	if !ok {
		return nil
	}

	var amount stacking.Amount
	switch {
	case d.def.FromFlag != "":
		amount = stacking.Num(p.Value(src, flags.Key(d.def.FromFlag)))
	case d.def.Deferred:
		amount = stacking.Deferred(d.def.Value)
	default:
		if n, ok := stacking.ParseNumber(d.def.Value); ok {
			amount = stacking.Num(n)
		} else {
			amount = stacking.Num(p.Eval(src, flags.Key("feature."+d.def.Key), flags.Text(d.def.Value)))
		}
	}

	return []stacking.Modifier{{
		Target:    target,
		Qualifier: qualifier,
		Operator:  d.op,
		Type:      stacking.BonusType(d.def.Type),
		Amount:    amount,
		SourceID:  src.ID,
	}}
}

// expand replaces {key} with the source's flag values. It fails when a
// referenced flag is absent or falsy.
func expand(tmpl string, src *flags.Source) (string, bool) {
	ok := true
	out := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		v := src.Flag(flags.Key(m[1 : len(m)-1]))
		if !v.Truthy() {
			ok = false
			return ""
		}
		return v.String()
	})
	return out, ok
}

func slicesAny(keys []string, has func(flags.Key) bool) bool {
	for _, k := range keys {
		if has(flags.Key(k)) {
			return true
		}
	}
	return false
}
