package features

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/suderio/draconic-bonus/internal/engine"
	"github.com/suderio/draconic-bonus/internal/flags"
	"github.com/suderio/draconic-bonus/internal/stacking"
)

// ChangesKey identifies the inline changes contributor.
const ChangesKey = "changes"

// Changes contributes the changes a source declares on itself. Formulas
// prefixed with "defer:" are left for render time.
type Changes struct {
	log *zap.Logger
}

// NewChanges creates the inline changes contributor.
func NewChanges(log *zap.Logger) *Changes {
	if log == nil {
		log = zap.NewNop()
	}
	return &Changes{log: log}
}

func (c *Changes) Key() string { return ChangesKey }

func (c *Changes) IsActive(src *flags.Source) bool { return len(src.Changes) > 0 }

func (c *Changes) Contribute(src *flags.Source, p *engine.Pass) []stacking.Modifier {
	mods := make([]stacking.Modifier, 0, len(src.Changes))
	for i, ch := range src.Changes {
		op, err := stacking.ParseOperator(ch.Operator)
		if err != nil {
			c.log.Warn("change skipped", zap.String("source", src.ID), zap.Int("change", i), zap.Error(err))
			continue
		}
		formula := strings.TrimSpace(ch.Formula)
		if formula == "" {
			continue
		}

		var amount stacking.Amount
		if rest, ok := strings.CutPrefix(formula, "defer:"); ok {
			amount = stacking.Deferred(strings.TrimSpace(rest))
		} else if n, ok := stacking.ParseNumber(formula); ok {
			amount = stacking.Num(n)
		} else {
			amount = stacking.Num(p.Eval(src, flags.Key(fmt.Sprintf("change.%d", i)), flags.Text(formula)))
		}

		mods = append(mods, stacking.Modifier{
			Target:    ch.Target,
			Qualifier: ch.Qualifier,
			Operator:  op,
			Type:      stacking.BonusType(ch.Type),
			Amount:    amount,
			SourceID:  src.ID,
		})
	}
	return mods
}
