// Package engine runs recompute passes: it walks a character's active
// sources, asks every registered contributor for modifier records, folds them
// through the hook pipeline and lands them with the stacking resolver.
package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/suderio/draconic-bonus/internal/cache"
	"github.com/suderio/draconic-bonus/internal/character"
	"github.com/suderio/draconic-bonus/internal/flags"
	"github.com/suderio/draconic-bonus/internal/formula"
	"github.com/suderio/draconic-bonus/internal/hooks"
	"github.com/suderio/draconic-bonus/internal/stacking"
)

// ErrNoCharacter is returned when a pass is requested without a character.
var ErrNoCharacter = errors.New("no character")

// Config wires an Engine. Zero fields get defaults.
type Config struct {
	Catalog   *Catalog
	Hooks     *hooks.Registry
	Evaluator cache.Evaluator
	Rules     *stacking.Rules
	Logger    *zap.Logger
}

// Engine is the application-lifetime owner of the contributor catalog and
// the hook registry.
type Engine struct {
	catalog *Catalog
	hooks   *hooks.Registry
	eval    cache.Evaluator
	rules   *stacking.Rules
	log     *zap.Logger
}

// New creates an engine. Without an evaluator formulas are evaluated with CEL
// and crypto dice.
func New(cfg Config) (*Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		catalog: cfg.Catalog,
		hooks:   cfg.Hooks,
		eval:    cfg.Evaluator,
		rules:   cfg.Rules,
		log:     log,
	}
	if e.catalog == nil {
		e.catalog = NewCatalog(log.Named("catalog"))
	}
	if e.hooks == nil {
		e.hooks = hooks.NewRegistry(log.Named("hooks"))
	}
	if e.rules == nil {
		e.rules = stacking.DefaultRules()
	}
	if e.eval == nil {
		ev, err := formula.NewEvaluator(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create formula evaluator: %w", err)
		}
		e.eval = ev
	}
	return e, nil
}

func (e *Engine) Catalog() *Catalog      { return e.catalog }
func (e *Engine) Hooks() *hooks.Registry { return e.hooks }
func (e *Engine) Rules() *stacking.Rules { return e.rules }
func (e *Engine) Logger() *zap.Logger    { return e.log }

// Recompute runs one pass over ch. Live attributes restart from the baseline
// and the override table is rebuilt, so running it twice with unchanged
// inputs gives the same sheet. Resolution problems are logged and the
// affected modifier skipped; only a missing character is an error.
func (e *Engine) Recompute(ch *character.Character) (*Pass, error) {
	if ch == nil {
		return nil, ErrNoCharacter
	}
	if ch.Cache() == nil {
		ch.UseCache(cache.New(e.eval, e.log.Named("cache").With(zap.String("character", ch.ID))))
	}

	sheet := ch.Reset()
	p := &Pass{
		Character: ch,
		Context:   e.Context(ch),
		cache:     ch.Cache(),
	}
	p.cache.BeginPass(p.Context)

	active := e.activeSources(p)
	p.Flags = flags.Over(active)
	if p.Flags.HasBool(flags.KeyLosesDexToAC) {
		sheet.LoseDexToAC()
	}

	resolver := stacking.NewResolver(e.rules, ch.Table(), sheet, e.log.Named("stacking"))
	contributors := e.catalog.Contributors()

	for _, src := range active {
		var mods []stacking.Modifier
		for _, ct := range contributors {
			if !ct.IsActive(src) {
				continue
			}
			mods = append(mods, e.contribute(ct, src, p)...)
		}
		if len(mods) == 0 {
			continue
		}
		mods = hooks.Invoke(e.hooks, ContributionsPoint, mods, SourceEvent{Pass: p, Source: src})

		for _, m := range mods {
			if m.SourceID == "" {
				m.SourceID = src.ID
			}
			if m.Amount.Numeric() {
				v := hooks.Invoke(e.hooks, ModifierValuePoint, m.Amount.Value(), ModifierEvent{Pass: p, Source: src, Modifier: m})
				m.Amount = stacking.Num(v)
			}
			res := resolver.Apply(m)
			p.Results = append(p.Results, res)
			e.log.Debug("modifier resolved",
				zap.String("character", ch.ID),
				zap.String("source", m.SourceID),
				zap.String("path", m.Path()),
				zap.Stringer("outcome", res.Outcome),
				zap.Float64("delta", res.Delta))
		}
	}
	return p, nil
}

// activeSources lists the sources of ch taking part in the pass, in attach order.
func (e *Engine) activeSources(p *Pass) []*flags.Source {
	var out []*flags.Source
	for _, src := range p.Character.Sources() {
		if hooks.Invoke(e.hooks, SourceActivePoint, src.Active, SourceEvent{Pass: p, Source: src}) {
			out = append(out, src)
		}
	}
	return out
}

// contribute isolates a faulty contributor so the rest of the pass proceeds.
func (e *Engine) contribute(ct Contributor, src *flags.Source, p *Pass) (mods []stacking.Modifier) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error("contributor failed, source skipped for it",
				zap.String("contributor", ct.Key()),
				zap.String("source", src.ID),
				zap.Any("panic", rec))
			mods = nil
		}
	}()
	return ct.Contribute(src, p)
}

// Context builds the resolution context of ch from its live attributes, its
// level and its conditions (as 1).
func (e *Engine) Context(ch *character.Character) formula.Context {
	ctx := make(formula.Context, ch.Live().Len()+4)
	for path, v := range ch.Live().Values() {
		ctx[path] = v
	}
	ctx["level"] = float64(ch.Level)
	for _, cond := range ch.Conditions() {
		ctx["conditions."+cond] = float64(1)
	}
	return ctx
}

// RollData returns the context an action's roll is made against, after
// every RollData handler had its say.
func (e *Engine) RollData(ch *character.Character, action string) (formula.Context, error) {
	if ch == nil {
		return nil, ErrNoCharacter
	}
	ctx := e.Context(ch)
	ctx["action"] = action
	return hooks.Invoke(e.hooks, RollDataPoint, ctx, RollEvent{Character: ch, Action: action}), nil
}
