package engine

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/suderio/draconic-bonus/internal/flags"
	"github.com/suderio/draconic-bonus/internal/stacking"
)

// ErrDuplicateContributor is returned when a contributor key is registered twice.
var ErrDuplicateContributor = errors.New("duplicate contributor")

// Contributor is a feature module: it decides whether a source participates
// and turns it into modifier records.
type Contributor interface {
	Key() string
	IsActive(src *flags.Source) bool
	Contribute(src *flags.Source, p *Pass) []stacking.Modifier
}

// Catalog is the ordered registry of contributors. The first registration of
// a key wins; later ones are reported once and ignored.
type Catalog struct {
	mu     sync.RWMutex
	order  []Contributor
	byKey  map[string]Contributor
	warned map[string]bool
	log    *zap.Logger
}

// NewCatalog creates an empty catalog.
func NewCatalog(log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{
		byKey:  make(map[string]Contributor),
		warned: make(map[string]bool),
		log:    log,
	}
}

// Register appends a contributor.
func (c *Catalog) Register(ct Contributor) error {
	if ct == nil || ct.Key() == "" {
		return fmt.Errorf("contributor must have a key")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := ct.Key()
	if _, exists := c.byKey[key]; exists {
		if !c.warned[key] {
			c.warned[key] = true
			c.log.Warn("contributor registered twice, keeping the first", zap.String("contributor", key))
		}
		return fmt.Errorf("%w: %s", ErrDuplicateContributor, key)
	}
	c.byKey[key] = ct
	c.order = append(c.order, ct)
	return nil
}

// Get looks up a contributor by key.
func (c *Catalog) Get(key string) (Contributor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ct, ok := c.byKey[key]
	return ct, ok
}

// Contributors returns a snapshot in registration order.
func (c *Catalog) Contributors() []Contributor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Contributor, len(c.order))
	copy(out, c.order)
	return out
}

// Keys lists contributor keys in registration order.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.order))
	for _, ct := range c.order {
		out = append(out, ct.Key())
	}
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
