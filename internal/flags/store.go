package flags

import "fmt"

// Store holds the sources attached to one character in attach order.
type Store struct {
	owner   string
	order   []string
	sources map[string]*Source
}

// NewStore creates an empty store owned by the given character ID.
func NewStore(owner string) *Store {
	return &Store{
		owner:   owner,
		sources: make(map[string]*Source),
	}
}

// Attach adds a source. A second source with the same ID is rejected and the
// first registration is kept.
func (st *Store) Attach(src *Source) error {
	if src == nil || src.ID == "" {
		return fmt.Errorf("source must have an ID")
	}
	if _, exists := st.sources[src.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, src.ID)
	}
	src.owner = st.owner
	st.sources[src.ID] = src
	st.order = append(st.order, src.ID)
	return nil
}

// Detach removes a source and clears its owner.
func (st *Store) Detach(id string) error {
	src, ok := st.sources[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	src.owner = ""
	delete(st.sources, id)
	for i, sid := range st.order {
		if sid == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a source by ID.
func (st *Store) Get(id string) (*Source, bool) {
	if st == nil {
		return nil, false
	}
	src, ok := st.sources[id]
	return src, ok
}

// Len returns the number of attached sources.
func (st *Store) Len() int {
	if st == nil {
		return 0
	}
	return len(st.order)
}

// Sources returns every attached source in attach order.
func (st *Store) Sources() []*Source {
	if st == nil {
		return nil
	}
	out := make([]*Source, 0, len(st.order))
	for _, id := range st.order {
		out = append(out, st.sources[id])
	}
	return out
}

// Active returns the active sources in attach order.
func (st *Store) Active() []*Source {
	if st == nil {
		return nil
	}
	out := make([]*Source, 0, len(st.order))
	for _, id := range st.order {
		if src := st.sources[id]; src.Active {
			out = append(out, src)
		}
	}
	return out
}
