package persona

// Store exposes persona lookup for the session registry and HTTP handlers.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store over a fixed slice.
type MemoryStore struct {
	items []Persona
	index map[string]int
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{
		items: make([]Persona, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	for _, item := range items {
		item.Traits = append([]string(nil), item.Traits...)
		s.index[item.ID] = len(s.items)
		s.items = append(s.items, item)
	}
	return s
}

// List returns a copy of the catalogue in seed order.
func (s *MemoryStore) List() []Persona {
	out := make([]Persona, len(s.items))
	for i, item := range s.items {
		item.Traits = append([]string(nil), item.Traits...)
		out[i] = item
	}
	return out
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	i, ok := s.index[id]
	if !ok {
		return Persona{}, false
	}
	item := s.items[i]
	item.Traits = append([]string(nil), item.Traits...)
	return item, true
}

// Resolve returns the persona for id, falling back to DefaultID when id is empty.
func Resolve(store Store, id string) (Persona, bool) {
	if id == "" {
		id = DefaultID
	}
	return store.FindByID(id)
}
