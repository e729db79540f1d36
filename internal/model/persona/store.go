package persona

// Store exposes persona retrieval for HTTP handlers.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// CatalogStore implements Store over the fixed persona set.
type CatalogStore struct {
	items []Persona
}

// NewCatalogStore returns a store holding every built-in persona.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{items: All()}
}

// List returns the persona list in declaration order.
func (s *CatalogStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by its mode name.
func (s *CatalogStore) FindByID(id string) (Persona, bool) {
	parsed, ok := Parse(id)
	if !ok {
		return Persona{}, false
	}
	return s.items[parsed], true
}
