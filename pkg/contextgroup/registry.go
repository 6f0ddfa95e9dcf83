package contextgroup

// Registry maps context group identifiers to groups. It is built once per
// run and passed explicitly to each stage; it is not safe for concurrent
// mutation.
type Registry struct {
	groups map[Identifier]*Group
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		groups: make(map[Identifier]*Group),
	}
}

// Put stores g under its identifier. A group already registered under the
// same identifier is replaced and returned.
func (r *Registry) Put(g *Group) (replaced *Group) {
	replaced = r.groups[g.ID]
	r.groups[g.ID] = g
	return replaced
}

// Get returns the group registered under id.
func (r *Registry) Get(id Identifier) (*Group, bool) {
	g, ok := r.groups[id]
	return g, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id Identifier) bool {
	_, ok := r.groups[id]
	return ok
}

// Len returns the number of registered groups.
func (r *Registry) Len() int {
	return len(r.groups)
}

// IDs returns every registered identifier in Identifier order.
func (r *Registry) IDs() []Identifier {
	ids := make([]Identifier, 0, len(r.groups))
	for id := range r.groups {
		ids = append(ids, id)
	}
	SortIdentifiers(ids)
	return ids
}

// Groups returns every registered group in Identifier order.
func (r *Registry) Groups() []*Group {
	ids := r.IDs()
	out := make([]*Group, len(ids))
	for i, id := range ids {
		out[i] = r.groups[id]
	}
	return out
}
