package contextgroup

import (
	"strings"
)

// Group is a context group definition: descriptive metadata, the groups it
// includes by identifier and the concepts it lists directly.
//
// A Group is filled in by loading, closed at most once by a resolver and then
// treated as read-only.
type Group struct {
	ID          Identifier
	Name        string
	Version     string
	UID         string
	Keyword     string
	Extensible  string
	FHIRKeyword string

	includes   []Identifier
	includeSet map[Identifier]struct{}
	concepts   *ConceptSet

	// closure is the memoized transitive closure of this group.
	closure *Group
}

// Metadata carries the descriptive attributes of a group.
type Metadata struct {
	Name        string
	Version     string
	UID         string
	Keyword     string
	Extensible  string
	FHIRKeyword string
}

// NewGroup creates an empty group.
func NewGroup(id Identifier, md Metadata) *Group {
	return &Group{
		ID:          id,
		Name:        md.Name,
		Version:     md.Version,
		UID:         md.UID,
		Keyword:     md.Keyword,
		Extensible:  md.Extensible,
		FHIRKeyword: md.FHIRKeyword,
		includeSet:  make(map[Identifier]struct{}),
		concepts:    NewConceptSet(),
	}
}

// Metadata returns the descriptive attributes of g.
func (g *Group) Metadata() Metadata {
	return Metadata{
		Name:        g.Name,
		Version:     g.Version,
		UID:         g.UID,
		Keyword:     g.Keyword,
		Extensible:  g.Extensible,
		FHIRKeyword: g.FHIRKeyword,
	}
}

// AddInclude records that g includes the group with identifier id.
// Repeated identifiers are ignored.
func (g *Group) AddInclude(id Identifier) {
	if g.includeSet == nil {
		g.includeSet = make(map[Identifier]struct{})
	}
	if _, ok := g.includeSet[id]; ok {
		return
	}
	g.includeSet[id] = struct{}{}
	g.includes = append(g.includes, id)
}

// Includes returns the included identifiers in the order they were added.
func (g *Group) Includes() []Identifier {
	out := make([]Identifier, len(g.includes))
	copy(out, g.includes)
	return out
}

// IncludesID reports whether g directly includes id.
func (g *Group) IncludesID(id Identifier) bool {
	_, ok := g.includeSet[id]
	return ok
}

// AddConcept adds c to the directly listed concepts. A concept already
// present by (scheme, value) is left as it is.
func (g *Group) AddConcept(c Concept) bool {
	if g.concepts == nil {
		g.concepts = NewConceptSet()
	}
	return g.concepts.Add(c)
}

// Concepts returns the concept set of g.
func (g *Group) Concepts() *ConceptSet {
	if g.concepts == nil {
		g.concepts = NewConceptSet()
	}
	return g.concepts
}

// Closure returns the memoized closure, or nil if g has not been closed yet.
func (g *Group) Closure() *Group {
	return g.closure
}

// SetClosure memoizes c as the closure of g. Only the first call has an
// effect; it returns false when a closure was already recorded.
func (g *Group) SetClosure(c *Group) bool {
	if g.closure != nil {
		return false
	}
	g.closure = c
	return true
}

// String renders g the way the context group tables list it: a header line
// followed by one tab-indented line per include and per concept.
func (g *Group) String() string {
	var b strings.Builder
	b.WriteString("CID ")
	b.WriteString(strings.Join([]string{
		g.ID.String(), g.Name, g.Version, g.UID, g.Keyword, g.Extensible, g.FHIRKeyword,
	}, " "))
	b.WriteString("\n")
	for _, id := range g.includes {
		b.WriteString("\tInclude ")
		b.WriteString(id.String())
		b.WriteString("\n")
	}
	for _, c := range g.Concepts().Items() {
		b.WriteString("\t")
		b.WriteString(c.String())
		b.WriteString("\n")
	}
	return b.String()
}
