// Package contextgroup holds the in-memory model of DICOM context groups:
// coded concepts, group identifiers, groups and the registry they live in.
package contextgroup

import (
	"fmt"
	"strings"
)

// Key is the identity of a coded concept. Two concepts with the same
// coding scheme designator and code value are the same concept, whatever
// their code meaning says.
type Key struct {
	Scheme string
	Value  string
}

// String returns the key in "scheme|value" form.
func (k Key) String() string {
	return k.Scheme + "|" + k.Value
}

// Compare orders keys by scheme, then by value.
func (k Key) Compare(other Key) int {
	if c := strings.Compare(k.Scheme, other.Scheme); c != 0 {
		return c
	}
	return strings.Compare(k.Value, other.Value)
}

// CodedConcept is a (coding scheme designator, code value, code meaning) triple.
type CodedConcept struct {
	Scheme  string
	Value   string
	Meaning string
}

// NewCodedConcept creates a CodedConcept.
func NewCodedConcept(scheme, value, meaning string) CodedConcept {
	return CodedConcept{Scheme: scheme, Value: value, Meaning: meaning}
}

// Key returns the identity of the concept.
func (c CodedConcept) Key() Key {
	return Key{Scheme: c.Scheme, Value: c.Value}
}

// Equal reports whether both concepts share scheme and value.
// Meaning is descriptive and does not take part.
func (c CodedConcept) Equal(other CodedConcept) bool {
	return c.Key() == other.Key()
}

// String formats the concept as (value,scheme,"meaning").
func (c CodedConcept) String() string {
	return fmt.Sprintf("(%s,%s,%q)", c.Value, c.Scheme, c.Meaning)
}

// Concept is a coded concept as listed inside a context group. The
// cross-reference fields are informational and nil when the source
// did not carry them.
type Concept struct {
	CodedConcept

	// SCT is the equivalent SNOMED CT concept id, if any.
	SCT *string

	// UMLSCUI is the UMLS concept unique identifier, if any.
	UMLSCUI *string

	// PropertyTypeCIDForCategory is only present in a handful of groups.
	// It is carried through loading and not used further.
	PropertyTypeCIDForCategory *string
}

// NewConcept creates a Concept without cross references.
func NewConcept(scheme, value, meaning string) Concept {
	return Concept{CodedConcept: NewCodedConcept(scheme, value, meaning)}
}

// String formats the concept with its cross references, tab separated.
func (c Concept) String() string {
	var b strings.Builder
	b.WriteString(c.CodedConcept.String())
	if c.SCT != nil {
		b.WriteString("\t sct = ")
		b.WriteString(*c.SCT)
	}
	if c.UMLSCUI != nil {
		b.WriteString("\t umlscui = ")
		b.WriteString(*c.UMLSCUI)
	}
	return b.String()
}

// ConceptSet is an insertion-ordered set of concepts keyed by Key.
// Adding a concept whose key is already present is a no-op; the first
// occurrence (and its meaning) is kept.
type ConceptSet struct {
	index map[Key]int
	items []Concept
}

// NewConceptSet creates an empty set.
func NewConceptSet() *ConceptSet {
	return &ConceptSet{index: make(map[Key]int)}
}

// Add inserts c unless a concept with the same key exists.
// It returns true when the set grew.
func (s *ConceptSet) Add(c Concept) bool {
	if s.index == nil {
		s.index = make(map[Key]int)
	}
	k := c.Key()
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = len(s.items)
	s.items = append(s.items, c)
	return true
}

// AddAll inserts every concept of other, in other's order.
func (s *ConceptSet) AddAll(other *ConceptSet) {
	if other == nil {
		return
	}
	for _, c := range other.items {
		s.Add(c)
	}
}

// Contains reports whether a concept with key k is present.
func (s *ConceptSet) Contains(k Key) bool {
	_, ok := s.index[k]
	return ok
}

// Get returns the concept stored under k.
func (s *ConceptSet) Get(k Key) (Concept, bool) {
	i, ok := s.index[k]
	if !ok {
		return Concept{}, false
	}
	return s.items[i], true
}

// Len returns the number of concepts.
func (s *ConceptSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Items returns the concepts in insertion order. The slice is a copy.
func (s *ConceptSet) Items() []Concept {
	if s == nil {
		return nil
	}
	out := make([]Concept, len(s.items))
	copy(out, s.items)
	return out
}

// Keys returns the concept keys in insertion order.
func (s *ConceptSet) Keys() []Key {
	if s == nil {
		return nil
	}
	out := make([]Key, len(s.items))
	for i, c := range s.items {
		out[i] = c.Key()
	}
	return out
}

// Sorted returns the concepts ordered by (scheme, value).
func (s *ConceptSet) Sorted() []Concept {
	out := s.Items()
	sortConcepts(out)
	return out
}
