package contextgroup

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Identifier is a context group identifier (CID). Identifiers are strings
// but order numerically when they hold integers, so "9" sorts before "10".
type Identifier string

// String returns the identifier text.
func (id Identifier) String() string {
	return string(id)
}

// numeric returns the integer value of id and whether it is one.
func (id Identifier) numeric() (int64, bool) {
	if id == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Compare returns -1, 0 or +1.
//
// Two integer identifiers compare by value, with the text breaking ties
// ("010" and "10" are different identifiers). Two non-integer identifiers
// compare lexically. An integer identifier sorts before a non-integer one,
// which keeps the ordering total ("10" < "10a" < "9a").
//
// This departs on purpose from a plain lexical fallback for mixed pairs,
// under which "9" < "10" < "10a" < "9" and sorting is undefined. Here "9"
// sorts before "10a".
func (id Identifier) Compare(other Identifier) int {
	if id == other {
		return 0
	}
	a, aNum := id.numeric()
	b, bNum := other.numeric()
	switch {
	case aNum && bNum:
		if c := cmp.Compare(a, b); c != 0 {
			return c
		}
		return strings.Compare(string(id), string(other))
	case aNum:
		return -1
	case bNum:
		return 1
	default:
		return strings.Compare(string(id), string(other))
	}
}

// Less reports whether id orders before other.
func (id Identifier) Less(other Identifier) bool {
	return id.Compare(other) < 0
}

// SortIdentifiers sorts ids in place by Identifier.Compare.
func SortIdentifiers(ids []Identifier) {
	slices.SortFunc(ids, Identifier.Compare)
}

// SortGroups sorts groups in place by identifier.
func SortGroups(groups []*Group) {
	slices.SortFunc(groups, func(a, b *Group) int {
		return a.ID.Compare(b.ID)
	})
}

func sortConcepts(cs []Concept) {
	slices.SortFunc(cs, func(a, b Concept) int {
		return a.Key().Compare(b.Key())
	})
}
