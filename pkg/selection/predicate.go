package selection

import (
	"fmt"

	"github.com/gofhir/fhirpath"

	"github.com/gofhir/contextgroups/cache"
	"github.com/gofhir/contextgroups/pkg/contextgroup"
	"github.com/gofhir/contextgroups/pkg/valueset"
)

// ExpressionCache holds compiled FHIRPath expressions keyed by source text.
type ExpressionCache = cache.Cache[string, *fhirpath.Expression]

// NewExpressionCache creates an ExpressionCache of the given capacity.
func NewExpressionCache(capacity int) *ExpressionCache {
	return cache.New[string, *fhirpath.Expression](capacity)
}

// Predicate is a compiled FHIRPath expression evaluated against the
// ValueSet projection of a group.
type Predicate struct {
	Expression string
	compiled   *fhirpath.Expression
}

// Compile compiles expr, reusing a cached compilation when c has one.
// A nil cache compiles every time.
func Compile(expr string, c *ExpressionCache) (*Predicate, error) {
	compile := func() (*fhirpath.Expression, error) {
		return fhirpath.Compile(expr)
	}

	var (
		compiled *fhirpath.Expression
		err      error
	)
	if c != nil {
		compiled, err = c.GetOrLoad(expr, compile)
	} else {
		compiled, err = compile()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compile FHIRPath expression '%s': %w", expr, err)
	}
	return &Predicate{Expression: expr, compiled: compiled}, nil
}

// Match reports whether the predicate holds for g. An empty result is false,
// a single boolean is its value and any other non-empty result is true.
func (p *Predicate) Match(g *contextgroup.Group) (bool, error) {
	data, err := valueset.Marshal(g)
	if err != nil {
		return false, err
	}

	result, err := p.compiled.Evaluate(data)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate FHIRPath expression '%s': %w", p.Expression, err)
	}
	if result.Empty() {
		return false, nil
	}
	b, err := result.ToBoolean()
	if err != nil {
		return true, nil
	}
	return b, nil
}
