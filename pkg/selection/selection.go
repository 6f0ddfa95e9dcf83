// Package selection narrows the closed registry to the groups named in a
// wanted list, optionally further filtered by FHIRPath predicates.
package selection

import (
	"errors"
	"fmt"

	"github.com/gofhir/contextgroups/pkg/contextgroup"
	"github.com/gofhir/contextgroups/pkg/issue"
	"github.com/gofhir/contextgroups/pkg/logger"
)

const source = "selection"

// ErrWantedNotFound is returned in strict mode when a wanted identifier has
// no group.
var ErrWantedNotFound = errors.New("wanted context group not defined")

// Result is the outcome of Filter.
type Result struct {
	// Groups are the selected groups in identifier order.
	Groups []*contextgroup.Group

	// Missing lists wanted identifiers with no group, in wanted-list order.
	Missing []contextgroup.Identifier

	// Excluded lists groups that were wanted but failed a predicate.
	Excluded []contextgroup.Identifier
}

type options struct {
	strict      bool
	expressions []string
	cache       *ExpressionCache
	diagnostics *issue.Result
	log         *logger.Logger
}

// Option configures Filter.
type Option func(*options)

// WithStrict makes Filter fail when a wanted identifier has no group.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithPredicates adds FHIRPath expressions every selected group must satisfy.
func WithPredicates(exprs ...string) Option {
	return func(o *options) {
		o.expressions = append(o.expressions, exprs...)
	}
}

// WithExpressionCache shares compiled expressions across calls.
func WithExpressionCache(c *ExpressionCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithDiagnostics collects selection issues into d.
func WithDiagnostics(d *issue.Result) Option {
	return func(o *options) {
		o.diagnostics = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// Filter returns the groups of closed whose identifier is in wanted.
// Identifiers with no group are skipped and reported in Result.Missing.
func Filter(closed *contextgroup.Registry, wanted []contextgroup.Identifier, opts ...Option) (*Result, error) {
	o := &options{
		diagnostics: issue.NewResult(),
		log:         logger.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	predicates := make([]*Predicate, 0, len(o.expressions))
	for _, expr := range o.expressions {
		p, err := Compile(expr, o.cache)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, p)
	}

	res := &Result{}
	want := make(map[contextgroup.Identifier]struct{}, len(wanted))
	for _, id := range wanted {
		if _, dup := want[id]; dup {
			continue
		}
		want[id] = struct{}{}
		if !closed.Has(id) {
			res.Missing = append(res.Missing, id)
			o.diagnostics.Add(issue.DiagWantedNotFound, source, map[string]any{"cid": id}, id.String())
			o.log.Debug("Wanted CID %s is not defined", id)
		}
	}

	if o.strict && len(res.Missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrWantedNotFound, res.Missing)
	}

	for _, g := range closed.Groups() {
		if _, ok := want[g.ID]; !ok {
			continue
		}
		if !o.matchAll(g, predicates) {
			res.Excluded = append(res.Excluded, g.ID)
			continue
		}
		res.Groups = append(res.Groups, g)
	}

	o.log.Info("Selected %d of %d wanted context groups", len(res.Groups), len(want))
	return res, nil
}

// matchAll reports whether g satisfies every predicate. A predicate that
// cannot be evaluated excludes the group and is recorded as an error issue.
func (o *options) matchAll(g *contextgroup.Group, predicates []*Predicate) bool {
	for _, p := range predicates {
		ok, err := p.Match(g)
		if err != nil {
			o.diagnostics.Add(issue.DiagPredicateInvalid, source,
				map[string]any{"cid": g.ID, "expression": p.Expression, "error": err.Error()}, g.ID.String())
			o.log.Error("Could not evaluate '%s' on CID %s: %v", p.Expression, g.ID, err)
			return false
		}
		if !ok {
			o.diagnostics.Add(issue.DiagPredicateFailed, source,
				map[string]any{"cid": g.ID, "expression": p.Expression}, g.ID.String())
			o.log.Debug("CID %s excluded by '%s'", g.ID, p.Expression)
			return false
		}
	}
	return true
}
