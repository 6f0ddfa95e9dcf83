// Package closure computes the transitive closure of context groups: the
// union of a group's own concepts and those of every group it includes,
// to any depth.
package closure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofhir/contextgroups/pkg/contextgroup"
	"github.com/gofhir/contextgroups/pkg/issue"
	"github.com/gofhir/contextgroups/pkg/logger"
)

const source = "closure"

var (
	// ErrCycle is wrapped by CycleError.
	ErrCycle = errors.New("include cycle")

	// ErrMissingReference is returned in strict mode when an include
	// names a group that is not in the registry.
	ErrMissingReference = errors.New("missing include reference")
)

// CycleError reports a group that includes itself, directly or through
// other groups. Path starts and ends with the same identifier.
type CycleError struct {
	Path []contextgroup.Identifier
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycle, joinPath(e.Path))
}

// Unwrap returns ErrCycle.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}

func joinPath(path []contextgroup.Identifier) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = id.String()
	}
	return strings.Join(parts, " > ")
}

// Resolver closes the groups of one registry.
//
// Closures are memoized on the groups themselves, so a Resolver must not be
// used from several goroutines and the registry must be fully loaded before
// the first call.
type Resolver struct {
	registry    *contextgroup.Registry
	log         *logger.Logger
	diagnostics *issue.Result
	strict      bool

	missing int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger missing references are reported to.
func WithLogger(l *logger.Logger) Option {
	return func(r *Resolver) {
		r.log = l
	}
}

// WithDiagnostics collects closure issues into d.
func WithDiagnostics(d *issue.Result) Option {
	return func(r *Resolver) {
		r.diagnostics = d
	}
}

// WithStrict makes ResolveAll fail when any include cannot be resolved.
func WithStrict(strict bool) Option {
	return func(r *Resolver) {
		r.strict = strict
	}
}

// NewResolver creates a Resolver over registry.
func NewResolver(registry *contextgroup.Registry, opts ...Option) *Resolver {
	r := &Resolver{
		registry:    registry,
		log:         logger.Default(),
		diagnostics: issue.NewResult(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Diagnostics returns the issues collected so far.
func (r *Resolver) Diagnostics() *issue.Result {
	return r.diagnostics
}

// MissingReferences returns how many include edges could not be resolved.
func (r *Resolver) MissingReferences() int {
	return r.missing
}

// Resolve returns the closure of g. The result carries g's metadata and
// includes unchanged and every concept reachable from g. It is computed
// once and then returned from the memo on g.
func (r *Resolver) Resolve(g *contextgroup.Group) (*contextgroup.Group, error) {
	return r.resolve(g, make(map[contextgroup.Identifier]struct{}), nil)
}

func (r *Resolver) resolve(g *contextgroup.Group, active map[contextgroup.Identifier]struct{}, path []contextgroup.Identifier) (*contextgroup.Group, error) {
	if c := g.Closure(); c != nil {
		return c, nil
	}

	path = append(path, g.ID)
	if _, ok := active[g.ID]; ok {
		cycle := cyclePath(path)
		r.diagnostics.Add(issue.DiagIncludeCycle, source,
			map[string]any{"path": joinPath(cycle)}, identifierStrings(cycle)...)
		return nil, &CycleError{Path: cycle}
	}
	active[g.ID] = struct{}{}
	defer delete(active, g.ID)

	closed := contextgroup.NewGroup(g.ID, g.Metadata())
	for _, id := range g.Includes() {
		closed.AddInclude(id)
	}
	closed.Concepts().AddAll(g.Concepts())

	for _, id := range g.Includes() {
		included, ok := r.registry.Get(id)
		if !ok {
			r.missing++
			r.diagnostics.Add(issue.DiagIncludeNotFound, source,
				map[string]any{"include": id, "cid": g.ID}, g.ID.String(), id.String())
			r.log.Warn("Cannot find CID %s to include in CID %s", id, g.ID)
			continue
		}
		sub, err := r.resolve(included, active, path)
		if err != nil {
			return nil, err
		}
		closed.Concepts().AddAll(sub.Concepts())
	}

	g.SetClosure(closed)
	closed.SetClosure(closed)
	return closed, nil
}

// cyclePath trims path to the part that loops: from the first occurrence
// of its last identifier to the end.
func cyclePath(path []contextgroup.Identifier) []contextgroup.Identifier {
	last := path[len(path)-1]
	for i, id := range path[:len(path)-1] {
		if id == last {
			out := make([]contextgroup.Identifier, len(path)-i)
			copy(out, path[i:])
			return out
		}
	}
	return path
}

func identifierStrings(ids []contextgroup.Identifier) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// ResolveAll closes every group of the registry and returns a new registry
// holding the closed groups under the same identifiers. The open registry
// keeps its groups.
func (r *Resolver) ResolveAll() (*contextgroup.Registry, error) {
	closed := contextgroup.NewRegistry()
	for _, g := range r.registry.Groups() {
		c, err := r.Resolve(g)
		if err != nil {
			return nil, err
		}
		closed.Put(c)
	}

	if r.strict && r.missing > 0 {
		return nil, fmt.Errorf("%w: %d include(s) could not be resolved", ErrMissingReference, r.missing)
	}
	return closed, nil
}
