// Package pipeline runs the load, close, select and write stages over one
// set of inputs.
package pipeline

import (
	"github.com/gofhir/contextgroups/pkg/contextgroup"
	"github.com/gofhir/contextgroups/pkg/issue"
	"github.com/gofhir/contextgroups/pkg/loader"
	"github.com/gofhir/contextgroups/pkg/selection"
)

// Inputs names the files of one run.
type Inputs struct {
	// Standard is the standard definitions source.
	Standard string

	// Extended holds local definitions that replace standard groups with
	// the same identifier. Empty means none.
	Extended string

	// Wanted is the wanted list, one identifier per line.
	Wanted string

	// Output is the file the selected groups are written to.
	Output string
}

// Sources returns the definition sources in load order.
func (in Inputs) Sources() []string {
	sources := []string{in.Standard}
	if in.Extended != "" {
		sources = append(sources, in.Extended)
	}
	return sources
}

// Context holds the state of one run as it moves through the phases. Each
// phase fills in the fields the next one reads.
type Context struct {
	Inputs Inputs

	// Open holds the groups as loaded.
	Open *contextgroup.Registry

	// LoadStats has one entry per source, in load order.
	LoadStats []*loader.Stats

	// Closed holds the closure of every open group.
	Closed *contextgroup.Registry

	// Wanted is the parsed wanted list.
	Wanted []contextgroup.Identifier

	// Selection is the outcome of the select phase.
	Selection *selection.Result

	// Diff is the unified diff between the existing output and the
	// generated one, set by a check run that found them different.
	Diff string

	// Diagnostics collects the issues of every phase.
	Diagnostics *issue.Result
}

// NewContext creates an empty Context for in.
func NewContext(in Inputs) *Context {
	return &Context{
		Inputs:      in,
		Open:        contextgroup.NewRegistry(),
		Diagnostics: issue.NewResult(),
	}
}

// Selected returns the selected groups, or nil before the select phase.
func (c *Context) Selected() []*contextgroup.Group {
	if c.Selection == nil {
		return nil
	}
	return c.Selection.Groups
}
