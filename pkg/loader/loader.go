// Package loader reads context group definitions ("definecontextgroups"
// documents) into a contextgroup.Registry.
package loader

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/gofhir/contextgroups/pkg/contextgroup"
	"github.com/gofhir/contextgroups/pkg/issue"
	"github.com/gofhir/contextgroups/pkg/logger"
)

// Element names of a context group definition document.
const (
	RootElement    = "definecontextgroups"
	GroupElement   = "definecontextgroup"
	IncludeElement = "include"
	CodeElement    = "contextgroupcode"
)

const source = "loader"

// ErrUnexpectedRoot is returned when a document's root element is not
// definecontextgroups.
var ErrUnexpectedRoot = errors.New("unexpected root element")

// StructureError reports a document that is well-formed XML but not a
// context group definition.
type StructureError struct {
	Source string
	Got    string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("%s: expected %s element got %s", e.Source, RootElement, e.Got)
}

// Unwrap returns ErrUnexpectedRoot.
func (e *StructureError) Unwrap() error {
	return ErrUnexpectedRoot
}

type xmlDocument struct {
	XMLName xml.Name
	Groups  []xmlGroup `xml:"definecontextgroup"`
}

type xmlGroup struct {
	CID         string       `xml:"cid,attr"`
	Name        string       `xml:"name,attr"`
	Version     string       `xml:"version,attr"`
	UID         string       `xml:"uid,attr"`
	Keyword     string       `xml:"keyword,attr"`
	Extensible  string       `xml:"extensible,attr"`
	FHIRKeyword string       `xml:"fhirkeyword,attr"`
	Includes    []xmlInclude `xml:"include"`
	Codes       []xmlCode    `xml:"contextgroupcode"`
	Other       []xmlOther   `xml:",any"`
}

type xmlInclude struct {
	CID string `xml:"cid,attr"`
}

type xmlCode struct {
	CSD                        string  `xml:"csd,attr"`
	CV                         string  `xml:"cv,attr"`
	CM                         string  `xml:"cm,attr"`
	SCT                        *string `xml:"sct,attr"`
	UMLSCUI                    *string `xml:"umlscui,attr"`
	PropertyTypeCIDForCategory *string `xml:"propertyTypeCIDForCategory,attr"`
}

type xmlOther struct {
	XMLName xml.Name
}

// Stats describes what one source contributed to a registry.
type Stats struct {
	Source      string
	Groups      int
	Includes    int
	Concepts    int
	Overwritten int
}

// Source is a parsed definition document that has not been merged yet.
type Source struct {
	Name   string
	Groups []*contextgroup.Group
	Issues *issue.Result
}

// Loader parses definition documents and merges them into a registry.
type Loader struct {
	log         *logger.Logger
	diagnostics *issue.Result
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for load progress and overwrites.
func WithLogger(l *logger.Logger) Option {
	return func(ld *Loader) {
		ld.log = l
	}
}

// WithDiagnostics collects load issues into r.
func WithDiagnostics(r *issue.Result) Option {
	return func(ld *Loader) {
		ld.diagnostics = r
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		log:         logger.Default(),
		diagnostics: issue.NewResult(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Diagnostics returns the issues collected so far.
func (l *Loader) Diagnostics() *issue.Result {
	return l.diagnostics
}

// Parse reads one definition document. It does not touch any registry, so
// several documents may be parsed concurrently.
func (l *Loader) Parse(r io.Reader, name string) (*Source, error) {
	var doc xmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if doc.XMLName.Local != RootElement {
		return nil, &StructureError{Source: name, Got: doc.XMLName.Local}
	}

	src := &Source{
		Name:   name,
		Groups: make([]*contextgroup.Group, 0, len(doc.Groups)),
		Issues: issue.NewResult(),
	}
	for i := range doc.Groups {
		src.Groups = append(src.Groups, buildGroup(&doc.Groups[i], name, src.Issues))
	}
	return src, nil
}

func buildGroup(xg *xmlGroup, name string, issues *issue.Result) *contextgroup.Group {
	g := contextgroup.NewGroup(contextgroup.Identifier(xg.CID), contextgroup.Metadata{
		Name:        xg.Name,
		Version:     xg.Version,
		UID:         xg.UID,
		Keyword:     xg.Keyword,
		Extensible:  xg.Extensible,
		FHIRKeyword: xg.FHIRKeyword,
	})
	if xg.CID == "" {
		issues.Add(issue.DiagGroupNoCID, source, map[string]any{"source": name})
	}

	for _, inc := range xg.Includes {
		g.AddInclude(contextgroup.Identifier(inc.CID))
	}

	for _, code := range xg.Codes {
		if code.CSD == "" {
			issues.Add(issue.DiagConceptNoScheme, source, map[string]any{"cv": code.CV, "cid": xg.CID}, xg.CID)
		}
		g.AddConcept(contextgroup.Concept{
			CodedConcept:               contextgroup.NewCodedConcept(code.CSD, code.CV, code.CM),
			SCT:                        code.SCT,
			UMLSCUI:                    code.UMLSCUI,
			PropertyTypeCIDForCategory: code.PropertyTypeCIDForCategory,
		})
	}

	for _, other := range xg.Other {
		local := other.XMLName.Local
		if local == IncludeElement || local == CodeElement {
			continue
		}
		issues.Add(issue.DiagUnknownElement, source, map[string]any{"element": local, "cid": xg.CID}, xg.CID)
	}
	return g
}

// Merge adds the groups of src to reg. A group whose identifier is already
// registered replaces the earlier definition.
func (l *Loader) Merge(src *Source, reg *contextgroup.Registry) *Stats {
	stats := &Stats{Source: src.Name}
	l.diagnostics.Merge(src.Issues)

	for _, g := range src.Groups {
		if prev := reg.Put(g); prev != nil {
			stats.Overwritten++
			l.diagnostics.Add(issue.DiagGroupRedefined, source,
				map[string]any{"cid": g.ID, "source": src.Name}, g.ID.String())
			l.log.Debug("CID %s redefined by %s", g.ID, src.Name)
		}
		stats.Groups++
		stats.Includes += len(g.Includes())
		stats.Concepts += g.Concepts().Len()
	}

	l.log.Info("Loaded %d context groups (%d concepts, %d includes) from %s",
		stats.Groups, stats.Concepts, stats.Includes, src.Name)
	return stats
}

// Load parses r and merges it into reg.
func (l *Loader) Load(r io.Reader, name string, reg *contextgroup.Registry) (*Stats, error) {
	src, err := l.Parse(r, name)
	if err != nil {
		return nil, err
	}
	return l.Merge(src, reg), nil
}

// LoadFile opens path and loads it into reg.
func (l *Loader) LoadFile(path string, reg *contextgroup.Registry) (*Stats, error) {
	src, err := l.parseFile(path)
	if err != nil {
		return nil, err
	}
	return l.Merge(src, reg), nil
}

func (l *Loader) parseFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open context group source: %w", err)
	}
	defer f.Close()
	return l.Parse(f, path)
}

// LoadFiles parses every path concurrently and then merges the results into
// reg in argument order, so a later path still overrides an earlier one.
// Nothing is merged if any path fails.
func (l *Loader) LoadFiles(ctx context.Context, reg *contextgroup.Registry, paths ...string) ([]*Stats, error) {
	sources := make([]*Source, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := l.parseFile(path)
			if err != nil {
				return err
			}
			sources[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := make([]*Stats, 0, len(sources))
	for _, src := range sources {
		stats = append(stats, l.Merge(src, reg))
	}
	return stats, nil
}
