package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cg "github.com/gofhir/contextgroups"
	"github.com/gofhir/contextgroups/pkg/closure"
	"github.com/gofhir/contextgroups/pkg/diff"
	"github.com/gofhir/contextgroups/pkg/issue"
	"github.com/gofhir/contextgroups/pkg/loader"
	"github.com/gofhir/contextgroups/pkg/selection"
	"github.com/gofhir/contextgroups/pkg/tracing"
	"github.com/gofhir/contextgroups/pkg/valueset"
	"github.com/gofhir/contextgroups/pkg/writer"
)

// ErrStale is returned by a check run when the output differs from what
// would be written.
var ErrStale = errors.New("output is out of date")

func (p *Pipeline) load(ctx context.Context, pctx *Context) error {
	l := loader.NewLoader(
		loader.WithLogger(p.log.Named("loader")),
		loader.WithDiagnostics(pctx.Diagnostics),
	)
	stats, err := l.LoadFiles(ctx, pctx.Open, pctx.Inputs.Sources()...)
	if err != nil {
		return err
	}
	pctx.LoadStats = stats

	concepts := 0
	for _, s := range stats {
		p.metrics.RecordLoad(s.Groups, s.Overwritten)
		concepts += s.Concepts
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.StringSlice(tracing.AttrSource, pctx.Inputs.Sources()),
		attribute.Int(tracing.AttrGroups, pctx.Open.Len()),
		attribute.Int(tracing.AttrConcepts, concepts),
	)
	return nil
}

func (p *Pipeline) closeGroups(ctx context.Context, pctx *Context) error {
	r := closure.NewResolver(pctx.Open,
		closure.WithLogger(p.log.Named("closure")),
		closure.WithDiagnostics(pctx.Diagnostics),
		closure.WithStrict(p.options.Strict),
	)
	closed, err := r.ResolveAll()
	if err != nil {
		p.metrics.RecordClosure(0, r.MissingReferences())
		return err
	}
	pctx.Closed = closed
	p.metrics.RecordClosure(closed.Len(), r.MissingReferences())

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int(tracing.AttrGroups, closed.Len()),
		attribute.Int(tracing.AttrMissing, r.MissingReferences()),
	)
	p.log.Info("Closed %d context groups", closed.Len())
	return nil
}

func (p *Pipeline) selectGroups(ctx context.Context, pctx *Context) error {
	wanted, err := selection.ReadWantedFile(pctx.Inputs.Wanted)
	if err != nil {
		return err
	}
	pctx.Wanted = wanted

	res, err := selection.Filter(pctx.Closed, wanted,
		selection.WithStrict(p.options.Strict),
		selection.WithPredicates(p.options.Predicates...),
		selection.WithExpressionCache(p.exprs),
		selection.WithDiagnostics(pctx.Diagnostics),
		selection.WithLogger(p.log.Named("selection")),
	)
	p.recordCache()
	if err != nil {
		return err
	}
	pctx.Selection = res
	p.metrics.RecordSelection(len(res.Groups), len(res.Excluded), len(res.Missing))

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int(tracing.AttrWanted, len(wanted)),
		attribute.Int(tracing.AttrGroups, len(res.Groups)),
		attribute.Int(tracing.AttrMissing, len(res.Missing)),
		attribute.StringSlice(tracing.AttrPredicates, p.options.Predicates),
	)
	return nil
}

func (p *Pipeline) write(ctx context.Context, pctx *Context) error {
	groups := pctx.Selected()
	out := pctx.Inputs.Output

	encode := func(w io.Writer) error {
		return writer.Write(w, groups,
			writer.WithOrder(p.options.ConceptOrder),
			writer.WithSchemaLocation(p.options.SchemaLocation),
		)
	}
	if p.options.Format == cg.FormatFHIR {
		encode = func(w io.Writer) error {
			return valueset.WriteNDJSON(w, groups)
		}
	}

	if p.options.Check {
		return p.check(ctx, pctx, encode)
	}
	if err := writer.AtomicWrite(out, encode); err != nil {
		return err
	}

	concepts := 0
	for _, g := range groups {
		concepts += g.Concepts().Len()
	}
	p.metrics.RecordWrite(len(groups), concepts)

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String(tracing.AttrFormat, p.options.Format.String()),
		attribute.String(tracing.AttrOutput, out),
		attribute.Int(tracing.AttrGroups, len(groups)),
		attribute.Int(tracing.AttrConcepts, concepts),
	)
	p.log.Info("Wrote %d context groups with %d concepts to %s", len(groups), concepts, out)
	return nil
}

// check renders the output in memory and compares it with the file on
// disk. A missing file counts as empty.
func (p *Pipeline) check(ctx context.Context, pctx *Context, encode func(io.Writer) error) error {
	out := pctx.Inputs.Output

	var generated bytes.Buffer
	if err := encode(&generated); err != nil {
		return err
	}
	current, err := os.ReadFile(out)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", out, err)
	}

	d := diff.Unified(out, out+" (generated)", string(current), generated.String(), diff.DefaultContext)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String(tracing.AttrOutput, out),
		attribute.Bool(tracing.AttrStale, d != ""),
	)
	if d == "" {
		p.log.Info("%s is up to date", out)
		return nil
	}

	pctx.Diff = d
	pctx.Diagnostics.Add(issue.DiagOutputStale, cg.StageWrite, map[string]any{
		"output":  out,
		"changes": changedLines(d),
	})
	return fmt.Errorf("%w: %s", ErrStale, out)
}

func changedLines(unified string) int {
	n := 0
	for _, line := range strings.Split(unified, "\n") {
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++") {
			continue
		}
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "+") {
			n++
		}
	}
	return n
}
