package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cg "github.com/gofhir/contextgroups"
	"github.com/gofhir/contextgroups/pkg/contextgroup"
	"github.com/gofhir/contextgroups/pkg/issue"
	"github.com/gofhir/contextgroups/pkg/logger"
	"github.com/gofhir/contextgroups/pkg/selection"
	"github.com/gofhir/contextgroups/pkg/tracing"
)

// Pipeline runs the stages with a fixed configuration. It may be reused for
// several runs but not concurrently.
type Pipeline struct {
	options *cg.Options
	log     *logger.Logger
	metrics *cg.Metrics
	tracing *tracing.Provider
	exprs   *selection.ExpressionCache

	// prepare builds the closed registry; emit selects and writes one target.
	prepare []Phase
	emit    []Phase
	phases  []Phase

	// cache counters already reported to metrics
	cacheMu     sync.Mutex
	cacheHits   uint64
	cacheMisses uint64
}

// Report is the outcome of one run.
type Report struct {
	// RunID identifies the run in logs and spans.
	RunID string

	Inputs Inputs

	// Selected lists the identifiers written, in output order.
	Selected []contextgroup.Identifier

	// Missing lists wanted identifiers with no group.
	Missing []contextgroup.Identifier

	// Excluded lists wanted groups dropped by a predicate.
	Excluded []contextgroup.Identifier

	// Diff is set when a check run found the output out of date.
	Diff string

	// Err is the error that stopped the run, if any.
	Err error

	Duration    time.Duration
	Diagnostics *issue.Result
	Metrics     *cg.Metrics
}

// New creates a Pipeline. It fails only when the tracing exporter cannot
// be created or an option holds an invalid value.
func New(opts ...cg.Option) (*Pipeline, error) {
	o := cg.Apply(opts...)
	if !o.Format.IsValid() {
		return nil, fmt.Errorf("unsupported output format %q", o.Format)
	}

	provider, err := tracing.NewProvider(o.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	p := &Pipeline{
		options: o,
		log:     o.Logger,
		metrics: cg.NewMetrics(),
		tracing: provider,
		exprs:   selection.NewExpressionCache(o.ExpressionCacheSize),
	}
	p.prepare = []Phase{
		NewPhaseFunc(cg.StageLoad, p.load),
		NewPhaseFunc(cg.StageClose, p.closeGroups),
	}
	p.emit = []Phase{
		NewPhaseFunc(cg.StageSelect, p.selectGroups),
		NewPhaseFunc(cg.StageWrite, p.write),
	}
	p.phases = append(append([]Phase{}, p.prepare...), p.emit...)
	return p, nil
}

// Options returns the pipeline configuration.
func (p *Pipeline) Options() *cg.Options {
	return p.options
}

// Metrics returns the metrics accumulated over every run.
func (p *Pipeline) Metrics() *cg.Metrics {
	return p.metrics
}

// PhaseNames returns the stage names in execution order.
func (p *Pipeline) PhaseNames() []string {
	names := make([]string, len(p.phases))
	for i, ph := range p.phases {
		names[i] = ph.Name()
	}
	return names
}

// Shutdown flushes pending spans.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	return p.tracing.Shutdown(ctx)
}

// Run executes every stage over in. The returned Report is never nil and
// carries the diagnostics gathered up to the point of failure.
func (p *Pipeline) Run(ctx context.Context, in Inputs) (*Report, error) {
	start := time.Now()
	pctx := NewContext(in)
	id := uuid.NewString()

	ctx, span := p.tracing.Tracer().Start(ctx, "contextgroups.run",
		trace.WithAttributes(
			attribute.String(tracing.AttrRunID, id),
			attribute.String(tracing.AttrOutput, in.Output),
		))
	err := p.Execute(ctx, pctx)
	tracing.RecordError(span, err)
	span.End()

	duration := time.Since(start)
	p.metrics.RecordRun(duration, err == nil)
	p.metrics.RecordIssues(pctx.Diagnostics)

	return p.newReport(id, pctx, duration, err), err
}

func (p *Pipeline) newReport(id string, pctx *Context, duration time.Duration, err error) *Report {
	report := &Report{
		RunID:       id,
		Inputs:      pctx.Inputs,
		Diff:        pctx.Diff,
		Err:         err,
		Duration:    duration,
		Diagnostics: pctx.Diagnostics,
		Metrics:     p.metrics,
	}
	if pctx.Selection != nil {
		for _, g := range pctx.Selection.Groups {
			report.Selected = append(report.Selected, g.ID)
		}
		report.Missing = pctx.Selection.Missing
		report.Excluded = pctx.Selection.Excluded
	}
	return report
}

// Execute runs the phases over pctx in order, stopping at the first error
// or when ctx is cancelled.
func (p *Pipeline) Execute(ctx context.Context, pctx *Context) error {
	return p.executePhases(ctx, pctx, p.phases)
}

func (p *Pipeline) executePhases(ctx context.Context, pctx *Context, phases []Phase) error {
	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.executePhase(ctx, pctx, ph); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) executePhase(ctx context.Context, pctx *Context, ph Phase) error {
	ctx, span := p.tracing.Tracer().Start(ctx, "contextgroups."+ph.Name())
	defer span.End()

	start := time.Now()
	err := ph.Run(ctx, pctx)
	p.metrics.RecordStage(ph.Name(), time.Since(start))

	tracing.RecordError(span, err)
	return err
}

// recordCache reports expression cache lookups made since the last call.
func (p *Pipeline) recordCache() {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	s := p.exprs.Stats()
	p.metrics.RecordCache(s.Hits-p.cacheHits, s.Misses-p.cacheMisses)
	p.cacheHits, p.cacheMisses = s.Hits, s.Misses
}
