package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gofhir/contextgroups/pkg/issue"
	"github.com/gofhir/contextgroups/pkg/tracing"
	"github.com/gofhir/contextgroups/worker"
)

// ErrDuplicateOutput is returned when two batch targets write the same file.
var ErrDuplicateOutput = errors.New("duplicate output")

// Target is one wanted list and the file its groups are written to.
type Target struct {
	Wanted string
	Output string
}

// BatchReport is the outcome of RunBatch.
type BatchReport struct {
	// RunID identifies the shared stages; every target report has its own.
	RunID string

	// Diagnostics holds the issues of the shared load and close stages.
	Diagnostics *issue.Result

	// Reports has one entry per target, in target order. It is empty when
	// the shared stages failed.
	Reports []*Report

	Duration time.Duration
}

// RunBatch loads and closes the definition sources once, then selects and
// writes every target concurrently against the shared closed registry. A
// failing target does not stop the others; their errors are joined.
func (p *Pipeline) RunBatch(ctx context.Context, standard, extended string, targets []Target) (*BatchReport, error) {
	start := time.Now()
	br := &BatchReport{RunID: uuid.NewString()}

	if err := checkOutputs(targets); err != nil {
		br.Diagnostics = issue.NewResult()
		return br, err
	}

	shared := NewContext(Inputs{Standard: standard, Extended: extended})
	br.Diagnostics = shared.Diagnostics

	ctx, span := p.tracing.Tracer().Start(ctx, "contextgroups.batch",
		trace.WithAttributes(
			attribute.String(tracing.AttrRunID, br.RunID),
			attribute.Int(tracing.AttrTargets, len(targets)),
		))
	defer span.End()

	if err := p.executePhases(ctx, shared, p.prepare); err != nil {
		tracing.RecordError(span, err)
		br.Duration = time.Since(start)
		p.metrics.RecordRun(br.Duration, false)
		p.metrics.RecordIssues(shared.Diagnostics)
		return br, err
	}
	p.metrics.RecordIssues(shared.Diagnostics)

	br.Reports = make([]*Report, len(targets))
	jobs := make([]worker.Job, len(targets))
	for i, t := range targets {
		jobs[i] = worker.Job{
			ID: t.Output,
			Run: func(ctx context.Context) error {
				rep, err := p.runTarget(ctx, shared, t)
				br.Reports[i] = rep
				return err
			},
		}
	}

	result := worker.Run(ctx, p.options.Workers, jobs)
	for i, r := range result.Results {
		// jobs cancelled before they started never built a report
		if br.Reports[i] == nil {
			in := shared.Inputs
			in.Wanted, in.Output = targets[i].Wanted, targets[i].Output
			br.Reports[i] = &Report{RunID: uuid.NewString(), Inputs: in, Err: r.Error, Diagnostics: issue.NewResult(), Metrics: p.metrics}
			p.metrics.RecordRun(r.Duration, false)
		}
	}

	err := result.Err()
	tracing.RecordError(span, err)
	br.Duration = time.Since(start)
	return br, err
}

// runTarget runs the emit stages for one target. The target context shares
// the registries of shared but collects its own diagnostics.
func (p *Pipeline) runTarget(ctx context.Context, shared *Context, t Target) (*Report, error) {
	start := time.Now()
	id := uuid.NewString()
	in := shared.Inputs
	in.Wanted, in.Output = t.Wanted, t.Output

	pctx := &Context{
		Inputs:      in,
		Open:        shared.Open,
		LoadStats:   shared.LoadStats,
		Closed:      shared.Closed,
		Diagnostics: issue.NewResult(),
	}

	ctx, span := p.tracing.Tracer().Start(ctx, "contextgroups.target",
		trace.WithAttributes(
			attribute.String(tracing.AttrRunID, id),
			attribute.String(tracing.AttrOutput, t.Output),
		))
	err := p.executePhases(ctx, pctx, p.emit)
	tracing.RecordError(span, err)
	span.End()

	duration := time.Since(start)
	p.metrics.RecordRun(duration, err == nil)
	p.metrics.RecordIssues(pctx.Diagnostics)
	return p.newReport(id, pctx, duration, err), err
}

func checkOutputs(targets []Target) error {
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		key := filepath.Clean(t.Output)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateOutput, t.Output)
		}
		seen[key] = struct{}{}
	}
	return nil
}
