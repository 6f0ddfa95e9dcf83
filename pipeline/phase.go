package pipeline

import (
	"context"
)

// Phase is one stage of a run. Phases run in order and share state through
// the Context; an error stops the run.
type Phase interface {
	// Name is recorded in metrics and spans.
	Name() string

	Run(ctx context.Context, pctx *Context) error
}

// RunFunc is the body of a stage.
type RunFunc func(ctx context.Context, pctx *Context) error

type funcPhase struct {
	name string
	run  RunFunc
}

func (f funcPhase) Name() string { return f.name }

func (f funcPhase) Run(ctx context.Context, pctx *Context) error { return f.run(ctx, pctx) }

// NewPhaseFunc names fn as a stage.
func NewPhaseFunc(name string, fn RunFunc) Phase {
	return funcPhase{name: name, run: fn}
}
