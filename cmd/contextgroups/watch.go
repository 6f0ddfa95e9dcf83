package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gofhir/contextgroups/internal/config"
	"github.com/gofhir/contextgroups/internal/watcher"
	"github.com/gofhir/contextgroups/pipeline"
	"github.com/gofhir/contextgroups/worker"
)

func newWatchCmd(v *viper.Viper, f *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <standard> <extended> <wanted> <output>",
		Short: "Rewrite the output whenever a definition source or the wanted list changes",
		Long: `Runs once, then runs again each time the standard, extended or wanted
file is written. Runs never overlap; changes made during a run trigger one
more run after it. Failed runs are reported and watching continues. Stop
with Ctrl-C.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd, v)
			if err != nil {
				return err
			}
			in := pipeline.Inputs{Standard: args[0], Extended: args[1], Wanted: args[2], Output: args[3]}
			return runWatch(cmd.Context(), cfg, in, debounce, f.report, stdout, stderr)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "quiet period before a change triggers a run")
	return cmd
}

func runWatch(ctx context.Context, cfg config.Config, in pipeline.Inputs, debounce time.Duration, report bool, stdout, stderr io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	p, closeFn, err := newPipeline(cfg, stderr)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	log := p.Options().Logger.Named("watch")

	w, err := watcher.New(watcher.Config{
		Paths:    []string{in.Standard, in.Extended, in.Wanted},
		Debounce: debounce,
		Log:      log,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	changes, err := w.Start()
	if err != nil {
		return err
	}

	// One run at a time and at most one waiting: the waiting run reads the
	// inputs when it starts, so further changes add nothing.
	runs := worker.NewPoolQueue(ctx, 1, 1)
	defer runs.Stop()

	submit := func() {
		job := worker.Job{ID: in.Output, Run: func(ctx context.Context) error {
			rep, err := p.Run(ctx, in)
			if report {
				printReport(stdout, rep)
			}
			return err
		}}
		if !runs.TrySubmit(job) {
			log.Debug("Run already pending for %s", in.Output)
		}
	}

	submit()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			log.Info("Inputs changed, rewriting %s", in.Output)
			submit()
		case r := <-runs.Results():
			if r.Error != nil && ctx.Err() == nil {
				fmt.Fprintf(stderr, "Error: %v\n", r.Error)
			}
		}
	}
}
