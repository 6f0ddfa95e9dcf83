package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gofhir/contextgroups/internal/config"
	"github.com/gofhir/contextgroups/pipeline"
)

func newBatchCmd(v *viper.Viper, f *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <standard> <extended> <wanted> <output> [<wanted> <output>...]",
		Short: "Write several wanted lists from one load of the definitions",
		Long: `Loads and closes the standard and extended definitions once, then writes
every wanted/output pair concurrently. A failing pair does not stop the
others.

Examples:
  contextgroups batch standard.xml extended.xml sr.txt sr.xml waveform.txt waveform.xml
  contextgroups batch --workers 2 --format fhir standard.xml extended.xml a.txt a.ndjson b.txt b.ndjson`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 4 || len(args)%2 != 0 {
				return fmt.Errorf("want two sources followed by wanted/output pairs, received %d arg(s)", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd, v)
			if err != nil {
				return err
			}
			return runBatch(cmd.Context(), cfg, args, f.report, stdout, stderr)
		},
	}
	cmd.Flags().Int("workers", 0, "targets written concurrently (default: one per CPU)")
	_ = v.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	return cmd
}

func runBatch(ctx context.Context, cfg config.Config, args []string, report bool, stdout, stderr io.Writer) (err error) {
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

	var targets []pipeline.Target
	for i := 2; i+1 < len(args); i += 2 {
		targets = append(targets, pipeline.Target{Wanted: args[i], Output: args[i+1]})
	}

	br, err := p.RunBatch(ctx, args[0], args[1], targets)
	for _, rep := range br.Reports {
		if report {
			printReport(stdout, rep)
			fmt.Fprintln(stdout)
		} else {
			printDiff(stdout, rep)
		}
	}
	return err
}
