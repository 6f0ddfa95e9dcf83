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

	cg "github.com/gofhir/contextgroups"
	"github.com/gofhir/contextgroups/internal/config"
	"github.com/gofhir/contextgroups/pkg/issue"
	"github.com/gofhir/contextgroups/pkg/logger"
	"github.com/gofhir/contextgroups/pkg/writer"
	"github.com/gofhir/contextgroups/pipeline"
)

type rootFlags struct {
	configFile string
	where      []string
	report     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := config.New()
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "contextgroups <standard> <extended> <wanted> <output>",
		Short: "Select and close DICOM context group definitions",
		Long: `Reads the standard and extended context group definitions, expands
every group over the groups it includes and writes the groups named in the
wanted list (one identifier per line) to the output file.

Extended definitions replace standard groups with the same identifier.

Examples:
  contextgroups standard.xml extended.xml wanted.txt out.xml
  contextgroups --strict standard.xml extended.xml wanted.txt out.xml
  contextgroups --format fhir standard.xml extended.xml wanted.txt out.ndjson
  contextgroups --where "expansion.contains.where(system = 'http://snomed.info/sct').exists()" \
      standard.xml extended.xml wanted.txt out.xml`,
		Version:       cg.Version,
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd, v)
			if err != nil {
				return err
			}
			in := pipeline.Inputs{
				Standard: args[0],
				Extended: args[1],
				Wanted:   args[2],
				Output:   args[3],
			}
			return runPipeline(cmd.Context(), cfg, in, f.report, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configFile, "config", "c", "",
		"config file (default: ./contextgroups.yaml or ~/.config/contextgroups/contextgroups.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn, error or none")
	pf.Bool("strict", false, "treat missing includes and missing wanted groups as errors")
	pf.String("order", "", "concept order in XML output: sorted or insertion")
	pf.String("format", "", "output format: xml or fhir")
	pf.String("schema-location", "", "xsi:noNamespaceSchemaLocation written on the output root")
	pf.Bool("trace", false, "export OpenTelemetry spans (stdout exporter unless configured otherwise)")
	pf.Bool("check", false, "exit 1 and print a diff when the output is out of date, without writing it")
	pf.StringArrayVar(&f.where, "where", nil, "FHIRPath expression every selected group must satisfy (repeatable)")
	pf.BoolVar(&f.report, "report", false, "print a run summary to stdout")

	_ = v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = v.BindPFlag("strict", pf.Lookup("strict"))
	_ = v.BindPFlag("order", pf.Lookup("order"))
	_ = v.BindPFlag("format", pf.Lookup("format"))
	_ = v.BindPFlag("schema_location", pf.Lookup("schema-location"))
	_ = v.BindPFlag("tracing.enabled", pf.Lookup("trace"))
	_ = v.BindPFlag("check", pf.Lookup("check"))

	cmd.AddCommand(newBatchCmd(v, f, stdout, stderr))
	cmd.AddCommand(newWatchCmd(v, f, stdout, stderr))
	cmd.AddCommand(newShowCmd(v, &f.configFile, stdout, stderr))
	cmd.AddCommand(newConfigCmd(stdout))
	return cmd
}

// load reads the configuration and applies the flags viper cannot bind.
func (f *rootFlags) load(cmd *cobra.Command, v *viper.Viper) (config.Config, error) {
	cfg, err := config.Read(v, f.configFile)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("where") {
		cfg.Where = append(cfg.Where, f.where...)
	}
	return cfg, nil
}

// options converts a loaded configuration to pipeline options.
func options(cfg config.Config, log *logger.Logger) ([]cg.Option, error) {
	order, err := writer.ParseOrder(cfg.Order)
	if err != nil {
		return nil, err
	}
	format := cg.Format(cfg.Format)
	if !format.IsValid() {
		return nil, fmt.Errorf("unsupported output format %q", cfg.Format)
	}
	return []cg.Option{
		cg.WithStrict(cfg.Strict),
		cg.WithFormat(format),
		cg.WithConceptOrder(order),
		cg.WithSchemaLocation(cfg.SchemaLocation),
		cg.WithPredicates(cfg.Where...),
		cg.WithExpressionCache(cfg.CacheSize),
		cg.WithWorkers(cfg.Workers),
		cg.WithCheck(cfg.Check),
		cg.WithLogger(log),
		cg.WithTracing(cfg.Tracing),
	}, nil
}

func newLogger(cfg config.Config, stderr io.Writer) *logger.Logger {
	return logger.New(stderr, logger.ParseLevel(cfg.LogLevel))
}

// newPipeline builds a pipeline from cfg. The returned function flushes
// spans and syncs the logger.
func newPipeline(cfg config.Config, stderr io.Writer) (*pipeline.Pipeline, func() error, error) {
	log := newLogger(cfg, stderr)
	opts, err := options(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error {
		defer func() { _ = log.Sync() }()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Shutdown(ctx); err != nil {
			return fmt.Errorf("flushing spans: %w", err)
		}
		return nil
	}
	return p, closeFn, nil
}

func runPipeline(ctx context.Context, cfg config.Config, in pipeline.Inputs, report bool, stdout, stderr io.Writer) (err error) {
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

	rep, err := p.Run(ctx, in)
	if report {
		printReport(stdout, rep)
	} else {
		printDiff(stdout, rep)
	}
	return err
}

// printDiff prints the diff of a stale output.
func printDiff(w io.Writer, rep *pipeline.Report) {
	if rep.Diff != "" {
		_, _ = io.WriteString(w, rep.Diff)
	}
}

func printReport(w io.Writer, rep *pipeline.Report) {
	status := "OK"
	if rep.Err != nil || rep.Diagnostics.HasErrors() {
		status = "FAILED"
	}

	fmt.Fprintf(w, "== %s ==\n", rep.Inputs.Output)
	fmt.Fprintf(w, "Run: %s\n", rep.RunID)
	fmt.Fprintf(w, "Status: %s\n", status)
	fmt.Fprintf(w, "Selected: %d, Missing: %d, Excluded: %d\n",
		len(rep.Selected), len(rep.Missing), len(rep.Excluded))
	fmt.Fprintf(w, "Errors: %d, Warnings: %d, Info: %d\n",
		rep.Diagnostics.ErrorCount(), rep.Diagnostics.WarningCount(), rep.Diagnostics.InfoCount())
	fmt.Fprintf(w, "Duration: %s\n", rep.Duration.Round(time.Microsecond))
	if rep.Err != nil {
		fmt.Fprintf(w, "Error: %v\n", rep.Err)
	}
	if rep.Diff != "" {
		fmt.Fprintln(w)
		printDiff(w, rep)
	}

	if len(rep.Diagnostics.Issues) > 0 {
		fmt.Fprintln(w, "\nIssues:")
		for _, iss := range rep.Diagnostics.Issues {
			fmt.Fprintf(w, "  %s %s\n", severityLabel(iss.Severity), iss.Diagnostics)
		}
	}
}

func severityLabel(s issue.Severity) string {
	switch s {
	case issue.SeverityFatal:
		return "FATAL"
	case issue.SeverityError:
		return "ERROR"
	case issue.SeverityWarning:
		return "WARN "
	case issue.SeverityInformation:
		return "INFO "
	default:
		return "     "
	}
}
