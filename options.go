package contextgroups

import (
	"github.com/gofhir/contextgroups/pkg/logger"
	"github.com/gofhir/contextgroups/pkg/tracing"
	"github.com/gofhir/contextgroups/pkg/writer"
)

// Option configures a pipeline.
type Option func(*Options)

// Options holds all configuration for one pipeline.
type Options struct {
	// Strict turns unresolved includes and undefined wanted groups into
	// errors instead of warnings.
	Strict bool

	// Output
	Format         Format
	ConceptOrder   writer.Order
	SchemaLocation string

	// Selection
	Predicates          []string
	ExpressionCacheSize int

	// Check compares the output with what would be written instead of
	// writing it.
	Check bool

	// Workers bounds the targets a batch run writes concurrently. Zero
	// means one per CPU.
	Workers int

	Logger  *logger.Logger
	Tracing tracing.Config
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		Strict:              false,
		Format:              FormatXML,
		ConceptOrder:        writer.OrderSorted,
		SchemaLocation:      writer.DefaultSchemaLocation,
		ExpressionCacheSize: 64,
		Logger:              logger.Default(),
		Tracing:             tracing.DefaultConfig(),
	}
}

// Apply returns DefaultOptions with opts applied in order.
func Apply(opts ...Option) *Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithStrict makes missing includes and missing wanted groups fatal.
func WithStrict(enable bool) Option {
	return func(o *Options) {
		o.Strict = enable
	}
}

// WithFormat sets the output format.
func WithFormat(f Format) Option {
	return func(o *Options) {
		o.Format = f
	}
}

// WithConceptOrder sets how concepts are ordered in XML output.
func WithConceptOrder(order writer.Order) Option {
	return func(o *Options) {
		o.ConceptOrder = order
	}
}

// WithSchemaLocation sets the xsi:noNamespaceSchemaLocation written on
// the output root. An empty location keeps the default.
func WithSchemaLocation(loc string) Option {
	return func(o *Options) {
		if loc != "" {
			o.SchemaLocation = loc
		}
	}
}

// WithPredicates adds FHIRPath expressions every selected group must satisfy.
func WithPredicates(exprs ...string) Option {
	return func(o *Options) {
		o.Predicates = append(o.Predicates, exprs...)
	}
}

// WithExpressionCache sets the compiled FHIRPath expression cache size.
func WithExpressionCache(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.ExpressionCacheSize = size
		}
	}
}

// WithWorkers sets how many batch targets are processed at once.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.Workers = n
		}
	}
}

// WithCheck enables check mode: the write stage reports a stale output
// instead of replacing it.
func WithCheck(enable bool) Option {
	return func(o *Options) {
		o.Check = enable
	}
}

// WithLogger sets the logger used by every stage.
func WithLogger(l *logger.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithTracing configures span export.
func WithTracing(cfg tracing.Config) Option {
	return func(o *Options) {
		o.Tracing = cfg
	}
}

// --- Presets ---

// StrictOptions fails on any dangling reference.
func StrictOptions() []Option {
	return []Option{
		WithStrict(true),
	}
}

// FHIROptions exports ValueSets with concepts in closure order.
func FHIROptions() []Option {
	return []Option{
		WithFormat(FormatFHIR),
		WithConceptOrder(writer.OrderInsertion),
	}
}
