package contextgroups

import (
	"testing"

	"github.com/gofhir/contextgroups/pkg/logger"
	"github.com/gofhir/contextgroups/pkg/tracing"
	"github.com/gofhir/contextgroups/pkg/writer"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.Strict {
		t.Error("Strict should be false by default")
	}
	if opts.Format != FormatXML {
		t.Errorf("Format = %q; want xml", opts.Format)
	}
	if opts.ConceptOrder != writer.OrderSorted {
		t.Errorf("ConceptOrder = %q; want sorted", opts.ConceptOrder)
	}
	if opts.SchemaLocation != writer.DefaultSchemaLocation {
		t.Errorf("SchemaLocation = %q", opts.SchemaLocation)
	}
	if opts.ExpressionCacheSize != 64 {
		t.Errorf("ExpressionCacheSize = %d; want 64", opts.ExpressionCacheSize)
	}
	if opts.Logger == nil {
		t.Error("Logger should not be nil")
	}
	if opts.Tracing.Enabled {
		t.Error("tracing should be disabled by default")
	}
}

func TestOptions(t *testing.T) {
	l := logger.Nop()
	opts := Apply(
		WithStrict(true),
		WithFormat(FormatFHIR),
		WithConceptOrder(writer.OrderInsertion),
		WithSchemaLocation("local.xsd"),
		WithPredicates("a.exists()"),
		WithPredicates("b.exists()", "c.exists()"),
		WithExpressionCache(8),
		WithLogger(l),
		WithTracing(tracing.Config{Enabled: true, Exporter: "none"}),
	)

	if !opts.Strict {
		t.Error("WithStrict(true) should set Strict")
	}
	if opts.Format != FormatFHIR {
		t.Errorf("Format = %q; want fhir", opts.Format)
	}
	if opts.ConceptOrder != writer.OrderInsertion {
		t.Errorf("ConceptOrder = %q; want insertion", opts.ConceptOrder)
	}
	if opts.SchemaLocation != "local.xsd" {
		t.Errorf("SchemaLocation = %q", opts.SchemaLocation)
	}
	if len(opts.Predicates) != 3 || opts.Predicates[2] != "c.exists()" {
		t.Errorf("Predicates = %v", opts.Predicates)
	}
	if opts.ExpressionCacheSize != 8 {
		t.Errorf("ExpressionCacheSize = %d; want 8", opts.ExpressionCacheSize)
	}
	if opts.Logger != l {
		t.Error("WithLogger should set Logger")
	}
	if !opts.Tracing.Enabled {
		t.Error("WithTracing should set Tracing")
	}
}

func TestOptions_IgnoreEmptyValues(t *testing.T) {
	opts := Apply(WithSchemaLocation(""), WithExpressionCache(0), WithLogger(nil))

	if opts.SchemaLocation != writer.DefaultSchemaLocation {
		t.Errorf("empty schema location should keep default, got %q", opts.SchemaLocation)
	}
	if opts.ExpressionCacheSize != 64 {
		t.Errorf("zero cache size should keep default, got %d", opts.ExpressionCacheSize)
	}
	if opts.Logger == nil {
		t.Error("nil logger should keep default")
	}
}

func TestPresets(t *testing.T) {
	if opts := Apply(StrictOptions()...); !opts.Strict {
		t.Error("StrictOptions should enable Strict")
	}

	opts := Apply(FHIROptions()...)
	if opts.Format != FormatFHIR || opts.ConceptOrder != writer.OrderInsertion {
		t.Errorf("FHIROptions = %+v", opts)
	}
}
