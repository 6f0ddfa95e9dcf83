// Package contextgroups closes DICOM-style context group definitions over
// their include graph and writes a selected subset of the closed groups.
//
// A context group lists coded concepts directly and may include other
// groups by identifier. The closure of a group is the union of its own
// concepts and those of every group reachable through includes, so
// consumers get self-contained code lists.
//
// # Quick Start
//
//	import (
//	    cg "github.com/gofhir/contextgroups"
//	    "github.com/gofhir/contextgroups/pipeline"
//	)
//
//	p, err := pipeline.New(cg.WithStrict(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := p.Run(ctx, pipeline.Inputs{
//	    Standard: "contextgroups.xml",
//	    Extended: "local.xml",
//	    Wanted:   "wanted.txt",
//	    Output:   "selected.xml",
//	})
//
// # Stages
//
//   - Load: parse every source, later sources replace earlier groups
//   - Close: compute each group's transitive closure, detecting cycles
//   - Select: keep wanted groups, optionally filtered by FHIRPath
//   - Write: definecontextgroups XML or FHIR ValueSet NDJSON
//
// The building blocks live under pkg/ and can be used on their own:
// pkg/loader, pkg/closure, pkg/selection, pkg/writer and pkg/valueset.
//
// Pipeline.RunBatch loads and closes once and writes several wanted lists
// concurrently. WithCheck turns the write stage into a comparison that
// fails with pipeline.ErrStale and a unified diff when the output on disk
// is out of date.
//
// # Functional Options
//
//	p, err := pipeline.New(
//	    cg.WithConceptOrder(writer.OrderInsertion),
//	    cg.WithFormat(cg.FormatFHIR),
//	    cg.WithPredicates("expansion.contains.where(system = 'http://snomed.info/sct').exists()"),
//	)
package contextgroups
