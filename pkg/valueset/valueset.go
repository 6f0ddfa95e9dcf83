// Package valueset projects closed context groups onto FHIR R4 ValueSet
// resources, one expansion entry per concept.
package valueset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gofhir/fhir/r4"

	"github.com/gofhir/contextgroups/pkg/contextgroup"
)

// URLPrefix is the base of the canonical URL of a DICOM context group.
const URLPrefix = "http://dicom.nema.org/medical/dicom/current/output/chtml/part16/sect_CID_"

// resourceType is the FHIR type name stamped on exported JSON.
const resourceType = "ValueSet"

// Coding scheme designators with a well-known FHIR system URI.
var systems = map[string]string{
	"DCM":    "http://dicom.nema.org/resources/ontology/DCM",
	"SCT":    "http://snomed.info/sct",
	"SRT":    "http://snomed.info/srt",
	"LN":     "http://loinc.org",
	"UCUM":   "http://unitsofmeasure.org",
	"UMLS":   "http://www.nlm.nih.gov/research/umls",
	"RADLEX": "http://www.radlex.org",
	"NCIt":   "http://ncicb.nci.nih.gov/xml/owl/EVS/Thesaurus.owl",
	"FMA":    "http://purl.org/sig/ont/fma",
	"MDC":    "urn:iso:std:iso:11073:10101",
}

// System returns the FHIR system URI for a coding scheme designator, or the
// designator itself when it has no known mapping.
func System(designator string) string {
	if uri, ok := systems[designator]; ok {
		return uri
	}
	return designator
}

// URL returns the canonical URL of the group with the given identifier.
func URL(id contextgroup.Identifier) string {
	return URLPrefix + id.String() + ".html"
}

// FromGroup builds a ValueSet from g. Empty metadata is left out.
func FromGroup(g *contextgroup.Group) *r4.ValueSet {
	vs := &r4.ValueSet{
		Url: ptr(URL(g.ID)),
	}

	name := g.FHIRKeyword
	if name == "" {
		name = g.Keyword
	}
	vs.Name = optional(name)
	vs.Title = optional(g.Name)
	vs.Version = optional(g.Version)

	if g.UID != "" {
		vs.Identifier = []r4.Identifier{{
			System: ptr("urn:ietf:rfc:3986"),
			Value:  ptr("urn:oid:" + g.UID),
		}}
	}

	items := g.Concepts().Items()
	contains := make([]r4.ValueSetExpansionContains, 0, len(items))
	for _, c := range items {
		contains = append(contains, r4.ValueSetExpansionContains{
			System:  ptr(System(c.Scheme)),
			Code:    ptr(c.Value),
			Display: optional(c.Meaning),
		})
	}
	vs.Expansion = &r4.ValueSetExpansion{Contains: contains}

	return vs
}

// Marshal returns the JSON form of g's ValueSet with its resourceType set.
func Marshal(g *contextgroup.Group) ([]byte, error) {
	data, err := json.Marshal(FromGroup(g))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal CID %s: %w", g.ID, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to marshal CID %s: %w", g.ID, err)
	}
	if _, ok := fields["resourceType"]; ok {
		return data, nil
	}
	fields["resourceType"] = resourceType
	return json.Marshal(fields)
}

// WriteNDJSON writes one ValueSet per line, in the order given.
func WriteNDJSON(w io.Writer, groups []*contextgroup.Group) error {
	bw := bufio.NewWriter(w)
	for _, g := range groups {
		data, err := Marshal(g)
		if err != nil {
			return err
		}
		if _, err := bw.Write(data); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func ptr(s string) *string {
	return &s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
