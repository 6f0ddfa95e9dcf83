package issue

import (
	"fmt"
	"sort"
	"strings"
)

// DiagnosticID names an entry of the diagnostic catalog.
type DiagnosticID string

// Loading.
const (
	DiagGroupRedefined  DiagnosticID = "GROUP_REDEFINED"
	DiagGroupNoCID      DiagnosticID = "GROUP_NO_CID"
	DiagUnknownElement  DiagnosticID = "UNKNOWN_ELEMENT"
	DiagConceptNoScheme DiagnosticID = "CONCEPT_NO_SCHEME"
)

// Closure.
const (
	DiagIncludeNotFound DiagnosticID = "INCLUDE_NOT_FOUND"
	DiagIncludeCycle    DiagnosticID = "INCLUDE_CYCLE"
)

// Selection.
const (
	DiagWantedNotFound   DiagnosticID = "WANTED_NOT_FOUND"
	DiagPredicateFailed  DiagnosticID = "PREDICATE_FAILED"
	DiagPredicateInvalid DiagnosticID = "PREDICATE_INVALID"
)

// Output.
const (
	DiagOutputStale DiagnosticID = "OUTPUT_STALE"
)

// Entry is one catalog message. Text uses {name} placeholders.
type Entry struct {
	Severity Severity
	Code     Code
	Text     string
}

var catalog = map[DiagnosticID]Entry{
	DiagGroupRedefined:   {SeverityInformation, CodeDuplicate, "CID {cid} from {source} replaces an earlier definition"},
	DiagGroupNoCID:       {SeverityWarning, CodeStructure, "Context group without cid in {source}"},
	DiagUnknownElement:   {SeverityInformation, CodeStructure, "Ignoring element '{element}' in CID {cid}"},
	DiagConceptNoScheme:  {SeverityWarning, CodeStructure, "Code '{cv}' in CID {cid} has no coding scheme designator"},
	DiagIncludeNotFound:  {SeverityWarning, CodeNotFound, "Cannot find CID {include} to include in CID {cid}"},
	DiagIncludeCycle:     {SeverityFatal, CodeStructure, "Include cycle: {path}"},
	DiagWantedNotFound:   {SeverityWarning, CodeNotFound, "Wanted CID {cid} is not defined"},
	DiagPredicateFailed:  {SeverityInformation, CodeInformational, "CID {cid} excluded by '{expression}'"},
	DiagPredicateInvalid: {SeverityError, CodeProcessing, "Could not evaluate '{expression}' on CID {cid}: {error}"},
	DiagOutputStale:      {SeverityError, CodeProcessing, "{output} is out of date: {changes} line(s) differ"},
}

// Lookup returns the catalog entry for id.
func Lookup(id DiagnosticID) (Entry, bool) {
	e, ok := catalog[id]
	return e, ok
}

// Format renders the message of id with params. Unknown ids render as
// the id itself.
func Format(id DiagnosticID, params map[string]any) string {
	e, ok := catalog[id]
	if !ok {
		return string(id)
	}
	return expand(e.Text, params)
}

func expand(text string, params map[string]any) string {
	if len(params) == 0 {
		return text
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(params[k]))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Add records the catalog diagnostic id reported by stage. An id missing
// from the catalog is recorded as a processing error.
func (r *Result) Add(id DiagnosticID, stage string, params map[string]any, cids ...string) Issue {
	e, ok := catalog[id]
	if !ok {
		e = Entry{SeverityError, CodeProcessing, string(id)}
	}
	iss := Issue{
		Severity:    e.Severity,
		Code:        e.Code,
		Diagnostics: expand(e.Text, params),
		CIDs:        cids,
		Stage:       stage,
		ID:          id,
	}
	r.Append(iss)
	return iss
}
