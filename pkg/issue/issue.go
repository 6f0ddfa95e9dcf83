// Package issue defines the diagnostics reported while building closed
// context groups. Issues describe recoverable conditions; fatal conditions
// are returned as errors by the stage that hit them.
package issue

import (
	"fmt"
	"io"
	"strings"
)

// Severity grades an issue. The values follow FHIR IssueSeverity.
type Severity string

const (
	SeverityFatal       Severity = "fatal"
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
)

func (s Severity) rank() int {
	switch s {
	case SeverityFatal:
		return 3
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as min or more.
func (s Severity) AtLeast(min Severity) bool {
	return s.rank() >= min.rank()
}

// Code classifies an issue. The values follow FHIR IssueType.
type Code string

const (
	CodeStructure     Code = "structure"
	CodeNotFound      Code = "not-found"
	CodeDuplicate     Code = "duplicate"
	CodeProcessing    Code = "processing"
	CodeInformational Code = "informational"
)

// Issue is a single diagnostic.
type Issue struct {
	Severity    Severity
	Code        Code
	Diagnostics string

	// CIDs lists the context groups the issue is about, outermost first.
	CIDs []string

	// Stage names the pipeline stage that reported the issue.
	Stage string

	// ID is the catalog entry the issue was built from, empty for ad hoc
	// issues.
	ID DiagnosticID
}

// String renders the issue on one line, e.g.
//
//	WARNING [not-found] Cannot find CID 5 to include in CID 4 @ CID 4
func (i Issue) String() string {
	s := fmt.Sprintf("%s [%s] %s", strings.ToUpper(string(i.Severity)), i.Code, i.Diagnostics)
	if len(i.CIDs) > 0 {
		s += " @ CID " + strings.Join(i.CIDs, " > ")
	}
	return s
}

// Result collects the issues of a run in report order. It is not safe for
// concurrent use; concurrent stages keep one Result each.
type Result struct {
	Issues []Issue
}

// NewResult creates an empty Result.
func NewResult() *Result {
	return &Result{Issues: make([]Issue, 0, 8)}
}

// Append adds iss as is.
func (r *Result) Append(iss Issue) {
	r.Issues = append(r.Issues, iss)
}

// Addf adds an ad hoc issue with a formatted message.
func (r *Result) Addf(sev Severity, code Code, cids []string, format string, args ...any) Issue {
	iss := Issue{
		Severity:    sev,
		Code:        code,
		Diagnostics: fmt.Sprintf(format, args...),
		CIDs:        cids,
	}
	r.Append(iss)
	return iss
}

// Count returns the number of issues of exactly sev.
func (r *Result) Count(sev Severity) int {
	n := 0
	for _, iss := range r.Issues {
		if iss.Severity == sev {
			n++
		}
	}
	return n
}

// HasErrors reports whether any issue is an error or fatal.
func (r *Result) HasErrors() bool {
	return r.ErrorCount() > 0
}

// ErrorCount counts error and fatal issues together.
func (r *Result) ErrorCount() int {
	return r.Count(SeverityError) + r.Count(SeverityFatal)
}

func (r *Result) WarningCount() int { return r.Count(SeverityWarning) }

func (r *Result) InfoCount() int { return r.Count(SeverityInformation) }

// Merge appends the issues of other.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// AtLeast returns a new Result holding the issues of severity min or worse.
func (r *Result) AtLeast(min Severity) *Result {
	out := NewResult()
	for _, iss := range r.Issues {
		if iss.Severity.AtLeast(min) {
			out.Issues = append(out.Issues, iss)
		}
	}
	return out
}

// ByID returns the issues built from catalog entry id.
func (r *Result) ByID(id DiagnosticID) []Issue {
	var out []Issue
	for _, iss := range r.Issues {
		if iss.ID == id {
			out = append(out, iss)
		}
	}
	return out
}

// WriteTo prints one issue per line.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, iss := range r.Issues {
		n, err := io.WriteString(w, iss.String()+"\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
