package contextgroups

// Version is the release of this module. Builds may override it with
// -ldflags "-X github.com/gofhir/contextgroups.Version=...".
var Version = "0.4.0"

// Format is an output format.
type Format string

// Supported output formats.
const (
	// FormatXML writes a definecontextgroups document.
	FormatXML Format = "xml"
	// FormatFHIR writes one FHIR R4 ValueSet per line (NDJSON).
	FormatFHIR Format = "fhir"
)

// String returns the format name.
func (f Format) String() string {
	return string(f)
}

// IsValid reports whether f is a supported format.
func (f Format) IsValid() bool {
	switch f {
	case FormatXML, FormatFHIR:
		return true
	default:
		return false
	}
}

// Extension returns the conventional file extension for f.
func (f Format) Extension() string {
	if f == FormatFHIR {
		return ".ndjson"
	}
	return ".xml"
}
