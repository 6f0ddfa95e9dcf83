package contextgroups

import (
	"testing"
)

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestFormat_IsValid(t *testing.T) {
	tests := []struct {
		format Format
		want   bool
	}{
		{FormatXML, true},
		{FormatFHIR, true},
		{"csv", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tt.format.IsValid(); got != tt.want {
			t.Errorf("%q.IsValid() = %v; want %v", tt.format, got, tt.want)
		}
	}
}

func TestFormat_Extension(t *testing.T) {
	if got := FormatXML.Extension(); got != ".xml" {
		t.Errorf("FormatXML.Extension() = %q", got)
	}
	if got := FormatFHIR.Extension(); got != ".ndjson" {
		t.Errorf("FormatFHIR.Extension() = %q", got)
	}
	if got := FormatFHIR.String(); got != "fhir" {
		t.Errorf("FormatFHIR.String() = %q", got)
	}
}
