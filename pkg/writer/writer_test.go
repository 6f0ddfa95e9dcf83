package writer

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/contextgroups/pkg/contextgroup"
	"github.com/gofhir/contextgroups/pkg/loader"
	"github.com/gofhir/contextgroups/pkg/logger"
)

func sampleGroups() []*contextgroup.Group {
	g10 := contextgroup.NewGroup("10", contextgroup.Metadata{Name: "Ten", Keyword: "TenKeyword", Extensible: "true", Version: "20240101"})
	g10.AddConcept(contextgroup.NewConcept("SCT", "2", "Second"))
	g10.AddConcept(contextgroup.NewConcept("DCM", "9", "Alpha & Omega"))
	g10.AddConcept(contextgroup.NewConcept("DCM", "1", "First"))

	g9 := contextgroup.NewGroup("9", contextgroup.Metadata{Keyword: "Nine", Extensible: "false", Version: "1"})
	return []*contextgroup.Group{g10, g9}
}

func TestWriteExactOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleGroups()))

	want := `<?xml version="1.0" encoding="UTF-8"?>
<definecontextgroups xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:noNamespaceSchemaLocation="http://www.pixelmed.com/schemas/contextgroups.xsd">
    <definecontextgroup cid="9" name="Nine" extensible="false" version="1"></definecontextgroup>
    <definecontextgroup cid="10" name="TenKeyword" extensible="true" version="20240101">
        <contextgroupcode csd="DCM" cv="1" cm="First"></contextgroupcode>
        <contextgroupcode csd="DCM" cv="9" cm="Alpha &amp; Omega"></contextgroupcode>
        <contextgroupcode csd="SCT" cv="2" cm="Second"></contextgroupcode>
    </definecontextgroup>
</definecontextgroups>
`
	assert.Equal(t, want, buf.String())
}

func TestWriteInsertionOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleGroups(), WithOrder(OrderInsertion)))

	out := buf.String()
	second := strings.Index(out, `cv="2"`)
	alpha := strings.Index(out, `cv="9"`)
	first := strings.Index(out, `cv="1"`)
	assert.True(t, second < alpha && alpha < first, "concepts should keep insertion order:\n%s", out)
}

func TestWriteSchemaLocation(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, WithSchemaLocation("contextgroups.xsd")))
	assert.Contains(t, buf.String(), `xsi:noNamespaceSchemaLocation="contextgroups.xsd"`)
	assert.NotContains(t, buf.String(), "<definecontextgroup ")
}

func TestWriteDoesNotReorderInput(t *testing.T) {
	groups := sampleGroups()
	require.NoError(t, Write(io.Discard, groups))
	assert.Equal(t, contextgroup.Identifier("10"), groups[0].ID)
}

// TestWriteRoundTrip checks that written output loads back with the same
// groups and concepts.
func TestWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleGroups()))

	reg := contextgroup.NewRegistry()
	_, err := loader.NewLoader(loader.WithLogger(logger.Nop())).Load(&buf, "roundtrip", reg)
	require.NoError(t, err)

	assert.Equal(t, []contextgroup.Identifier{"9", "10"}, reg.IDs())
	g, _ := reg.Get("10")
	assert.Equal(t, 3, g.Concepts().Len())
	c, ok := g.Concepts().Get(contextgroup.Key{Scheme: "DCM", Value: "9"})
	require.True(t, ok)
	assert.Equal(t, "Alpha & Omega", c.Meaning)
}

func TestParseOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    Order
		wantErr bool
	}{
		{"", OrderSorted, false},
		{"sorted", OrderSorted, false},
		{"insertion", OrderInsertion, false},
		{"random", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrder(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.xml")

	require.NoError(t, WriteFile(path, sampleGroups()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<?xml"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files should be left behind")
}

func TestAtomicWriteFailureKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.xml")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	boom := errors.New("boom")
	err := AtomicWrite(path, func(io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAtomicWriteMissingDirectory(t *testing.T) {
	err := AtomicWrite(filepath.Join(t.TempDir(), "nope", "out.xml"), func(w io.Writer) error {
		_, err := w.Write([]byte("x"))
		return err
	})
	assert.Error(t, err)
}
