package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const standardXML = `<definecontextgroups>
	<definecontextgroup cid="1" name="One" keyword="One" extensible="false" version="1">
		<contextgroupcode csd="DCM" cv="A" cm="Alpha"/>
	</definecontextgroup>
	<definecontextgroup cid="2" name="Two" keyword="Two" extensible="true" version="2">
		<include cid="1"/>
		<contextgroupcode csd="DCM" cv="C" cm="Gamma"/>
	</definecontextgroup>
	<definecontextgroup cid="3" name="Three" keyword="Three">
		<include cid="404"/>
		<contextgroupcode csd="SCT" cv="D" cm="Delta"/>
	</definecontextgroup>
</definecontextgroups>
`

const extendedXML = `<definecontextgroups>
	<definecontextgroup cid="1" name="One (local)" keyword="OneLocal" version="99">
		<contextgroupcode csd="99LOCAL" cv="Z" cm="Zeta"/>
	</definecontextgroup>
</definecontextgroups>
`

type files struct {
	dir      string
	standard string
	extended string
	wanted   string
	output   string
}

func setup(t *testing.T, wanted string) files {
	t.Helper()
	// keep config lookups away from the real home directory
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	return files{
		dir:      dir,
		standard: write("standard.xml", standardXML),
		extended: write("extended.xml", extendedXML),
		wanted:   write("wanted.txt", wanted),
		output:   filepath.Join(dir, "out.xml"),
	}
}

func run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = execute(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun(t *testing.T) {
	f := setup(t, "2\n")

	code, _, stderr := run(t, "--log-level", "none", f.standard, f.extended, f.wanted, f.output)
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(f.output)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `<definecontextgroup cid="2" name="Two" extensible="true" version="2">`)
	assert.Contains(t, out, `cv="Z"`, "extended group 1 replaces the standard one")
	assert.Contains(t, out, `cv="C"`)
	assert.NotContains(t, out, `cv="A"`)
	assert.NotContains(t, out, `cid="1"`)
}

func TestRunWrongArgCount(t *testing.T) {
	code, _, stderr := run(t, "a", "b", "c")
	assert.Equal(t, 1, code)
	assert.True(t, strings.HasPrefix(stderr, "Error: "), stderr)
}

func TestRunMissingStandard(t *testing.T) {
	f := setup(t, "2\n")

	code, _, stderr := run(t, "--log-level", "none",
		filepath.Join(f.dir, "nope.xml"), f.extended, f.wanted, f.output)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error: ")
	assert.NoFileExists(t, f.output)
}

func TestRunMissingIncludeWarns(t *testing.T) {
	f := setup(t, "3\n")

	code, stdout, stderr := run(t, "--log-level", "none", "--report",
		f.standard, f.extended, f.wanted, f.output)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Status: OK")
	assert.Contains(t, stdout, "Selected: 1, Missing: 0, Excluded: 0")
	assert.Contains(t, stdout, "WARN  Cannot find CID 404 to include in CID 3")
	assert.FileExists(t, f.output)
}

func TestRunStrict(t *testing.T) {
	f := setup(t, "3\n")

	code, _, stderr := run(t, "--log-level", "none", "--strict",
		f.standard, f.extended, f.wanted, f.output)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "could not be resolved")
	assert.NoFileExists(t, f.output)
}

func TestRunStrictFromEnv(t *testing.T) {
	f := setup(t, "3\n")
	t.Setenv("CONTEXTGROUPS_STRICT", "true")

	code, _, _ := run(t, "--log-level", "none", f.standard, f.extended, f.wanted, f.output)
	assert.Equal(t, 1, code)
}

func TestRunFHIR(t *testing.T) {
	f := setup(t, "1\n2\n")

	code, _, stderr := run(t, "--log-level", "none", "--format", "fhir",
		f.standard, f.extended, f.wanted, f.output)
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(f.output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"resourceType":"ValueSet"`)
}

func TestRunWhere(t *testing.T) {
	f := setup(t, "1\n2\n")

	code, stdout, stderr := run(t, "--log-level", "none", "--report",
		"--where", "expansion.contains.where(code = 'C').exists()",
		f.standard, f.extended, f.wanted, f.output)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Selected: 1, Missing: 0, Excluded: 1")
}

func TestRunInvalidOrder(t *testing.T) {
	f := setup(t, "2\n")

	code, _, stderr := run(t, "--order", "random", f.standard, f.extended, f.wanted, f.output)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid order")
}

func TestRunConfigFile(t *testing.T) {
	f := setup(t, "3\n")
	cfgPath := filepath.Join(f.dir, "contextgroups.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("strict: true\nlog_level: none\n"), 0o644))

	code, _, _ := run(t, "--config", cfgPath, f.standard, f.extended, f.wanted, f.output)
	assert.Equal(t, 1, code)
}

func TestRunCheck(t *testing.T) {
	f := setup(t, "2\n")

	code, stdout, stderr := run(t, "--log-level", "none", "--check", f.standard, f.extended, f.wanted, f.output)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "out of date")
	assert.Contains(t, stdout, "+++ "+f.output+" (generated)")
	assert.NoFileExists(t, f.output)

	code, _, stderr = run(t, "--log-level", "none", f.standard, f.extended, f.wanted, f.output)
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr = run(t, "--log-level", "none", "--check", f.standard, f.extended, f.wanted, f.output)
	assert.Equal(t, 0, code, stderr)
	assert.Empty(t, stdout)
}

func TestShow(t *testing.T) {
	f := setup(t, "")

	code, stdout, stderr := run(t, "show", "--log-level", "none", f.standard)
	require.Equal(t, 0, code, stderr)
	assert.True(t, strings.HasPrefix(stdout, "CID 1 One 1"), stdout)
	assert.Contains(t, stdout, "\tInclude 1\n")
	assert.Contains(t, stdout, "\t(C,DCM,\"Gamma\")\n")
}

func TestShowClosed(t *testing.T) {
	f := setup(t, "")

	code, stdout, stderr := run(t, "show", "--log-level", "none", "--closed", "--cid", "2",
		f.standard, f.extended)
	require.Equal(t, 0, code, stderr)
	assert.True(t, strings.HasPrefix(stdout, "CID 2 Two"), stdout)
	assert.Contains(t, stdout, "(Z,99LOCAL,\"Zeta\")")
	assert.Contains(t, stdout, "(C,DCM,\"Gamma\")")
	assert.NotContains(t, stdout, "CID 1 ")
}

func TestShowUnknownCID(t *testing.T) {
	f := setup(t, "")

	code, _, stderr := run(t, "show", "--log-level", "none", "--cid", "77", f.standard)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "context group 77 not found")
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "contextgroups.yaml")

	code, stdout, stderr := run(t, "config", "init", path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Wrote default configuration to")
	assert.FileExists(t, path)

	code, _, stderr = run(t, "config", "init", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error: ")
}

func TestBatch(t *testing.T) {
	f := setup(t, "1\n")
	second := filepath.Join(f.dir, "second.txt")
	require.NoError(t, os.WriteFile(second, []byte("2\n3\n"), 0o644))
	out2 := filepath.Join(f.dir, "second.xml")

	code, stdout, stderr := run(t, "batch", "--log-level", "none", "--workers", "2", "--report",
		f.standard, f.extended, f.wanted, f.output, second, out2)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "== "+f.output+" ==")
	assert.Contains(t, stdout, "== "+out2+" ==")
	assert.Contains(t, stdout, "Selected: 2, Missing: 0, Excluded: 0")

	data, err := os.ReadFile(out2)
	require.NoError(t, err)
	assert.Contains(t, string(data), `cid="2"`)
	assert.Contains(t, string(data), `cid="3"`)
	assert.FileExists(t, f.output)
}

func TestBatchOddArgs(t *testing.T) {
	f := setup(t, "1\n")

	code, _, stderr := run(t, "batch", f.standard, f.extended, f.wanted)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "wanted/output pairs")
}

func TestBatchFailedTarget(t *testing.T) {
	f := setup(t, "1\n")
	out2 := filepath.Join(f.dir, "second.xml")

	code, stdout, stderr := run(t, "batch", "--log-level", "none", "--report",
		f.standard, f.extended, filepath.Join(f.dir, "absent.txt"), out2, f.wanted, f.output)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, out2)
	assert.Contains(t, stdout, "Status: FAILED")
	assert.FileExists(t, f.output)
	assert.NoFileExists(t, out2)
}

func TestWatch(t *testing.T) {
	f := setup(t, "1\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs([]string{"watch", "--log-level", "none", "--debounce", "20ms",
		f.standard, f.extended, f.wanted, f.output})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(f.output)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(f.wanted, []byte("1\n2\n"), 0o644))
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(f.output)
		return err == nil && strings.Contains(string(data), `cid="2"`)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatchRecoversFromFailedRun(t *testing.T) {
	f := setup(t, "2\n")
	require.NoError(t, os.Remove(f.wanted))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stdout bytes.Buffer
	stderr := &lockedBuffer{}
	cmd := newRootCmd(&stdout, stderr)
	cmd.SetArgs([]string{"watch", "--log-level", "none", "--debounce", "20ms",
		f.standard, f.extended, f.wanted, f.output})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	// the first run fails on the missing wanted list; creating it triggers another
	require.Eventually(t, func() bool {
		return strings.Contains(stderr.String(), "Error: ")
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(f.wanted, []byte("2\n"), 0o644))
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(f.output)
		return err == nil && strings.Contains(string(data), `cid="2"`)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

// lockedBuffer is a bytes.Buffer safe to read while a command writes to it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
