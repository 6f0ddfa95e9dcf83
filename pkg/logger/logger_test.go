package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Warn("cannot find CID %s", "9999")
	l.Error("boom")

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "contextgroups")
	assert.Contains(t, out, "cannot find CID 9999")
	assert.Contains(t, out, "ERROR")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestSetLevelAndOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := New(&first, LevelError)
	l.Info("hidden")

	l.SetLevel(LevelDebug)
	l.SetOutput(&second)
	l.Debug("shown")

	assert.Empty(t, first.String())
	assert.Contains(t, second.String(), "shown")
	assert.Equal(t, LevelDebug, l.Level())
}

func TestNoneSilencesEverything(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelNone)
	l.Error("nothing")
	assert.Empty(t, buf.String())

	Nop().Error("also nothing")
}

func TestDefaultLogger(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	var buf bytes.Buffer
	SetDefault(New(&buf, LevelInfo))
	Info("loaded %d groups", 3)
	Debug("not shown")
	Disable()
	Warn("not shown either")

	assert.Contains(t, buf.String(), "loaded 3 groups")
	assert.NotContains(t, buf.String(), "not shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"off":     LevelNone,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "", LevelNone.String())
}

func TestNamedSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)
	child := l.Named("closure")

	child.Debug("hidden")
	l.SetLevel(LevelDebug)
	child.Debug("cycle through CID %s", "2")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "contextgroups.closure")
	assert.Contains(t, out, "cycle through CID 2")
	assert.Equal(t, LevelDebug, child.Level())
}

func TestFromZapFilters(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, LevelDebug).Zap()
	l := FromZap(base, LevelError)

	l.Warn("dropped")
	l.Error("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
