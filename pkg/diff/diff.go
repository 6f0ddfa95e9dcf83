// Package diff renders line-level unified diffs.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

type op struct {
	kind byte // ' ', '-' or '+'
	text string

	// lines of old and new preceding this op
	oldPos, newPos int
}

// Unified returns a unified diff turning old into new, labelled with
// oldName and newName. It returns "" when the inputs are equal.
func Unified(oldName, newName, old, new string, context int) string {
	if old == new {
		return ""
	}
	if context < 0 {
		context = DefaultContext
	}

	ops := lineOps(old, new)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", oldName, newName)
	for _, h := range hunks(ops, context) {
		writeHunk(&sb, ops[h[0]:h[1]])
	}
	return sb.String()
}

func lineOps(old, new string) []op {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	a, b, lines := dmp.DiffLinesToChars(old, new)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var ops []op
	oldPos, newPos := 0, 0
	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			o := op{text: line, oldPos: oldPos, newPos: newPos}
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				o.kind = ' '
				oldPos++
				newPos++
			case diffmatchpatch.DiffDelete:
				o.kind = '-'
				oldPos++
			case diffmatchpatch.DiffInsert:
				o.kind = '+'
				newPos++
			}
			ops = append(ops, o)
		}
	}
	return ops
}

// splitLines splits s after each newline. A final line without one is kept.
func splitLines(s string) []string {
	parts := strings.SplitAfter(s, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// hunks returns [start, end) op ranges covering every change with context
// lines on each side. Ranges closer than that are merged.
func hunks(ops []op, context int) [][2]int {
	var out [][2]int
	for i, o := range ops {
		if o.kind == ' ' {
			continue
		}
		start := max(0, i-context)
		end := min(len(ops), i+context+1)
		if n := len(out); n > 0 && start <= out[n-1][1] {
			out[n-1][1] = end
			continue
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func writeHunk(sb *strings.Builder, ops []op) {
	var oldCount, newCount int
	for _, o := range ops {
		if o.kind != '+' {
			oldCount++
		}
		if o.kind != '-' {
			newCount++
		}
	}
	fmt.Fprintf(sb, "@@ -%s +%s @@\n",
		span(ops[0].oldPos, oldCount), span(ops[0].newPos, newCount))

	for _, o := range ops {
		sb.WriteByte(o.kind)
		sb.WriteString(o.text)
		if !strings.HasSuffix(o.text, "\n") {
			sb.WriteString("\n\\ No newline at end of file\n")
		}
	}
}

func span(pos, count int) string {
	if count == 0 {
		return fmt.Sprintf("%d,0", pos)
	}
	return fmt.Sprintf("%d,%d", pos+1, count)
}
