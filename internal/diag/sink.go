package diag

import (
	"fmt"
	"io"
	"strings"
)

// TextSink renders diagnostics as the multi-line, human-facing format
// described in §7: message, source excerpt, caret underline, and suggested
// fix when available.
type TextSink struct {
	Out io.Writer
}

func NewTextSink(w io.Writer) *TextSink { return &TextSink{Out: w} }

func (s *TextSink) Report(d *Diagnostic) {
	fmt.Fprintf(s.Out, "error[%s]: %s\n", d.Code, d.Message)
	fmt.Fprintf(s.Out, "  --> %s:%d:%d\n", d.File, d.StartLine, d.StartCol)
	if d.Source != "" {
		lines := strings.Split(d.Source, "\n")
		idx := d.StartLine - 1
		if idx >= 0 && idx < len(lines) {
			line := lines[idx]
			fmt.Fprintf(s.Out, "   | %s\n", line)
			pad := strings.Repeat(" ", maxInt(d.StartCol-1, 0))
			width := maxInt(d.EndCol-d.StartCol, 1)
			fmt.Fprintf(s.Out, "   | %s%s\n", pad, strings.Repeat("^", width))
		}
	}
	for _, c := range d.Candidates {
		fmt.Fprintf(s.Out, "  candidate %s: mismatch at %v\n", c.Signature, c.MismatchIndex)
	}
	if u := d.Fix.Unified(d.File); u != "" {
		fmt.Fprint(s.Out, u)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// JSONSink renders each diagnostic as one JSON line, for tooling
// consumption.
type JSONSink struct {
	Out io.Writer
}

func NewJSONSink(w io.Writer) *JSONSink { return &JSONSink{Out: w} }

func (s *JSONSink) Report(d *Diagnostic) {
	fmt.Fprintln(s.Out, d.JSON())
}

// CollectingSink accumulates diagnostics in memory, useful for tests that
// want to assert on what would have been reported.
type CollectingSink struct {
	Diagnostics []*Diagnostic
}

func (s *CollectingSink) Report(d *Diagnostic) {
	s.Diagnostics = append(s.Diagnostics, d)
}
