package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/reviewgate/internal/gate"
	"github.com/dshills/reviewgate/internal/review"
)

// TextWriter outputs a human-readable explanation of a decision. Color is
// used only when w is a terminal.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, d gate.Decision) error {
	st := newStyles(w)
	ew := &errWriter{w: w}

	status := st.allowed.Render("ALLOWED")
	if !d.Allowed {
		status = st.blocked.Render("BLOCKED")
	}
	ew.printf("%s %s", status, d.Gate)
	if d.PR > 0 {
		ew.printf(" #%d", d.PR)
	}
	if d.Mode != "" {
		ew.printf(" (%s review)", d.Mode)
	}
	ew.println("")
	ew.println(d.Summary)

	if len(d.Reasons) > 0 {
		ew.printf("\n%s\n", st.heading.Render("Reasons"))
		for _, r := range d.Reasons {
			ew.printf("  - %s\n", r)
		}
	}

	for _, v := range d.Verdicts {
		if len(v.Issues) == 0 {
			continue
		}
		label := fmt.Sprintf("%s: %s", v.Source, v.Outcome)
		if v.Cached {
			label += " (cached)"
		}
		ew.printf("\n%s\n", st.heading.Render(label))
		writeIssues(ew, st, v.Issues)
	}

	if len(d.Chunks) > 0 {
		ew.printf("\n%s\n", st.heading.Render("Files"))
		for _, c := range d.Chunks {
			ew.printf("  %s\n", chunkLine(st, c))
			if c.Verdict != nil && len(c.Verdict.Issues) > 0 {
				writeIssues(ew, st, c.Verdict.Issues)
			}
		}
		if s := d.Counts; s != nil {
			ew.printf("  %s\n", st.dim.Render(fmt.Sprintf("%d reviewed, %d skipped, %d blocking, %d warning",
				s.Reviewed, s.Skipped, s.Blocking, s.Warning)))
		}
	}

	if len(d.Skipped) > 0 {
		ew.printf("\n%s\n", st.heading.Render("Not reviewed"))
		for _, f := range d.Skipped {
			ew.printf("  %s  +%d -%d\n", f.Path, f.Added, f.Removed)
		}
	}

	if len(d.Targeted) > 0 {
		ew.printf("\n%s\n", st.heading.Render("Merge review input"))
		for _, f := range d.Targeted {
			line := fmt.Sprintf("%-10s %-18s %s", f.Treatment, f.Category, f.Path)
			if f.Elided > 0 {
				line += fmt.Sprintf(" (%d lines elided)", f.Elided)
			}
			ew.printf("  %s\n", line)
		}
	}

	if text := d.ErrorText(); text != "" {
		ew.printf("\n%s %s\n", st.blocked.Render("error:"), text)
	}

	if len(d.Remediation) > 0 {
		ew.printf("\n%s\n", st.heading.Render("Next steps"))
		for _, cmd := range d.Remediation {
			ew.printf("  %s\n", st.command.Render(cmd))
		}
	}
	return ew.err
}

func writeIssues(ew *errWriter, st styles, issues []review.Issue) {
	for _, is := range issues {
		tag := st.warning.Render("[WARNING]")
		if is.Severity == review.SeverityBlocking {
			tag = st.blocking.Render("[BLOCKING]")
		}
		ew.printf("    %s %s", tag, is.Description)
		if is.Location != "" {
			ew.printf("  %s", st.dim.Render(is.Location))
		}
		ew.println("")
		if is.Details != "" {
			for _, line := range wrapText(is.Details, 70) {
				ew.printf("      %s\n", line)
			}
		}
	}
}

func chunkLine(st styles, c review.ChunkResult) string {
	switch {
	case c.Status == review.FileSkipped:
		return fmt.Sprintf("%s %s (%d lines): %s", label(st.skipped, "skipped"), c.Path, c.Lines, c.Reason)
	case c.Err != nil:
		return fmt.Sprintf("%s %s (%d lines): %v", label(st.skipped, "error"), c.Path, c.Lines, c.Err)
	case c.Verdict == nil:
		return fmt.Sprintf("%s %s (%d lines)", label(st.dim, "pending"), c.Path, c.Lines)
	case c.Verdict.HasBlocking():
		return fmt.Sprintf("%s %s (%d lines)", label(st.blocking, "FAIL"), c.Path, c.Lines)
	default:
		return fmt.Sprintf("%s %s (%d lines)", label(st.allowed, "PASS"), c.Path, c.Lines)
	}
}

// label renders word in a fixed-width column.
func label(s lipgloss.Style, word string) string {
	return s.Render(word) + strings.Repeat(" ", max(0, 8-len(word)))
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
