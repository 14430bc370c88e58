package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/reviewgate/internal/gate"
	"github.com/dshills/reviewgate/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, d gate.Decision) error {
	ew := &errWriter{w: w}

	icon := ":white_check_mark:"
	if !d.Allowed {
		icon = ":no_entry:"
	}
	ew.printf("## %s reviewgate %s", icon, d.Gate)
	if d.PR > 0 {
		ew.printf(" for #%d", d.PR)
	}
	ew.printf("\n\n**%s**\n\n", mdEscape(d.Summary))

	var blocking, warnings []mdIssue
	for _, v := range d.Verdicts {
		for _, is := range v.Issues {
			mi := mdIssue{source: v.Source, Issue: is}
			if is.Severity == review.SeverityBlocking {
				blocking = append(blocking, mi)
			} else {
				warnings = append(warnings, mi)
			}
		}
	}
	for _, c := range d.Chunks {
		if c.Verdict == nil {
			continue
		}
		for _, is := range c.Verdict.Issues {
			if is.Location == "" {
				is.Location = c.Path
			}
			mi := mdIssue{source: c.Verdict.Source, Issue: is}
			if is.Severity == review.SeverityBlocking {
				blocking = append(blocking, mi)
			} else {
				warnings = append(warnings, mi)
			}
		}
	}

	if len(blocking)+len(warnings) > 0 {
		ew.printf("| Severity | Count |\n")
		ew.printf("|----------|-------|\n")
		ew.printf("| Blocking | %d |\n", len(blocking))
		ew.printf("| Warning | %d |\n\n", len(warnings))
	} else if len(d.Reasons) > 0 {
		for _, r := range d.Reasons {
			ew.printf("- %s\n", mdEscape(r))
		}
		ew.println("")
	}

	writeMDSection(ew, ":red_circle: BLOCKING", blocking, true)
	writeMDSection(ew, ":yellow_circle: WARNING", warnings, false)

	if len(d.Targeted) > 0 {
		ew.printf("<details>\n<summary>Reviewed files (%d)</summary>\n\n", len(d.Targeted))
		ew.printf("| File | Category | Treatment |\n")
		ew.printf("|------|----------|-----------|\n")
		for _, f := range d.Targeted {
			treatment := string(f.Treatment)
			if f.Elided > 0 {
				treatment += fmt.Sprintf(" (%d lines elided)", f.Elided)
			}
			ew.printf("| `%s` | %s | %s |\n", f.Path, f.Category, treatment)
		}
		ew.printf("\n</details>\n\n")
	}

	if len(d.Remediation) > 0 {
		ew.printf("**Next steps:**\n\n```sh\n%s\n```\n\n", strings.Join(d.Remediation, "\n"))
	}

	ew.printf("*Decision %s*\n", d.ID)
	return ew.err
}

type mdIssue struct {
	review.Issue
	source string
}

func writeMDSection(ew *errWriter, title string, issues []mdIssue, open bool) {
	if len(issues) == 0 {
		return
	}
	if open {
		ew.printf("<details open>\n")
	} else {
		ew.printf("<details>\n")
	}
	ew.printf("<summary>%s (%d)</summary>\n\n", title, len(issues))
	for _, is := range issues {
		ew.printf("### %s\n\n", mdEscape(is.Description))
		if is.Location != "" {
			ew.printf("**`%s`** | ", is.Location)
		}
		ew.printf("%s\n\n", is.source)
		if is.Details != "" {
			ew.printf("> %s\n\n", strings.ReplaceAll(is.Details, "\n", "\n> "))
		}
		ew.printf("---\n\n")
	}
	ew.printf("</details>\n\n")
}

// mdEscape keeps reviewer text from opening HTML elements in the comment.
func mdEscape(s string) string {
	return strings.NewReplacer("<", "&lt;", ">", "&gt;").Replace(s)
}
