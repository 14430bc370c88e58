package review

import (
	"fmt"
	"strings"
)

const verdictMarker = "VERDICT:"

// synthesizedIssue is attached to a FAIL that carries no issue blocks, so the
// failure still blocks.
var synthesizedIssue = Issue{
	Description: "reviewer reported FAIL without structured issues",
	Severity:    SeverityBlocking,
}

// ParseVerdict locates the first verdict marker line in output and parses
// the issue blocks that follow it. Text before the marker is ignored. The
// marker value must be one that kind accepts.
func ParseVerdict(output, agent string, kind Kind) (Verdict, error) {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	idx, value := findMarker(lines)
	if idx < 0 {
		return Verdict{}, &VerdictParseError{
			Agent:   agent,
			Reason:  "no VERDICT line",
			Excerpt: excerpt(output, 10),
			Err:     ErrNoVerdict,
		}
	}
	outcome := Outcome(value)
	if !kind.accepts(outcome) {
		return Verdict{}, &VerdictParseError{
			Agent:   agent,
			Reason:  fmt.Sprintf("unrecognized verdict %q for %s review", value, kind),
			Excerpt: strings.TrimSpace(lines[idx]),
		}
	}

	v := Verdict{
		Outcome: outcome,
		Issues:  parseIssues(lines[idx+1:]),
		Source:  agent,
		Raw:     output,
	}
	if (outcome == OutcomeFail || outcome == OutcomeBlockMerge) && len(v.Issues) == 0 {
		v.Issues = []Issue{synthesizedIssue}
	}
	return v, nil
}

// findMarker returns the index and normalized value of the first line that
// begins with the verdict marker, ignoring markdown emphasis and heading
// characters around it.
func findMarker(lines []string) (int, string) {
	for i, line := range lines {
		l := strings.TrimLeft(strings.TrimSpace(line), "*#> _`")
		if !strings.HasPrefix(strings.ToUpper(l), verdictMarker) {
			continue
		}
		rest := strings.TrimSpace(l[len(verdictMarker):])
		rest = strings.Trim(rest, "*_` ")
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return i, ""
		}
		return i, strings.ToUpper(strings.TrimRight(fields[0], ".,;:!*_`"))
	}
	return -1, ""
}

func parseIssues(lines []string) []Issue {
	var issues []Issue
	for i := 0; i < len(lines); {
		l := strings.TrimSpace(lines[i])
		if head, ok := cutField(l, "ISSUE"); ok {
			is, next := parseIssueBlock(lines, i+1)
			if is.Description == "" {
				is.Description = head
			}
			if is.Description != "" {
				issues = append(issues, is)
			}
			i = next
			continue
		}
		i++
	}
	return issues
}

// parseIssueBlock reads fields until a blank line or the next ISSUE header.
// A missing or unknown severity is BLOCKING.
func parseIssueBlock(lines []string, start int) (Issue, int) {
	var is Issue
	sev := ""
	var last *string
	i := start
	for ; i < len(lines); i++ {
		l := strings.TrimSpace(lines[i])
		if l == "" {
			break
		}
		if _, ok := cutField(l, "ISSUE"); ok {
			break
		}
		if v, ok := cutField(l, "DESCRIPTION"); ok {
			is.Description, last = v, &is.Description
		} else if v, ok := cutField(l, "SEVERITY"); ok {
			sev, last = v, nil
		} else if v, ok := cutField(l, "LOCATION"); ok {
			is.Location, last = v, &is.Location
		} else if v, ok := cutField(l, "DETAILS"); ok {
			is.Details, last = v, &is.Details
		} else if last != nil {
			*last = strings.TrimSpace(*last + " " + l)
		}
	}
	is.Severity = normalizeSeverity(sev)
	return is, i
}

func normalizeSeverity(s string) Severity {
	switch strings.ToUpper(strings.Trim(s, "*_` .")) {
	case "WARNING", "WARN", "MINOR", "LOW":
		return SeverityWarning
	default:
		return SeverityBlocking
	}
}

// cutField matches "NAME:" (optionally bulleted or emphasized) at the start
// of l and returns the trimmed value.
func cutField(l, name string) (string, bool) {
	l = strings.TrimLeft(l, "-*#> _`")
	if len(l) < len(name)+1 || !strings.EqualFold(l[:len(name)], name) {
		return "", false
	}
	rest := strings.TrimLeft(l[len(name):], "*_`")
	if !strings.HasPrefix(rest, ":") {
		return "", false
	}
	return strings.TrimSpace(strings.Trim(rest[1:], " *_`")), true
}
