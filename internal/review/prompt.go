package review

import (
	"fmt"
	"strings"
)

// Role distinguishes the reviewers of a single-pass review.
type Role string

const (
	RolePrimary     Role = "primary"
	RoleAdversarial Role = "adversarial"
)

const commitInstructions = `You are a strict code reviewer gating a commit. Review only the changes in the diff.
Report defects that would make this commit wrong to land: bugs, security problems, data loss, broken error handling, missing tests for risky logic.
Do not report style preferences.

Respond with free-form analysis if you like, then exactly one line:
VERDICT: PASS
or
VERDICT: FAIL

After the VERDICT line, list each problem as a block separated by a blank line:
ISSUE:
DESCRIPTION: one-line summary
SEVERITY: BLOCKING or WARNING
LOCATION: path:line
DETAILS: what is wrong and how to fix it

Use BLOCKING only for problems that must be fixed before the commit lands.`

const adversarialPreamble = `Assume the author is wrong. Look for the input, ordering, or failure mode that breaks this change, and for tests that pass without exercising it.
`

const mergeInstructions = `You are the final reviewer before a pull request is merged. You see a targeted diff: security-critical and commented files in full, other files possibly summarized or truncated (marked as such).
Decide whether the pull request is safe to merge as it stands.

Respond with free-form analysis if you like, then exactly one line:
VERDICT: SAFE_TO_MERGE
or
VERDICT: BLOCK_MERGE

After the VERDICT line, list each concern as a block separated by a blank line:
ISSUE:
DESCRIPTION: one-line summary
SEVERITY: BLOCKING or WARNING
LOCATION: path:line
DETAILS: what is wrong and how to fix it

Unresolved review comments that the diff does not address are BLOCKING.`

// CommitPrompt builds the single-pass prompt for a whole diff.
func CommitPrompt(diff string, files []string, role Role, rules *Rules) string {
	var b strings.Builder
	b.WriteString(commitInstructions)
	b.WriteString("\n\n")
	if role == RoleAdversarial {
		b.WriteString(adversarialPreamble)
	}
	writeContext(&b, files, rules)
	writeDiff(&b, diff)
	return b.String()
}

// FilePrompt builds the prompt for one file in chunked review.
func FilePrompt(path, diff string, rules *Rules) string {
	var b strings.Builder
	b.WriteString(commitInstructions)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "This is one file (%s) of a larger change; judge it on its own.\n", path)
	writeContext(&b, []string{path}, rules)
	writeDiff(&b, diff)
	return b.String()
}

// InlineComment is an unresolved review comment quoted to the merge reviewer.
type InlineComment struct {
	Path   string
	Line   int
	Author string
	Body   string
}

// MergeBrief is the pull request context for the merge prompt.
type MergeBrief struct {
	Number   int
	Title    string
	Body     string
	CI       CIState
	Failing  []string
	Comments []InlineComment
	Diff     TargetedDiff
}

// MergePrompt builds the pre-merge prompt.
func MergePrompt(m MergeBrief, rules *Rules) string {
	var b strings.Builder
	b.WriteString(mergeInstructions)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Pull request #%d: %s\n", m.Number, m.Title)
	if body := strings.TrimSpace(m.Body); body != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", body)
	}
	fmt.Fprintf(&b, "\nCI status: %s\n", m.CI)
	for _, name := range m.Failing {
		fmt.Fprintf(&b, "- failing check: %s\n", name)
	}
	if len(m.Comments) > 0 {
		b.WriteString("\nUnresolved inline review comments:\n")
		for _, c := range m.Comments {
			fmt.Fprintf(&b, "- %s:%d (%s): %s\n", c.Path, c.Line, c.Author, oneLine(c.Body))
		}
	}
	paths := make([]string, 0, len(m.Diff.Files))
	for _, f := range m.Diff.Files {
		paths = append(paths, f.Path)
	}
	writeContext(&b, paths, rules)
	writeDiff(&b, m.Diff.Text)
	return b.String()
}

func writeContext(b *strings.Builder, files []string, rules *Rules) {
	if langs := detectLanguages(files); len(langs) > 0 {
		fmt.Fprintf(b, "Languages: %s\n", strings.Join(langs, ", "))
	}
	b.WriteString(rules.PromptSection())
}

func writeDiff(b *strings.Builder, diff string) {
	b.WriteString("\n--- BEGIN DIFF ---\n")
	b.WriteString(diff)
	if !strings.HasSuffix(diff, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("--- END DIFF ---\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var langMap = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript/React",
	".jsx":   "JavaScript/React",
	".rs":    "Rust",
	".java":  "Java",
	".rb":    "Ruby",
	".c":     "C",
	".cpp":   "C++",
	".cs":    "C#",
	".php":   "PHP",
	".swift": "Swift",
	".kt":    "Kotlin",
	".sql":   "SQL",
	".sh":    "Shell",
	".tf":    "Terraform",
}

func detectLanguages(files []string) []string {
	seen := make(map[string]bool)
	var langs []string
	for _, f := range files {
		i := strings.LastIndexByte(f, '.')
		if i < 0 {
			continue
		}
		if lang, ok := langMap[f[i:]]; ok && !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	return langs
}
