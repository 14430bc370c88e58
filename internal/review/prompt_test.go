package review

import (
	"strings"
	"testing"
)

func TestCommitPrompt(t *testing.T) {
	diff := "diff --git a/main.go b/main.go\n+++ b/main.go\n@@ -1,3 +1,4 @@\n+import \"fmt\"\n"
	prompt := CommitPrompt(diff, []string{"main.go"}, RolePrimary, nil)

	for _, want := range []string{"BEGIN DIFF", diff, "VERDICT: PASS", "VERDICT: FAIL", "SEVERITY: BLOCKING or WARNING", "Languages: Go"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "Assume the author is wrong") {
		t.Error("primary prompt should not carry the adversarial preamble")
	}
}

func TestCommitPrompt_Adversarial(t *testing.T) {
	prompt := CommitPrompt("d", nil, RoleAdversarial, nil)
	if !strings.Contains(prompt, "Assume the author is wrong") {
		t.Error("adversarial prompt should carry its preamble")
	}
}

func TestMergePrompt(t *testing.T) {
	brief := MergeBrief{
		Number:  41,
		Title:   "Add refresh tokens",
		CI:      CIFailure,
		Failing: []string{"unit-tests"},
		Comments: []InlineComment{
			{Path: "auth/token.go", Line: 12, Author: "bob", Body: "this leaks\nthe secret"},
		},
		Diff: TargetedDiff{Text: "diff --git a/auth/token.go b/auth/token.go\n", Files: []TargetedFile{{Path: "auth/token.go"}}},
	}
	prompt := MergePrompt(brief, &Rules{Focus: []string{"security"}})
	for _, want := range []string{
		"Pull request #41: Add refresh tokens",
		"CI status: failure",
		"- failing check: unit-tests",
		"- auth/token.go:12 (bob): this leaks the secret",
		"VERDICT: SAFE_TO_MERGE",
		"Focus areas: security",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestDetectLanguages(t *testing.T) {
	tests := []struct {
		files    []string
		expected []string
	}{
		{[]string{"main.go", "util.go"}, []string{"Go"}},
		{[]string{"app.py"}, []string{"Python"}},
		{[]string{"index.ts", "app.tsx"}, []string{"TypeScript", "TypeScript/React"}},
		{[]string{"README.md", "Makefile"}, nil},
	}
	for _, tt := range tests {
		langs := detectLanguages(tt.files)
		if len(langs) != len(tt.expected) {
			t.Errorf("detectLanguages(%v) = %v, want %v", tt.files, langs, tt.expected)
			continue
		}
		for i := range langs {
			if langs[i] != tt.expected[i] {
				t.Errorf("detectLanguages(%v)[%d] = %q, want %q", tt.files, i, langs[i], tt.expected[i])
			}
		}
	}
}
