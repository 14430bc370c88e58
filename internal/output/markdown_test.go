package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dshills/reviewgate/internal/gate"
	"github.com/dshills/reviewgate/internal/review"
)

func TestMarkdownWriter_Blocked(t *testing.T) {
	d := blockedCommit()
	d.Gate = gate.PreMergeGate
	d.PR = 42

	var buf bytes.Buffer
	if err := (&MarkdownWriter{}).Write(&buf, d); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"## :no_entry: reviewgate pre-merge for #42",
		"| Blocking | 1 |",
		"| Warning | 1 |",
		"<details open>",
		"### SQL built by concatenation",
		"**`db/query.go:42`** | claude",
		"> use a placeholder",
		"*Decision d-1*",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMarkdownWriter_ChunkIssuesUseFilePath(t *testing.T) {
	d := gate.Decision{
		Gate: gate.PreCommitGate,
		Chunks: []review.ChunkResult{{
			Path: "pkg/a.go",
			Verdict: &review.Verdict{Outcome: review.OutcomeFail, Source: "claude", Issues: []review.Issue{
				{Description: "nil map write", Severity: review.SeverityBlocking},
			}},
		}},
	}
	var buf bytes.Buffer
	if err := (&MarkdownWriter{}).Write(&buf, d); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if !strings.Contains(buf.String(), "**`pkg/a.go`**") {
		t.Errorf("chunk issue should be located at its file:\n%s", buf.String())
	}
}

func TestMarkdownWriter_EscapesReviewerText(t *testing.T) {
	d := gate.Decision{
		Gate:    gate.PreMergeGate,
		Summary: "blocked",
		Reasons: []string{"<script>alert(1)</script>"},
	}
	var buf bytes.Buffer
	if err := (&MarkdownWriter{}).Write(&buf, d); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Errorf("reviewer text should be escaped:\n%s", buf.String())
	}
}
