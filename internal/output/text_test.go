package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/reviewgate/internal/classify"
	"github.com/dshills/reviewgate/internal/gate"
	"github.com/dshills/reviewgate/internal/review"
)

func blockedCommit() gate.Decision {
	return gate.Decision{
		ID:      "d-1",
		Gate:    gate.PreCommitGate,
		Kind:    gate.KindReviewFailed,
		Mode:    review.ModeFull,
		Summary: "review failed: 1 blocking issue(s)",
		Reasons: []string{"[claude] SQL built by concatenation (db/query.go:42)"},
		Verdicts: []review.Verdict{{
			Outcome: review.OutcomeFail,
			Source:  "claude",
			Issues: []review.Issue{
				{Description: "SQL built by concatenation", Severity: review.SeverityBlocking, Location: "db/query.go:42", Details: "use a placeholder"},
				{Description: "typo in log message", Severity: review.SeverityWarning},
			},
		}},
	}
}

func TestTextWriter_Blocked(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextWriter{}).Write(&buf, blockedCommit()); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"BLOCKED pre-commit (full review)",
		"review failed: 1 blocking issue(s)",
		"[BLOCKING] SQL built by concatenation  db/query.go:42",
		"use a placeholder",
		"[WARNING] typo in log message",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("non-terminal output should not contain ANSI escapes")
	}
}

func TestTextWriter_Chunked(t *testing.T) {
	d := gate.Decision{
		Gate:    gate.PreCommitGate,
		Allowed: true,
		Kind:    gate.KindAllowed,
		Mode:    review.ModeChunked,
		Summary: "review passed: 1 file(s) reviewed, 2 skipped, 0 warning(s)",
		Chunks: []review.ChunkResult{
			{Path: "gen/big.go", Lines: 900, Status: review.FileSkipped, Reason: "exceeds chunk ceiling"},
			{Path: "a.go", Lines: 10, Status: review.FileReviewed, Verdict: &review.Verdict{Outcome: review.OutcomePass}},
			{Path: "b.go", Lines: 12, Status: review.FileReviewed, Err: errors.New("reviewer claude timed out")},
		},
		Counts: &review.ChunkSummary{Reviewed: 1, Skipped: 2},
	}
	var buf bytes.Buffer
	if err := (&TextWriter{}).Write(&buf, d); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"ALLOWED pre-commit (chunked review)",
		"skipped  gen/big.go (900 lines): exceeds chunk ceiling",
		"PASS     a.go (10 lines)",
		"error    b.go (12 lines): reviewer claude timed out",
		"1 reviewed, 2 skipped, 0 blocking, 0 warning",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTextWriter_AuthorizationMissing(t *testing.T) {
	d := gate.Decision{
		Gate:    gate.PreMergeGate,
		PR:      16,
		Kind:    gate.KindAuthorization,
		Summary: "merge review passed; human authorization required",
		Targeted: []review.TargetedFile{
			{Path: "auth/login.go", Category: classify.CategorySecurity, Treatment: review.Verbatim},
			{Path: "svc/handler.go", Category: classify.CategoryCode, Treatment: review.Truncated, Elided: 120},
		},
		Remediation: []string{`reviewgate lock authorize 16 --reason "<why this merge is approved>"`, "reviewgate premerge 16"},
		Err:         &gate.AuthorizationMissing{PR: 16},
	}
	var buf bytes.Buffer
	if err := (&TextWriter{}).Write(&buf, d); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"BLOCKED pre-merge #16",
		"auth/login.go",
		"(120 lines elided)",
		"error: merge of PR #16 is not authorized",
		"Next steps",
		"reviewgate lock authorize 16",
		"reviewgate premerge 16",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 40), 20)
	if len(lines) < 2 {
		t.Fatalf("expected wrapping, got %d line(s)", len(lines))
	}
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line too long: %q", l)
		}
	}
}

func TestGetWriter(t *testing.T) {
	for _, f := range []string{"", "text", "json", "markdown", "md"} {
		if _, err := GetWriter(f); err != nil {
			t.Errorf("GetWriter(%q): %v", f, err)
		}
	}
	if _, err := GetWriter("sarif"); err == nil {
		t.Error("expected error for unsupported format")
	}
}
