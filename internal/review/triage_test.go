package review

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dshills/reviewgate/internal/gitctx"
)

// section returns a single-file diff of exactly lines lines.
func section(path string, lines int) string {
	added := lines - 4
	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n--- a/%s\n+++ b/%s\n@@ -0,0 +1,%d @@\n", path, path, path, path, added)
	for i := 0; i < added; i++ {
		fmt.Fprintf(&b, "+line %d\n", i)
	}
	return b.String()
}

func diffOf(sections ...string) *gitctx.Diff {
	return gitctx.Parse(strings.Join(sections, ""))
}

func TestTriage_FullAtOrBelowMaxFull(t *testing.T) {
	th := DefaultThresholds()
	for _, total := range []int{10, 500, 1000} {
		d := diffOf(section("a.go", total))
		if d.TotalLines() != total {
			t.Fatalf("fixture has %d lines, want %d", d.TotalLines(), total)
		}
		p := Triage(d, th)
		if p.Mode != ModeFull {
			t.Errorf("%d lines: Mode = %s, want full", total, p.Mode)
		}
		if len(p.Chunks) != 0 {
			t.Errorf("%d lines: full review must not chunk", total)
		}
	}
}

func TestTriage_Chunked(t *testing.T) {
	d := diffOf(
		section("small.go", 300),
		section("big.go", 900),
		section("medium.go", 800),
	)
	p := Triage(d, DefaultThresholds())
	if p.Mode != ModeChunked {
		t.Fatalf("Mode = %s, want chunked", p.Mode)
	}
	if len(p.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(p.Chunks))
	}
	if p.Chunks[0].Path != "small.go" || p.Chunks[1].Path != "medium.go" {
		t.Errorf("chunks = %s, %s", p.Chunks[0].Path, p.Chunks[1].Path)
	}
	if len(p.Oversize) != 1 || p.Oversize[0].Path != "big.go" || p.Oversize[0].Lines != 900 {
		t.Errorf("Oversize = %+v", p.Oversize)
	}
}

func TestTriage_SkipAboveCeiling(t *testing.T) {
	d := diffOf(section("a.go", 1500), section("b.go", 1001))
	p := Triage(d, DefaultThresholds())
	if p.Mode != ModeSkip {
		t.Fatalf("Mode = %s, want skip", p.Mode)
	}
	if len(p.Stats) != 2 || p.Stats[0].Added != 1496 {
		t.Errorf("Stats = %+v", p.Stats)
	}
}

func TestTriage_CustomThresholds(t *testing.T) {
	th := Thresholds{MaxFull: 10, ChunkCeiling: 8, SkipCeiling: 25}
	if err := th.Validate(); err != nil {
		t.Fatal(err)
	}
	if p := Triage(diffOf(section("a.go", 6), section("b.go", 6)), th); p.Mode != ModeChunked {
		t.Errorf("12 lines: Mode = %s, want chunked", p.Mode)
	}
	if p := Triage(diffOf(section("a.go", 26)), th); p.Mode != ModeSkip {
		t.Errorf("26 lines: Mode = %s, want skip", p.Mode)
	}
}

func TestThresholds_Validate(t *testing.T) {
	if err := (Thresholds{MaxFull: 0, ChunkCeiling: 1, SkipCeiling: 1}).Validate(); err == nil {
		t.Error("zero maxFull should be rejected")
	}
	if err := (Thresholds{MaxFull: 100, ChunkCeiling: 10, SkipCeiling: 50}).Validate(); err == nil {
		t.Error("skipCeiling below maxFull should be rejected")
	}
}
