package review

import (
	"context"
	"testing"
	"time"

	"github.com/dshills/reviewgate/internal/cache"
	"github.com/dshills/reviewgate/internal/gitctx"
	"github.com/dshills/reviewgate/internal/providers"
)

func filePrompt(f gitctx.FileDiff) string { return FilePrompt(f.Path, f.Raw, nil) }

func TestRunChunked_AttemptsOnlyFilesUnderCeiling(t *testing.T) {
	d := diffOf(section("a.go", 400), section("b.go", 900), section("c.go", 400))
	plan := Triage(d, DefaultThresholds())
	if plan.Mode != ModeChunked {
		t.Fatalf("Mode = %s", plan.Mode)
	}
	r := newFake("primary", "VERDICT: PASS\n")
	inv := NewInvoker(nil, time.Second, nil)

	results := RunChunked(context.Background(), inv, r, plan, filePrompt)
	if r.Calls() != 2 {
		t.Errorf("reviewer ran %d times, want 2", r.Calls())
	}
	agg := AggregateChunks(results, SkipItem)
	if agg.Outcome != OutcomePass {
		t.Errorf("Outcome = %s", agg.Outcome)
	}
	if agg.Summary.Reviewed != 2 || agg.Summary.Skipped != 1 || agg.Summary.Blocking != 0 {
		t.Errorf("Summary = %+v", *agg.Summary)
	}
}

func TestRunChunked_FlakyFileIsSkipped(t *testing.T) {
	d := diffOf(section("a.go", 600), section("flaky.go", 600))
	plan := Triage(d, DefaultThresholds())
	r := &fakeReviewer{name: "primary", reply: map[string]providers.Result{
		"":                    {Stdout: "VERDICT: PASS\n"},
		"(flaky.go) of a lar": {ExitCode: 137, Stderr: "killed"},
	}}
	inv := NewInvoker(nil, time.Second, nil)

	agg := AggregateChunks(RunChunked(context.Background(), inv, r, plan, filePrompt), SkipItem)
	if agg.Outcome != OutcomePass {
		t.Errorf("a failed per-file run must not block the batch: %v", agg.Reasons)
	}
	if agg.Summary.Skipped != 1 || agg.Summary.Reviewed != 1 {
		t.Errorf("Summary = %+v", *agg.Summary)
	}
}

func TestRunChunked_BlockingInOneFileFailsBatch(t *testing.T) {
	d := diffOf(section("a.go", 600), section("bad.go", 600))
	plan := Triage(d, DefaultThresholds())
	r := &fakeReviewer{name: "primary", reply: map[string]providers.Result{
		"":                  {Stdout: "VERDICT: PASS\n"},
		"(bad.go) of a lar": {Stdout: failOutput},
	}}
	inv := NewInvoker(nil, time.Second, nil)

	agg := AggregateChunks(RunChunked(context.Background(), inv, r, plan, filePrompt), SkipItem)
	if agg.Outcome != OutcomeFail {
		t.Error("blocking issue in bad.go should fail the batch")
	}
}

func TestRunChunked_PerFileCache(t *testing.T) {
	d := diffOf(section("a.go", 600), section("b.go", 600))
	plan := Triage(d, DefaultThresholds())
	store := cache.NewMemoryStore(0, nil)
	inv := NewInvoker(store, time.Second, nil)
	r := newFake("primary", "VERDICT: PASS\n")

	RunChunked(context.Background(), inv, r, plan, filePrompt)
	results := RunChunked(context.Background(), inv, r, plan, filePrompt)
	if r.Calls() != 2 {
		t.Errorf("reviewer ran %d times, want 2 (second pass cached)", r.Calls())
	}
	for _, c := range results {
		if c.Verdict == nil || !c.Verdict.Cached {
			t.Errorf("%s should be served from cache", c.Path)
		}
	}
	if store.Len() != 2 {
		t.Errorf("cache entries = %d, want one per file", store.Len())
	}
}

func TestRunChunked_CanceledContext(t *testing.T) {
	d := diffOf(section("a.go", 600), section("b.go", 600))
	plan := Triage(d, DefaultThresholds())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newFake("primary", "VERDICT: PASS\n")

	results := RunChunked(ctx, NewInvoker(nil, time.Second, nil), r, plan, filePrompt)
	if r.Calls() != 0 {
		t.Errorf("no reviewer should run after cancellation, ran %d", r.Calls())
	}
	for _, c := range results {
		if c.Err == nil {
			t.Errorf("%s: expected an error", c.Path)
		}
	}
}
