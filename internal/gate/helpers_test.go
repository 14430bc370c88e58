package gate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dshills/reviewgate/internal/cache"
	"github.com/dshills/reviewgate/internal/github"
	"github.com/dshills/reviewgate/internal/mergelock"
	"github.com/dshills/reviewgate/internal/providers"
	"github.com/dshills/reviewgate/internal/review"
)

const (
	passOutput = "All good.\nVERDICT: PASS\n"
	failOutput = "VERDICT: FAIL\n\nISSUE:\nDESCRIPTION: token written to log\nSEVERITY: BLOCKING\nLOCATION: auth/token.go:12\n"
	warnOutput = "VERDICT: FAIL\n\nISSUE:\nDESCRIPTION: naming nit\nSEVERITY: WARNING\nLOCATION: util.go:3\n"
	safeOutput = "VERDICT: SAFE_TO_MERGE\n\nISSUE:\nDESCRIPTION: add a changelog entry\nSEVERITY: WARNING\nLOCATION: CHANGELOG.md\n"
)

type stubReviewer struct {
	name   string
	mu     sync.Mutex
	result providers.Result
	err    error
	// byPrompt overrides result when the prompt contains the key.
	byPrompt map[string]providers.Result
	prompts  []string
}

func (s *stubReviewer) Name() string { return s.name }

func (s *stubReviewer) Review(_ context.Context, prompt string) (providers.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return providers.Result{}, s.err
	}
	for key, res := range s.byPrompt {
		if strings.Contains(prompt, key) {
			return res, nil
		}
	}
	return s.result, nil
}

func (s *stubReviewer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func reviewer(name, stdout string) *stubReviewer {
	return &stubReviewer{name: name, result: providers.Result{Stdout: stdout}}
}

func newInvoker() *review.Invoker {
	return review.NewInvoker(cache.NewMemoryStore(cache.DefaultTTL, time.Now), time.Second, nil)
}

// fileSection returns a diff section for path with exactly n lines.
func fileSection(path string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", path, path)
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", path, path)
	added := n - 4
	fmt.Fprintf(&b, "@@ -1,0 +1,%d @@\n", added)
	for i := 0; i < added; i++ {
		fmt.Fprintf(&b, "+line %d\n", i)
	}
	return b.String()
}

type fakePRs struct {
	pr          *github.PR
	prErr       error
	diff        string
	comments    []github.InlineComment
	commentsErr error
	diffCalls   int
}

func (f *fakePRs) FetchPR(context.Context, int) (*github.PR, error) {
	if f.prErr != nil {
		return nil, f.prErr
	}
	return f.pr, nil
}

func (f *fakePRs) FetchDiff(context.Context, int) (string, error) {
	f.diffCalls++
	return f.diff, nil
}

func (f *fakePRs) ActiveInlineComments(context.Context, int) ([]github.InlineComment, error) {
	return f.comments, f.commentsErr
}

func openPR(number int) *github.PR {
	return &github.PR{
		Number: number,
		Title:  "Add retries",
		State:  "OPEN",
		StatusCheckRollup: []github.Check{
			{TypeName: "CheckRun", Name: "test", Status: "COMPLETED", Conclusion: "SUCCESS"},
		},
	}
}

func lockManager(now time.Time) *mergelock.Manager {
	return mergelock.NewManager(mergelock.NewMemoryStore(), mergelock.DefaultTTL, nil).
		WithClock(func() time.Time { return now })
}
