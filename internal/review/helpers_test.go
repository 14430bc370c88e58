package review

import (
	"context"
	"strings"
	"sync"

	"github.com/dshills/reviewgate/internal/providers"
)

// fakeReviewer returns canned results and counts calls.
type fakeReviewer struct {
	name string
	mu   sync.Mutex
	// reply maps a prompt substring to the result; "" is the fallback.
	reply   map[string]providers.Result
	err     error
	calls   int
	prompts []string
	block   bool
}

func newFake(name, stdout string) *fakeReviewer {
	return &fakeReviewer{name: name, reply: map[string]providers.Result{"": {Stdout: stdout}}}
}

func (f *fakeReviewer) Name() string { return f.name }

func (f *fakeReviewer) Review(ctx context.Context, prompt string) (providers.Result, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	block, err := f.block, f.err
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return providers.Result{ExitCode: -1}, ctx.Err()
	}
	if err != nil {
		return providers.Result{}, err
	}
	for key, res := range f.reply {
		if key != "" && strings.Contains(prompt, key) {
			return res, nil
		}
	}
	return f.reply[""], nil
}

func (f *fakeReviewer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
