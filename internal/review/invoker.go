package review

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/reviewgate/internal/cache"
	"github.com/dshills/reviewgate/internal/providers"
)

// DefaultTimeout bounds a single reviewer run.
const DefaultTimeout = 120 * time.Second

// Request is one reviewer invocation.
type Request struct {
	Prompt string
	Kind   Kind
	// Fingerprint is the cache key; empty disables caching for this call.
	Fingerprint string
	// Path is recorded on cache entries written for per-file reviews.
	Path string
}

// Invoker runs reviewers with a cache lookup, a hard timeout, and verdict
// parsing. It never retries.
type Invoker struct {
	store   cache.Store
	timeout time.Duration
	logger  *zap.Logger
	group   singleflight.Group
}

// NewInvoker returns an Invoker. store may be nil to disable caching; a
// non-positive timeout selects DefaultTimeout.
func NewInvoker(store cache.Store, timeout time.Duration, logger *zap.Logger) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{store: store, timeout: timeout, logger: logger}
}

// Invoke returns the reviewer's verdict, or an *InvocationError or
// *VerdictParseError. A cached PASS is returned without running the reviewer.
// Concurrent calls for the same agent and fingerprint share one run.
func (inv *Invoker) Invoke(ctx context.Context, r providers.Reviewer, req Request) (Verdict, error) {
	agent := r.Name()
	if v, ok := inv.lookup(agent, req); ok {
		return v, nil
	}
	if req.Fingerprint == "" {
		return inv.run(ctx, r, req)
	}
	res, err, shared := inv.group.Do(agent+"\x00"+req.Fingerprint, func() (any, error) {
		return inv.run(ctx, r, req)
	})
	if shared {
		inv.logger.Debug("shared in-flight review", zap.String("agent", agent))
	}
	return res.(Verdict), err
}

func (inv *Invoker) lookup(agent string, req Request) (Verdict, bool) {
	if inv.store == nil || req.Fingerprint == "" || req.Kind == KindMerge {
		return Verdict{}, false
	}
	if _, ok := inv.store.Get(req.Fingerprint); !ok {
		inv.logger.Debug("cache miss", zap.String("agent", agent), zap.String("path", req.Path))
		return Verdict{}, false
	}
	inv.logger.Debug("cache hit", zap.String("agent", agent), zap.String("path", req.Path))
	return Verdict{Outcome: OutcomePass, Source: agent, Cached: true}, true
}

func (inv *Invoker) run(ctx context.Context, r providers.Reviewer, req Request) (Verdict, error) {
	agent := r.Name()
	runCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	res, err := r.Review(runCtx, req.Prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			inv.logger.Warn("reviewer timed out", zap.String("agent", agent), zap.Duration("timeout", inv.timeout))
			return Verdict{}, &InvocationError{Kind: Timeout, Agent: agent, ExitCode: -1, Diagnostic: excerpt(res.Stderr, 20), Err: err}
		}
		return Verdict{}, &InvocationError{Kind: ProcessFailure, Agent: agent, ExitCode: -1, Diagnostic: excerpt(res.Stderr, 20), Err: err}
	}
	if res.ExitCode != 0 {
		inv.logger.Warn("reviewer exited non-zero",
			zap.String("agent", agent),
			zap.Int("exitCode", res.ExitCode),
			zap.String("stderr", excerpt(res.Stderr, 5)))
		return Verdict{}, &InvocationError{Kind: ProcessFailure, Agent: agent, ExitCode: res.ExitCode, Diagnostic: excerpt(res.Stderr, 20)}
	}

	v, err := ParseVerdict(res.Stdout, agent, req.Kind)
	if errors.Is(err, ErrNoVerdict) && strings.TrimSpace(res.Stderr) != "" {
		v, err = ParseVerdict(res.Stderr, agent, req.Kind)
	}
	if err != nil {
		inv.logger.Warn("unparseable reviewer output",
			zap.String("agent", agent),
			zap.Int("stdoutBytes", len(res.Stdout)),
			zap.Error(err))
		return Verdict{}, err
	}

	if v.Outcome == OutcomePass && inv.store != nil && req.Fingerprint != "" {
		entry := cache.Entry{Fingerprint: req.Fingerprint, Agent: agent, Path: req.Path, Outcome: cache.OutcomePass}
		if err := inv.store.Put(entry); err != nil {
			inv.logger.Warn("cache write failed", zap.String("agent", agent), zap.Error(err))
		} else {
			inv.logger.Debug("cache write", zap.String("agent", agent), zap.String("path", req.Path))
		}
	}
	return v, nil
}
