package gate

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/reviewgate/internal/cache"
	"github.com/dshills/reviewgate/internal/gitctx"
	"github.com/dshills/reviewgate/internal/providers"
	"github.com/dshills/reviewgate/internal/redact"
	"github.com/dshills/reviewgate/internal/review"
)

// PreCommitConfig configures the pre-commit gate.
type PreCommitConfig struct {
	Thresholds review.Thresholds
	Primary    providers.Reviewer
	// Adversarial is optional; when set it reviews full diffs alongside Primary.
	Adversarial providers.Reviewer
	Rules       *review.Rules
	Redact      bool
}

// PreCommit reviews a captured diff before it is committed.
type PreCommit struct {
	cfg    PreCommitConfig
	inv    *review.Invoker
	logger *zap.Logger
}

// NewPreCommit returns a pre-commit gate.
func NewPreCommit(cfg PreCommitConfig, inv *review.Invoker, logger *zap.Logger) *PreCommit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreCommit{cfg: cfg, inv: inv, logger: logger}
}

// Run triages d and reviews it in the chosen mode.
func (g *PreCommit) Run(ctx context.Context, d *gitctx.Diff) Decision {
	dec := Decision{ID: uuid.NewString(), Gate: PreCommitGate}
	if g.cfg.Primary == nil {
		dec.block(KindInput, "no reviewer configured", &InputError{Reason: "review.primaryAgent is not configured"})
		return dec
	}
	if err := g.cfg.Thresholds.Validate(); err != nil {
		dec.block(KindInput, "invalid review thresholds", &InputError{Reason: "invalid thresholds", Err: err})
		return dec
	}
	if d == nil || d.Empty() {
		dec.allow("nothing to review")
		return dec
	}

	plan := review.Triage(d, g.cfg.Thresholds)
	dec.Mode = plan.Mode
	g.logger.Info("triage", zap.String("mode", string(plan.Mode)), zap.Int("lines", plan.TotalLines), zap.Int("files", len(d.Files)))

	switch plan.Mode {
	case review.ModeSkip:
		dec.Skipped = plan.Stats
		dec.allow(fmt.Sprintf("diff too large to review (%d lines > %d); allowed without review",
			plan.TotalLines, g.cfg.Thresholds.SkipCeiling))
	case review.ModeChunked:
		results := review.RunChunked(ctx, g.inv, g.cfg.Primary, plan, func(f gitctx.FileDiff) string {
			return g.prompt(review.FilePrompt(f.Path, f.Raw, g.cfg.Rules))
		})
		dec.applyAggregate(review.AggregateChunks(results, review.SkipItem))
	default:
		dec.applyAggregate(review.AggregateSinglePass(g.reviewFull(ctx, d), review.FailClosed))
	}
	// SkipItem covers one file that timed out or crashed. Files left
	// unreviewed because the whole run was cancelled are not skips.
	if err := ctx.Err(); err != nil && dec.Allowed && plan.Mode != review.ModeSkip {
		g.logger.Warn("review interrupted", zap.Error(err))
		dec.block(KindInvocation, "review interrupted; commit blocked", err)
	}
	return dec
}

func (g *PreCommit) reviewFull(ctx context.Context, d *gitctx.Diff) []review.AgentResult {
	reviewers := []struct {
		r    providers.Reviewer
		role review.Role
	}{{g.cfg.Primary, review.RolePrimary}}
	if g.cfg.Adversarial != nil {
		reviewers = append(reviewers, struct {
			r    providers.Reviewer
			role review.Role
		}{g.cfg.Adversarial, review.RoleAdversarial})
	}

	paths := d.Paths()
	results := make([]review.AgentResult, 0, len(reviewers))
	for _, rv := range reviewers {
		name := rv.r.Name()
		v, err := g.inv.Invoke(ctx, rv.r, review.Request{
			Prompt:      g.prompt(review.CommitPrompt(d.Raw, paths, rv.role, g.cfg.Rules)),
			Kind:        review.KindCommit,
			Fingerprint: cache.Fingerprint(string(rv.role)+":"+name, d.Raw),
		})
		results = append(results, review.AgentResult{Agent: name, Verdict: v, Err: err})
	}
	return results
}

func (g *PreCommit) prompt(p string) string {
	return redactPrompt(p, g.cfg.Redact, g.logger)
}

func redactPrompt(p string, enabled bool, logger *zap.Logger) string {
	if !enabled {
		return p
	}
	out, n := redact.Prompt(p)
	if n > 0 {
		logger.Info("redacted secrets from prompt", zap.Int("count", n))
	}
	return out
}
