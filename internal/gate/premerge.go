package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/reviewgate/internal/gitctx"
	"github.com/dshills/reviewgate/internal/github"
	"github.com/dshills/reviewgate/internal/mergelock"
	"github.com/dshills/reviewgate/internal/providers"
	"github.com/dshills/reviewgate/internal/review"
)

// DefaultRetryCommand is re-run after authorization is granted.
const DefaultRetryCommand = "reviewgate premerge {pr}"

// PRSource is the hosting-platform surface the pre-merge gate reads.
type PRSource interface {
	FetchPR(ctx context.Context, number int) (*github.PR, error)
	FetchDiff(ctx context.Context, number int) (string, error)
	ActiveInlineComments(ctx context.Context, number int) ([]github.InlineComment, error)
}

// Authorizer answers whether a human has authorized a merge.
type Authorizer interface {
	Check(pr int) (mergelock.State, error)
}

// PreMergeConfig configures the pre-merge gate.
type PreMergeConfig struct {
	Agent               providers.Reviewer
	HeadTail            int
	InformationalChecks []string
	// RetryCommand is a template; {pr} is replaced with the PR number.
	RetryCommand string
	// Binary is the gate binary name used in remediation commands.
	Binary   string
	Rules    *review.Rules
	Redact   bool
	Excludes []string
}

// PreMerge runs the hard state checks, the merge review and the
// authorization check for one pull request.
type PreMerge struct {
	cfg    PreMergeConfig
	prs    PRSource
	inv    *review.Invoker
	auth   Authorizer
	logger *zap.Logger
}

// NewPreMerge returns a pre-merge gate.
func NewPreMerge(cfg PreMergeConfig, prs PRSource, inv *review.Invoker, auth Authorizer, logger *zap.Logger) *PreMerge {
	if cfg.HeadTail <= 0 {
		cfg.HeadTail = review.DefaultHeadTail
	}
	if cfg.RetryCommand == "" {
		cfg.RetryCommand = DefaultRetryCommand
	}
	if cfg.Binary == "" {
		cfg.Binary = "reviewgate"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreMerge{cfg: cfg, prs: prs, inv: inv, auth: auth, logger: logger}
}

// Run evaluates pull request number. Checks run in a fixed order and the
// first failure ends the run; no reviewer is invoked before the hard checks
// pass.
func (g *PreMerge) Run(ctx context.Context, number int) Decision {
	dec := Decision{ID: uuid.NewString(), Gate: PreMergeGate, PR: number}
	if number <= 0 {
		dec.block(KindInput, "invalid pull request number", &InputError{Reason: fmt.Sprintf("invalid PR number %d", number)})
		return dec
	}

	pr, err := g.prs.FetchPR(ctx, number)
	if err != nil {
		dec.block(KindInput, fmt.Sprintf("could not fetch PR #%d", number), &InputError{Reason: "fetch pull request", Err: err})
		return dec
	}
	if !strings.EqualFold(pr.State, "OPEN") {
		dec.block(KindInput, fmt.Sprintf("PR #%d is %s, not open", number, strings.ToLower(pr.State)),
			&InputError{Reason: fmt.Sprintf("PR #%d state is %q", number, pr.State)})
		return dec
	}

	if v := g.hardChecks(pr); v != nil {
		dec.Reasons = append(dec.Reasons, v.Detail)
		dec.block(KindPolicy, fmt.Sprintf("PR #%d rejected: %s", number, v.Detail), v)
		return dec
	}

	ci, failing := ciState(pr.StatusCheckRollup)
	if pr.Partial {
		g.logger.Warn("PR fetched with reduced fields; CI state treated as pending", zap.Int("pr", number))
		ci, failing = review.CIPending, nil
	}

	raw, err := g.prs.FetchDiff(ctx, number)
	if err != nil {
		dec.block(KindInput, fmt.Sprintf("could not fetch diff for PR #%d", number), &InputError{Reason: "fetch diff", Err: err})
		return dec
	}
	diff := gitctx.FromText(raw, "pr", fmt.Sprintf("#%d", number), g.cfg.Excludes)

	comments, err := g.prs.ActiveInlineComments(ctx, number)
	if err != nil {
		g.logger.Warn("inline comments unavailable", zap.Int("pr", number), zap.Error(err))
	}
	commented := make(map[string]bool, len(comments))
	quoted := make([]review.InlineComment, 0, len(comments))
	for _, c := range comments {
		commented[c.Path] = true
		quoted = append(quoted, review.InlineComment{Path: c.Path, Line: c.Line, Author: c.User.Login, Body: c.Body})
	}

	targeted := review.BuildTargeted(diff, review.TargetedOptions{CI: ci, HeadTail: g.cfg.HeadTail, Commented: commented})
	dec.Targeted = targeted.Files

	if g.cfg.Agent == nil {
		dec.block(KindInput, "no merge reviewer configured", &InputError{Reason: "merge.agent is not configured"})
		return dec
	}
	prompt := review.MergePrompt(review.MergeBrief{
		Number:   pr.Number,
		Title:    pr.Title,
		Body:     pr.Body,
		CI:       ci,
		Failing:  failing,
		Comments: quoted,
		Diff:     targeted,
	}, g.cfg.Rules)

	v, err := g.inv.Invoke(ctx, g.cfg.Agent, review.Request{
		Prompt: redactPrompt(prompt, g.cfg.Redact, g.logger),
		Kind:   review.KindMerge,
	})
	if err != nil {
		dec.Reasons = append(dec.Reasons, "merge review incomplete: "+err.Error())
		dec.block(KindInvocation, fmt.Sprintf("PR #%d: BLOCK_MERGE (merge review incomplete)", number), err)
		return dec
	}
	dec.Verdicts = []review.Verdict{v}
	if v.Outcome != review.OutcomeSafeToMerge {
		for _, is := range v.Issues {
			if is.Severity == review.SeverityBlocking {
				dec.Reasons = append(dec.Reasons, issueLine(v.Source, is))
			}
		}
		dec.block(KindReviewFailed, fmt.Sprintf("PR #%d: BLOCK_MERGE (%s)", number, plural(len(v.Blocking()), "blocking issue")), nil)
		return dec
	}

	state, err := g.auth.Check(number)
	if err != nil {
		g.logger.Warn("lock check failed; treating as unauthorized", zap.Int("pr", number), zap.Error(err))
		state = mergelock.Unauthorized
	}
	if state != mergelock.Authorized {
		missing := &AuthorizationMissing{
			PR:           number,
			AuthorizeCmd: authorizeCommand(g.cfg.Binary, number),
			RetryCmd:     retryCommand(g.cfg.RetryCommand, number),
		}
		dec.Remediation = []string{missing.AuthorizeCmd, missing.RetryCmd}
		dec.block(KindAuthorization, fmt.Sprintf("PR #%d: SAFE_TO_MERGE but not authorized by a human", number), missing)
		return dec
	}
	dec.allow(fmt.Sprintf("PR #%d: SAFE_TO_MERGE and authorized", number))
	return dec
}

func (g *PreMerge) hardChecks(pr *github.PR) *PolicyViolation {
	if strings.EqualFold(pr.ReviewDecision, "CHANGES_REQUESTED") {
		return &PolicyViolation{Rule: RuleChangesRequested, Detail: "review decision is CHANGES_REQUESTED"}
	}
	if who := changesRequested(pr.Reviews); len(who) > 0 {
		return &PolicyViolation{Rule: RuleChangesRequested, Detail: "changes requested by " + strings.Join(who, ", ")}
	}
	if names := neutralChecks(pr.StatusCheckRollup, g.cfg.InformationalChecks); len(names) > 0 {
		return &PolicyViolation{Rule: RuleNeutralCheck, Detail: "neutral check conclusion: " + strings.Join(names, ", ")}
	}
	return nil
}

func issueLine(agent string, is review.Issue) string {
	if is.Location != "" {
		return fmt.Sprintf("[%s] %s (%s)", agent, is.Description, is.Location)
	}
	return fmt.Sprintf("[%s] %s", agent, is.Description)
}

// FollowUpIssue builds an issue listing the WARNING issues of an allowed or
// authorization-pending merge review. ok is false when there is nothing to file.
func FollowUpIssue(d Decision) (title, body string, ok bool) {
	warnings := d.Warnings()
	if len(warnings) == 0 || d.Gate != PreMergeGate {
		return "", "", false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Non-blocking findings from the merge review of #%d.\n\n", d.PR)
	for _, w := range warnings {
		fmt.Fprintf(&b, "- [ ] %s", w.Description)
		if w.Location != "" {
			fmt.Fprintf(&b, " (`%s`)", w.Location)
		}
		b.WriteString("\n")
		if w.Details != "" {
			fmt.Fprintf(&b, "  %s\n", strings.ReplaceAll(strings.TrimSpace(w.Details), "\n", "\n  "))
		}
	}
	return fmt.Sprintf("Follow-ups from PR #%d review", d.PR), b.String(), true
}
