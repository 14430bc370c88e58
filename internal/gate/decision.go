package gate

import (
	"errors"
	"fmt"

	"github.com/dshills/reviewgate/internal/review"
)

// Name identifies which gate produced a decision.
type Name string

const (
	PreCommitGate Name = "pre-commit"
	PreMergeGate  Name = "pre-merge"
)

// Kind classifies a decision for exit-code mapping and display.
type Kind string

const (
	KindAllowed       Kind = "allowed"
	KindReviewFailed  Kind = "review-failed"
	KindInvocation    Kind = "invocation-error"
	KindPolicy        Kind = "policy-violation"
	KindAuthorization Kind = "authorization-missing"
	KindInput         Kind = "input-error"
)

// Decision is the result of one gate run.
type Decision struct {
	ID      string      `json:"id"`
	Gate    Name        `json:"gate"`
	Allowed bool        `json:"allowed"`
	Kind    Kind        `json:"kind"`
	Mode    review.Mode `json:"mode,omitempty"`
	PR      int         `json:"pr,omitempty"`
	// Summary is a single line suitable for status bars.
	Summary     string                `json:"summary"`
	Reasons     []string              `json:"reasons,omitempty"`
	Verdicts    []review.Verdict      `json:"verdicts,omitempty"`
	Chunks      []review.ChunkResult  `json:"chunks,omitempty"`
	Counts      *review.ChunkSummary  `json:"counts,omitempty"`
	Skipped     []review.FileStat     `json:"skipped,omitempty"`
	Targeted    []review.TargetedFile `json:"targeted,omitempty"`
	Remediation []string              `json:"remediation,omitempty"`
	Err         error                 `json:"-"`
}

// Warnings returns every WARNING issue across the decision's verdicts.
func (d Decision) Warnings() []review.Issue {
	var out []review.Issue
	for _, v := range d.Verdicts {
		out = append(out, v.Warnings()...)
	}
	return out
}

// ErrorText returns the classified error text, if any.
func (d Decision) ErrorText() string {
	if d.Err == nil {
		return ""
	}
	return d.Err.Error()
}

func (d *Decision) allow(summary string) {
	d.Allowed = true
	d.Kind = KindAllowed
	d.Summary = summary
}

func (d *Decision) block(kind Kind, summary string, err error) {
	d.Allowed = false
	d.Kind = kind
	d.Summary = summary
	d.Err = err
}

// applyAggregate sets the outcome from a review aggregate.
func (d *Decision) applyAggregate(agg review.Aggregate) {
	d.Verdicts = agg.Verdicts
	d.Chunks = agg.Chunks
	d.Counts = agg.Summary
	d.Reasons = append(d.Reasons, agg.Reasons...)
	if agg.Passed() {
		d.allow(passSummary(agg))
		return
	}
	blocking := 0
	for _, v := range agg.Verdicts {
		if v.Outcome == review.OutcomeFail {
			blocking += len(v.Blocking())
		}
	}
	if blocking == 0 && len(agg.Errors) > 0 {
		d.block(KindInvocation, "review incomplete; commit blocked", errors.Join(agg.Errors...))
		return
	}
	d.block(KindReviewFailed, fmt.Sprintf("review failed: %d blocking issue(s)", blocking), nil)
}

func passSummary(agg review.Aggregate) string {
	if s := agg.Summary; s != nil {
		return fmt.Sprintf("review passed: %d file(s) reviewed, %d skipped, %d warning(s)", s.Reviewed, s.Skipped, s.Warning)
	}
	warnings := 0
	for _, v := range agg.Verdicts {
		warnings += len(v.Warnings())
	}
	if warnings > 0 {
		return fmt.Sprintf("review passed with %d warning(s)", warnings)
	}
	return "review passed"
}
