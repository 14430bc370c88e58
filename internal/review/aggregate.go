package review

import (
	"errors"
	"fmt"
)

// ErrorPolicy says what an invocation or parse error means at a call site.
type ErrorPolicy int

const (
	// FailClosed turns an error into a failing result.
	FailClosed ErrorPolicy = iota
	// SkipItem marks the affected item as skipped; it neither passes nor blocks.
	SkipItem
)

func (p ErrorPolicy) String() string {
	if p == SkipItem {
		return "skip-item"
	}
	return "fail-closed"
}

// AgentResult is the outcome of one reviewer in a single-pass review.
type AgentResult struct {
	Agent   string
	Verdict Verdict
	Err     error
}

// FileStatus is the state of one file in chunked review.
type FileStatus string

const (
	FileReviewed FileStatus = "reviewed"
	FileSkipped  FileStatus = "skipped"
)

// ChunkResult is the outcome of reviewing (or skipping) one file.
type ChunkResult struct {
	Path    string     `json:"path"`
	Lines   int        `json:"lines"`
	Status  FileStatus `json:"status"`
	Reason  string     `json:"reason,omitempty"`
	Verdict *Verdict   `json:"verdict,omitempty"`
	Err     error      `json:"-"`
}

// ChunkSummary counts chunked review results.
type ChunkSummary struct {
	Reviewed int `json:"reviewed"`
	Skipped  int `json:"skipped"`
	Blocking int `json:"blocking"`
	Warning  int `json:"warning"`
}

// Aggregate is the combined decision for a review pass.
type Aggregate struct {
	Outcome  Outcome       `json:"outcome"`
	Reasons  []string      `json:"reasons,omitempty"`
	Verdicts []Verdict     `json:"verdicts,omitempty"`
	Chunks   []ChunkResult `json:"chunks,omitempty"`
	Summary  *ChunkSummary `json:"summary,omitempty"`
	// Errors holds the classified errors that decided or were absorbed.
	Errors []error `json:"-"`
}

// Passed reports whether the aggregate allows the action.
func (a Aggregate) Passed() bool { return a.Outcome == OutcomePass }

// AggregateSinglePass combines one or more reviewers that each saw the whole
// diff. The result is FAIL when any reviewer reports FAIL with a BLOCKING
// issue. A FAIL with only warnings does not block and does not mask another
// reviewer's blocking failure. Errors are handled per policy.
func AggregateSinglePass(results []AgentResult, policy ErrorPolicy) Aggregate {
	agg := Aggregate{Outcome: OutcomePass}
	for _, r := range results {
		if r.Err != nil {
			agg.Errors = append(agg.Errors, r.Err)
			if policy == FailClosed {
				agg.Outcome = OutcomeFail
				agg.Reasons = append(agg.Reasons, errorReason(r.Err))
			}
			continue
		}
		agg.Verdicts = append(agg.Verdicts, r.Verdict)
		if r.Verdict.Outcome == OutcomeFail && r.Verdict.HasBlocking() {
			agg.Outcome = OutcomeFail
			for _, is := range r.Verdict.Blocking() {
				agg.Reasons = append(agg.Reasons, issueReason(r.Agent, "", is))
			}
		}
	}
	if len(results) == 0 && policy == FailClosed {
		agg.Outcome = OutcomeFail
		agg.Reasons = append(agg.Reasons, "no reviewer produced a verdict")
	}
	return agg
}

// AggregateChunks combines per-file results. Any BLOCKING issue in a
// reviewed file fails the batch; skipped files never count against it.
// Errors are handled per policy.
func AggregateChunks(results []ChunkResult, policy ErrorPolicy) Aggregate {
	agg := Aggregate{Outcome: OutcomePass, Summary: &ChunkSummary{}}
	for _, c := range results {
		if c.Err != nil {
			agg.Errors = append(agg.Errors, c.Err)
			if policy == SkipItem {
				c.Status = FileSkipped
				c.Reason = errorReason(c.Err)
			} else {
				agg.Outcome = OutcomeFail
				agg.Reasons = append(agg.Reasons, fmt.Sprintf("%s: %s", c.Path, errorReason(c.Err)))
			}
		}
		switch {
		case c.Status == FileSkipped:
			agg.Summary.Skipped++
		case c.Verdict != nil:
			agg.Summary.Reviewed++
			v := *c.Verdict
			agg.Verdicts = append(agg.Verdicts, v)
			agg.Summary.Warning += len(v.Warnings())
			if v.Outcome == OutcomeFail && v.HasBlocking() {
				agg.Outcome = OutcomeFail
				for _, is := range v.Blocking() {
					agg.Summary.Blocking++
					agg.Reasons = append(agg.Reasons, issueReason(v.Source, c.Path, is))
				}
			}
		}
		agg.Chunks = append(agg.Chunks, c)
	}
	return agg
}

func issueReason(agent, path string, is Issue) string {
	loc := is.Location
	if loc == "" {
		loc = path
	}
	if loc != "" {
		return fmt.Sprintf("[%s] %s (%s)", agent, is.Description, loc)
	}
	return fmt.Sprintf("[%s] %s", agent, is.Description)
}

func errorReason(err error) string {
	var ie *InvocationError
	var pe *VerdictParseError
	switch {
	case errors.As(err, &ie) && ie.Kind == Timeout:
		return fmt.Sprintf("review incomplete: %s timed out", ie.Agent)
	case errors.As(err, &ie):
		return fmt.Sprintf("review incomplete: %s", ie.Error())
	case errors.As(err, &pe):
		return fmt.Sprintf("review incomplete: %s", pe.Error())
	default:
		return fmt.Sprintf("review incomplete: %v", err)
	}
}
