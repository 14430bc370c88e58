package review

// Outcome is the verdict value a reviewer reports.
type Outcome string

const (
	OutcomePass        Outcome = "PASS"
	OutcomeFail        Outcome = "FAIL"
	OutcomeSafeToMerge Outcome = "SAFE_TO_MERGE"
	OutcomeBlockMerge  Outcome = "BLOCK_MERGE"
)

// Passing reports whether o lets the guarded action proceed.
func (o Outcome) Passing() bool {
	return o == OutcomePass || o == OutcomeSafeToMerge
}

// Kind selects which pair of verdict values a call site accepts.
type Kind string

const (
	// KindCommit accepts PASS and FAIL.
	KindCommit Kind = "commit"
	// KindMerge accepts SAFE_TO_MERGE and BLOCK_MERGE.
	KindMerge Kind = "merge"
)

func (k Kind) accepts(o Outcome) bool {
	switch k {
	case KindMerge:
		return o == OutcomeSafeToMerge || o == OutcomeBlockMerge
	default:
		return o == OutcomePass || o == OutcomeFail
	}
}

// Severity of a reviewer issue.
type Severity string

const (
	SeverityBlocking Severity = "BLOCKING"
	SeverityWarning  Severity = "WARNING"
)

// Issue is one structured problem reported alongside a verdict.
type Issue struct {
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Location    string   `json:"location,omitempty"`
	Details     string   `json:"details,omitempty"`
}

// Verdict is the parsed result of one reviewer invocation.
type Verdict struct {
	Outcome Outcome `json:"outcome"`
	Issues  []Issue `json:"issues,omitempty"`
	// Source is the reviewer's agent name.
	Source string `json:"source"`
	// Cached is set when the verdict was served from the verdict cache.
	Cached bool `json:"cached,omitempty"`
	// Raw is the reviewer's full output, kept for display.
	Raw string `json:"-"`
}

// Blocking returns the BLOCKING issues.
func (v Verdict) Blocking() []Issue { return v.filter(SeverityBlocking) }

// Warnings returns the WARNING issues.
func (v Verdict) Warnings() []Issue { return v.filter(SeverityWarning) }

// HasBlocking reports whether any issue is BLOCKING.
func (v Verdict) HasBlocking() bool { return len(v.Blocking()) > 0 }

func (v Verdict) filter(s Severity) []Issue {
	var out []Issue
	for _, is := range v.Issues {
		if is.Severity == s {
			out = append(out, is)
		}
	}
	return out
}

// Mode is the review strategy chosen for a diff.
type Mode string

const (
	ModeFull    Mode = "full"
	ModeChunked Mode = "chunked"
	ModeSkip    Mode = "skip"
)

// FileStat is a per-file change size, used in skip summaries and data-file
// summaries.
type FileStat struct {
	Path    string `json:"path"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	Lines   int    `json:"lines"`
}
