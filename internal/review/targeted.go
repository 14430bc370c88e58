package review

import (
	"fmt"
	"strings"

	"github.com/dshills/reviewgate/internal/classify"
	"github.com/dshills/reviewgate/internal/gitctx"
)

// DefaultHeadTail is how many lines are kept from each end of a truncated
// code file.
const DefaultHeadTail = 50

// Treatment is how a file appears in a targeted diff.
type Treatment string

const (
	Verbatim  Treatment = "verbatim"
	Summary   Treatment = "summary"
	Truncated Treatment = "truncated"
)

// CIState is the aggregate result of a pull request's checks.
type CIState string

const (
	CISuccess CIState = "success"
	CIFailure CIState = "failure"
	CIPending CIState = "pending"
)

// TargetedOptions controls targeted diff construction.
type TargetedOptions struct {
	CI CIState
	// HeadTail is the number of lines kept from each end of a code file.
	HeadTail int
	// Commented is the set of paths with active unresolved inline comments.
	Commented map[string]bool
}

// TargetedFile records the decision made for one file.
type TargetedFile struct {
	Path      string            `json:"path"`
	Category  classify.Category `json:"category"`
	Treatment Treatment         `json:"treatment"`
	Elided    int               `json:"elided,omitempty"`
}

// TargetedDiff is a bounded rendition of a pull request diff for the merge
// reviewer.
type TargetedDiff struct {
	Text  string
	Files []TargetedFile
}

// BuildTargeted applies the per-file policy: security-critical and commented
// files verbatim; data files summarized only when CI succeeded; code files
// verbatim when CI failed, otherwise cut to head and tail.
func BuildTargeted(d *gitctx.Diff, opts TargetedOptions) TargetedDiff {
	n := opts.HeadTail
	if n <= 0 {
		n = DefaultHeadTail
	}
	var b strings.Builder
	out := TargetedDiff{Files: make([]TargetedFile, 0, len(d.Files))}
	for _, f := range d.Files {
		cat := classify.Primary(f.Path, opts.Commented)
		tf := TargetedFile{Path: f.Path, Category: cat, Treatment: Verbatim}
		switch cat {
		case classify.CategorySecurity, classify.CategoryCommented:
			b.WriteString(f.Raw)
		case classify.CategoryData:
			if opts.CI == CISuccess {
				tf.Treatment = Summary
				fmt.Fprintf(&b, "[data file %s: +%d -%d lines, contents omitted]\n", f.Path, f.Added, f.Removed)
			} else {
				b.WriteString(f.Raw)
			}
		default:
			if opts.CI == CIFailure {
				b.WriteString(f.Raw)
				break
			}
			text, elided := headTail(f.Raw, n)
			if elided > 0 {
				tf.Treatment = Truncated
				tf.Elided = elided
			}
			b.WriteString(text)
		}
		out.Files = append(out.Files, tf)
	}
	out.Text = b.String()
	return out
}

// headTail keeps the first and last n lines of s, replacing the middle with a
// marker. It returns the number of lines elided.
func headTail(s string, n int) (string, int) {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	if len(lines) <= 2*n {
		return s, 0
	}
	elided := len(lines) - 2*n
	var b strings.Builder
	for _, l := range lines[:n] {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "... [%d lines elided] ...\n", elided)
	for _, l := range lines[len(lines)-n:] {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String(), elided
}
