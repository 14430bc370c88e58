package gate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/reviewgate/internal/github"
	"github.com/dshills/reviewgate/internal/review"
)

// changesRequested reports the reviewers whose standing review asks for
// changes. Only each author's most recent decisive review counts; COMMENTED
// and PENDING reviews do not change a reviewer's standing and DISMISSED
// reviews clear it.
func changesRequested(reviews []github.Review) []string {
	latest := make(map[string]github.Review)
	for _, r := range reviews {
		switch strings.ToUpper(r.State) {
		case "APPROVED", "CHANGES_REQUESTED", "DISMISSED":
		default:
			continue
		}
		author := r.Author.Login
		if prev, ok := latest[author]; ok && prev.SubmittedAt.After(r.SubmittedAt) {
			continue
		}
		latest[author] = r
	}
	var out []string
	for author, r := range latest {
		if strings.EqualFold(r.State, "CHANGES_REQUESTED") {
			out = append(out, author)
		}
	}
	sort.Strings(out)
	return out
}

// neutralChecks returns checks with a NEUTRAL conclusion that are not on the
// informational allow-list.
func neutralChecks(checks []github.Check, informational []string) []string {
	allowed := make(map[string]bool, len(informational))
	for _, name := range informational {
		allowed[strings.ToLower(name)] = true
	}
	var out []string
	for _, c := range checks {
		if strings.EqualFold(c.Conclusion, "NEUTRAL") && !allowed[strings.ToLower(c.Label())] {
			out = append(out, c.Label())
		}
	}
	return out
}

var failingConclusions = map[string]bool{
	"FAILURE": true, "TIMED_OUT": true, "CANCELLED": true,
	"ACTION_REQUIRED": true, "STARTUP_FAILURE": true, "STALE": true,
}

// ciState derives the overall CI result and the names of failing checks.
// No checks at all counts as pending: nothing has reported success.
func ciState(checks []github.Check) (review.CIState, []string) {
	if len(checks) == 0 {
		return review.CIPending, nil
	}
	var failing []string
	pending := false
	for _, c := range checks {
		if c.TypeName == "StatusContext" || c.State != "" && c.Status == "" {
			switch strings.ToUpper(c.State) {
			case "FAILURE", "ERROR":
				failing = append(failing, c.Label())
			case "SUCCESS":
			default:
				pending = true
			}
			continue
		}
		if !strings.EqualFold(c.Status, "COMPLETED") {
			pending = true
			continue
		}
		if failingConclusions[strings.ToUpper(c.Conclusion)] {
			failing = append(failing, c.Label())
		}
	}
	switch {
	case len(failing) > 0:
		return review.CIFailure, failing
	case pending:
		return review.CIPending, nil
	default:
		return review.CISuccess, nil
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
