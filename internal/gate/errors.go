package gate

import (
	"fmt"
	"strings"
)

// InputError means the gate could not obtain or trust the data it decides
// on. It always blocks.
type InputError struct {
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *InputError) Unwrap() error { return e.Err }

// PolicyViolation is a hard, non-overridable pull request state check.
type PolicyViolation struct {
	Rule   string
	Detail string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("policy violation (%s): %s", e.Rule, e.Detail)
}

// AuthorizationMissing is returned when a passing merge review has no valid
// human authorization lock.
type AuthorizationMissing struct {
	PR           int
	AuthorizeCmd string
	RetryCmd     string
}

func (e *AuthorizationMissing) Error() string {
	return fmt.Sprintf("merge of PR #%d is not authorized; run: %s; then retry: %s", e.PR, e.AuthorizeCmd, e.RetryCmd)
}

// Policy rule ids.
const (
	RuleChangesRequested = "changes-requested"
	RuleNeutralCheck     = "neutral-check"
)

// authorizeCommand is the exact command a human runs to grant authorization.
func authorizeCommand(binary string, pr int) string {
	return fmt.Sprintf("%s lock authorize %d --reason \"<why this merge is approved>\"", binary, pr)
}

// retryCommand expands {pr} in tmpl.
func retryCommand(tmpl string, pr int) string {
	return strings.ReplaceAll(tmpl, "{pr}", fmt.Sprint(pr))
}
