package review

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoVerdict means the reviewer output contained no verdict marker line.
var ErrNoVerdict = errors.New("no verdict marker found")

// InvocationKind classifies a failed reviewer run.
type InvocationKind string

const (
	Timeout        InvocationKind = "timeout"
	ProcessFailure InvocationKind = "process-failure"
)

// InvocationError is returned when the reviewer did not finish normally.
type InvocationError struct {
	Kind     InvocationKind
	Agent    string
	ExitCode int
	// Diagnostic is the reviewer's stderr (or the launch error), trimmed.
	Diagnostic string
	Err        error
}

func (e *InvocationError) Error() string {
	switch {
	case e.Kind == Timeout:
		return fmt.Sprintf("reviewer %s timed out", e.Agent)
	case e.Err != nil:
		return fmt.Sprintf("reviewer %s failed: %v", e.Agent, e.Err)
	default:
		return fmt.Sprintf("reviewer %s exited with status %d", e.Agent, e.ExitCode)
	}
}

func (e *InvocationError) Unwrap() error { return e.Err }

// VerdictParseError is returned when reviewer output has no usable verdict.
type VerdictParseError struct {
	Agent  string
	Reason string
	// Excerpt is the tail of the reviewer output for operator debugging.
	Excerpt string
	Err     error
}

func (e *VerdictParseError) Error() string {
	return fmt.Sprintf("reviewer %s: unparseable verdict: %s", e.Agent, e.Reason)
}

func (e *VerdictParseError) Unwrap() error { return e.Err }

// excerpt returns at most the last n lines of s.
func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
