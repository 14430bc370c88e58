package providers

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Result is what a reviewer produced. Only ExitCode and the text streams are
// meaningful; the reviewer's reasoning is opaque.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Reviewer is the external review capability. Review sends prompt to the
// reviewer and returns its output. A non-zero exit is reported in
// Result.ExitCode, not as an error; the error return is reserved for failures
// to run at all and for context expiry.
type Reviewer interface {
	Review(ctx context.Context, prompt string) (Result, error)
	Name() string
}

// AgentConfig describes how to launch a named reviewer.
type AgentConfig struct {
	Command string   `mapstructure:"command" json:"command"`
	Args    []string `mapstructure:"args" json:"args"`
}

// New creates a reviewer by agent name from the configured agent table.
// Names are matched case-insensitively since config keys are lowercased.
func New(name string, agents map[string]AgentConfig, opts ...CommandOption) (Reviewer, error) {
	ac, ok := agents[name]
	if !ok {
		ac, ok = agents[strings.ToLower(name)]
	}
	if !ok {
		return nil, fmt.Errorf("unknown agent: %s", name)
	}
	if ac.Command == "" {
		return nil, fmt.Errorf("agent %s: command is empty", name)
	}
	return NewCommand(name, ac.Command, ac.Args, opts...), nil
}
