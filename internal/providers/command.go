package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// defaultWaitDelay bounds how long Wait blocks on output pipes after the
// process group has been killed.
const defaultWaitDelay = 2 * time.Second

// CommandReviewer runs an external program with the prompt on stdin.
type CommandReviewer struct {
	name      string
	path      string
	args      []string
	env       []string
	dir       string
	waitDelay time.Duration
	logger    *zap.Logger
}

// CommandOption configures a CommandReviewer.
type CommandOption func(*CommandReviewer)

// WithLogger sets the logger for start and exit events.
func WithLogger(l *zap.Logger) CommandOption {
	return func(c *CommandReviewer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDir sets the working directory of the reviewer process.
func WithDir(dir string) CommandOption {
	return func(c *CommandReviewer) { c.dir = dir }
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) CommandOption {
	return func(c *CommandReviewer) { c.env = append(c.env, env...) }
}

// NewCommand returns a reviewer that runs path with args.
func NewCommand(name, path string, args []string, opts ...CommandOption) *CommandReviewer {
	c := &CommandReviewer{
		name:      name,
		path:      path,
		args:      args,
		waitDelay: defaultWaitDelay,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name implements Reviewer.
func (c *CommandReviewer) Name() string { return c.name }

// Review implements Reviewer. When ctx ends first the whole process group is
// killed and the returned error wraps ctx.Err().
func (c *CommandReviewer) Review(ctx context.Context, prompt string) (Result, error) {
	cmd := exec.CommandContext(ctx, c.path, c.args...)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Dir = c.dir
	if len(c.env) > 0 {
		cmd.Env = append(cmd.Environ(), c.env...)
	}
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = c.waitDelay

	c.logger.Debug("starting reviewer",
		zap.String("agent", c.name),
		zap.String("command", c.path),
		zap.Int("promptBytes", len(prompt)))

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		c.logger.Warn("reviewer terminated",
			zap.String("agent", c.name),
			zap.Duration("elapsed", res.Duration),
			zap.Error(ctxErr))
		return res, fmt.Errorf("reviewer %s: %w", c.name, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return res, fmt.Errorf("running reviewer %s: %w", c.name, err)
		}
	}
	c.logger.Debug("reviewer exited",
		zap.String("agent", c.name),
		zap.Int("exitCode", res.ExitCode),
		zap.Duration("elapsed", res.Duration))
	return res, nil
}
