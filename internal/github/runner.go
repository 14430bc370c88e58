package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrPermissionDenied marks a gh failure caused by missing scopes or an
// unsupported field rather than a missing resource.
var ErrPermissionDenied = errors.New("permission denied")

// Runner executes the gh CLI. Stdout carries the data payload; stderr is
// kept apart so warnings never corrupt it.
type Runner interface {
	Run(ctx context.Context, stdin string, args ...string) (stdout, stderr []byte, err error)
}

// CommandError is a gh invocation that exited non-zero.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("gh %s: exit %d: %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Is reports permission failures as ErrPermissionDenied.
func (e *CommandError) Is(target error) bool {
	return target == ErrPermissionDenied && permissionDenied(e.Stderr)
}

var permissionMarkers = []string{
	"http 403",
	"resource not accessible by",
	"must have admin rights",
	"does not have the correct permissions",
	"insufficient scopes",
	"unknown json field",
}

func permissionDenied(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, m := range permissionMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// ExecRunner runs a gh binary as a subprocess.
type ExecRunner struct {
	Binary string
	Dir    string
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, stdin string, args ...string) ([]byte, []byte, error) {
	bin := r.Binary
	if bin == "" {
		bin = "gh"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = r.Dir
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(cmd.Environ(), "GH_PROMPT_DISABLED=1", "NO_COLOR=1")

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), nil
	}
	if ctx.Err() != nil {
		return nil, stderr.Bytes(), fmt.Errorf("gh %s: %w", strings.Join(args, " "), ctx.Err())
	}
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return stdout.Bytes(), stderr.Bytes(), &CommandError{Args: args, ExitCode: code, Stderr: stderr.String(), Err: err}
}
