package gitctx

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// DiffOptions controls how diffs are gathered.
type DiffOptions struct {
	// Dir is the working directory for git; empty means the current directory.
	Dir          string
	ContextLines int
	Exclude      []string
}

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
}

// GetRepoMeta collects repository metadata from git.
func GetRepoMeta(ctx context.Context, dir string) (RepoMeta, error) {
	root, err := gitOutput(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, fmt.Errorf("not a git repository: %w", err)
	}
	head, err := gitOutput(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := gitOutput(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	return RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

// Staged returns the diff of index vs HEAD, the input of the pre-commit path.
func Staged(ctx context.Context, opts DiffOptions) (*Diff, error) {
	args := append([]string{"diff", "--cached"}, buildDiffArgs(opts)...)
	raw, err := gitOutput(ctx, opts.Dir, args...)
	if err != nil {
		return nil, fmt.Errorf("git diff --cached: %w", err)
	}
	return buildDiff(ctx, raw, Source{Mode: "staged"}, opts)
}

// Commit returns the diff for a specific commit vs its first parent.
func Commit(ctx context.Context, sha string, opts DiffOptions) (*Diff, error) {
	args := append([]string{"diff", sha + "~1", sha}, buildDiffArgs(opts)...)
	raw, err := gitOutput(ctx, opts.Dir, args...)
	if err != nil {
		// Initial commit has no parent.
		showArgs := append([]string{"show", "--format="}, buildDiffArgs(opts)...)
		raw, err = gitOutput(ctx, opts.Dir, append(showArgs, sha)...)
		if err != nil {
			return nil, fmt.Errorf("git show %s: %w", sha, err)
		}
	}
	return buildDiff(ctx, raw, Source{Mode: "commit", Range: sha}, opts)
}

// Range returns the combined diff for a revision range. A two-dot range is
// compared against the merge base.
func Range(ctx context.Context, revRange string, opts DiffOptions) (*Diff, error) {
	diffRange := revRange
	if strings.Contains(revRange, "..") && !strings.Contains(revRange, "...") {
		diffRange = strings.Replace(revRange, "..", "...", 1)
	}
	args := append([]string{"diff", diffRange}, buildDiffArgs(opts)...)
	raw, err := gitOutput(ctx, opts.Dir, args...)
	if err != nil {
		return nil, fmt.Errorf("git diff %s: %w", revRange, err)
	}
	return buildDiff(ctx, raw, Source{Mode: "range", Range: revRange}, opts)
}

// FromText parses a diff supplied by the caller, e.g. piped on stdin or
// fetched from the hosting platform.
func FromText(raw, mode, rangeStr string, excludes []string) *Diff {
	d := Parse(raw)
	d.Source = Source{Mode: mode, Range: rangeStr}
	return d.Filter(excludes)
}

// ConfigValue reads a git config key, returning "" when unset.
func ConfigValue(ctx context.Context, dir, key string) string {
	out, err := gitOutput(ctx, dir, "config", "--get", key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// GitDir returns the repository's .git directory.
func GitDir(ctx context.Context, dir string) (string, error) {
	out, err := gitOutput(ctx, dir, "rev-parse", "--git-dir")
	if err != nil {
		return "", fmt.Errorf("not a git repository (git rev-parse --git-dir failed)")
	}
	gd := strings.TrimSpace(out)
	if dir != "" && !filepath.IsAbs(gd) {
		gd = filepath.Join(dir, gd)
	}
	return gd, nil
}

func buildDiff(ctx context.Context, raw string, src Source, opts DiffOptions) (*Diff, error) {
	d := Parse(raw)
	meta, err := GetRepoMeta(ctx, opts.Dir)
	if err == nil {
		src.Repo = meta
	}
	d.Source = src
	return d.Filter(opts.Exclude), nil
}

func buildDiffArgs(opts DiffOptions) []string {
	var args []string
	if opts.ContextLines > 0 {
		args = append(args, fmt.Sprintf("-U%d", opts.ContextLines))
	}
	return args
}

// MatchesAny returns true if the path matches any of the given glob patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
		if dir, ok := strings.CutSuffix(clean, "/**"); ok {
			if strings.HasPrefix(path, dir+"/") || strings.Contains(path, "/"+dir+"/") {
				return true
			}
		}
	}
	return false
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), fmt.Errorf("%s: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}
