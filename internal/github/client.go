package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds each gh invocation.
const DefaultTimeout = 30 * time.Second

// FullFields is the field set requested from gh pr view.
var FullFields = []string{
	"number", "title", "body", "state", "url", "headRefName", "baseRefName",
	"reviewDecision", "reviews", "comments", "statusCheckRollup",
}

// ReducedFields is requested after a permission failure on FullFields.
var ReducedFields = []string{
	"number", "title", "body", "state", "url", "headRefName", "baseRefName",
	"reviewDecision", "reviews",
}

// Actor is a GitHub user reference.
type Actor struct {
	Login string `json:"login"`
}

// Review is one submitted pull request review.
type Review struct {
	ID          string    `json:"id"`
	Author      Actor     `json:"author"`
	State       string    `json:"state"`
	Body        string    `json:"body"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Comment is a top-level conversation comment.
type Comment struct {
	Author    Actor     `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Check is one entry of the status check rollup: a check run or a commit
// status context.
type Check struct {
	TypeName   string `json:"__typename"`
	Name       string `json:"name"`
	Context    string `json:"context"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	State      string `json:"state"`
}

// Label returns the check's display name.
func (c Check) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Context
}

// PR is the pull request record consumed by the pre-merge gate.
type PR struct {
	Number            int       `json:"number"`
	Title             string    `json:"title"`
	Body              string    `json:"body"`
	State             string    `json:"state"`
	URL               string    `json:"url"`
	HeadRefName       string    `json:"headRefName"`
	BaseRefName       string    `json:"baseRefName"`
	ReviewDecision    string    `json:"reviewDecision"`
	Reviews           []Review  `json:"reviews"`
	Comments          []Comment `json:"comments"`
	StatusCheckRollup []Check   `json:"statusCheckRollup"`

	// Partial is set when the record was fetched with ReducedFields.
	Partial bool `json:"-"`
}

// Client talks to GitHub through the gh CLI.
type Client struct {
	runner  Runner
	repo    string
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRepo pins the client to owner/name instead of the current directory's
// repository.
func WithRepo(repo string) Option {
	return func(c *Client) { c.repo = repo }
}

// WithTimeout bounds each gh call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient returns a Client running gh through r.
func NewClient(r Runner, opts ...Option) *Client {
	c := &Client{runner: r, timeout: DefaultTimeout, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Repo returns the pinned repository, if any.
func (c *Client) Repo() string { return c.repo }

func (c *Client) run(ctx context.Context, stdin string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	stdout, stderr, err := c.runner.Run(ctx, stdin, args...)
	if s := strings.TrimSpace(string(stderr)); s != "" {
		c.logger.Debug("gh diagnostics", zap.Strings("args", args), zap.String("stderr", s))
	}
	if err != nil {
		return nil, err
	}
	return stdout, nil
}

func (c *Client) repoArgs() []string {
	if c.repo == "" {
		return nil
	}
	return []string{"--repo", c.repo}
}

// FetchPR loads a pull request. If gh rejects the full field set with a
// permission error it retries once with ReducedFields.
func (c *Client) FetchPR(ctx context.Context, number int) (*PR, error) {
	pr, err := c.fetchPR(ctx, number, FullFields)
	if err == nil {
		return pr, nil
	}
	if !errors.Is(err, ErrPermissionDenied) {
		return nil, err
	}
	c.logger.Warn("pr view denied; retrying with reduced fields", zap.Int("pr", number), zap.Error(err))
	pr, err = c.fetchPR(ctx, number, ReducedFields)
	if err != nil {
		return nil, err
	}
	pr.Partial = true
	return pr, nil
}

func (c *Client) fetchPR(ctx context.Context, number int, fields []string) (*PR, error) {
	args := append([]string{"pr", "view", strconv.Itoa(number)}, c.repoArgs()...)
	args = append(args, "--json", strings.Join(fields, ","))
	out, err := c.run(ctx, "", args...)
	if err != nil {
		return nil, fmt.Errorf("fetch PR #%d: %w", number, err)
	}
	var pr PR
	if err := json.Unmarshal(out, &pr); err != nil {
		return nil, fmt.Errorf("parse PR #%d: %w", number, err)
	}
	return &pr, nil
}

// FetchDiff returns the pull request's unified diff.
func (c *Client) FetchDiff(ctx context.Context, number int) (string, error) {
	args := append([]string{"pr", "diff", strconv.Itoa(number)}, c.repoArgs()...)
	args = append(args, "--color=never")
	out, err := c.run(ctx, "", args...)
	if err != nil {
		return "", fmt.Errorf("fetch diff for PR #%d: %w", number, err)
	}
	return string(out), nil
}

// PostComment adds a conversation comment to a pull request.
func (c *Client) PostComment(ctx context.Context, number int, body string) error {
	args := append([]string{"pr", "comment", strconv.Itoa(number)}, c.repoArgs()...)
	args = append(args, "--body-file", "-")
	if _, err := c.run(ctx, body, args...); err != nil {
		return fmt.Errorf("comment on PR #%d: %w", number, err)
	}
	return nil
}

// CreateIssue opens an issue and returns its URL.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels ...string) (string, error) {
	args := append([]string{"issue", "create"}, c.repoArgs()...)
	args = append(args, "--title", title, "--body-file", "-")
	for _, l := range labels {
		args = append(args, "--label", l)
	}
	out, err := c.run(ctx, body, args...)
	if err != nil {
		return "", fmt.Errorf("create issue: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ResolveRepo returns owner and name of the target repository.
func (c *Client) ResolveRepo(ctx context.Context) (owner, name string, err error) {
	nwo := c.repo
	if nwo == "" {
		out, err := c.run(ctx, "", "repo", "view", "--json", "nameWithOwner", "--jq", ".nameWithOwner")
		if err != nil {
			return "", "", fmt.Errorf("resolve repository: %w", err)
		}
		nwo = strings.TrimSpace(string(out))
	}
	owner, name, ok := strings.Cut(nwo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository %q (want owner/name)", nwo)
	}
	return owner, name, nil
}
