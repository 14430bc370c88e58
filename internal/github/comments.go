package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"
)

// InlineComment is a review comment anchored to a diff line.
type InlineComment struct {
	ID           int64  `json:"id"`
	Path         string `json:"path"`
	Line         int    `json:"line"`
	OriginalLine int    `json:"original_line"`
	// Position is null once the commented line is no longer in the diff.
	Position    *int   `json:"position"`
	Body        string `json:"body"`
	InReplyToID int64  `json:"in_reply_to_id"`
	User        Actor  `json:"user"`
}

// Outdated reports whether the comment no longer applies to the current diff.
func (c InlineComment) Outdated() bool {
	return c.Position == nil
}

// ListInlineComments returns every review comment on the pull request.
func (c *Client) ListInlineComments(ctx context.Context, number int) ([]InlineComment, error) {
	owner, name, err := c.ResolveRepo(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("repos/%s/%s/pulls/%d/comments", owner, name, number)
	out, err := c.run(ctx, "", "api", endpoint, "--paginate")
	if err != nil {
		return nil, fmt.Errorf("list inline comments for PR #%d: %w", number, err)
	}
	// --paginate concatenates one JSON array per page.
	var all []InlineComment
	dec := json.NewDecoder(bytes.NewReader(out))
	for {
		var page []InlineComment
		err := dec.Decode(&page)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse inline comments: %w", err)
		}
		all = append(all, page...)
	}
	return all, nil
}

// threadsQuery is paged by gh --paginate through $endCursor. Replies point at
// their thread's first comment, so only that id is needed.
const threadsQuery = `query($owner: String!, $name: String!, $number: Int!, $endCursor: String) {
  repository(owner: $owner, name: $name) {
    pullRequest(number: $number) {
      reviewThreads(first: 100, after: $endCursor) {
        nodes {
          isResolved
          isOutdated
          comments(first: 1) { nodes { databaseId } }
        }
        pageInfo { hasNextPage endCursor }
      }
    }
  }
}`

type threadsPage struct {
	Data struct {
		Repository struct {
			PullRequest struct {
				ReviewThreads struct {
					Nodes []struct {
						IsResolved bool `json:"isResolved"`
						IsOutdated bool `json:"isOutdated"`
						Comments   struct {
							Nodes []struct {
								DatabaseID int64 `json:"databaseId"`
							} `json:"nodes"`
						} `json:"comments"`
					} `json:"nodes"`
				} `json:"reviewThreads"`
			} `json:"pullRequest"`
		} `json:"repository"`
	} `json:"data"`
}

// ThreadResolution maps the first comment id of each review thread to
// whether the thread is resolved or outdated.
func (c *Client) ThreadResolution(ctx context.Context, number int) (map[int64]bool, error) {
	owner, name, err := c.ResolveRepo(ctx)
	if err != nil {
		return nil, err
	}
	out, err := c.run(ctx, "", "api", "graphql", "--paginate",
		"-f", "query="+threadsQuery,
		"-F", "owner="+owner,
		"-F", "name="+name,
		"-F", "number="+strconv.Itoa(number),
	)
	if err != nil {
		return nil, fmt.Errorf("query review threads for PR #%d: %w", number, err)
	}
	closed := make(map[int64]bool)
	// --paginate writes one response object per page.
	dec := json.NewDecoder(bytes.NewReader(out))
	for {
		var page threadsPage
		err := dec.Decode(&page)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse review threads: %w", err)
		}
		for _, th := range page.Data.Repository.PullRequest.ReviewThreads.Nodes {
			for _, cm := range th.Comments.Nodes {
				closed[cm.DatabaseID] = th.IsResolved || th.IsOutdated
			}
		}
	}
	return closed, nil
}

// ActiveInlineComments returns inline comments that still apply: outdated
// comments and comments in resolved threads are dropped. When thread state
// cannot be queried every non-outdated comment is kept.
func (c *Client) ActiveInlineComments(ctx context.Context, number int) ([]InlineComment, error) {
	comments, err := c.ListInlineComments(ctx, number)
	if err != nil {
		return nil, err
	}
	closed, err := c.ThreadResolution(ctx, number)
	if err != nil {
		c.logger.Warn("thread resolution unavailable; keeping all current comments", zap.Int("pr", number), zap.Error(err))
		closed = nil
	}
	return FilterActive(comments, closed), nil
}

// FilterActive drops outdated comments and comments whose thread (keyed by
// the thread's root comment or the comment itself) is closed.
func FilterActive(comments []InlineComment, closed map[int64]bool) []InlineComment {
	var out []InlineComment
	for _, cm := range comments {
		if cm.Outdated() {
			continue
		}
		if closed[cm.ID] || (cm.InReplyToID != 0 && closed[cm.InReplyToID]) {
			continue
		}
		out = append(out, cm)
	}
	return out
}
