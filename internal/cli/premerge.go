package cli

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/reviewgate/internal/config"
	"github.com/dshills/reviewgate/internal/gate"
	"github.com/dshills/reviewgate/internal/github"
	"github.com/dshills/reviewgate/internal/mergelock"
	"github.com/dshills/reviewgate/internal/output"
	"github.com/dshills/reviewgate/internal/review"
)

var (
	flagPostComment bool
	flagFileIssues  bool
	flagRepo        string
	flagMergeAgent  string
)

const followUpLabel = "reviewgate"

var premergeCmd = &cobra.Command{
	Use:   "premerge <pr-number>",
	Short: "Gate a pull request merge",
	Long: `Check a pull request before it is merged: hard review-state checks, a merge
review of a targeted diff, and a human authorization lock. Exit status 0 allows
the merge; 1 blocks it and explains what to do.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		number, err := strconv.Atoi(args[0])
		if err != nil || number <= 0 {
			report(inputFailure(gate.PreMergeGate, fmt.Sprintf("invalid PR number %q", args[0]), err))
			return
		}
		overrides := map[string]any{}
		if flagRepo != "" {
			overrides["merge.repo"] = flagRepo
		}
		if flagMergeAgent != "" {
			overrides["merge.agent"] = flagMergeAgent
		}
		cfg, err := loadConfig(overrides)
		if err != nil {
			blockOnError(err)
			return
		}
		client := newGitHubClient(cfg)
		g, err := newPreMerge(cfg, client)
		if err != nil {
			blockOnError(err)
			return
		}

		ctx := cmd.Context()
		d := g.Run(ctx, number)
		report(d)

		if flagPostComment {
			var buf bytes.Buffer
			if err := (&output.MarkdownWriter{}).Write(&buf, d); err == nil {
				err = client.PostComment(ctx, number, buf.String())
			}
			if err != nil {
				logger.Warn("posting PR comment failed", zap.Int("pr", number), zap.Error(err))
				fmt.Fprintf(os.Stderr, "Warning: could not post comment on PR #%d: %v\n", number, err)
			}
		}
		if flagFileIssues && (d.Allowed || d.Kind == gate.KindAuthorization) {
			if title, body, ok := gate.FollowUpIssue(d); ok {
				url, err := client.CreateIssue(ctx, title, body, followUpLabel)
				if err != nil {
					logger.Warn("creating follow-up issue failed", zap.Int("pr", number), zap.Error(err))
					fmt.Fprintf(os.Stderr, "Warning: could not create follow-up issue: %v\n", err)
				} else {
					fmt.Fprintf(os.Stderr, "Filed follow-up issue: %s\n", url)
				}
			}
		}
	},
}

func newGitHubClient(cfg config.Config) *github.Client {
	return github.NewClient(
		github.ExecRunner{Binary: cfg.GitHub.Binary},
		github.WithRepo(cfg.Merge.Repo),
		github.WithTimeout(cfg.GitHub.Timeout),
		github.WithLogger(logger),
	)
}

func openLocks(cfg config.Config) (*mergelock.Manager, error) {
	store, err := mergelock.NewFileStore(cfg.Lock.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening lock store: %w", err)
	}
	return mergelock.NewManager(store, cfg.Lock.TTL, logger), nil
}

func newPreMerge(cfg config.Config, prs gate.PRSource) (*gate.PreMerge, error) {
	rules, err := review.LoadRules(cfg.Review.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	agent, err := newReviewer(cfg, cfg.Merge.Agent)
	if err != nil {
		return nil, err
	}
	locks, err := openLocks(cfg)
	if err != nil {
		return nil, err
	}
	// Merge verdicts are never cached, so the invoker gets no store.
	inv := review.NewInvoker(nil, cfg.Review.Timeout, logger)
	return gate.NewPreMerge(gate.PreMergeConfig{
		Agent:               agent,
		HeadTail:            cfg.Merge.HeadTailLines,
		InformationalChecks: cfg.Merge.InformationalChecks,
		RetryCommand:        cfg.Merge.RetryCommand,
		Binary:              cfg.Firewall.Binary,
		Rules:               rules,
		Redact:              cfg.Review.RedactSecrets,
		Excludes:            cfg.Review.Exclude,
	}, prs, inv, locks, logger), nil
}

func init() {
	premergeCmd.Flags().BoolVar(&flagPostComment, "post-comment", false, "Post the gate result as a PR comment")
	premergeCmd.Flags().BoolVar(&flagFileIssues, "file-issues", false, "Open a follow-up issue for WARNING findings of a passing review")
	premergeCmd.Flags().StringVar(&flagRepo, "repo", "", "Repository as OWNER/NAME (default: gh's current repository)")
	premergeCmd.Flags().StringVar(&flagMergeAgent, "agent", "", "Merge reviewer agent name")
}
