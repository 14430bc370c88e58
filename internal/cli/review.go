package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/reviewgate/internal/cache"
	"github.com/dshills/reviewgate/internal/config"
	"github.com/dshills/reviewgate/internal/gate"
	"github.com/dshills/reviewgate/internal/gitctx"
	"github.com/dshills/reviewgate/internal/providers"
	"github.com/dshills/reviewgate/internal/review"
)

// Shared review flags
var (
	flagExclude      string
	flagContextLines int
	flagAgent        string
	flagAdversarial  string
	flagRules        string
	flagTimeout      string
	flagNoRedact     bool
	flagNoCache      bool
)

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "Exclude file path globs (comma-separated)")
	cmd.Flags().IntVar(&flagContextLines, "context-lines", 0, "Number of context lines in diff")
	cmd.Flags().StringVar(&flagAgent, "agent", "", "Primary reviewer agent name")
	cmd.Flags().StringVar(&flagAdversarial, "adversarial", "", "Adversarial reviewer agent name")
	cmd.Flags().StringVar(&flagRules, "rules", "", "Rules file path")
	cmd.Flags().StringVar(&flagTimeout, "timeout", "", "Reviewer timeout (e.g. 90s)")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Do not read or write the verdict cache")
}

func buildOverrides() map[string]any {
	m := make(map[string]any)
	if flagAgent != "" {
		m["review.primaryAgent"] = flagAgent
	}
	if flagAdversarial != "" {
		m["review.adversarialAgent"] = flagAdversarial
	}
	if flagRules != "" {
		m["review.rulesFile"] = flagRules
	}
	if flagTimeout != "" {
		m["review.timeout"] = flagTimeout
	}
	if flagContextLines > 0 {
		m["review.contextLines"] = flagContextLines
	}
	if flagExclude != "" {
		m["review.exclude"] = splitComma(flagExclude)
	}
	if flagNoRedact {
		m["review.redactSecrets"] = false
	}
	if flagNoCache {
		m["cache.enabled"] = false
	}
	return m
}

func buildDiffOpts(cfg config.Config) gitctx.DiffOptions {
	return gitctx.DiffOptions{
		ContextLines: cfg.Review.ContextLines,
		Exclude:      cfg.Review.Exclude,
	}
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// openCache returns the verdict store, or nil when caching is off. An
// unusable cache directory disables caching rather than blocking the review.
func openCache(cfg config.Config) cache.Store {
	if !cfg.Cache.Enabled {
		return nil
	}
	fs, err := cache.NewFileStore(cfg.Cache.Dir, cfg.Cache.TTL, cache.WithLogger(logger))
	if err != nil {
		logger.Warn("verdict cache disabled", zap.Error(err))
		return nil
	}
	if _, err := fs.MaybeSweep(cfg.Cache.SweepInterval); err != nil {
		logger.Warn("cache sweep failed", zap.Error(err))
	}
	return fs
}

func newReviewer(cfg config.Config, name string) (providers.Reviewer, error) {
	return providers.New(name, cfg.Agents, providers.WithLogger(logger))
}

func newPreCommit(cfg config.Config) (*gate.PreCommit, error) {
	if !cfg.Review.RedactSecrets {
		fmt.Fprintln(os.Stderr, "WARNING: secret redaction is disabled")
	}
	rules, err := review.LoadRules(cfg.Review.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	primary, err := newReviewer(cfg, cfg.Review.PrimaryAgent)
	if err != nil {
		return nil, err
	}
	var adversarial providers.Reviewer
	if cfg.Review.AdversarialAgent != "" {
		adversarial, err = newReviewer(cfg, cfg.Review.AdversarialAgent)
		if err != nil {
			return nil, err
		}
	}
	inv := review.NewInvoker(openCache(cfg), cfg.Review.Timeout, logger)
	return gate.NewPreCommit(gate.PreCommitConfig{
		Thresholds:  cfg.Review.Thresholds(),
		Primary:     primary,
		Adversarial: adversarial,
		Rules:       rules,
		Redact:      cfg.Review.RedactSecrets,
	}, inv, logger), nil
}

// diffSource captures the diff a review subcommand gates.
type diffSource func(ctx context.Context, cfg config.Config) (*gitctx.Diff, error)

func runPreCommit(ctx context.Context, src diffSource) {
	cfg, err := loadConfig(buildOverrides())
	if err != nil {
		blockOnError(err)
		return
	}
	g, err := newPreCommit(cfg)
	if err != nil {
		blockOnError(err)
		return
	}
	d, err := src(ctx, cfg)
	if err != nil {
		report(inputFailure(gate.PreCommitGate, "cannot read the diff to review", err))
		return
	}
	report(g.Run(ctx, d))
}

func inputFailure(name gate.Name, summary string, err error) gate.Decision {
	return gate.Decision{
		ID:      uuid.NewString(),
		Gate:    name,
		Kind:    gate.KindInput,
		Summary: summary,
		Err:     &gate.InputError{Reason: summary, Err: err},
	}
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Gate a change on an independent review",
	Long:  "Review a diff with the configured reviewer agents. Exit status 0 allows the change; 1 blocks it.",
}

var reviewStagedCmd = &cobra.Command{
	Use:   "staged",
	Short: "Review staged changes (index vs HEAD); the pre-commit gate",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runPreCommit(cmd.Context(), func(ctx context.Context, cfg config.Config) (*gitctx.Diff, error) {
			return gitctx.Staged(ctx, buildDiffOpts(cfg))
		})
	},
}

var reviewCommitCmd = &cobra.Command{
	Use:   "commit <sha>",
	Short: "Review a specific commit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runPreCommit(cmd.Context(), func(ctx context.Context, cfg config.Config) (*gitctx.Diff, error) {
			return gitctx.Commit(ctx, args[0], buildDiffOpts(cfg))
		})
	},
}

var reviewRangeCmd = &cobra.Command{
	Use:   "range <revRange>",
	Short: "Review a revision range (e.g., origin/main..HEAD)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runPreCommit(cmd.Context(), func(ctx context.Context, cfg config.Config) (*gitctx.Diff, error) {
			return gitctx.Range(ctx, args[0], buildDiffOpts(cfg))
		})
	},
}

var reviewStdinCmd = &cobra.Command{
	Use:   "stdin",
	Short: "Review a unified diff read from stdin",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runPreCommit(cmd.Context(), func(ctx context.Context, cfg config.Config) (*gitctx.Diff, error) {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			return gitctx.FromText(string(raw), "stdin", "", cfg.Review.Exclude), nil
		})
	},
}

func init() {
	reviewCmd.AddCommand(reviewStagedCmd)
	reviewCmd.AddCommand(reviewCommitCmd)
	reviewCmd.AddCommand(reviewRangeCmd)
	reviewCmd.AddCommand(reviewStdinCmd)

	for _, cmd := range []*cobra.Command{
		reviewStagedCmd,
		reviewCommitCmd,
		reviewRangeCmd,
		reviewStdinCmd,
	} {
		addReviewFlags(cmd)
	}
}
