package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/dshills/reviewgate/internal/gitctx"
	"github.com/dshills/reviewgate/internal/mergelock"
)

var (
	flagLockReason string
	flagLockActor  string
)

// errNotInteractive is returned when authorize is not run from a terminal.
var errNotInteractive = errors.New("lock authorize must be run by a human at an interactive terminal")

// stdinIsTerminal is replaced in tests.
var stdinIsTerminal = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Manage human merge authorizations",
}

var lockAuthorizeCmd = &cobra.Command{
	Use:   "authorize <pr-number>",
	Short: "Authorize merging a pull request",
	Long: `Record that a human has approved merging a pull request. The authorization
expires after lock.ttl (default 30m). This command refuses to run without an
interactive terminal on stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pr, err := parsePR(args[0])
		if err != nil {
			return err
		}
		if !stdinIsTerminal() {
			return errNotInteractive
		}
		m, err := lockManager()
		if err != nil {
			return err
		}
		actor := resolveActor(cmd, flagLockActor)
		l, err := m.Authorize(pr, actor, flagLockReason)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Authorized merge of PR #%d by %s until %s\n",
			pr, l.AuthorizedBy, m.ExpiresAt(l).Local().Format(time.Kitchen))
		return nil
	},
}

var lockStatusCmd = &cobra.Command{
	Use:   "status <pr-number>",
	Short: "Show whether a pull request is authorized",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pr, err := parsePR(args[0])
		if err != nil {
			return err
		}
		m, err := lockManager()
		if err != nil {
			return err
		}
		authorized, err := writeLockStatus(os.Stdout, m, pr, time.Now(), flagFormat == "json")
		if err != nil {
			return err
		}
		if !authorized {
			exitCode = ExitBlocked
		}
		return nil
	},
}

var lockRevokeCmd = &cobra.Command{
	Use:   "revoke <pr-number>",
	Short: "Remove a merge authorization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pr, err := parsePR(args[0])
		if err != nil {
			return err
		}
		m, err := lockManager()
		if err != nil {
			return err
		}
		if err := m.Revoke(pr); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Revoked merge authorization for PR #%d\n", pr)
		return nil
	},
}

func lockManager() (*mergelock.Manager, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, err
	}
	return openLocks(cfg)
}

func parsePR(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid PR number %q", s)
	}
	return n, nil
}

// resolveActor picks the authorizing name: the flag, then git's user.name,
// then $USER.
func resolveActor(cmd *cobra.Command, flag string) string {
	if flag != "" {
		return flag
	}
	if name := gitctx.ConfigValue(cmd.Context(), "", "user.name"); name != "" {
		return name
	}
	return os.Getenv("USER")
}

type lockStatus struct {
	PR           int        `json:"pr"`
	State        string     `json:"state"`
	AuthorizedBy string     `json:"authorizedBy,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

func writeLockStatus(w io.Writer, m *mergelock.Manager, pr int, now time.Time, asJSON bool) (bool, error) {
	l, st, err := m.Lookup(pr)
	if err != nil {
		return false, err
	}
	status := lockStatus{PR: pr, State: st.String()}
	if l != nil {
		exp := m.ExpiresAt(*l)
		status.AuthorizedBy = l.AuthorizedBy
		status.Reason = l.Reason
		status.CreatedAt = &l.CreatedAt
		status.ExpiresAt = &exp
	}
	if asJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return false, err
		}
		_, err = fmt.Fprintln(w, string(data))
		return st == mergelock.Authorized, err
	}
	if l == nil {
		_, err = fmt.Fprintf(w, "PR #%d: %s\n", pr, st)
		return false, err
	}
	_, err = fmt.Fprintf(w, "PR #%d: %s by %s (%s); expires in %s\n",
		pr, st, l.AuthorizedBy, l.Reason, status.ExpiresAt.Sub(now).Round(time.Second))
	return true, err
}

func init() {
	lockCmd.AddCommand(lockAuthorizeCmd)
	lockCmd.AddCommand(lockStatusCmd)
	lockCmd.AddCommand(lockRevokeCmd)
	lockAuthorizeCmd.Flags().StringVar(&flagLockReason, "reason", "", "Why this merge is approved (required)")
	lockAuthorizeCmd.Flags().StringVar(&flagLockActor, "actor", "", "Name recorded as the authorizer (default: git user.name, then $USER)")
	_ = lockAuthorizeCmd.MarkFlagRequired("reason")
}
