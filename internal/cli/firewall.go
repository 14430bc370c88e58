package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/reviewgate/internal/config"
	"github.com/dshills/reviewgate/internal/firewall"
)

var (
	flagFWCommand string
	flagFWFile    string
)

var firewallCmd = &cobra.Command{
	Use:   "firewall",
	Short: "Check a command or file edit against the bypass rules",
	Long: `Check one tool invocation before it runs. With no flags a hook event is read
from stdin as JSON: {"tool_name": "...", "tool_input": {"command": "..."}} or
{"tool_input": {"file_path": "..."}}. Exit status 0 allows, 2 blocks, and 1
reports a payload that could not be checked.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(nil)
		if err != nil {
			// Keep guarding with built-in settings rather than failing open.
			logger.Warn("config unavailable; firewall using defaults", zap.Error(err))
			cfg = config.Default()
		}
		exitCode = runFirewall(cmd.InOrStdin(), os.Stdout, os.Stderr, newFirewall(cfg), flagFWCommand, flagFWFile)
	},
}

var firewallRulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List firewall rules and known gaps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			cfg = config.Default()
		}
		return writeRules(os.Stdout, newFirewall(cfg).Rules())
	},
}

func newFirewall(cfg config.Config) *firewall.Firewall {
	userFile, err := config.ConfigPath()
	if err != nil {
		logger.Warn("user config path unknown; guarding the default location only", zap.Error(err))
	}
	return firewall.New(firewall.Config{
		LockDir:        cfg.Lock.Dir,
		ConfigFile:     userFile,
		Binary:         cfg.Firewall.Binary,
		ForbidWorktree: cfg.Firewall.ForbidWorktree,
	},
		firewall.WithAuditLog(firewall.NewAuditLog(cfg.Firewall.LogFile)),
		firewall.WithLogger(logger),
	)
}

type firewallResult struct {
	Allowed     bool   `json:"allowed"`
	Rule        string `json:"rule,omitempty"`
	Message     string `json:"message,omitempty"`
	Alternative string `json:"alternative,omitempty"`
}

// runFirewall checks one event and returns the exit code.
func runFirewall(in io.Reader, stdout, stderr io.Writer, fw *firewall.Firewall, command, file string) int {
	var ev firewall.Event
	switch {
	case command != "":
		ev.Command = command
	case file != "":
		ev.FilePath = file
	default:
		var err error
		ev, err = firewall.DecodeEvent(in)
		if err != nil {
			var ie *firewall.InputError
			if !errors.As(err, &ie) {
				ie = &firewall.InputError{Reason: err.Error()}
			}
			fmt.Fprintf(stderr, "reviewgate firewall: %v\n", ie)
			return ExitBlocked
		}
	}

	res := fw.Check(ev)
	if flagFormat == "json" {
		out := firewallResult{Allowed: res.Allowed}
		if !res.Allowed {
			out.Rule = res.Rule.ID
			out.Message = res.Message()
			out.Alternative = res.Rule.Alternative
		}
		data, _ := json.Marshal(out)
		fmt.Fprintln(stdout, string(data))
	}
	if res.Allowed {
		return ExitAllowed
	}
	fmt.Fprintln(stderr, res.Message())
	return ExitFirewallBlock
}

func writeRules(w io.Writer, rules []firewall.Rule) error {
	ew := &errWriter{w: w}
	for _, r := range rules {
		ew.printf("%-24s %s\n", r.ID, r.Forbidden)
		ew.printf("%-24s instead: %s\n", "", r.Alternative)
	}
	ew.printf("\nKnown gaps (not detected):\n")
	for _, g := range firewall.KnownGaps {
		ew.printf("  - %s\n", g)
	}
	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func init() {
	firewallCmd.AddCommand(firewallRulesCmd)
	firewallCmd.Flags().StringVar(&flagFWCommand, "command", "", "Shell command line to check")
	firewallCmd.Flags().StringVar(&flagFWFile, "file", "", "File path about to be written")
}
