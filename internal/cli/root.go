package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/reviewgate/internal/config"
	"github.com/dshills/reviewgate/internal/gate"
	"github.com/dshills/reviewgate/internal/output"
)

const version = "0.3.0"

// Exit codes. Anything that is not an explicit allow blocks.
const (
	ExitAllowed       = 0
	ExitBlocked       = 1
	ExitFirewallBlock = 2
)

var (
	flagConfig  string
	flagFormat  string
	flagVerbose bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "reviewgate",
	Short: "Review and merge gate for agent-driven development",
	Long: `reviewgate blocks commits that an independent reviewer rejects, blocks merges
that lack a passing merge review and a human authorization, and refuses shell
commands that would bypass either gate.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(flagVerbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Run executes the root command and returns an exit code.
func Run() int {
	exitCode = ExitAllowed
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Cobra already prints the error
		return ExitBlocked
	}
	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitAllowed

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print reviewgate version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "reviewgate version %s\n", version)
	},
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func loadConfig(overrides map[string]any) (config.Config, error) {
	cfg, err := config.Load(flagConfig, overrides)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// report prints the decision and sets the exit code. The one-line summary
// goes to stdout; text explanations go to stderr and JSON to stdout.
func report(d gate.Decision) {
	if !d.Allowed {
		exitCode = ExitBlocked
	}
	w, err := output.GetWriter(flagFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitBlocked
		return
	}
	writeReport(os.Stdout, os.Stderr, w, d)
}

// writeReport sends JSON to stdout, or the summary line to stdout and the
// explanation to stderr. A block is always explained on stderr.
func writeReport(stdout, stderr io.Writer, w output.Writer, d gate.Decision) {
	if flagFormat == "json" {
		if err := w.Write(stdout, d); err != nil {
			fmt.Fprintf(stderr, "Error writing output: %v\n", err)
		}
		if !d.Allowed {
			fmt.Fprintln(stderr, summaryLine(d))
			if text := d.ErrorText(); text != "" {
				fmt.Fprintf(stderr, "error: %s\n", text)
			}
		}
		return
	}
	fmt.Fprintln(stdout, summaryLine(d))
	if err := w.Write(stderr, d); err != nil {
		fmt.Fprintf(stderr, "Error writing output: %v\n", err)
	}
}

func summaryLine(d gate.Decision) string {
	flag := "ALLOWED"
	if !d.Allowed {
		flag = "BLOCKED"
	}
	return fmt.Sprintf("[reviewgate %s] %s: %s", d.Gate, flag, d.Summary)
}

// blockOnError prints a failure that prevented a gate from running.
func blockOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	exitCode = ExitBlocked
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (replaces the user and repository config files)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "Output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging to stderr")

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(premergeCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(firewallCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(versionCmd)
}
