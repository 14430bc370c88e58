package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/reviewgate/internal/gitctx"
)

const (
	hookMarkerStart = "# >>> reviewgate pre-commit hook >>>"
	hookMarkerEnd   = "# <<< reviewgate pre-commit hook <<<"
	hookShebang     = "#!/bin/sh"
)

var hookBinary string

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the git pre-commit hook",
	Long: `Install or remove the pre-commit hook that runs "reviewgate review staged".

The hook lives between marker lines, so an existing hook script keeps its other
content. Any non-zero exit from reviewgate stops the commit.`,
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install reviewgate as a git pre-commit hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := hookPath(cmd)
		if err != nil {
			return err
		}
		if err := installHook(path, hookBinary); err != nil {
			return err
		}
		logger.Info("hook installed", zap.String("path", path), zap.String("binary", hookBinary))
		fmt.Fprintf(cmd.OutOrStdout(), "Installed reviewgate pre-commit hook at %s\n", path)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the reviewgate pre-commit hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := hookPath(cmd)
		if err != nil {
			return err
		}
		removed, err := uninstallHook(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch removed {
		case hookAbsent:
			fmt.Fprintln(out, "No reviewgate pre-commit hook found.")
		case hookFileRemoved:
			fmt.Fprintf(out, "Removed reviewgate pre-commit hook at %s\n", path)
		default:
			fmt.Fprintf(out, "Removed reviewgate section from %s\n", path)
		}
		return nil
	},
}

var hookStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the pre-commit hook is installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := hookPath(cmd)
		if err != nil {
			return err
		}
		return writeHookStatus(cmd.OutOrStdout(), path)
	},
}

func hookPath(cmd *cobra.Command) (string, error) {
	gitDir, err := gitctx.GitDir(cmd.Context(), "")
	if err != nil {
		return "", err
	}
	return filepath.Join(gitDir, "hooks", "pre-commit"), nil
}

// installHook writes or refreshes the reviewgate section of the hook at path.
func installHook(path, binary string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading hook file: %w", err)
	}

	section := generateHookScript(binary)
	content := hookShebang + "\n" + section
	if len(existing) > 0 {
		content = replaceHookSection(string(existing), section)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return fmt.Errorf("writing hook file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, 0o755)
}

type uninstallResult int

const (
	hookAbsent uninstallResult = iota
	hookSectionRemoved
	hookFileRemoved
)

// uninstallHook removes the reviewgate section, deleting the file when nothing
// but a shebang is left.
func uninstallHook(path string) (uninstallResult, error) {
	existing, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return hookAbsent, nil
	}
	if err != nil {
		return hookAbsent, fmt.Errorf("reading hook file: %w", err)
	}
	if _, _, ok := splitHookSection(string(existing)); !ok {
		return hookAbsent, nil
	}

	content := removeHookSection(string(existing))
	switch strings.TrimSpace(content) {
	case "", hookShebang, "#!/bin/bash":
		if err := os.Remove(path); err != nil {
			return hookAbsent, fmt.Errorf("removing hook file: %w", err)
		}
		return hookFileRemoved, nil
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return hookAbsent, fmt.Errorf("writing hook file: %w", err)
	}
	return hookSectionRemoved, nil
}

func writeHookStatus(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading hook file: %w", err)
	}
	if _, _, ok := splitHookSection(string(data)); !ok {
		fmt.Fprintf(w, "not installed (%s)\n", path)
		return nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.Mode().Perm()&0o111 == 0 {
		fmt.Fprintf(w, "installed but not executable (%s)\n", path)
		return nil
	}
	fmt.Fprintf(w, "installed (%s)\n", path)
	return nil
}

// generateHookScript returns the marker-delimited hook section. Any non-zero
// exit, including a missing binary, stops the commit.
func generateHookScript(binary string) string {
	if binary == "" {
		binary = "reviewgate"
	}
	lines := []string{
		hookMarkerStart,
		binary + " review staged",
		"REVIEWGATE_EXIT=$?",
		"if [ $REVIEWGATE_EXIT -ne 0 ]; then",
		`  echo "reviewgate: commit blocked (exit $REVIEWGATE_EXIT)" >&2`,
		"  exit 1",
		"fi",
		hookMarkerEnd,
	}
	return strings.Join(lines, "\n") + "\n"
}

// splitHookSection returns the text around the marker-delimited section.
func splitHookSection(content string) (before, after string, ok bool) {
	start := strings.Index(content, hookMarkerStart)
	end := strings.Index(content, hookMarkerEnd)
	if start == -1 || end == -1 || end < start {
		return content, "", false
	}
	after = strings.TrimPrefix(content[end+len(hookMarkerEnd):], "\n")
	return content[:start], after, true
}

func replaceHookSection(existing, section string) string {
	before, after, ok := splitHookSection(existing)
	if !ok {
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}
	return before + section + after
}

func removeHookSection(existing string) string {
	before, after, ok := splitHookSection(existing)
	if !ok {
		return existing
	}
	return before + after
}

func init() {
	hookCmd.AddCommand(hookInstallCmd, hookUninstallCmd, hookStatusCmd)
	hookInstallCmd.Flags().StringVar(&hookBinary, "binary", "reviewgate", "Command the hook runs")
}
