package firewall

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultBinary is the name of the gate binary whose authorize subcommand is
// off limits to automated sessions.
const DefaultBinary = "reviewgate"

const (
	// canonicalLockSuffix matches the lock directory regardless of its prefix.
	canonicalLockSuffix = "reviewgate/merge-locks"
	// canonicalConfigSuffix matches the user config file on every platform.
	canonicalConfigSuffix = "reviewgate/config.yaml"

	envPrefix      = "REVIEWGATE_"
	repoConfigFile = ".reviewgate.yaml"
)

// Config selects what the firewall protects.
type Config struct {
	LockDir string
	// ConfigFile is the user config file, the only source of protected keys.
	ConfigFile     string
	Binary         string
	ForbidWorktree bool
}

// Result is the outcome of one check. A zero Rule means the command is allowed.
type Result struct {
	Allowed bool
	Rule    Rule
	Input   string
}

// Message is the human-readable explanation of a block.
func (r Result) Message() string {
	if r.Allowed {
		return ""
	}
	return fmt.Sprintf("BLOCKED [%s]: %s is not allowed. Instead: %s", r.Rule.ID, r.Rule.Forbidden, r.Rule.Alternative)
}

// Firewall classifies commands and file edits. It keeps no state between
// checks apart from the audit log it appends to.
type Firewall struct {
	cfg           Config
	lockDir       string
	configFile    string
	lockNeedles   []string
	configNeedles []string
	audit       *AuditLog
	logger      *zap.Logger
}

// Option configures a Firewall.
type Option func(*Firewall)

// WithAuditLog records every block in log.
func WithAuditLog(log *AuditLog) Option {
	return func(fw *Firewall) { fw.audit = log }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(fw *Firewall) {
		if l != nil {
			fw.logger = l
		}
	}
}

// New returns a Firewall for cfg.
func New(cfg Config, opts ...Option) *Firewall {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	fw := &Firewall{cfg: cfg, logger: zap.NewNop()}
	for _, o := range opts {
		o(fw)
	}
	fw.lockDir = absPath(cfg.LockDir)
	fw.lockNeedles = append([]string{canonicalLockSuffix}, pathNeedles(fw.lockDir)...)
	fw.configFile = absPath(cfg.ConfigFile)
	fw.configNeedles = append([]string{canonicalConfigSuffix}, pathNeedles(fw.configFile)...)
	return fw
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// pathNeedles returns the spellings of p a command line is likely to use:
// absolute, and relative to the home directory.
func pathNeedles(p string) []string {
	if p == "" {
		return nil
	}
	needles := []string{filepath.ToSlash(p)}
	if home, err := os.UserHomeDir(); err == nil {
		if rel, err := filepath.Rel(home, p); err == nil && !strings.HasPrefix(rel, "..") {
			rel = filepath.ToSlash(rel)
			needles = append(needles, "~/"+rel, "$HOME/"+rel, "${HOME}/"+rel)
		}
	}
	return needles
}

// Rules returns the active command rules in evaluation order, followed by
// the file-edit rule.
func (fw *Firewall) Rules() []Rule {
	return append(fw.rules(), fw.editRule())
}

// CheckCommand classifies a shell command line. Rules are evaluated in
// order and the first match blocks.
func (fw *Firewall) CheckCommand(line string) Result {
	cmds := commands(line)
	for _, rule := range fw.rules() {
		for _, c := range cmds {
			if rule.match(fw, c) {
				return fw.block(rule, line)
			}
		}
	}
	return Result{Allowed: true, Input: line}
}

// CheckEdit classifies a file write. Any path inside the lock directory, and
// the user config file, is blocked.
func (fw *Firewall) CheckEdit(p string) Result {
	if fw.insideLockDir(p) {
		return fw.block(fw.editRule(), p)
	}
	if fw.isConfigFile(p) {
		return fw.block(fw.configRule(), p)
	}
	return Result{Allowed: true, Input: p}
}

// Check dispatches a decoded hook event.
func (fw *Firewall) Check(ev Event) Result {
	if ev.Command != "" {
		return fw.CheckCommand(ev.Command)
	}
	return fw.CheckEdit(ev.FilePath)
}

// resolve makes p absolute and resolves symlinks in its directory.
func resolve(p string) string {
	clean := absPath(p)
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(clean)); err == nil {
		clean = filepath.Join(resolved, filepath.Base(clean))
	}
	return clean
}

// variants returns p and its symlink-resolved form.
func variants(p string) []string {
	if p == "" {
		return nil
	}
	out := []string{p}
	if resolved, err := filepath.EvalSymlinks(p); err == nil && resolved != p {
		out = append(out, resolved)
	}
	return out
}

func (fw *Firewall) insideLockDir(p string) bool {
	if p == "" {
		return false
	}
	clean := resolve(p)
	for _, dir := range variants(fw.lockDir) {
		if clean == dir || strings.HasPrefix(clean, dir+string(filepath.Separator)) {
			return true
		}
	}
	slash := filepath.ToSlash(clean)
	return strings.Contains(slash, "/"+canonicalLockSuffix+"/") ||
		strings.HasSuffix(slash, "/"+canonicalLockSuffix)
}

func (fw *Firewall) isConfigFile(p string) bool {
	if p == "" {
		return false
	}
	clean := resolve(p)
	for _, f := range variants(fw.configFile) {
		if clean == f {
			return true
		}
	}
	return strings.HasSuffix(filepath.ToSlash(clean), "/"+canonicalConfigSuffix)
}

func (fw *Firewall) block(rule Rule, input string) Result {
	fw.logger.Warn("firewall block", zap.String("rule", rule.ID), zap.String("input", input))
	if fw.audit != nil {
		if err := fw.audit.Append(rule.ID, input); err != nil {
			fw.logger.Error("audit log write failed", zap.Error(err))
		}
	}
	return Result{Rule: rule, Input: input}
}
