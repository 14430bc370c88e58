package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dshills/reviewgate/internal/firewall"
	"github.com/dshills/reviewgate/internal/providers"
	"github.com/dshills/reviewgate/internal/review"
)

// RepoFile is the per-repository config file name.
const RepoFile = ".reviewgate.yaml"

// EnvPrefix prefixes environment overrides: review.maxFull is read from
// REVIEWGATE_REVIEW_MAXFULL.
const EnvPrefix = "REVIEWGATE"

// Config is the effective reviewgate configuration.
type Config struct {
	StateDir string                           `mapstructure:"stateDir"`
	Review   ReviewConfig                     `mapstructure:"review"`
	Merge    MergeConfig                      `mapstructure:"merge"`
	Agents   map[string]providers.AgentConfig `mapstructure:"agents"`
	Cache    CacheConfig                      `mapstructure:"cache"`
	Lock     LockConfig                       `mapstructure:"lock"`
	Firewall FirewallConfig                   `mapstructure:"firewall"`
	GitHub   GitHubConfig                     `mapstructure:"github"`
}

// ReviewConfig controls the pre-commit review.
type ReviewConfig struct {
	MaxFull          int           `mapstructure:"maxFull"`
	ChunkCeiling     int           `mapstructure:"chunkCeiling"`
	SkipCeiling      int           `mapstructure:"skipCeiling"`
	Timeout          time.Duration `mapstructure:"timeout"`
	PrimaryAgent     string        `mapstructure:"primaryAgent"`
	AdversarialAgent string        `mapstructure:"adversarialAgent"`
	RedactSecrets    bool          `mapstructure:"redactSecrets"`
	RulesFile        string        `mapstructure:"rulesFile"`
	ContextLines     int           `mapstructure:"contextLines"`
	Exclude          []string      `mapstructure:"exclude"`
}

// Thresholds returns the triage limits.
func (r ReviewConfig) Thresholds() review.Thresholds {
	return review.Thresholds{MaxFull: r.MaxFull, ChunkCeiling: r.ChunkCeiling, SkipCeiling: r.SkipCeiling}
}

// MergeConfig controls the pre-merge gate.
type MergeConfig struct {
	Agent               string   `mapstructure:"agent"`
	HeadTailLines       int      `mapstructure:"headTailLines"`
	InformationalChecks []string `mapstructure:"informationalChecks"`
	RetryCommand        string   `mapstructure:"retryCommand"`
	Repo                string   `mapstructure:"repo"`
}

// CacheConfig controls the verdict cache.
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Dir           string        `mapstructure:"dir"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
}

// LockConfig controls merge authorization locks.
type LockConfig struct {
	Dir string        `mapstructure:"dir"`
	TTL time.Duration `mapstructure:"ttl"`
}

// FirewallConfig controls the command firewall.
type FirewallConfig struct {
	LogFile        string `mapstructure:"logFile"`
	Binary         string `mapstructure:"binary"`
	ForbidWorktree bool   `mapstructure:"forbidWorktree"`
}

// GitHubConfig controls the gh CLI client.
type GitHubConfig struct {
	Binary  string        `mapstructure:"binary"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// defaults are registered on every viper instance. They also define the set
// of keys SetField accepts.
var defaults = map[string]any{
	"stateDir":                  "",
	"review.maxFull":            1000,
	"review.chunkCeiling":       800,
	"review.skipCeiling":        2500,
	"review.timeout":            "120s",
	"review.primaryAgent":       "claude",
	"review.adversarialAgent":   "",
	"review.redactSecrets":      true,
	"review.rulesFile":          "",
	"review.contextLines":       3,
	"review.exclude":            []string{},
	"merge.agent":               "claude",
	"merge.headTailLines":       review.DefaultHeadTail,
	"merge.informationalChecks": []string{},
	"merge.retryCommand":        "reviewgate premerge {pr}",
	"merge.repo":                "",
	"agents.claude.command":     "claude",
	"agents.claude.args":        []string{"-p"},
	"cache.enabled":             true,
	"cache.dir":                 "",
	"cache.ttl":                 "720h",
	"cache.sweepInterval":       "24h",
	"lock.dir":                  "",
	"lock.ttl":                  "30m",
	"firewall.logFile":          "",
	"firewall.binary":           "reviewgate",
	"firewall.forbidWorktree":   true,
	"github.binary":             "gh",
	"github.timeout":            "30s",
}

func withDefaults() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

func newViper() *viper.Viper {
	v := withDefaults()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the built-in configuration with derived paths resolved.
func Default() Config {
	cfg, err := decode(withDefaults())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load builds the effective config: defaults <- user file <- repository file
// <- REVIEWGATE_* env <- overrides. A non-empty file replaces both config
// files and must exist. Protected keys (stateDir, lock.*, firewall.*) are the
// exception: they come from the defaults and the user file only.
func Load(file string, overrides map[string]any) (Config, error) {
	v := newViper()
	files := []string{file}
	if file == "" {
		files = nil
		if p, err := ConfigPath(); err == nil {
			files = append(files, p)
		}
		files = append(files, RepoFile)
	}
	for _, f := range files {
		if file == "" {
			if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
				continue
			}
		}
		v.SetConfigFile(f)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", f, err)
		}
	}
	for k, val := range overrides {
		v.Set(k, val)
	}
	if err := pinProtected(v); err != nil {
		return Config{}, err
	}
	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// pinProtected resets protected keys to the defaults merged with the user
// config file alone. The repository file, an explicit file, REVIEWGATE_* env
// and flags all run with the automated session's privileges, and letting
// them move the lock store would let that session forge an authorization.
func pinProtected(v *viper.Viper) error {
	trusted := withDefaults()
	if p, err := ConfigPath(); err == nil {
		if _, err := os.Stat(p); err == nil {
			trusted.SetConfigFile(p)
			if err := trusted.MergeInConfig(); err != nil {
				return fmt.Errorf("reading config %s: %w", p, err)
			}
		}
	}
	for k := range defaults {
		if firewall.ProtectedKey(k) {
			v.Set(k, trusted.Get(k))
		}
	}
	return nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.resolvePaths()
	return cfg, nil
}

func (c *Config) resolvePaths() {
	if c.StateDir == "" {
		c.StateDir = StateDir()
	}
	if c.Lock.Dir == "" {
		c.Lock.Dir = filepath.Join(c.StateDir, "merge-locks")
	}
	if c.Firewall.LogFile == "" {
		c.Firewall.LogFile = filepath.Join(c.StateDir, "blocked-commands.log")
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(CacheHome(), "reviewgate", "verdicts")
	}
}

// Validate checks values that would make a gate misbehave.
func (c Config) Validate() error {
	if err := c.Review.Thresholds().Validate(); err != nil {
		return err
	}
	for key, d := range map[string]time.Duration{
		"review.timeout": c.Review.Timeout,
		"cache.ttl":      c.Cache.TTL,
		"lock.ttl":       c.Lock.TTL,
		"github.timeout": c.GitHub.Timeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration, got %s", key, d)
		}
	}
	for _, name := range []string{c.Review.PrimaryAgent, c.Review.AdversarialAgent, c.Merge.Agent} {
		if name == "" {
			continue
		}
		if _, ok := c.Agents[strings.ToLower(name)]; !ok {
			return fmt.Errorf("agent %q is referenced but not defined under agents", name)
		}
	}
	return nil
}

// ConfigDir returns the platform-appropriate config directory for reviewgate.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "reviewgate"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "reviewgate"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "reviewgate"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "reviewgate"), nil
	default:
		return filepath.Join(home, ".config", "reviewgate"), nil
	}
}

// ConfigPath returns the full path to the user config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// StateDir is where locks and the audit log live.
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "reviewgate")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "reviewgate-state")
	}
	return filepath.Join(home, ".local", "state", "reviewgate")
}

// CacheHome is the user cache root.
func CacheHome() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return os.TempDir()
}

// Keys returns every settable key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func knownKey(key string) (string, bool) {
	for k := range defaults {
		if strings.EqualFold(k, key) {
			return k, true
		}
	}
	// New agents may be declared freely.
	parts := strings.Split(key, ".")
	if len(parts) == 3 && strings.EqualFold(parts[0], "agents") && parts[1] != "" &&
		(parts[2] == "command" || parts[2] == "args") {
		return key, true
	}
	return "", false
}

// Init writes a config file with the built-in defaults. It refuses to
// overwrite an existing file.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	v := viper.New()
	for k, val := range defaults {
		v.Set(k, val)
	}
	return write(v, path)
}

// SetField updates one key in the config file at path, creating the file if
// needed. The resulting file must still decode and validate.
func SetField(path, key, value string) error {
	canonical, ok := knownKey(key)
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	v := viper.New()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	var val any = value
	if strings.HasSuffix(canonical, ".args") || strings.HasSuffix(canonical, ".exclude") ||
		strings.HasSuffix(canonical, ".informationalChecks") {
		val = splitList(value)
	}
	v.Set(canonical, val)

	check := withDefaults()
	if err := check.MergeConfigMap(v.AllSettings()); err != nil {
		return fmt.Errorf("merging config: %w", err)
	}
	cfg, err := decode(check)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return write(v, path)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func write(v *viper.Viper, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	v.SetConfigType("yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
