package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points every XDG directory and the working directory at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestDefault(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	if cfg.Review.MaxFull != 1000 || cfg.Review.ChunkCeiling != 800 || cfg.Review.SkipCeiling != 2500 {
		t.Errorf("thresholds = %+v", cfg.Review.Thresholds())
	}
	if cfg.Review.Timeout != 120*time.Second {
		t.Errorf("review.timeout = %s", cfg.Review.Timeout)
	}
	if cfg.Cache.TTL != 30*24*time.Hour {
		t.Errorf("cache.ttl = %s", cfg.Cache.TTL)
	}
	if cfg.Lock.TTL != 30*time.Minute {
		t.Errorf("lock.ttl = %s", cfg.Lock.TTL)
	}
	if !cfg.Review.RedactSecrets || !cfg.Cache.Enabled || !cfg.Firewall.ForbidWorktree {
		t.Error("expected redaction, cache and worktree ban enabled by default")
	}
	if cfg.Agents["claude"].Command != "claude" {
		t.Errorf("agents = %+v", cfg.Agents)
	}
	wantLock := filepath.Join(dir, "state", "reviewgate", "merge-locks")
	if cfg.Lock.Dir != wantLock {
		t.Errorf("lock.dir = %q, want %q", cfg.Lock.Dir, wantLock)
	}
	if cfg.Firewall.LogFile != filepath.Join(dir, "state", "reviewgate", "blocked-commands.log") {
		t.Errorf("firewall.logFile = %q", cfg.Firewall.LogFile)
	}
	if cfg.Cache.Dir != filepath.Join(dir, "cache", "reviewgate", "verdicts") {
		t.Errorf("cache.dir = %q", cfg.Cache.Dir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	user := filepath.Join(dir, "config", "reviewgate", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(user), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, user, "review:\n  maxFull: 600\n  timeout: 45s\nlock:\n  ttl: 10m\n")
	writeFile(t, filepath.Join(dir, RepoFile), "review:\n  maxFull: 700\n  exclude: [\"vendor/**\"]\n")
	t.Setenv("REVIEWGATE_GITHUB_TIMEOUT", "15s")

	cfg, err := Load("", map[string]any{"review.timeout": "90s"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Review.MaxFull != 700 {
		t.Errorf("repo file should override user file: maxFull = %d", cfg.Review.MaxFull)
	}
	if cfg.GitHub.Timeout != 15*time.Second {
		t.Errorf("env should override defaults: github.timeout = %s", cfg.GitHub.Timeout)
	}
	if cfg.Lock.TTL != 10*time.Minute {
		t.Errorf("user file sets lock.ttl: got %s", cfg.Lock.TTL)
	}
	if cfg.Review.Timeout != 90*time.Second {
		t.Errorf("override should win: review.timeout = %s", cfg.Review.Timeout)
	}
	if len(cfg.Review.Exclude) != 1 || cfg.Review.Exclude[0] != "vendor/**" {
		t.Errorf("exclude = %v", cfg.Review.Exclude)
	}
	if cfg.Review.SkipCeiling != 2500 {
		t.Errorf("unset keys keep defaults: skipCeiling = %d", cfg.Review.SkipCeiling)
	}
}

func TestLoad_ProtectedKeysIgnoreUntrustedSources(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, RepoFile),
		"stateDir: /tmp/elsewhere\nlock:\n  dir: /tmp/forged\n  ttl: 99h\nfirewall:\n  binary: x\n  forbidWorktree: false\nreview:\n  maxFull: 700\n")
	t.Setenv("REVIEWGATE_LOCK_DIR", "/tmp/forged-env")
	t.Setenv("REVIEWGATE_FIREWALL_FORBIDWORKTREE", "false")

	explicit := filepath.Join(dir, "explicit.yaml")
	writeFile(t, explicit, "lock:\n  dir: /tmp/forged-explicit\n")

	for _, file := range []string{"", explicit} {
		cfg, err := Load(file, map[string]any{"lock.dir": "/tmp/forged-flag", "firewall.binary": "y"})
		if err != nil {
			t.Fatalf("Load(%q): %v", file, err)
		}
		wantLock := filepath.Join(dir, "state", "reviewgate", "merge-locks")
		if cfg.Lock.Dir != wantLock {
			t.Errorf("Load(%q): lock.dir = %q, want %q", file, cfg.Lock.Dir, wantLock)
		}
		if cfg.Lock.TTL != 30*time.Minute {
			t.Errorf("Load(%q): lock.ttl = %s", file, cfg.Lock.TTL)
		}
		if cfg.Firewall.Binary != "reviewgate" || !cfg.Firewall.ForbidWorktree {
			t.Errorf("Load(%q): firewall = %+v", file, cfg.Firewall)
		}
		if cfg.StateDir != filepath.Join(dir, "state", "reviewgate") {
			t.Errorf("Load(%q): stateDir = %q", file, cfg.StateDir)
		}
	}

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Review.MaxFull != 700 {
		t.Errorf("unprotected keys still come from the repository file: maxFull = %d", cfg.Review.MaxFull)
	}
}

func TestLoad_ProtectedKeysFromUserFile(t *testing.T) {
	dir := isolate(t)
	user := filepath.Join(dir, "config", "reviewgate", "config.yaml")
	lockDir := filepath.Join(dir, "locks")
	writeFile(t, user, "lock:\n  dir: "+lockDir+"\nfirewall:\n  forbidWorktree: false\n")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Lock.Dir != lockDir {
		t.Errorf("lock.dir = %q, want %q", cfg.Lock.Dir, lockDir)
	}
	if cfg.Firewall.ForbidWorktree {
		t.Error("user file should be able to relax the worktree rule")
	}
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	dir := isolate(t)
	if _, err := Load(filepath.Join(dir, "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := isolate(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"thresholds", "review:\n  maxFull: 3000\n  skipCeiling: 2000\n", "skipCeiling"},
		{"duration", "github:\n  timeout: 0s\n", "github.timeout"},
		{"undefined agent", "review:\n  primaryAgent: codex\n", "codex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			writeFile(t, path, tt.body)
			_, err := Load(path, nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_CustomAgent(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "agents.yaml")
	writeFile(t, path, "agents:\n  codex:\n    command: codex\n    args: [exec, \"-\"]\nreview:\n  adversarialAgent: codex\n")
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ac := cfg.Agents["codex"]
	if ac.Command != "codex" || len(ac.Args) != 2 {
		t.Errorf("codex agent = %+v", ac)
	}
	if _, ok := cfg.Agents["claude"]; !ok {
		t.Error("default agent should remain defined")
	}
}

func TestInitAndSetField(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "cfg", "config.yaml")
	if err := Init(path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Init(path); err == nil {
		t.Error("Init should refuse to overwrite")
	}
	if err := SetField(path, "review.maxFull", "1200"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if err := SetField(path, "merge.informationalChecks", "codecov/patch, docs"); err != nil {
		t.Fatalf("SetField list: %v", err)
	}
	if err := SetField(path, "agents.local.command", "./bin/review.sh"); err != nil {
		t.Fatalf("SetField agent: %v", err)
	}
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Review.MaxFull != 1200 {
		t.Errorf("maxFull = %d", cfg.Review.MaxFull)
	}
	if got := cfg.Merge.InformationalChecks; len(got) != 2 || got[1] != "docs" {
		t.Errorf("informationalChecks = %v", got)
	}
	if cfg.Agents["local"].Command != "./bin/review.sh" {
		t.Errorf("agents = %+v", cfg.Agents)
	}
}

func TestSetField_Rejects(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	if err := SetField(path, "provider", "openai"); err == nil {
		t.Error("expected unknown key error")
	}
	if err := SetField(path, "lock.ttl", "-5m"); err == nil {
		t.Error("expected validation error for negative ttl")
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("rejected change should not create the file")
	}
}

func TestConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir: %v", err)
	}
	if dir != "/tmp/xdg-test/reviewgate" {
		t.Errorf("ConfigDir = %q", dir)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != len(defaults) {
		t.Fatalf("Keys() = %d entries, want %d", len(keys), len(defaults))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatal("keys not sorted")
		}
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}
