package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/reviewgate/internal/config"
	"github.com/dshills/reviewgate/internal/firewall"
	"github.com/dshills/reviewgate/internal/gate"
	"github.com/dshills/reviewgate/internal/mergelock"
	"github.com/dshills/reviewgate/internal/output"
)

// resetFlags resets all package-level flag variables to their zero values.
func resetFlags() {
	flagExclude = ""
	flagContextLines = 0
	flagAgent = ""
	flagAdversarial = ""
	flagRules = ""
	flagTimeout = ""
	flagNoRedact = false
	flagNoCache = false
	flagFormat = "text"
}

func TestSplitComma(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", nil},
		{"single value", "foo", []string{"foo"}},
		{"multiple values", "a,b,c", []string{"a", "b", "c"}},
		{"whitespace trimmed", " a , b , c ", []string{"a", "b", "c"}},
		{"empty parts skipped", "a,,b", []string{"a", "b"}},
		{"all empty", ",,,", nil},
		{"glob patterns", "*.go,src/**/*.ts", []string{"*.go", "src/**/*.ts"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitComma(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("splitComma(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitComma(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuildOverrides_NoFlags(t *testing.T) {
	resetFlags()
	if m := buildOverrides(); len(m) != 0 {
		t.Errorf("buildOverrides() with no flags = %v, want empty map", m)
	}
}

func TestBuildOverrides_AllFlags(t *testing.T) {
	resetFlags()
	defer resetFlags()
	flagAgent = "codex"
	flagAdversarial = "claude"
	flagRules = "rules.json"
	flagTimeout = "45s"
	flagContextLines = 5
	flagExclude = "vendor/**, *.pb.go"
	flagNoRedact = true
	flagNoCache = true

	m := buildOverrides()
	want := map[string]any{
		"review.primaryAgent":     "codex",
		"review.adversarialAgent": "claude",
		"review.rulesFile":        "rules.json",
		"review.timeout":          "45s",
		"review.contextLines":     5,
		"review.redactSecrets":    false,
		"cache.enabled":           false,
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("overrides[%q] = %v, want %v", k, m[k], v)
		}
	}
	ex, ok := m["review.exclude"].([]string)
	if !ok || len(ex) != 2 || ex[1] != "*.pb.go" {
		t.Errorf("review.exclude = %v", m["review.exclude"])
	}
}

func TestBuildOverrides_AppliedByConfig(t *testing.T) {
	resetFlags()
	defer resetFlags()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_STATE_HOME", dir)
	t.Setenv("XDG_CACHE_HOME", dir)
	flagTimeout = "45s"
	flagNoCache = true

	path := filepath.Join(dir, "c.yaml")
	if err := config.Init(path); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path, buildOverrides())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Review.Timeout != 45*time.Second || cfg.Cache.Enabled {
		t.Errorf("overrides not applied: timeout=%s cache=%v", cfg.Review.Timeout, cfg.Cache.Enabled)
	}
}

func TestSummaryLine(t *testing.T) {
	d := gate.Decision{Gate: gate.PreCommitGate, Allowed: true, Summary: "review passed"}
	if got := summaryLine(d); got != "[reviewgate pre-commit] ALLOWED: review passed" {
		t.Errorf("summaryLine = %q", got)
	}
	d = gate.Decision{Gate: gate.PreMergeGate, Summary: "PR #3 rejected"}
	if got := summaryLine(d); got != "[reviewgate pre-merge] BLOCKED: PR #3 rejected" {
		t.Errorf("summaryLine = %q", got)
	}
}

func TestWriteReport_JSON(t *testing.T) {
	resetFlags()
	flagFormat = "json"
	defer resetFlags()
	w, err := output.GetWriter("json")
	if err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	blocked := gate.Decision{Gate: gate.PreCommitGate, Kind: gate.KindInvocation, Summary: "review incomplete; commit blocked", Err: errors.New("reviewer timed out")}
	writeReport(&stdout, &stderr, w, blocked)
	if !strings.Contains(stdout.String(), `"allowed": false`) {
		t.Errorf("stdout should carry the JSON decision:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "[reviewgate pre-commit] BLOCKED: review incomplete") {
		t.Errorf("a JSON-mode block must still be explained on stderr, got %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "error: reviewer timed out") {
		t.Errorf("stderr missing error text: %q", stderr.String())
	}

	stdout.Reset()
	stderr.Reset()
	writeReport(&stdout, &stderr, w, gate.Decision{Gate: gate.PreCommitGate, Allowed: true, Summary: "nothing to review"})
	if stderr.Len() != 0 {
		t.Errorf("allowed JSON decision wrote to stderr: %q", stderr.String())
	}
}

func TestInputFailure(t *testing.T) {
	d := inputFailure(gate.PreCommitGate, "cannot read the diff to review", errors.New("exit status 128"))
	if d.Allowed || d.Kind != gate.KindInput || d.ID == "" {
		t.Errorf("decision = %+v", d)
	}
	var ie *gate.InputError
	if !errors.As(d.Err, &ie) {
		t.Fatalf("Err = %v, want *gate.InputError", d.Err)
	}
}

func TestParsePR(t *testing.T) {
	if n, err := parsePR("42"); err != nil || n != 42 {
		t.Errorf("parsePR(42) = %d, %v", n, err)
	}
	for _, bad := range []string{"", "0", "-3", "#4", "abc"} {
		if _, err := parsePR(bad); err == nil {
			t.Errorf("parsePR(%q) should fail", bad)
		}
	}
}

func testFirewall(t *testing.T) (*firewall.Firewall, string) {
	t.Helper()
	dir := t.TempDir()
	lockDir := filepath.Join(dir, "reviewgate", "merge-locks")
	cfg := config.Default()
	cfg.Lock.Dir = lockDir
	cfg.Firewall.LogFile = filepath.Join(dir, "blocked-commands.log")
	return newFirewall(cfg), lockDir
}

func TestRunFirewall(t *testing.T) {
	resetFlags()
	fw, lockDir := testFirewall(t)

	tests := []struct {
		name    string
		stdin   string
		command string
		file    string
		want    int
		stderr  string
	}{
		{name: "allowed command", command: "git commit -m 'fix'", want: ExitAllowed},
		{name: "no-verify", command: "git commit --no-verify -m x", want: ExitFirewallBlock, stderr: "BLOCKED [no-verify]"},
		{name: "authorize", command: "reviewgate lock authorize 7 --reason ok", want: ExitFirewallBlock, stderr: "BLOCKED [authorize-subcommand]"},
		{name: "lock edit", file: filepath.Join(lockDir, "pr-7.toml"), want: ExitFirewallBlock, stderr: "BLOCKED [lock-edit]"},
		{name: "hook payload", stdin: `{"tool_name":"Bash","tool_input":{"command":"gh -R o/r pr merge 7"}}`, want: ExitFirewallBlock, stderr: "BLOCKED [merge-global-flags]"},
		{name: "allowed payload", stdin: `{"tool_name":"Bash","tool_input":{"command":"go test ./..."}}`, want: ExitAllowed},
		{name: "malformed payload", stdin: `{"tool_name":`, want: ExitBlocked, stderr: "invalid firewall input"},
		{name: "empty payload", stdin: "", want: ExitBlocked, stderr: "empty payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			got := runFirewall(strings.NewReader(tt.stdin), &stdout, &stderr, fw, tt.command, tt.file)
			if got != tt.want {
				t.Errorf("exit = %d, want %d (stderr %q)", got, tt.want, stderr.String())
			}
			if tt.stderr != "" && !strings.Contains(stderr.String(), tt.stderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.stderr)
			}
			if tt.want == ExitAllowed && stderr.Len() != 0 {
				t.Errorf("allowed command wrote to stderr: %q", stderr.String())
			}
		})
	}
}

func TestRunFirewall_JSON(t *testing.T) {
	resetFlags()
	defer resetFlags()
	flagFormat = "json"
	fw, _ := testFirewall(t)

	var stdout, stderr bytes.Buffer
	if got := runFirewall(strings.NewReader(""), &stdout, &stderr, fw, "git push --no-verify", ""); got != ExitFirewallBlock {
		t.Fatalf("exit = %d", got)
	}
	if !strings.Contains(stdout.String(), `"rule":"no-verify"`) || !strings.Contains(stdout.String(), `"allowed":false`) {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestCheckProtectedTarget(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	user := filepath.Join(dir, "reviewgate", "config.yaml")

	if err := checkProtectedTarget("lock.dir", user); err != nil {
		t.Errorf("user file should accept lock.dir: %v", err)
	}
	if err := checkProtectedTarget("lock.dir", config.RepoFile); err == nil {
		t.Error("repository file should refuse lock.dir")
	}
	if err := checkProtectedTarget("firewall.forbidWorktree", filepath.Join(dir, "other.yaml")); err == nil {
		t.Error("explicit file should refuse firewall keys")
	}
	if err := checkProtectedTarget("review.timeout", config.RepoFile); err != nil {
		t.Errorf("unprotected key refused: %v", err)
	}
}

// Every protected config key must be off limits to config set from an
// automated session.
func TestFirewallGuardsProtectedKeys(t *testing.T) {
	fw, _ := testFirewall(t)
	for _, key := range config.Keys() {
		res := fw.CheckCommand("reviewgate config set " + key + " x")
		if firewall.ProtectedKey(key) == res.Allowed {
			t.Errorf("config set %s: allowed = %v", key, res.Allowed)
		}
	}
}

func TestRunFirewall_UntrustedRepoConfig(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(wd) }()
	if err := os.WriteFile(config.RepoFile, []byte("firewall:\n  binary: x\n  forbidWorktree: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	fw := newFirewall(cfg)
	for _, command := range []string{"reviewgate lock authorize 7 --reason x", "git worktree add ../x"} {
		var stdout, stderr bytes.Buffer
		if got := runFirewall(strings.NewReader(""), &stdout, &stderr, fw, command, ""); got != ExitFirewallBlock {
			t.Errorf("%q: exit = %d, want %d", command, got, ExitFirewallBlock)
		}
	}
}

func TestWriteRules(t *testing.T) {
	fw, _ := testFirewall(t)
	var buf bytes.Buffer
	if err := writeRules(&buf, fw.Rules()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, id := range []string{"no-verify", "lock-path", "authorize-subcommand", "protected-config", "api-merge-endpoint",
		"graphql-merge-mutation", "merge-global-flags", "worktree", "lock-edit"} {
		if !strings.Contains(out, id) {
			t.Errorf("rules listing missing %q", id)
		}
	}
	if !strings.Contains(out, "Known gaps") {
		t.Error("rules listing should include known gaps")
	}
}

func TestWriteLockStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := mergelock.NewManager(mergelock.NewMemoryStore(), 30*time.Minute, nil).
		WithClock(func() time.Time { return now })

	var buf bytes.Buffer
	ok, err := writeLockStatus(&buf, m, 9, now, false)
	if err != nil || ok {
		t.Fatalf("unauthorized PR: ok=%v err=%v", ok, err)
	}
	if got := buf.String(); got != "PR #9: unauthorized\n" {
		t.Errorf("status = %q", got)
	}

	if _, err := m.Authorize(9, "alice", "release fix"); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	ok, err = writeLockStatus(&buf, m, 9, now.Add(10*time.Minute), false)
	if err != nil || !ok {
		t.Fatalf("authorized PR: ok=%v err=%v", ok, err)
	}
	if got := buf.String(); got != "PR #9: authorized by alice (release fix); expires in 20m0s\n" {
		t.Errorf("status = %q", got)
	}

	buf.Reset()
	if _, err := writeLockStatus(&buf, m, 9, now, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"authorizedBy": "alice"`) {
		t.Errorf("json status = %q", buf.String())
	}
}

func TestLockAuthorize_RequiresTerminal(t *testing.T) {
	orig := stdinIsTerminal
	defer func() { stdinIsTerminal = orig }()
	stdinIsTerminal = func() bool { return false }

	err := lockAuthorizeCmd.RunE(lockAuthorizeCmd, []string{"5"})
	if !errors.Is(err, errNotInteractive) {
		t.Errorf("err = %v, want errNotInteractive", err)
	}
}

func TestCommandTree(t *testing.T) {
	want := []string{"review", "premerge", "lock", "firewall", "cache", "config", "hook", "version"}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("root command missing %q", name)
		}
	}
}
