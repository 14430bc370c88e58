package firewall

import (
	"path"
	"regexp"
	"strings"
)

// Rule identifiers.
const (
	RuleNoVerify        = "no-verify"
	RuleLockPath        = "lock-path"
	RuleAuthorize       = "authorize-subcommand"
	RuleProtectedConfig = "protected-config"
	RuleAPIMerge        = "api-merge-endpoint"
	RuleGraphQLMerge    = "graphql-merge-mutation"
	RuleMergeGlobalFlag = "merge-global-flags"
	RuleWorktree        = "worktree"
	RuleLockEdit        = "lock-edit"
)

// Rule is one known bypass technique.
type Rule struct {
	ID          string
	Forbidden   string
	Alternative string

	match func(fw *Firewall, c simpleCommand) bool
}

// KnownGaps lists bypasses the rule set deliberately does not chase.
var KnownGaps = []string{
	"a GraphQL mutation supplied through a file reference (gh api graphql -F query=@mutation.graphql)",
	"commands assembled from variables or command substitution ($(...), backticks)",
	"shell aliases and functions defined earlier in the same session",
	"scripts written to disk and executed afterwards",
	"variables set by sourcing a file or under set -a",
}

// onWords adapts a matcher over the program and its arguments.
func onWords(m func(fw *Firewall, words []string) bool) func(*Firewall, simpleCommand) bool {
	return func(fw *Firewall, c simpleCommand) bool {
		return len(c.words) > 0 && m(fw, c.words)
	}
}

func (fw *Firewall) rules() []Rule {
	rules := []Rule{
		{
			ID:          RuleNoVerify,
			Forbidden:   "skipping git hooks (--no-verify, commit -n, core.hooksPath override)",
			Alternative: "fix what the hook reported; run `" + fw.cfg.Binary + " review staged` to see the review result",
			match:       onWords(matchNoVerify),
		},
		{
			ID:          RuleLockPath,
			Forbidden:   "touching the merge authorization lock directory",
			Alternative: "a human grants authorization with `" + fw.cfg.Binary + " lock authorize <pr> --reason \"...\"`",
			match: func(fw *Firewall, c simpleCommand) bool {
				return anyMentions(fw.lockNeedles, pathArgs(c.words), c.redirects)
			},
		},
		{
			ID:          RuleAuthorize,
			Forbidden:   "granting merge authorization from an automated session",
			Alternative: "ask a human to run `" + fw.cfg.Binary + " lock authorize <pr> --reason \"...\"` in their own terminal",
			match:       onWords((*Firewall).matchAuthorize),
		},
		fw.configRule(),
		{
			ID:          RuleAPIMerge,
			Forbidden:   "merging through the raw pull request merge API endpoint",
			Alternative: "run `" + fw.cfg.Binary + " premerge <pr>`, then `gh pr merge <pr>`",
			match:       onWords(matchAPIMerge),
		},
		{
			ID:          RuleGraphQLMerge,
			Forbidden:   "merging through a raw GraphQL merge mutation",
			Alternative: "run `" + fw.cfg.Binary + " premerge <pr>`, then `gh pr merge <pr>`",
			match:       onWords(matchGraphQLMerge),
		},
		{
			ID:          RuleMergeGlobalFlag,
			Forbidden:   "gh pr merge preceded by global flags such as -R/--repo",
			Alternative: "run `gh pr merge <pr>` from inside the repository with the flags after the subcommand",
			match:       onWords(matchMergeGlobalFlags),
		},
	}
	if fw.cfg.ForbidWorktree {
		rules = append(rules, Rule{
			ID:          RuleWorktree,
			Forbidden:   "git worktree management",
			Alternative: "work in the main checkout; create a branch with `git switch -c <name>`",
			match:       onWords(matchWorktree),
		})
	}
	return rules
}

func (fw *Firewall) configRule() Rule {
	return Rule{
		ID:          RuleProtectedConfig,
		Forbidden:   "changing where locks, state or firewall settings come from (the user config file, " + envPrefix + "* lock and firewall variables, HOME and XDG overrides)",
		Alternative: "a human edits stateDir, lock.* or firewall.* in the user config file; other settings can go in " + repoConfigFile,
		match:       (*Firewall).matchProtectedConfig,
	}
}

func (fw *Firewall) editRule() Rule {
	return Rule{
		ID:          RuleLockEdit,
		Forbidden:   "editing a merge authorization lock record",
		Alternative: "a human grants authorization with `" + fw.cfg.Binary + " lock authorize <pr> --reason \"...\"`",
	}
}

// gitArgs skips git's global options. It returns the subcommand, its
// arguments and any -c key=value settings.
func gitArgs(words []string) (sub string, args []string, settings []string) {
	if len(words) == 0 || base(words[0]) != "git" {
		return "", nil, nil
	}
	rest := words[1:]
	for len(rest) > 0 && strings.HasPrefix(rest[0], "-") {
		f := rest[0]
		rest = rest[1:]
		switch f {
		case "-C", "--git-dir", "--work-tree", "--namespace", "--exec-path", "--config-env":
			if len(rest) > 0 {
				rest = rest[1:]
			}
		case "-c":
			if len(rest) > 0 {
				settings = append(settings, rest[0])
				rest = rest[1:]
			}
		}
	}
	if len(rest) == 0 {
		return "", nil, settings
	}
	return rest[0], rest[1:], settings
}

var hookedSubcommands = map[string]bool{
	"commit": true, "push": true, "merge": true, "rebase": true,
	"am": true, "cherry-pick": true, "revert": true, "pull": true,
}

// commitValueFlags take a separate argument in git commit.
var commitValueFlags = map[string]bool{"-m": true, "-F": true, "-C": true, "-c": true, "-t": true, "--author": true, "--date": true, "--message": true, "--file": true}

func matchNoVerify(_ *Firewall, words []string) bool {
	sub, args, settings := gitArgs(words)
	if !hookedSubcommands[sub] {
		return false
	}
	for _, s := range settings {
		if strings.HasPrefix(strings.ToLower(s), "core.hookspath=") {
			return true
		}
	}
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			return false
		case a == "--no-verify":
			return true
		case commitValueFlags[a]:
			i++
		case sub == "commit" && len(a) > 1 && a[0] == '-' && a[1] != '-':
			// Short option cluster; stop at the first flag that takes a value.
			for _, c := range a[1:] {
				if c == 'n' {
					return true
				}
				if strings.ContainsRune("mFCct", c) {
					break
				}
			}
		}
	}
	return false
}

// messageFlags take free text rather than a path: commit and tag messages,
// pull request titles and bodies.
var messageFlags = map[string]bool{"-m": true, "--message": true, "-b": true, "--body": true, "-t": true, "--title": true}

// pathArgs drops the message text of git and gh commands, which may name a
// path without touching it. Text that runs a substitution is kept.
func pathArgs(words []string) []string {
	if len(words) == 0 {
		return nil
	}
	if prog := base(words[0]); prog != "git" && prog != "gh" {
		return words
	}
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); i++ {
		w := words[i]
		if name, _, ok := strings.Cut(w, "="); ok && messageFlags[name] && !substitutes(w) {
			continue
		}
		out = append(out, w)
		// -m alone or closing a short cluster such as -am.
		takesMessage := messageFlags[w] ||
			len(w) > 2 && w[0] == '-' && w[1] != '-' && strings.HasSuffix(w, "m")
		if takesMessage && i+1 < len(words) && !substitutes(words[i+1]) {
			i++
		}
	}
	return out
}

func substitutes(w string) bool {
	return strings.Contains(w, "$(") || strings.Contains(w, "`")
}

func anyMentions(needles []string, groups ...[]string) bool {
	for _, words := range groups {
		for _, w := range words {
			for _, needle := range needles {
				if strings.Contains(w, needle) {
					return true
				}
			}
		}
	}
	return false
}

// rootValueFlags are the gate binary's persistent flags that take a value.
var rootValueFlags = map[string]bool{"--config": true, "--format": true}

// binArgs returns the positional words of an invocation of the gate binary,
// directly or through go run.
func (fw *Firewall) binArgs(words []string) ([]string, bool) {
	bin := fw.cfg.Binary
	var rest []string
	switch {
	case base(words[0]) == bin:
		rest = words[1:]
	case base(words[0]) == "go" && len(words) > 2 && words[1] == "run" && strings.Contains(path.Base(words[2]), bin):
		rest = words[3:]
	default:
		return nil, false
	}
	var positional []string
	for i := 0; i < len(rest); i++ {
		w := rest[i]
		switch {
		case w == "--":
			return append(positional, rest[i+1:]...), true
		case rootValueFlags[w]:
			i++
		case strings.HasPrefix(w, "-"):
		default:
			positional = append(positional, w)
		}
	}
	return positional, true
}

// after returns the words following the first a that is later followed by b.
// Flags of unknown arity can sit between a subcommand and its parent, so the
// two need not be adjacent.
func after(words []string, a, b string) ([]string, bool) {
	for i, w := range words {
		if w != a {
			continue
		}
		for j := i + 1; j < len(words); j++ {
			if words[j] == b {
				return words[j+1:], true
			}
		}
	}
	return nil, false
}

func (fw *Firewall) matchAuthorize(words []string) bool {
	positional, ok := fw.binArgs(words)
	if !ok {
		return false
	}
	_, found := after(positional, "lock", "authorize")
	return found
}

func (fw *Firewall) matchProtectedConfig(c simpleCommand) bool {
	for _, name := range assignedNames(c.raw) {
		if protectedVar(name) {
			return true
		}
	}
	if anyMentions(fw.configNeedles, pathArgs(c.words), c.redirects) {
		return true
	}
	if len(c.words) == 0 {
		return false
	}
	positional, ok := fw.binArgs(c.words)
	if !ok {
		return false
	}
	rest, found := after(positional, "config", "set")
	return found && len(rest) > 0 && ProtectedKey(rest[0])
}

// ProtectedKey reports whether a config key decides where locks and state
// live or how the firewall behaves. Such keys are honored only from the
// user config file.
func ProtectedKey(key string) bool {
	k := strings.ToLower(key)
	return k == "statedir" || strings.HasPrefix(k, "lock.") || strings.HasPrefix(k, "firewall.")
}

// protectedVar reports whether setting the variable relocates the user config
// file or the state directory, or overrides a protected key.
func protectedVar(name string) bool {
	switch name {
	case "HOME", "XDG_CONFIG_HOME", "XDG_STATE_HOME", "APPDATA":
		return true
	}
	u := strings.ToUpper(name)
	if !strings.HasPrefix(u, envPrefix) {
		return false
	}
	key := strings.TrimPrefix(u, envPrefix)
	return key == "STATEDIR" || strings.HasPrefix(key, "LOCK_") || strings.HasPrefix(key, "FIREWALL_")
}

// ghArgs skips gh's global repository flags and returns the subcommand words.
func ghArgs(words []string) (args []string, hadGlobal bool) {
	if base(words[0]) != "gh" {
		return nil, false
	}
	rest := words[1:]
	for len(rest) > 0 && strings.HasPrefix(rest[0], "-") {
		hadGlobal = true
		f := rest[0]
		rest = rest[1:]
		if (f == "-R" || f == "--repo" || f == "--hostname") && len(rest) > 0 {
			rest = rest[1:]
		}
	}
	return rest, hadGlobal
}

var (
	mergeEndpoint = regexp.MustCompile(`(?:^|/)pulls/\d+/merge(?:$|[?#])`)
	mergeMutation = regexp.MustCompile(`\b(?:mergePullRequest|enablePullRequestAutoMerge)\b`)
	httpClients   = map[string]bool{"curl": true, "wget": true, "http": true, "https": true, "xh": true}
)

// apiWords returns the arguments of a raw API call made with gh api or a
// generic HTTP client.
func apiWords(words []string) []string {
	if httpClients[base(words[0])] {
		return words[1:]
	}
	args, _ := ghArgs(words)
	if len(args) > 0 && args[0] == "api" {
		return args[1:]
	}
	return nil
}

func matchAPIMerge(_ *Firewall, words []string) bool {
	for _, w := range apiWords(words) {
		if mergeEndpoint.MatchString(w) {
			return true
		}
	}
	return false
}

func matchGraphQLMerge(_ *Firewall, words []string) bool {
	args := apiWords(words)
	graphql := false
	for _, w := range args {
		if w == "graphql" || strings.HasSuffix(w, "/graphql") {
			graphql = true
		}
	}
	if !graphql {
		return false
	}
	for _, w := range args {
		if mergeMutation.MatchString(w) {
			return true
		}
	}
	return false
}

func matchMergeGlobalFlags(_ *Firewall, words []string) bool {
	args, hadGlobal := ghArgs(words)
	return hadGlobal && len(args) >= 2 && args[0] == "pr" && args[1] == "merge"
}

func matchWorktree(_ *Firewall, words []string) bool {
	sub, _, _ := gitArgs(words)
	return sub == "worktree"
}
