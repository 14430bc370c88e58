package firewall

import (
	"path"
	"regexp"
	"strings"
)

// maxDepth bounds recursion into nested shell invocations.
const maxDepth = 4

type tokKind int

const (
	tokWord tokKind = iota
	tokSep          // && || ; | & ( ) newline
	tokRedir        // > >> < <& >&
)

type token struct {
	kind tokKind
	val  string
}

// lex splits a command line into words and operators the way a POSIX shell
// would for the purpose of finding command positions. Quotes are removed from
// words; command substitutions are kept verbatim inside the word and are not
// analyzed further.
func lex(s string) []token {
	var toks []token
	var word strings.Builder
	inWord := false
	flush := func() {
		if inWord {
			toks = append(toks, token{kind: tokWord, val: word.String()})
			word.Reset()
			inWord = false
		}
	}
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		switch {
		case c == ' ' || c == '\t':
			flush()
		case c == '\n':
			flush()
			toks = append(toks, token{kind: tokSep, val: "\n"})
		case c == '#' && !inWord:
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
			i--
		case c == '\\':
			if i+1 < len(rs) {
				i++
				if rs[i] != '\n' {
					word.WriteRune(rs[i])
					inWord = true
				}
			}
		case c == '\'':
			inWord = true
			for i++; i < len(rs) && rs[i] != '\''; i++ {
				word.WriteRune(rs[i])
			}
		case c == '"':
			inWord = true
			for i++; i < len(rs) && rs[i] != '"'; i++ {
				if rs[i] == '\\' && i+1 < len(rs) && strings.ContainsRune("\"\\$`\n", rs[i+1]) {
					i++
				}
				word.WriteRune(rs[i])
			}
		case c == '`':
			inWord = true
			word.WriteRune(c)
			for i++; i < len(rs) && rs[i] != '`'; i++ {
				word.WriteRune(rs[i])
			}
			word.WriteRune('`')
		case c == '$' && i+1 < len(rs) && rs[i+1] == '(':
			inWord = true
			depth := 0
			for ; i < len(rs); i++ {
				word.WriteRune(rs[i])
				if rs[i] == '(' {
					depth++
				} else if rs[i] == ')' {
					depth--
					if depth == 0 {
						break
					}
				}
			}
		case c == '&' || c == '|' || c == ';' || c == '(' || c == ')':
			flush()
			op := string(c)
			if i+1 < len(rs) && (rs[i+1] == c && c != '(' && c != ')' || c == '|' && rs[i+1] == '&') {
				op += string(rs[i+1])
				i++
			}
			toks = append(toks, token{kind: tokSep, val: op})
		case c == '>' || c == '<':
			if inWord && isDigits(word.String()) {
				word.Reset()
				inWord = false
			}
			flush()
			op := string(c)
			for i+1 < len(rs) && (rs[i+1] == '>' || rs[i+1] == '&' || rs[i+1] == '<') {
				i++
				op += string(rs[i])
			}
			toks = append(toks, token{kind: tokRedir, val: op})
		default:
			word.WriteRune(c)
			inWord = true
		}
	}
	flush()
	return toks
}

// simpleCommand is one command of a pipeline or list.
type simpleCommand struct {
	// raw is the command as written, assignments included.
	raw []string
	// words is raw with assignments and transparent wrappers stripped.
	words []string
	// redirects are the targets of its redirections.
	redirects []string
}

// segments groups words into simple commands, setting redirection targets
// aside.
func segments(toks []token) []simpleCommand {
	var out []simpleCommand
	var cur simpleCommand
	redirNext := false
	flush := func() {
		if len(cur.raw) > 0 || len(cur.redirects) > 0 {
			out = append(out, cur)
		}
		cur = simpleCommand{}
		redirNext = false
	}
	for _, t := range toks {
		switch t.kind {
		case tokSep:
			flush()
		case tokRedir:
			redirNext = true
		default:
			if redirNext {
				redirNext = false
				cur.redirects = append(cur.redirects, t.val)
				continue
			}
			cur.raw = append(cur.raw, t.val)
		}
	}
	flush()
	return out
}

var assignment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

// normalize strips leading variable assignments and transparent wrappers such
// as sudo, env and timeout so that words[0] is the program that runs.
func normalize(words []string) []string {
	for len(words) > 0 {
		w := words[0]
		switch {
		case assignment.MatchString(w) || w == "{" || w == "!":
			words = words[1:]
		case base(w) == "sudo" || base(w) == "doas":
			words = skipFlags(words[1:], "u", "g", "h", "p", "C", "D", "r", "t")
		case base(w) == "env":
			words = skipFlags(words[1:], "u", "C", "S")
			for len(words) > 0 && assignment.MatchString(words[0]) {
				words = words[1:]
			}
		case base(w) == "nice":
			words = skipFlags(words[1:], "n")
		case base(w) == "timeout":
			words = skipFlags(words[1:], "s", "k")
			if len(words) > 0 {
				words = words[1:]
			}
		case base(w) == "command" || base(w) == "builtin" || base(w) == "exec" ||
			base(w) == "nohup" || base(w) == "time" || base(w) == "xargs":
			words = skipFlags(words[1:], "a", "E", "I", "L", "n", "P", "s", "d")
		default:
			return words
		}
	}
	return words
}

// skipFlags drops leading flags; flags named in withValue consume the next word.
func skipFlags(words []string, withValue ...string) []string {
	for len(words) > 0 && strings.HasPrefix(words[0], "-") {
		f := words[0]
		words = words[1:]
		if f == "--" {
			break
		}
		name := strings.TrimLeft(f, "-")
		for _, v := range withValue {
			if name == v && len(words) > 0 {
				words = words[1:]
				break
			}
		}
	}
	return words
}

var shells = map[string]bool{"sh": true, "bash": true, "zsh": true, "dash": true, "ksh": true, "ash": true, "fish": true}

// nestedScript returns the script passed to a shell interpreter with -c, or
// the arguments of eval joined, and reports whether one was found.
func nestedScript(words []string) (string, bool) {
	if len(words) == 0 {
		return "", false
	}
	name := base(words[0])
	if name == "eval" {
		return strings.Join(words[1:], " "), len(words) > 1
	}
	if !shells[name] {
		return "", false
	}
	for i := 1; i < len(words); i++ {
		w := words[i]
		if w == "--" || !strings.HasPrefix(w, "-") {
			return "", false
		}
		if !strings.HasPrefix(w, "--") && strings.ContainsRune(w, 'c') {
			if i+1 < len(words) {
				return words[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// commands returns every simple command in line, including those inside
// nested shell -c scripts and eval arguments.
func commands(line string) []simpleCommand {
	var out []simpleCommand
	var walk func(s string, depth int)
	walk = func(s string, depth int) {
		for _, c := range segments(lex(s)) {
			c.words = normalize(c.raw)
			out = append(out, c)
			if depth < maxDepth {
				if script, ok := nestedScript(c.words); ok {
					walk(script, depth+1)
				}
			}
		}
	}
	walk(line, 0)
	return out
}

// assignedNames returns the variables a command sets for itself or exports:
// leading NAME=value words, those after env or sudo, and the arguments of
// export-style builtins.
func assignedNames(raw []string) []string {
	var names []string
	collect := func(w string) bool {
		if !assignment.MatchString(w) {
			return false
		}
		name, _, _ := strings.Cut(w, "=")
		names = append(names, name)
		return true
	}
	for i, w := range raw {
		switch {
		case collect(w), strings.HasPrefix(w, "-"):
		case base(w) == "env" || base(w) == "sudo":
		case w == "export" || w == "declare" || w == "typeset" || w == "readonly" || w == "local":
			for _, a := range raw[i+1:] {
				collect(a)
			}
			return names
		default:
			return names
		}
	}
	return names
}

func base(w string) string {
	return path.Base(strings.ReplaceAll(w, "\\", "/"))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
