package classify

import (
	"path"
	"sort"
	"strings"
)

// Category is a classification assigned to a changed file.
type Category string

const (
	CategorySecurity  Category = "security-critical"
	CategoryData      Category = "data"
	CategoryCommented Category = "commented"
	CategoryCode      Category = "code"
)

// securityKeywords are matched case-insensitively against each path component.
var securityKeywords = []string{
	"auth", "login", "passw", "credential", "secret", "token", "session",
	"oauth", "jwt", "permission", "rbac", "acl",
	"crypt", "cipher", "cert", "tls", "ssl", "signing",
	"payment", "billing", "invoice", "checkout", "stripe",
	"database", "migration", "migrate", "schema", "sql",
}

// dataNames are exact base names of lockfiles and other generated files.
var dataNames = map[string]bool{
	"package-lock.json":   true,
	"npm-shrinkwrap.json": true,
	"yarn.lock":           true,
	"pnpm-lock.yaml":      true,
	"bun.lockb":           true,
	"go.sum":              true,
	"Cargo.lock":          true,
	"Gemfile.lock":        true,
	"poetry.lock":         true,
	"Pipfile.lock":        true,
	"uv.lock":             true,
	"composer.lock":       true,
	"mix.lock":            true,
	"flake.lock":          true,
}

// dataGlobs are matched against the base name.
var dataGlobs = []string{
	"*.min.js", "*.min.css", "*.map",
	"*.pb.go", "*_pb2.py", "*.pb.ts",
	"*_generated.go", "*.gen.go", "*.generated.*", "zz_generated*",
	"*.snap", "*.lock",
	"*.csv", "*.tsv",
}

// dataDirs mark every file below them as generated or vendored.
var dataDirs = []string{"vendor", "node_modules", "dist", "testdata/golden"}

// Set is the set of categories a path matched.
type Set map[Category]bool

// Has reports whether c is in the set.
func (s Set) Has(c Category) bool { return s[c] }

// Sorted returns the categories in a stable order.
func (s Set) Sorted() []Category {
	out := make([]Category, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

// Classify returns every category p belongs to. commented is the set of paths
// carrying unresolved, non-outdated inline review comments; it may be nil.
// A path that matches nothing is plain code.
func Classify(p string, commented map[string]bool) Set {
	s := Set{}
	if IsSecurityCritical(p) {
		s[CategorySecurity] = true
	}
	if commented[p] {
		s[CategoryCommented] = true
	}
	if IsData(p) {
		s[CategoryData] = true
	}
	if len(s) == 0 {
		s[CategoryCode] = true
	}
	return s
}

// Primary returns the category that decides how a file is treated.
// Security-critical is checked first so that it can never be downgraded to
// a summary, then commented-on, then data.
func Primary(p string, commented map[string]bool) Category {
	switch {
	case IsSecurityCritical(p):
		return CategorySecurity
	case commented[p]:
		return CategoryCommented
	case IsData(p):
		return CategoryData
	default:
		return CategoryCode
	}
}

// IsSecurityCritical reports whether any component of p contains a security keyword.
func IsSecurityCritical(p string) bool {
	for _, comp := range components(p) {
		lc := strings.ToLower(comp)
		for _, kw := range securityKeywords {
			if strings.Contains(lc, kw) {
				return true
			}
		}
	}
	return false
}

// IsData reports whether p is a lockfile, minified bundle, generated or vendored file.
func IsData(p string) bool {
	p = normalize(p)
	base := path.Base(p)
	if dataNames[base] {
		return true
	}
	for _, g := range dataGlobs {
		if ok, _ := path.Match(g, base); ok {
			return true
		}
	}
	for _, d := range dataDirs {
		if strings.HasPrefix(p, d+"/") || strings.Contains(p, "/"+d+"/") {
			return true
		}
	}
	return false
}

func components(p string) []string {
	return strings.FieldsFunc(normalize(p), func(r rune) bool { return r == '/' })
}

func normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(p, "./")
}

func rank(c Category) int {
	switch c {
	case CategorySecurity:
		return 0
	case CategoryCommented:
		return 1
	case CategoryData:
		return 2
	default:
		return 3
	}
}
