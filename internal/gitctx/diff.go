package gitctx

import (
	"sort"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// FileDiff is the portion of a diff that touches a single file.
type FileDiff struct {
	Path      string
	OldPath   string
	Added     int
	Removed   int
	IsNew     bool
	IsDeleted bool
	IsRenamed bool
	IsBinary  bool
	// Raw is the unified diff text for this file, header included.
	Raw string
}

// Lines returns the number of lines in the file's raw diff text.
func (f FileDiff) Lines() int {
	return countLines(f.Raw)
}

// Source describes where a diff came from.
type Source struct {
	Mode  string
	Range string
	Repo  RepoMeta
}

// Diff is an ordered set of file diffs captured for one review pass.
// It is not modified after Parse returns.
type Diff struct {
	Files  []FileDiff
	Raw    string
	Source Source
}

// TotalLines returns the number of lines in the full diff text.
func (d *Diff) TotalLines() int {
	return countLines(d.Raw)
}

// Paths returns the changed file paths in diff order.
func (d *Diff) Paths() []string {
	paths := make([]string, 0, len(d.Files))
	for _, f := range d.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// Stats returns aggregate counts.
func (d *Diff) Stats() (files, added, removed int) {
	files = len(d.Files)
	for _, f := range d.Files {
		added += f.Added
		removed += f.Removed
	}
	return
}

// Empty reports whether the diff touches no files.
func (d *Diff) Empty() bool {
	return len(d.Files) == 0
}

// Parse splits a unified diff into per-file sections and parses each one.
// Sections that go-gitdiff rejects are still kept, with counts taken from
// their +/- lines.
func Parse(raw string) *Diff {
	d := &Diff{Raw: raw}
	for _, sec := range splitDiffSections(raw) {
		if fd, ok := parseSection(sec); ok {
			d.Files = append(d.Files, fd)
		}
	}
	return d
}

// Filter returns a new Diff without the files matching any exclude pattern.
func (d *Diff) Filter(excludes []string) *Diff {
	if len(excludes) == 0 {
		return d
	}
	out := &Diff{Source: d.Source}
	var raw strings.Builder
	for _, f := range d.Files {
		if MatchesAny(f.Path, excludes) {
			continue
		}
		out.Files = append(out.Files, f)
		raw.WriteString(f.Raw)
	}
	out.Raw = raw.String()
	return out
}

func parseSection(sec string) (FileDiff, bool) {
	files, _, err := gitdiff.Parse(strings.NewReader(sec))
	if err != nil || len(files) == 0 {
		// Preamble, a header-only section, or hand-edited hunks.
		return looseSection(sec)
	}

	f := files[0]
	fd := FileDiff{
		Path:      f.NewName,
		OldPath:   f.OldName,
		IsNew:     f.IsNew,
		IsDeleted: f.IsDelete,
		IsRenamed: f.IsRename,
		IsBinary:  f.IsBinary,
		Raw:       sec,
	}
	if fd.Path == "" {
		fd.Path = f.OldName
	}
	for _, frag := range f.TextFragments {
		for _, line := range frag.Lines {
			switch line.Op {
			case gitdiff.OpAdd:
				fd.Added++
			case gitdiff.OpDelete:
				fd.Removed++
			}
		}
	}
	return fd, true
}

func looseSection(sec string) (FileDiff, bool) {
	path := pathFromHeader(sec)
	if path == "" {
		return FileDiff{}, false
	}
	fd := FileDiff{Path: path, Raw: sec}
	for _, line := range strings.Split(sec, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ "), strings.HasPrefix(line, "--- "):
			if strings.HasSuffix(line, "/dev/null") {
				fd.IsNew = fd.IsNew || strings.HasPrefix(line, "--- ")
				fd.IsDeleted = fd.IsDeleted || strings.HasPrefix(line, "+++ ")
			}
		case strings.HasPrefix(line, "+"):
			fd.Added++
		case strings.HasPrefix(line, "-"):
			fd.Removed++
		case strings.HasPrefix(line, "Binary files "):
			fd.IsBinary = true
		}
	}
	return fd, true
}

func splitDiffSections(diff string) []string {
	if strings.TrimSpace(diff) == "" {
		return nil
	}
	var sections []string
	lines := strings.Split(strings.TrimSuffix(diff, "\n"), "\n")
	var current strings.Builder
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	return sections
}

// pathFromHeader reads the b/ path from a "diff --git a/x b/y" line.
func pathFromHeader(sec string) string {
	first, _, _ := strings.Cut(sec, "\n")
	if !strings.HasPrefix(first, "diff --git ") {
		return ""
	}
	if i := strings.LastIndex(first, " b/"); i >= 0 {
		return first[i+3:]
	}
	return ""
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}

// SortedPaths returns paths sorted lexically, for stable summaries.
func SortedPaths(d *Diff) []string {
	p := d.Paths()
	sort.Strings(p)
	return p
}
