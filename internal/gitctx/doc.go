// Package gitctx captures diffs from a git repository and splits them into
// per-file sections.
//
// Diffs come from the index ([Staged]), a single commit, a revision range,
// or text supplied by the caller ([FromText]). [Parse] uses go-gitdiff to
// count added and removed lines per file while keeping each file's raw
// section intact for prompt assembly. A captured [Diff] is never modified;
// [Diff.Filter] returns a copy.
package gitctx
