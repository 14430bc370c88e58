// Reviewgate gates commits and merges made by automated coding sessions.
//
// A commit is allowed only when an independent reviewer agent passes the
// staged diff. A pull request merge is allowed only when the review state is
// clean, a merge reviewer returns SAFE_TO_MERGE, and a human has recorded a
// time-limited authorization. A command firewall refuses shell commands and
// file edits that would route around either gate.
//
// Usage:
//
//	reviewgate review staged              # pre-commit gate
//	reviewgate review range origin/main..HEAD
//	reviewgate premerge 42                # pre-merge gate
//	reviewgate lock authorize 42 --reason "release fix"
//	reviewgate firewall < event.json      # exit 2 blocks the command
//	reviewgate hook install               # run the pre-commit gate from git
package main
