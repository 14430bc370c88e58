// Package providers runs external reviewers.
//
// A [Reviewer] takes a prompt and returns raw text plus an exit status; it
// knows nothing about verdicts, caching, or timeouts beyond honoring its
// context. [CommandReviewer] launches a configured program with the prompt
// on stdin, keeps stdout and stderr separate, and on context expiry kills the
// child's entire process group so a hung reviewer cannot hang the caller.
//
// Use [New] to obtain a Reviewer by agent name from the configured agent table.
package providers
