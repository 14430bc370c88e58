// Package github reads and writes pull request state through the gh CLI.
//
// Every call goes through a [Runner] so tests can substitute canned output.
// Stdout is parsed as data and stderr is only logged, which keeps gh's
// warnings out of the JSON payload. [Client.FetchPR] retries once with a
// reduced field set when the token lacks a scope for the full one.
//
// Inline review comments are filtered by [FilterActive] before they reach a
// reviewer: comments whose line left the diff (null position) and comments
// in resolved threads are dropped.
package github
