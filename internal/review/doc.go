// Package review decides how a diff is reviewed, runs external reviewers
// around a verdict cache, and combines their verdicts.
//
// [Triage] picks full, chunked, or skip mode from line-count thresholds.
// [BuildTargeted] produces the bounded pre-merge diff. [Invoker] owns all
// policy around a reviewer run: cache lookup, a hard timeout, classification
// into [InvocationError] kinds, verdict parsing, and write-through of PASS.
//
// Reviewer output is free text. The first line beginning with "VERDICT:" is
// authoritative; ISSUE blocks after it carry DESCRIPTION, SEVERITY, LOCATION
// and DETAILS fields. A missing or unknown severity is BLOCKING.
//
// Errors are handled by an explicit [ErrorPolicy] passed at each call site:
// [AggregateSinglePass] is used with FailClosed and [AggregateChunks] with
// SkipItem, so a flaky per-file run skips that file instead of failing the
// whole change.
//
// Rules packs (rules.go) add focus areas, required checks, and always-blocking
// conditions to every prompt.
package review
