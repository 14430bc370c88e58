// Package gate orchestrates the two decision points: the pre-commit review
// of a captured diff and the pre-merge check of a pull request.
//
// [PreCommit] triages the diff and runs a full, chunked or skipped review.
// Full reviews fail closed on reviewer errors; chunked reviews skip the
// affected file instead. [PreMerge] applies hard pull request state checks
// before any reviewer runs, then a single merge review on a targeted diff,
// then the human authorization lock. Both return a [Decision] whose Kind
// drives the exit code.
package gate
