// Package classify maps changed file paths to review categories.
//
// A path may be security-critical (keyword match on any path component),
// data (lockfiles, minified bundles, generated or vendored files), commented
// (present in the caller-supplied set of paths with active inline review
// comments), or plain code. Classification is a pure function of its inputs.
package classify
