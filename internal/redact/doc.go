// Package redact strips secrets from reviewer prompts before they leave the
// process.
//
// Detection is heuristic: named regular expressions for private key blocks,
// cloud and hosting tokens, JWTs, bearer headers, credentials embedded in
// connection strings, and key/secret/password assignments. Every match is
// replaced with [REDACTED]; callers log the count, never the match.
package redact
