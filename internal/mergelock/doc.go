// Package mergelock records time-limited human authorization to merge a pull
// request.
//
// A lock moves from unauthorized to authorized only through
// [Manager.Authorize]. Expiry is never stored: every [Manager.Check]
// recomputes it from the record's creation time, and an expired record is
// deleted by the query that observes it. There is no grace period and no
// background sweeper.
//
// [FileStore] writes one pr-<n>.toml file per pull request. The directory is
// also guarded by the firewall package, so the Manager is the only sanctioned
// writer.
package mergelock
