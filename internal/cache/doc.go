// Package cache stores PASS verdicts keyed by a fingerprint of the reviewed
// diff.
//
// A fingerprint is the SHA-256 of the agent name and the normalized diff
// text; per-file fingerprints also include the file path. Only PASS is ever
// written, so a FAIL is always re-judged. Entries older than the retention
// window (30 days by default) are treated as absent, removed when read, and
// swept by [FileStore.Prune] or the periodic [FileStore.MaybeSweep].
//
// [FileStore] keeps one JSON file per fingerprint under
// $XDG_CACHE_HOME/reviewgate/verdicts (or the OS-appropriate equivalent).
// [MemoryStore] satisfies the same [Store] interface for tests.
package cache
