package cache

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"
)

// OutcomePass is the only verdict outcome a Store will accept.
const OutcomePass = "PASS"

// DefaultTTL is the retention window for cache entries.
const DefaultTTL = 30 * 24 * time.Hour

// ErrNotCacheable is returned by Put for any outcome other than PASS.
var ErrNotCacheable = errors.New("cache: only PASS verdicts may be stored")

// Entry is a cached verdict.
type Entry struct {
	Fingerprint string    `json:"fingerprint"`
	Agent       string    `json:"agent"`
	Path        string    `json:"path,omitempty"`
	Outcome     string    `json:"outcome"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store maps diff fingerprints to prior PASS verdicts.
type Store interface {
	// Get returns the entry for fingerprint if present and not expired.
	Get(fingerprint string) (Entry, bool)
	// Put stores e. Entries whose Outcome is not PASS are rejected with ErrNotCacheable.
	Put(e Entry) error
	// Prune removes expired entries and returns how many were removed.
	Prune() (int, error)
}

// Stats describes the contents of a store.
type Stats struct {
	Dir        string `json:"dir"`
	Entries    int    `json:"entries"`
	TotalBytes int64  `json:"totalBytes"`
	Expired    int    `json:"expired"`
}

// Fingerprint hashes a whole-diff review input for one agent.
func Fingerprint(agent, diff string) string {
	return HashKey(agent + "\x00" + Normalize(diff))
}

// ChunkFingerprint hashes a single file's diff. The path is part of the key
// so identical text in two files does not collide.
func ChunkFingerprint(agent, path, diff string) string {
	return HashKey(agent + "\x00" + path + "\x00" + Normalize(diff))
}

// Normalize converts line endings to LF and trims trailing whitespace from
// every line.
func Normalize(diff string) string {
	diff = strings.ReplaceAll(diff, "\r\n", "\n")
	lines := strings.Split(diff, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.Join(lines, "\n")
}

// HashKey creates a SHA-256 hash of the given key material.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", h)
}

func validate(e Entry) error {
	if e.Outcome != OutcomePass {
		return fmt.Errorf("%w (got %q)", ErrNotCacheable, e.Outcome)
	}
	if e.Fingerprint == "" {
		return errors.New("cache: empty fingerprint")
	}
	return nil
}

func expired(e Entry, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(e.CreatedAt) >= ttl
}
