package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

const sweepMarker = ".last-sweep"

// FileStore keeps one JSON file per fingerprint under a directory.
type FileStore struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a store.
type Option func(*FileStore)

// WithLogger sets the logger used for hit/miss/expiry events.
func WithLogger(l *zap.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) { s.now = now }
}

// NewFileStore creates the cache directory if needed. An empty dir selects
// the per-user default; a non-positive ttl selects DefaultTTL.
func NewFileStore(dir string, ttl time.Duration, opts ...Option) (*FileStore, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	s := &FileStore{dir: dir, ttl: ttl, now: time.Now, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Get implements Store. An expired entry is removed and reported as a miss.
func (s *FileStore) Get(fingerprint string) (Entry, bool) {
	path := s.entryPath(fingerprint)
	e, err := readEntry(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("cache entry unreadable", zap.String("path", path), zap.Error(err))
		}
		return Entry{}, false
	}
	if e.Outcome != OutcomePass || expired(e, s.ttl, s.now()) {
		os.Remove(path)
		s.logger.Debug("cache entry expired", zap.String("fingerprint", short(fingerprint)))
		return Entry{}, false
	}
	return e, true
}

// Put implements Store. The write goes through a temp file and rename so a
// concurrent reader never sees a partial entry.
func (s *FileStore) Put(e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.entryPath(e.Fingerprint)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Prune implements Store.
func (s *FileStore) Prune() (int, error) {
	removed := 0
	err := s.eachEntry(func(path string, e Entry, _ os.FileInfo) {
		if expired(e, s.ttl, s.now()) {
			if os.Remove(path) == nil {
				removed++
			}
		}
	})
	if removed > 0 {
		s.logger.Info("pruned expired cache entries", zap.Int("removed", removed))
	}
	return removed, err
}

// MaybeSweep prunes the store if the last sweep is older than interval.
// It reports whether a sweep ran.
func (s *FileStore) MaybeSweep(interval time.Duration) (bool, error) {
	marker := filepath.Join(s.dir, sweepMarker)
	if info, err := os.Stat(marker); err == nil && s.now().Sub(info.ModTime()) < interval {
		return false, nil
	}
	if _, err := s.Prune(); err != nil {
		return true, err
	}
	now := s.now()
	if err := os.WriteFile(marker, []byte(now.UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
		return true, fmt.Errorf("writing sweep marker: %w", err)
	}
	return true, os.Chtimes(marker, now, now)
}

// Clear removes all cache entries.
func (s *FileStore) Clear() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading cache directory: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if isEntryName(e.Name()) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Stats returns information about the cache.
func (s *FileStore) Stats() (Stats, error) {
	stats := Stats{Dir: s.dir}
	err := s.eachEntry(func(_ string, e Entry, info os.FileInfo) {
		stats.Entries++
		stats.TotalBytes += info.Size()
		if expired(e, s.ttl, s.now()) {
			stats.Expired++
		}
	})
	return stats, err
}

// Dir returns the cache directory path.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) eachEntry(fn func(path string, e Entry, info os.FileInfo)) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cache directory: %w", err)
	}
	for _, de := range entries {
		if !isEntryName(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(s.dir, de.Name())
		e, err := readEntry(path)
		if err != nil {
			continue
		}
		fn(path, e, info)
	}
	return nil
}

func (s *FileStore) entryPath(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".json")
}

func readEntry(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// DefaultDir returns the per-user cache directory for verdicts.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "reviewgate", "verdicts"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "reviewgate", "verdicts"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "reviewgate", "cache", "verdicts"), nil
		}
		return filepath.Join(home, "AppData", "Local", "reviewgate", "cache", "verdicts"), nil
	default:
		return filepath.Join(home, ".cache", "reviewgate", "verdicts"), nil
	}
}

// isEntryName reports whether name looks like a cache entry file.
func isEntryName(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}
