package mergelock

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// FileStore keeps one TOML file per pull request under a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating lock directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the lock directory.
func (s *FileStore) Dir() string { return s.dir }

// Get implements Store.
func (s *FileStore) Get(pr int) (*Lock, error) {
	data, err := os.ReadFile(s.path(pr))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var l Lock
	if err := toml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(s.path(pr)), err)
	}
	if l.PR != pr {
		return nil, fmt.Errorf("%s records pull request %d", filepath.Base(s.path(pr)), l.PR)
	}
	return &l, nil
}

// Put implements Store.
func (s *FileStore) Put(l Lock) error {
	data, err := toml.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshaling lock: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".pr-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path(l.PR)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Delete implements Store. Deleting a missing record is not an error.
func (s *FileStore) Delete(pr int) error {
	err := os.Remove(s.path(pr))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FileStore) path(pr int) string {
	return filepath.Join(s.dir, "pr-"+strconv.Itoa(pr)+".toml")
}

// DefaultDir returns the per-user lock directory.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "reviewgate", "merge-locks"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	if runtime.GOOS == "windows" {
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "reviewgate", "merge-locks"), nil
		}
	}
	return filepath.Join(home, ".local", "state", "reviewgate", "merge-locks"), nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[int]Lock
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: make(map[int]Lock)}
}

// Get implements Store.
func (m *MemoryStore) Get(pr int) (*Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[pr]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// Put implements Store.
func (m *MemoryStore) Put(l Lock) error {
	m.mu.Lock()
	m.locks[l.PR] = l
	m.mu.Unlock()
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(pr int) error {
	m.mu.Lock()
	delete(m.locks, pr)
	m.mu.Unlock()
	return nil
}
