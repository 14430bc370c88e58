package cache

import (
	"sync"
	"time"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore returns an empty store. A non-positive ttl selects DefaultTTL.
func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: make(map[string]Entry), ttl: ttl, now: now}
}

// Get implements Store.
func (m *MemoryStore) Get(fingerprint string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[fingerprint]
	if !ok {
		return Entry{}, false
	}
	if expired(e, m.ttl, m.now()) {
		delete(m.entries, fingerprint)
		return Entry{}, false
	}
	return e, true
}

// Put implements Store.
func (m *MemoryStore) Put(e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	m.mu.Lock()
	m.entries[e.Fingerprint] = e
	m.mu.Unlock()
	return nil
}

// Prune implements Store.
func (m *MemoryStore) Prune() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if expired(e, m.ttl, m.now()) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
