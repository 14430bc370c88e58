package firewall

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one blocked-command record.
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Rule      string    `json:"rule"`
	Command   string    `json:"command"`
}

// AuditLog appends JSON lines to a file. It never reads them back.
type AuditLog struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewAuditLog returns a log writing to path. The file and its directory are
// created on first append.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path, now: time.Now}
}

// WithClock replaces the time source used for entry timestamps.
func (a *AuditLog) WithClock(clock func() time.Time) *AuditLog {
	a.now = clock
	return a
}

// Path returns the log file location.
func (a *AuditLog) Path() string { return a.path }

// Append writes one entry.
func (a *AuditLog) Append(rule, command string) error {
	entry := AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: a.now().UTC(),
		Rule:      rule,
		Command:   command,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(a.path), 0o700); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("write audit log: %w", err)
	}
	return f.Close()
}
