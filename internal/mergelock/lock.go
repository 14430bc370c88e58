package mergelock

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is how long an authorization stays valid.
const DefaultTTL = 30 * time.Minute

// State is the result of a lock query.
type State int

const (
	Unauthorized State = iota
	Authorized
)

func (s State) String() string {
	if s == Authorized {
		return "authorized"
	}
	return "unauthorized"
}

// Lock is a human sign-off for merging one pull request.
type Lock struct {
	PR           int       `toml:"pr" json:"pr"`
	AuthorizedBy string    `toml:"authorized_by" json:"authorizedBy"`
	CreatedAt    time.Time `toml:"created_at" json:"createdAt"`
	Reason       string    `toml:"reason" json:"reason"`
}

// Store persists locks by pull request number. Get returns (nil, nil) when no
// record exists.
type Store interface {
	Get(pr int) (*Lock, error)
	Put(l Lock) error
	Delete(pr int) error
}

// Manager applies the TTL policy on top of a Store. It is the only writer of
// lock records.
type Manager struct {
	store  Store
	ttl    time.Duration
	clock  func() time.Time
	logger *zap.Logger
}

// NewManager returns a Manager. A non-positive ttl selects DefaultTTL and a
// nil logger discards output.
func NewManager(store Store, ttl time.Duration, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, ttl: ttl, clock: time.Now, logger: logger}
}

// WithClock overrides clock for testing.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// TTL returns the validity window.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Authorize records a sign-off for pr. Any existing record is replaced and
// the validity window restarts.
func (m *Manager) Authorize(pr int, actor, reason string) (Lock, error) {
	if pr <= 0 {
		return Lock{}, fmt.Errorf("invalid pull request number %d", pr)
	}
	actor = strings.TrimSpace(actor)
	reason = strings.TrimSpace(reason)
	if actor == "" {
		return Lock{}, errors.New("authorizing actor is required")
	}
	if reason == "" {
		return Lock{}, errors.New("a reason is required")
	}
	l := Lock{PR: pr, AuthorizedBy: actor, CreatedAt: m.clock().UTC(), Reason: reason}
	if err := m.store.Put(l); err != nil {
		return Lock{}, fmt.Errorf("writing merge lock for #%d: %w", pr, err)
	}
	m.logger.Info("merge authorized", zap.Int("pr", pr), zap.String("actor", actor))
	return l, nil
}

// Check reports whether pr currently carries a valid authorization.
func (m *Manager) Check(pr int) (State, error) {
	_, st, err := m.Lookup(pr)
	return st, err
}

// Lookup is Check plus the record itself when it is valid. Validity is
// computed on every call; an expired record is deleted before returning.
// A record that cannot be read is reported as Unauthorized with the error.
func (m *Manager) Lookup(pr int) (*Lock, State, error) {
	l, err := m.store.Get(pr)
	if err != nil {
		return nil, Unauthorized, fmt.Errorf("reading merge lock for #%d: %w", pr, err)
	}
	if l == nil {
		return nil, Unauthorized, nil
	}
	if m.valid(*l) {
		return l, Authorized, nil
	}
	if err := m.store.Delete(pr); err != nil {
		return nil, Unauthorized, fmt.Errorf("deleting expired merge lock for #%d: %w", pr, err)
	}
	m.logger.Info("expired merge lock deleted",
		zap.Int("pr", pr),
		zap.Time("created", l.CreatedAt),
		zap.Duration("ttl", m.ttl))
	return nil, Unauthorized, nil
}

// Revoke deletes any record for pr.
func (m *Manager) Revoke(pr int) error {
	if err := m.store.Delete(pr); err != nil {
		return fmt.Errorf("revoking merge lock for #%d: %w", pr, err)
	}
	return nil
}

// ExpiresAt returns when l stops being valid.
func (m *Manager) ExpiresAt(l Lock) time.Time {
	return l.CreatedAt.Add(m.ttl)
}

// A record stamped in the future is not valid.
func (m *Manager) valid(l Lock) bool {
	age := m.clock().Sub(l.CreatedAt)
	return age >= 0 && age < m.ttl
}
