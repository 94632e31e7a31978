// Package session guards the till behind a lock screen.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/shelfpos/pkg/config"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/logger"
	"github.com/angelmondragon/shelfpos/pkg/security"
)

type Status struct {
	Locked            bool       `json:"locked"`
	PasswordSet       bool       `json:"passwordSet"`
	FailedAttempts    int        `json:"failedAttempts"`
	MaxFailedAttempts int        `json:"maxFailedAttempts"`
	LockedOutUntil    *time.Time `json:"lockedOutUntil,omitempty"`
	AutoLockSeconds   int        `json:"autoLockSeconds"`
}

// Manager tracks the lock state of the single till session.
type Manager struct {
	mu           sync.Mutex
	hash         string
	locked       bool
	failed       int
	lockoutUntil time.Time
	lastActivity time.Time

	maxFailed int
	lockout   time.Duration
	autoLock  time.Duration
	argon     config.PasswordConfig
	now       func() time.Time
	logg      *logger.Logger
}

// NewManager starts unlocked. A configured password hash must be a valid
// argon2id hash.
func NewManager(cfg config.SessionConfig, argon config.PasswordConfig, now func() time.Time, logg *logger.Logger) (*Manager, error) {
	if cfg.PasswordHash != "" && !security.ValidHash(cfg.PasswordHash) {
		return nil, fmt.Errorf("session: configured password hash is not a valid argon2id hash")
	}
	if cfg.MaxFailedAttempts <= 0 {
		return nil, fmt.Errorf("session: max failed attempts must be > 0")
	}
	if now == nil {
		now = time.Now
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Manager{
		hash:         cfg.PasswordHash,
		maxFailed:    cfg.MaxFailedAttempts,
		lockout:      cfg.Lockout,
		autoLock:     cfg.AutoLock,
		argon:        argon,
		now:          now,
		logg:         logg,
		lastActivity: now(),
	}, nil
}

// Status reports the current state, applying idle auto-lock first.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.refresh(now)
	return m.status(now)
}

// Locked reports whether the session is locked right now.
func (m *Manager) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh(m.now())
	return m.locked
}

// Touch records activity. It reports false when the session is locked, in
// which case the activity does not count.
func (m *Manager) Touch() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.refresh(now)
	if m.locked {
		return false
	}
	m.lastActivity = now
	return true
}

func (m *Manager) Lock(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.locked {
		m.locked = true
		m.logg.Info(ctx, "session locked")
	}
}

// Unlock opens the session. It returns how many wrong attempts were made
// while locked. Wrong passwords return UNAUTHORIZED until the attempt limit
// is reached, after which every call returns LOCKED until the lockout ends.
func (m *Manager) Unlock(ctx context.Context, password string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.refresh(now)

	if !m.lockoutUntil.IsZero() {
		return 0, m.lockedOut(now)
	}
	if m.hash != "" {
		ok, err := security.VerifyPassword(password, m.hash)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
		}
		if !ok {
			m.failed++
			m.logg.Warn(m.logg.WithField(ctx, "failed_attempts", m.failed), "wrong lock screen password")
			if m.failed >= m.maxFailed {
				m.lockoutUntil = now.Add(m.lockout)
				return 0, m.lockedOut(now)
			}
			return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "wrong password").WithDetails(map[string]any{
				"failedAttempts":    m.failed,
				"remainingAttempts": m.maxFailed - m.failed,
			})
		}
	}

	failed := m.failed
	m.failed = 0
	m.locked = false
	m.lastActivity = now
	m.logg.Info(ctx, "session unlocked")
	return failed, nil
}

// SetPassword replaces the lock password. When one is already set, current
// must match it. An empty next removes the password.
func (m *Manager) SetPassword(ctx context.Context, current, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh(m.now())
	if m.locked {
		return pkgerrors.New(pkgerrors.CodeLocked, "session is locked")
	}
	if m.hash != "" {
		ok, err := security.VerifyPassword(current, m.hash)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "current password is wrong")
		}
	}
	if next == "" {
		m.hash = ""
		m.logg.Info(ctx, "lock screen password removed")
		return nil
	}
	hash, err := security.HashPassword(next, m.argon)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	m.hash = hash
	m.logg.Info(ctx, "lock screen password changed")
	return nil
}

// refresh ends an expired lockout and applies idle auto-lock.
func (m *Manager) refresh(now time.Time) {
	if !m.lockoutUntil.IsZero() && !now.Before(m.lockoutUntil) {
		m.lockoutUntil = time.Time{}
		m.failed = 0
	}
	if !m.locked && m.autoLock > 0 && now.Sub(m.lastActivity) >= m.autoLock {
		m.locked = true
	}
}

func (m *Manager) lockedOut(now time.Time) error {
	return pkgerrors.New(pkgerrors.CodeLocked, "too many failed attempts").WithDetails(map[string]any{
		"lockedOutUntil":    m.lockoutUntil,
		"retryAfterSeconds": int(m.lockoutUntil.Sub(now).Round(time.Second).Seconds()),
	})
}

func (m *Manager) status(now time.Time) Status {
	s := Status{
		Locked:            m.locked,
		PasswordSet:       m.hash != "",
		FailedAttempts:    m.failed,
		MaxFailedAttempts: m.maxFailed,
		AutoLockSeconds:   int(m.autoLock.Seconds()),
	}
	if !m.lockoutUntil.IsZero() && now.Before(m.lockoutUntil) {
		until := m.lockoutUntil
		s.LockedOutUntil = &until
	}
	return s
}
