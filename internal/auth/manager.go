package auth

import (
	"errors"
	"strings"
	"sync"

	"github.com/khanhnv2901/seca-probe/internal/cancel"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no credentials were supplied.
var ErrNotConfigured = errors.New("authentication not configured")

// Credentials identify one account on the target.
type Credentials struct {
	LoginURL string
	Username string
	Password string
}

// Valid reports whether the credentials are usable.
func (c Credentials) Valid() bool {
	return c.LoginURL != "" && c.Username != ""
}

// Manager hands out sessions to checks. The shared session is created once
// and reused by every check that only needs a logged-in view. Fresh sessions
// are never shared.
type Manager struct {
	auth      Authenticator
	primary   Credentials
	secondary Credentials
	logger    *zap.Logger

	mu      sync.Mutex
	shared  *Session
	pending *loginCall
}

// loginCall is a shared login in flight. done is closed once session and err
// are set.
type loginCall struct {
	done    chan struct{}
	session *Session
	err     error
}

// NewManager creates a session manager. secondary may be zero, in which case
// fresh sessions log in with the primary credentials again.
func NewManager(a Authenticator, primary, secondary Credentials, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if secondary.LoginURL == "" {
		secondary.LoginURL = primary.LoginURL
	}
	return &Manager{
		auth:      a,
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Configured reports whether checks requiring authorization can run.
func (m *Manager) Configured() bool {
	return m != nil && m.auth != nil && m.primary.Valid()
}

// Shared returns the scan-wide session, logging in on first use. Concurrent
// callers wait for a single login, each watching its own token. A failed
// login is not cached.
func (m *Manager) Shared(tok *cancel.Token) (*Session, error) {
	if !m.Configured() {
		return nil, ErrNotConfigured
	}
	for {
		if err := tok.Err(); err != nil {
			return nil, err
		}

		m.mu.Lock()
		if m.shared != nil {
			session := m.shared
			m.mu.Unlock()
			return session, nil
		}
		if call := m.pending; call != nil {
			m.mu.Unlock()
			select {
			case <-call.done:
			case <-tok.Done():
				return nil, tok.Err()
			}
			if call.err == nil {
				return call.session, nil
			}
			// The caller that led the login was cancelled; ours may still be live.
			if cancel.IsCancelled(call.err) {
				continue
			}
			return nil, call.err
		}
		call := &loginCall{done: make(chan struct{})}
		m.pending = call
		m.mu.Unlock()

		call.session, call.err = m.auth.Login(tok, m.primary.LoginURL, m.primary.Username, m.primary.Password)

		m.mu.Lock()
		m.pending = nil
		if call.err == nil {
			m.shared = call.session
		}
		m.mu.Unlock()
		close(call.done)
		return call.session, call.err
	}
}

// Fresh logs in again and returns a session independent of every other one.
// The secondary account is used when one is configured.
func (m *Manager) Fresh(tok *cancel.Token) (*Session, error) {
	if !m.Configured() {
		return nil, ErrNotConfigured
	}
	creds := m.primary
	if m.secondary.Valid() {
		creds = m.secondary
	}
	if sameCredentials(creds, m.primary) {
		m.logger.Debug("fresh session reuses the primary account", zap.String("username", creds.Username))
	}
	return m.auth.Login(tok, creds.LoginURL, creds.Username, creds.Password)
}

func sameCredentials(a, b Credentials) bool {
	return strings.EqualFold(a.Username, b.Username) && a.Password == b.Password
}
