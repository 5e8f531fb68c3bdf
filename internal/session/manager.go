package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docresearch/internal/research"
)

// ErrTooManySessions is returned by Create when the session limit is reached.
var ErrTooManySessions = errors.New("too many active sessions")

// Factory builds the researcher for a new session.
type Factory func() (*research.Researcher, error)

// Config controls session lifetime and storage.
type Config struct {
	TTL             time.Duration
	MaxSessions     int
	UploadDir       string
	CleanupInterval time.Duration
}

// Manager is a thread-safe in-memory session registry with TTL eviction.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	cfg     Config
	factory Factory
	log     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(cfg Config, factory Factory, log *slog.Logger) *Manager {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		factory:  factory,
		log:      log,
	}
}

// Start launches the expiry loop.
func (m *Manager) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if n := m.Cleanup(); n > 0 {
					m.log.Info("expired sessions", "count", n)
				}
			}
		}
	}()
}

// Stop ends the expiry loop and removes every session's files.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		m.removeLocked(id, s)
	}
}

// Create starts a new session with its own researcher and upload directory.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, fmt.Errorf("%w (%d)", ErrTooManySessions, m.cfg.MaxSessions)
	}

	r, err := m.factory()
	if err != nil {
		return nil, fmt.Errorf("create researcher: %w", err)
	}
	id := uuid.NewString()
	dir := filepath.Join(m.cfg.UploadDir, id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	s := newSession(id, dir, r)
	m.sessions[id] = s
	m.log.Info("session created", "session_id", id)
	return s, nil
}

// Get returns a session by ID and marks it used, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	s := m.sessions[id]
	m.mu.Unlock()
	if s != nil {
		s.Touch()
	}
	return s
}

// Delete removes a session and its files. It reports whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		m.removeLocked(id, s)
	}
	return ok
}

// Cleanup removes sessions idle longer than the TTL and returns how many.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for id, s := range m.sessions {
		if now.Sub(s.UpdatedAt()) > m.cfg.TTL {
			m.removeLocked(id, s)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) removeLocked(id string, s *Session) {
	delete(m.sessions, id)
	if err := s.removeFiles(); err != nil {
		m.log.Warn("remove session files failed", "session_id", id, "error", err)
	}
}
