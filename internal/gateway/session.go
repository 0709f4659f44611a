package gateway

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arjun/scribe/internal/agent"
)

// Session binds one browser client to its own workflow engine and event
// hub. Sessions live in memory only and die with the process.
type Session struct {
	ID     string
	Engine *agent.Engine
	Hub    *Hub

	mu         sync.Mutex
	lastActive time.Time
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// EngineFactory builds the engine for a new session, wired to its hub.
type EngineFactory func(sessionID string, sink agent.EventSink) *agent.Engine

// SessionPurger drops a reaped session's persisted trail, if any.
type SessionPurger interface {
	Purge(sessionID string) error
}

// SessionManager tracks active sessions and reaps the ones that go idle.
type SessionManager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	ttl       time.Duration
	newEngine EngineFactory
	purger    SessionPurger
}

func NewSessionManager(ttl time.Duration, factory EngineFactory, purger SessionPurger) *SessionManager {
	return &SessionManager{
		sessions:  make(map[string]*Session),
		ttl:       ttl,
		newEngine: factory,
		purger:    purger,
	}
}

func (m *SessionManager) Create() *Session {
	id := uuid.NewString()
	hub := NewHub()
	s := &Session{
		ID:         id,
		Engine:     m.newEngine(id, hub),
		Hub:        hub,
		lastActive: time.Now(),
	}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s
}

// Get returns the session and marks it active.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch()
	}
	return s, ok
}

func (m *SessionManager) Delete(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	s.Hub.CloseAll()
	if m.purger != nil {
		if err := m.purger.Purge(id); err != nil {
			log.Printf("failed to purge session %s: %v", id, err)
		}
	}
}

// StartReaper polls for idle sessions and tears them down. A session with
// a workflow still planning or running is never reaped mid-run.
func (m *SessionManager) StartReaper(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	log.Println("Session reaper started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

func (m *SessionManager) reapIdle() {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.RLock()
	var expired []*Session
	for _, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range expired {
		snap := s.Engine.Snapshot()
		if snap.Planning || snap.Executing {
			continue
		}
		log.Printf("Reaping idle session %s", s.ID)
		m.Delete(s.ID)
	}
}
