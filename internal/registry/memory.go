package registry

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRegistry keeps sessions in process. Stored sessions are copies.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{sessions: make(map[string]*Session)}
}

func clone(s *Session) *Session {
	c := *s
	c.Connections = append(c.Connections[:0:0], s.Connections...)
	return &c
}

func (m *MemoryRegistry) Register(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if existing, ok := m.sessions[s.ID]; ok {
		s.CreatedAt = existing.CreatedAt
	} else {
		s.CreatedAt = now
	}
	s.LastHeartbeat = now
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *MemoryRegistry) Unregister(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryRegistry) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return clone(s), nil
}

// List returns sessions oldest first.
func (m *MemoryRegistry) List(_ context.Context) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, clone(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRegistry) update(id string, fn func(*Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	fn(s)
	s.LastHeartbeat = time.Now()
	return nil
}

func (m *MemoryRegistry) UpdateHeartbeat(_ context.Context, id string) error {
	return m.update(id, func(*Session) {})
}

func (m *MemoryRegistry) UpdateStatus(_ context.Context, id string, status SessionStatus, reason string) error {
	return m.update(id, func(s *Session) {
		s.Status = status
		s.Error = reason
	})
}

func (m *MemoryRegistry) UpdateStats(_ context.Context, id string, stats SessionStats) error {
	return m.update(id, func(s *Session) { s.Stats = stats })
}

func (m *MemoryRegistry) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*Session)
	return nil
}
