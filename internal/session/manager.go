package session

import (
	"sync"
	"time"

	"voice-beyond/companion/pkg/cache"
)

// DefaultIdleTimeout is how long an unused session is kept by a Manager.
const DefaultIdleTimeout = 30 * time.Minute

// Manager keeps the sessions of the local UI server, keyed by session id.
// Sessions that go unused for the idle timeout are dropped.
type Manager struct {
	mu       sync.Mutex
	sessions *cache.Cache
	idle     time.Duration
}

func NewManager(idle time.Duration) *Manager {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Manager{
		sessions: cache.NewCache(cache.Options{
			DefaultExpiration: idle,
			CleanupInterval:   idle / 2,
		}),
		idle: idle,
	}
}

// Get returns the session with id, creating it when absent. The bool
// reports whether the session was created by this call.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != "" {
		if v, ok := m.sessions.Get(id); ok {
			s := v.(*Session)
			m.sessions.Set(id, s)
			return s, false
		}
	}
	s := New(id, nil)
	m.sessions.Set(s.ID, s)
	return s, true
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(id string) (*Session, bool) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Each calls fn for every live session.
func (m *Manager) Each(fn func(*Session)) {
	for _, v := range m.sessions.Values() {
		fn(v.(*Session))
	}
}

func (m *Manager) Remove(id string) {
	m.sessions.Delete(id)
}

func (m *Manager) Close() {
	m.sessions.Close()
}
