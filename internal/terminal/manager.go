package terminal

import "sync"

// Manager hands out one Session per terminal ID, creating it on first use.
// Every session shares the same collaborators and store.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Session(terminalID string) *Session {
	if terminalID == "" {
		terminalID = "till-1"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[terminalID]; ok {
		return s
	}
	s := NewSession(m.cfg, terminalID)
	m.sessions[terminalID] = s
	return s
}
