package session

import (
	"sync"

	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

// Manager registra as sessões ativas e faz o fan-out do change feed.
// Cada sessão recebe todos os eventos; o reconciler de cada uma decide
// relevância e visibilidade para o seu viewer.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]map[*Session]struct{} // userID -> sessões (multi-device)
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]map[*Session]struct{})}
}

func (m *Manager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.UserID]; !ok {
		m.sessions[s.UserID] = make(map[*Session]struct{})
	}
	m.sessions[s.UserID][s] = struct{}{}
}

func (m *Manager) Remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.sessions[s.UserID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(m.sessions, s.UserID)
		}
	}
}

// Dispatch entrega o evento a todas as sessões ativas.
func (m *Manager) Dispatch(ev events.ChangeEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, set := range m.sessions {
		for s := range set {
			s.Enqueue(ev)
		}
	}
}

// ForUser retorna as sessões ativas de um usuário (entrega de notificações).
func (m *Manager) ForUser(userID string) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.sessions[userID]
	out := make([]*Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// Count retorna o total de sessões ativas (métrica de gauge).
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, set := range m.sessions {
		n += len(set)
	}
	return n
}
