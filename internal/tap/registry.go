package tap

import (
	"sync"

	"example.com/me/rawtap/internal/chain"
)

// Registry множество открытых сессий, прошедших через tap.
// Сессии сравниваются по ссылке.
type Registry struct {
	mu       sync.Mutex
	sessions map[chain.Session]struct{}
}

// NewRegistry создает пустой registry
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[chain.Session]struct{})}
}

// Add регистрирует сессию; повторная регистрация ничего не меняет
func (r *Registry) Add(session chain.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session]; ok {
		return false
	}
	r.sessions[session] = struct{}{}
	return true
}

// Remove удаляет сессию, если она была зарегистрирована
func (r *Registry) Remove(session chain.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session]; !ok {
		return false
	}
	delete(r.sessions, session)
	return true
}

// Contains сообщает, отслеживается ли сессия
func (r *Registry) Contains(session chain.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[session]
	return ok
}

// Len возвращает количество отслеживаемых сессий
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot возвращает копию множества сессий
func (r *Registry) Snapshot() []chain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect()
}

// Drain атомарно забирает все сессии и очищает registry
func (r *Registry) Drain() []chain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := r.collect()
	r.sessions = make(map[chain.Session]struct{})
	return sessions
}

func (r *Registry) collect() []chain.Session {
	sessions := make([]chain.Session, 0, len(r.sessions))
	for s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}
