package state

import "sync"

type memoryStore[T any] struct {
	mu       sync.RWMutex
	sessions map[int64]T
}

// NewMemory returns an in-process Store. Sessions do not survive a restart.
func NewMemory[T any]() Store[T] {
	return &memoryStore[T]{sessions: make(map[int64]T)}
}

func (m *memoryStore[T]) Get(userID int64) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	return s, ok
}

func (m *memoryStore[T]) Set(userID int64, session T) {
	m.mu.Lock()
	m.sessions[userID] = session
	m.mu.Unlock()
}

func (m *memoryStore[T]) Clear(userID int64) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}

func (m *memoryStore[T]) InProgress(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[userID]
	return ok
}
