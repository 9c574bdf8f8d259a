package session

import (
	"context"
	"sync"
)

// MemoryStores is an in-memory session store factory for tests and
// development without redis. Not durable across restarts.
type MemoryStores struct {
	mu       sync.RWMutex
	sessions map[string]AuthSession
}

// NewMemoryStores constructs an empty in-memory factory.
func NewMemoryStores() *MemoryStores {
	return &MemoryStores{sessions: make(map[string]AuthSession)}
}

// For returns the session store of one installation.
func (m *MemoryStores) For(installationID string) Store {
	return &memoryStore{stores: m, id: installationID}
}

type memoryStore struct {
	stores *MemoryStores
	id     string
}

func (s *memoryStore) Login(_ context.Context, sess AuthSession) error {
	s.stores.mu.Lock()
	defer s.stores.mu.Unlock()
	s.stores.sessions[s.id] = sess
	return nil
}

func (s *memoryStore) Logout(_ context.Context) error {
	s.stores.mu.Lock()
	defer s.stores.mu.Unlock()
	delete(s.stores.sessions, s.id)
	return nil
}

func (s *memoryStore) IsAuthenticated(_ context.Context) (bool, error) {
	s.stores.mu.RLock()
	defer s.stores.mu.RUnlock()
	_, ok := s.stores.sessions[s.id]
	return ok, nil
}

func (s *memoryStore) Get(_ context.Context) (AuthSession, error) {
	s.stores.mu.RLock()
	defer s.stores.mu.RUnlock()
	sess, ok := s.stores.sessions[s.id]
	if !ok {
		return AuthSession{}, ErrNoSession
	}
	return sess, nil
}

func (s *memoryStore) Update(_ context.Context, p Partial) error {
	s.stores.mu.Lock()
	defer s.stores.mu.Unlock()
	sess, ok := s.stores.sessions[s.id]
	if !ok {
		return ErrNoSession
	}
	p.apply(&sess)
	s.stores.sessions[s.id] = sess
	return nil
}
