package session

import (
	"sync"
	"time"
)

// MemoryStore is a volatile Store keeping sessions in a process-local map.
// Safe for concurrent use; best suited for tests and demo servers. Returned
// sessions are clones so callers cannot mutate internal state.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byPhone  map[string]string
	ttl      time.Duration
	now      func() time.Time
}

// MemoryStoreOptions configures a MemoryStore.
type MemoryStoreOptions struct {
	TTL time.Duration
}

// NewMemoryStore constructs an empty in-memory session store.
func NewMemoryStore(optFns ...func(o *MemoryStoreOptions)) *MemoryStore {
	opts := MemoryStoreOptions{TTL: DefaultTTL}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		byPhone:  make(map[string]string),
		ttl:      opts.TTL,
		now:      time.Now,
	}
}

// Save implements Store.
func (m *MemoryStore) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	clone := s.Clone()
	stamp(clone, now, m.ttl)
	s.CreatedAt, s.UpdatedAt, s.ExpiresAt = clone.CreatedAt, clone.UpdatedAt, clone.ExpiresAt

	m.sessions[clone.ID] = clone
	if clone.Phone != "" {
		m.byPhone[clone.Phone] = clone.ID
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(id)
}

// LoadByPhone implements Store.
func (m *MemoryStore) LoadByPhone(phone string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byPhone[phone]
	if !ok {
		return nil, ErrNotFound
	}
	return m.loadLocked(id)
}

// UpdateState implements Store.
func (m *MemoryStore) UpdateState(id string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.loadLocked(id)
	if err != nil {
		return err
	}
	s.State = state
	s.UpdatedAt = m.now()
	m.sessions[id] = s
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(id)
	return nil
}

func (m *MemoryStore) loadLocked(id string) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.Expired(m.now()) {
		m.deleteLocked(id)
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) deleteLocked(id string) {
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	delete(m.sessions, id)
	if s.Phone != "" && m.byPhone[s.Phone] == id {
		delete(m.byPhone, s.Phone)
	}
}

// stamp fills in the bookkeeping timestamps on save.
func stamp(s *Session, now time.Time, ttl time.Duration) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = s.CreatedAt.Add(ttl)
	}
}
