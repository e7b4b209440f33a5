package session

import (
	"errors"
	"sync"
	"time"
)

// ErrNilSession is returned when Update receives nil.
var ErrNilSession = errors.New("session: nil session")

// Store owns every session of the process. Callers hold Lock for a user while
// they read, mutate and write back that user's session.
type Store interface {
	Get(userID int64) (*Session, bool)
	Create(userID int64, now time.Time) *Session
	Update(s *Session) error
	Delete(userID int64)
	Lock(userID int64) (unlock func())
	Stats() Stats
}

// Stats summarizes the store for diagnostics.
type Stats struct {
	Total   int
	ByStage map[Stage]int
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	locksMu sync.Mutex
	locks   map[int64]*userLock
}

// userLock is a per-user mutex shared by its current holder and waiters. It is
// dropped from the map when refs reaches zero.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemoryStore constructs the in-memory Store. Sessions live for the process lifetime.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*userLock),
	}
}

// Get returns a copy of the stored session.
func (m *memoryStore) Get(userID int64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Create stores a fresh session, replacing any existing one, and returns a copy.
func (m *memoryStore) Create(userID int64, now time.Time) *Session {
	s := New(userID, now)
	m.mu.Lock()
	m.sessions[userID] = s
	m.mu.Unlock()
	return s.Clone()
}

// Update writes back a session copy.
func (m *memoryStore) Update(s *Session) error {
	if s == nil {
		return ErrNilSession
	}
	c := s.Clone()
	m.mu.Lock()
	m.sessions[s.UserID] = c
	m.mu.Unlock()
	return nil
}

// Delete removes the session. The user's lock survives so holders stay exclusive.
func (m *memoryStore) Delete(userID int64) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}

// Lock acquires the per-user mutex. The returned unlock is safe to call twice.
func (m *memoryStore) Lock(userID int64) func() {
	m.locksMu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			m.locksMu.Lock()
			if l.refs--; l.refs == 0 {
				delete(m.locks, userID)
			}
			m.locksMu.Unlock()
		})
	}
}

// Stats counts sessions per stage.
func (m *memoryStore) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{Total: len(m.sessions), ByStage: make(map[Stage]int, 3)}
	for _, s := range m.sessions {
		st.ByStage[s.Stage]++
	}
	return st
}
