package usecase

import (
	"sync"

	"bidchat/internal/domain/entity"
)

// SessionStore keeps the authenticated sessions for this gateway process,
// keyed by the gateway token's ID. In-memory only: upstream token validity
// is enforced by the remote backend, so nothing here needs to survive a
// restart.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*entity.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*entity.Session),
	}
}

func (s *SessionStore) Put(id string, session *entity.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = session
}

func (s *SessionStore) Get(id string) (*entity.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// DeleteByEmail removes every session belonging to the user. One email can
// hold several sessions (re-login mints a fresh token without revoking the
// old one), so invalidation must sweep them all.
func (s *SessionStore) DeleteByEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if session.Email == email {
			delete(s.sessions, id)
		}
	}
}
