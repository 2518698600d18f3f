package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/smartbank-server/internal/model"
)

var _ model.SessionStore = (*SessionRepository)(nil)

type SessionRepository struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]model.Session
	byAddress map[model.Address]uuid.UUID
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions:  make(map[uuid.UUID]model.Session),
		byAddress: make(map[model.Address]uuid.UUID),
	}
}

func (r *SessionRepository) Save(_ context.Context, s model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byAddress[s.Address]; ok && prev != s.ID {
		delete(r.sessions, prev)
	}
	r.sessions[s.ID] = s
	r.byAddress[s.Address] = s.ID
	return nil
}

func (r *SessionRepository) Get(_ context.Context, id uuid.UUID) (model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return model.Session{}, model.ErrNotFound
	}
	return s, nil
}

func (r *SessionRepository) Extend(_ context.Context, id uuid.UUID, expiresAt time.Time) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || r.byAddress[s.Address] != id {
		return model.Session{}, model.ErrNotFound
	}
	s.ExpiresAt = expiresAt
	r.sessions[id] = s
	return s, nil
}

func (r *SessionRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	if r.byAddress[s.Address] == id {
		delete(r.byAddress, s.Address)
	}
	return nil
}
