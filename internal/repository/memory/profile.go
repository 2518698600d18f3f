package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dtroode/smartbank-server/internal/model"
)

var _ model.ProfileStore = (*ProfileRepository)(nil)

type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[model.Address]model.UserProfile
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{profiles: make(map[model.Address]model.UserProfile)}
}

func (r *ProfileRepository) Create(_ context.Context, profile model.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[profile.Address]; ok {
		return model.ErrAlreadyRegistered
	}
	r.profiles[profile.Address] = profile
	return nil
}

func (r *ProfileRepository) GetByAddress(_ context.Context, address model.Address) (model.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[address]
	if !ok {
		return model.UserProfile{}, model.ErrNotFound
	}
	return p, nil
}

func (r *ProfileRepository) Update(_ context.Context, profile model.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.profiles[profile.Address]
	if !ok {
		return model.ErrNotFound
	}
	profile.LastLoginAt = stored.LastLoginAt
	r.profiles[profile.Address] = profile
	return nil
}

func (r *ProfileRepository) TouchLogin(_ context.Context, address model.Address, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[address]
	if !ok {
		return model.ErrNotFound
	}
	p.LastLoginAt = at
	r.profiles[address] = p
	return nil
}

func (r *ProfileRepository) Delete(_ context.Context, address model.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.profiles, address)
	return nil
}
