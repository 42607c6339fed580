package users

import (
	"context"
	"sync"
	"time"

	"github.com/ojinta/portfolio/go-services/internal/models"
)

// MemoryUserRepository keeps users in process. Used when MONGODB_URI is
// unset and in tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.User
	names map[string]string // username -> id
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: map[string]*models.User{}, names: map[string]string{}}
}

func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.names[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prepareNew(u, time.Now().UTC())
	if _, ok := r.names[u.Username]; ok {
		return nil, ErrUserExists
	}
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return nil, ErrUserExists
		}
	}
	cp := *u
	r.byID[u.ID] = &cp
	r.names[u.Username] = u.ID
	return u, nil
}

func (r *MemoryUserRepository) TouchLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	t := at
	u.LastLoginAt = &t
	u.UpdatedAt = at
	return nil
}
