// Package memory provides mutex-guarded in-process repositories, used for
// local development and as the default store when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/emergency-console/models"
	"github.com/upb/emergency-console/repositories"
)

// UserStore implements repositories.UserRepository in memory. Callers always
// receive copies, so mutating a returned user never changes the store.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
	now     func() time.Time
}

// NewUserStore creates a store holding the given users
func NewUserStore(seed ...*models.User) (*UserStore, error) {
	s := &UserStore{
		byID:    make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
		now:     time.Now,
	}
	for _, u := range seed {
		if err := s.Create(context.Background(), u); err != nil {
			return nil, fmt.Errorf("seed %s: %w", u.Email, err)
		}
	}
	return s, nil
}

// Create adds a user. Returns ErrDuplicate when the id or email is taken.
func (s *UserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := models.NormalizeEmail(user.Email)
	if _, ok := s.byEmail[email]; ok {
		return fmt.Errorf("email %s: %w", email, repositories.ErrDuplicate)
	}
	if _, ok := s.byID[user.ID]; ok {
		return fmt.Errorf("id %s: %w", user.ID, repositories.ErrDuplicate)
	}

	stored := cloneUser(user)
	stored.Email = email
	s.byID[stored.ID] = stored
	s.byEmail[email] = stored.ID
	return nil
}

// GetByID retrieves a user by ID
func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneUser(u), nil
}

// GetByEmail retrieves a user by email, case-insensitively
func (s *UserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneUser(s.byID[id]), nil
}

// List returns all users ordered by email
func (s *UserStore) List(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.byID))
	for _, u := range s.byID {
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

// UpdateProfile applies patch under the write lock
func (s *UserStore) UpdateProfile(_ context.Context, id uuid.UUID, patch models.ProfileUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	patch.Apply(u, s.now())
	return cloneUser(u), nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.AvatarURL = cloneString(u.AvatarURL)
	c.Phone = cloneString(u.Phone)
	c.Location = cloneString(u.Location)
	c.Department = cloneString(u.Department)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
