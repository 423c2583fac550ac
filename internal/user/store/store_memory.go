package store

import (
	"context"
	"sync"
	"time"

	"trailmark/internal/user/models"
	"trailmark/pkg/platform/sentinel"
)

// InMemoryStore implements Store with a mutex-guarded map. Suited to tests
// and single-instance development; use PostgresStore in production.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[int64]*models.User
}

// NewInMemory creates an empty in-memory user store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{users: make(map[int64]*models.User)}
}

// FindByID returns a copy of the user or sentinel.ErrNotFound.
func (s *InMemoryStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyUser(user), nil
}

// UpsertProfile creates or refreshes the profile fields for id.
func (s *InMemoryStore) UpsertProfile(ctx context.Context, id int64, name string, email, avatarURL *string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		user = &models.User{ID: id}
		s.users[id] = user
	}
	user.Name = name
	if email != nil {
		user.Email = email
	}
	if avatarURL != nil {
		user.AvatarURL = avatarURL
	}
	user.UpdatedAt = time.Now()

	return copyUser(user), nil
}

// Save writes the full record, creating it if absent.
func (s *InMemoryStore) Save(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyUser(user)
	stored.UpdatedAt = time.Now()
	s.users[user.ID] = stored
	return nil
}

// Delete removes the user if present.
func (s *InMemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

// AppendCheckinRef appends a check-in id to the user's refs.
func (s *InMemoryStore) AppendCheckinRef(ctx context.Context, id int64, checkinID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	user.CheckinRefs = append(user.CheckinRefs, checkinID)
	return nil
}

// JoinList adds a list id to the user's membership; idempotent.
func (s *InMemoryStore) JoinList(ctx context.Context, id int64, listID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !user.HasJoined(listID) {
		user.JoinedLists = append(user.JoinedLists, listID)
	}
	return nil
}

// LeaveList removes a list id from the user's membership; idempotent.
func (s *InMemoryStore) LeaveList(ctx context.Context, id int64, listID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	lists := user.JoinedLists[:0]
	for _, l := range user.JoinedLists {
		if l != listID {
			lists = append(lists, l)
		}
	}
	user.JoinedLists = lists
	return nil
}

// CountByJoinedList counts users signed up for the given list.
func (s *InMemoryStore) CountByJoinedList(ctx context.Context, listID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, user := range s.users {
		if user.HasJoined(listID) {
			count++
		}
	}
	return count, nil
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.JoinedLists = append([]string(nil), u.JoinedLists...)
	c.CheckinRefs = append([]string(nil), u.CheckinRefs...)
	return &c
}

var _ Store = (*InMemoryStore)(nil)
