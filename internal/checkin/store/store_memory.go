package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"trailmark/internal/checkin/models"
	"trailmark/pkg/platform/sentinel"
)

// InMemoryStore implements Store with a mutex-guarded map, joining owners
// through an OwnerSource on read. Suited to tests and single-instance
// development; use PostgresStore in production.
type InMemoryStore struct {
	mu       sync.RWMutex
	checkins map[string]*models.Checkin
	owners   OwnerSource
}

// NewInMemory creates an empty in-memory check-in store.
func NewInMemory(owners OwnerSource) *InMemoryStore {
	return &InMemoryStore{
		checkins: make(map[string]*models.Checkin),
		owners:   owners,
	}
}

// Create persists a new check-in. The caller assigns the id.
func (s *InMemoryStore) Create(ctx context.Context, checkin *models.Checkin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.checkins[checkin.ID]; ok {
		return sentinel.ErrConflict
	}
	stored := checkin.Clone()
	stored.Owner = nil // joined on read
	s.checkins[checkin.ID] = stored
	return nil
}

// FindByID returns the check-in with its owner joined, or sentinel.ErrNotFound.
func (s *InMemoryStore) FindByID(ctx context.Context, id string) (*models.Checkin, error) {
	s.mu.RLock()
	checkin, ok := s.checkins[id]
	var out *models.Checkin
	if ok {
		out = checkin.Clone()
	}
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.join(ctx, out)
}

// Update applies the guestbook fields and returns the updated record.
func (s *InMemoryStore) Update(ctx context.Context, id string, update models.Update) (*models.Checkin, error) {
	s.mu.Lock()
	checkin, ok := s.checkins[id]
	if !ok {
		s.mu.Unlock()
		return nil, sentinel.ErrNotFound
	}
	if update.Public != nil {
		checkin.Public = *update.Public
	}
	if update.Comment != nil {
		checkin.Comment = update.Comment
	}
	if update.PhotoRef != nil {
		checkin.PhotoRef = update.PhotoRef
	}
	out := checkin.Clone()
	s.mu.Unlock()

	return s.join(ctx, out)
}

// Delete removes the check-in or returns sentinel.ErrNotFound.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.checkins[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.checkins, id)
	return nil
}

// FindByPlace returns the place's check-ins newest first.
func (s *InMemoryStore) FindByPlace(ctx context.Context, placeID string, public *bool) ([]*models.Checkin, error) {
	return s.findWhere(ctx, func(c *models.Checkin) bool {
		return c.PlaceID == placeID && matchPublic(c, public)
	})
}

// FindByPlaces returns the check-ins across all given places, newest first.
func (s *InMemoryStore) FindByPlaces(ctx context.Context, placeIDs []string, public *bool) ([]*models.Checkin, error) {
	wanted := make(map[string]struct{}, len(placeIDs))
	for _, id := range placeIDs {
		wanted[id] = struct{}{}
	}
	return s.findWhere(ctx, func(c *models.Checkin) bool {
		_, ok := wanted[c.PlaceID]
		return ok && matchPublic(c, public)
	})
}

// FindByOwner returns the user's check-ins newest first.
func (s *InMemoryStore) FindByOwner(ctx context.Context, ownerID int64) ([]*models.Checkin, error) {
	return s.findWhere(ctx, func(c *models.Checkin) bool {
		return c.OwnerID == ownerID
	})
}

// ExistsSince reports whether the owner has a check-in at the place with a
// timestamp strictly after the given instant.
func (s *InMemoryStore) ExistsSince(ctx context.Context, ownerID int64, placeID string, after time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.checkins {
		if c.OwnerID == ownerID && c.PlaceID == placeID && c.Timestamp.After(after) {
			return true, nil
		}
	}
	return false, nil
}

// ReassignOwner moves every check-in from one owner to another.
func (s *InMemoryStore) ReassignOwner(ctx context.Context, fromID, toID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := 0
	for _, c := range s.checkins {
		if c.OwnerID == fromID {
			c.OwnerID = toID
			moved++
		}
	}
	return moved, nil
}

func (s *InMemoryStore) findWhere(ctx context.Context, match func(*models.Checkin) bool) ([]*models.Checkin, error) {
	s.mu.RLock()
	found := make([]*models.Checkin, 0)
	for _, c := range s.checkins {
		if match(c) {
			found = append(found, c.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(found, func(i, j int) bool {
		return found[i].Timestamp.After(found[j].Timestamp)
	})

	joined := make([]*models.Checkin, 0, len(found))
	for _, c := range found {
		withOwner, err := s.join(ctx, c)
		if err != nil {
			return nil, err
		}
		joined = append(joined, withOwner)
	}
	return joined, nil
}

// join attaches the owner profile to an already-copied check-in. A missing
// owner record leaves Owner nil rather than failing the read.
func (s *InMemoryStore) join(ctx context.Context, checkin *models.Checkin) (*models.Checkin, error) {
	user, err := s.owners.FindByID(ctx, checkin.OwnerID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return checkin, nil
	}
	if err != nil {
		return nil, err
	}
	checkin.Owner = OwnerFromUser(user)
	return checkin, nil
}

func matchPublic(c *models.Checkin, public *bool) bool {
	return public == nil || c.Public == *public
}

var _ Store = (*InMemoryStore)(nil)
