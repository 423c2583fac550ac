// Package store persists check-ins. Reads return the owner profile joined
// onto the record so callers never chase a second lookup; feeds are sorted
// newest first.
package store

import (
	"context"
	"time"

	"trailmark/internal/checkin/models"
	usermodels "trailmark/internal/user/models"
)

// Store is the persistence contract for check-ins.
// Implementations: InMemoryStore and PostgresStore.
type Store interface {
	// Create persists a new check-in. The caller assigns the id.
	Create(ctx context.Context, checkin *models.Checkin) error

	// FindByID returns the check-in with its owner joined, or
	// sentinel.ErrNotFound.
	FindByID(ctx context.Context, id string) (*models.Checkin, error)

	// Update applies the guestbook fields and returns the updated record
	// with its owner joined. Location, timestamp, place and owner do not
	// change.
	Update(ctx context.Context, id string, update models.Update) (*models.Checkin, error)

	// Delete removes the check-in or returns sentinel.ErrNotFound.
	Delete(ctx context.Context, id string) error

	// FindByPlace returns the place's check-ins newest first. A non-nil
	// public filters by the public flag.
	FindByPlace(ctx context.Context, placeID string, public *bool) ([]*models.Checkin, error)

	// FindByPlaces returns the check-ins across all given places, newest
	// first. A non-nil public filters by the public flag.
	FindByPlaces(ctx context.Context, placeIDs []string, public *bool) ([]*models.Checkin, error)

	// FindByOwner returns the user's check-ins newest first.
	FindByOwner(ctx context.Context, ownerID int64) ([]*models.Checkin, error)

	// ExistsSince reports whether the owner has a check-in at the place
	// with a timestamp strictly after the given instant.
	ExistsSince(ctx context.Context, ownerID int64, placeID string, after time.Time) (bool, error)

	// ReassignOwner moves every check-in from one owner to another and
	// returns how many records moved.
	ReassignOwner(ctx context.Context, fromID, toID int64) (int, error)
}

// OwnerSource resolves owner profiles for the read-side join performed by
// InMemoryStore. The user store satisfies it; PostgresStore joins in SQL.
type OwnerSource interface {
	FindByID(ctx context.Context, id int64) (*usermodels.User, error)
}

// OwnerFromUser projects a user record onto the check-in owner shape.
func OwnerFromUser(u *usermodels.User) *models.Owner {
	if u == nil {
		return nil
	}
	return &models.Owner{ID: u.ID, Name: u.Name, Email: u.Email, AvatarURL: u.AvatarURL}
}
