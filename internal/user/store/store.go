// Package store persists member profiles. Implementations must keep each
// mutation atomic per user record; two concurrent upserts for the same user
// may race, with last write wins (no merge conflict detection).
package store

import (
	"context"

	"trailmark/internal/user/models"
)

// Store is the narrow persistence contract for member profiles.
// Implementations: InMemoryStore and PostgresStore.
type Store interface {
	// FindByID returns the user or sentinel.ErrNotFound.
	FindByID(ctx context.Context, id int64) (*models.User, error)

	// UpsertProfile creates the user if absent and refreshes the profile
	// fields if present. Name is always overwritten; email and avatar are
	// only overwritten when non-nil. List membership and check-in refs are
	// preserved. Returns the resulting record.
	UpsertProfile(ctx context.Context, id int64, name string, email, avatarURL *string) (*models.User, error)

	// Save writes the full record, creating it if absent.
	Save(ctx context.Context, user *models.User) error

	// Delete removes the user. Deleting an absent user is not an error.
	Delete(ctx context.Context, id int64) error

	// AppendCheckinRef appends a check-in id to the user's ordered refs.
	AppendCheckinRef(ctx context.Context, id int64, checkinID string) error

	// JoinList adds a list id to the user's membership; idempotent.
	JoinList(ctx context.Context, id int64, listID string) error

	// LeaveList removes a list id from the user's membership; idempotent.
	LeaveList(ctx context.Context, id int64, listID string) error

	// CountByJoinedList counts users signed up for the given list.
	CountByJoinedList(ctx context.Context, listID string) (int, error)
}
