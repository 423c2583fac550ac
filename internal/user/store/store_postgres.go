package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"trailmark/internal/user/models"
	"trailmark/pkg/platform/sentinel"
)

// PostgresStore persists member profiles in PostgreSQL. List membership and
// check-in refs are kept as text arrays on the row so the whole record stays
// one atomic write.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const usersSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id           BIGINT PRIMARY KEY,
		name         TEXT NOT NULL,
		email        TEXT,
		avatar_url   TEXT,
		joined_lists TEXT[] NOT NULL DEFAULT '{}',
		checkin_refs TEXT[] NOT NULL DEFAULT '{}',
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// EnsureSchema creates the users table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, usersSchema); err != nil {
		return fmt.Errorf("ensure users schema: %w", err)
	}
	return nil
}

// FindByID returns the user or sentinel.ErrNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, name, email, avatar_url, joined_lists, checkin_refs, updated_at
		FROM users WHERE id = $1
	`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// UpsertProfile creates or refreshes the profile fields for id. COALESCE
// keeps the stored email and avatar when the provider sends nothing; list
// membership and check-in refs are untouched.
func (s *PostgresStore) UpsertProfile(ctx context.Context, id int64, name string, email, avatarURL *string) (*models.User, error) {
	query := `
		INSERT INTO users (id, name, email, avatar_url, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			name       = EXCLUDED.name,
			email      = COALESCE(EXCLUDED.email, users.email),
			avatar_url = COALESCE(EXCLUDED.avatar_url, users.avatar_url),
			updated_at = now()
		RETURNING id, name, email, avatar_url, joined_lists, checkin_refs, updated_at
	`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id, name, email, avatarURL))
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return user, nil
}

// Save writes the full record, creating it if absent.
func (s *PostgresStore) Save(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, avatar_url, joined_lists, checkin_refs, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
			name         = EXCLUDED.name,
			email        = EXCLUDED.email,
			avatar_url   = EXCLUDED.avatar_url,
			joined_lists = EXCLUDED.joined_lists,
			checkin_refs = EXCLUDED.checkin_refs,
			updated_at   = now()
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.AvatarURL,
		pq.Array(stringSlice(user.JoinedLists)), pq.Array(stringSlice(user.CheckinRefs)))
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// Delete removes the user. Deleting an absent user is not an error.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// AppendCheckinRef appends a check-in id to the user's ordered refs.
func (s *PostgresStore) AppendCheckinRef(ctx context.Context, id int64, checkinID string) error {
	query := `UPDATE users SET checkin_refs = array_append(checkin_refs, $2) WHERE id = $1`
	return s.mustMatch(ctx, query, "append checkin ref", id, checkinID)
}

// JoinList adds a list id to the user's membership; idempotent.
func (s *PostgresStore) JoinList(ctx context.Context, id int64, listID string) error {
	query := `
		UPDATE users SET joined_lists = array_append(joined_lists, $2)
		WHERE id = $1 AND NOT ($2 = ANY(joined_lists))
	`
	result, err := s.db.ExecContext(ctx, query, id, listID)
	if err != nil {
		return fmt.Errorf("join list: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("join list: %w", err)
	}
	if affected == 0 {
		// Either the user is missing or the membership already exists.
		return s.exists(ctx, id)
	}
	return nil
}

// LeaveList removes a list id from the user's membership; idempotent.
func (s *PostgresStore) LeaveList(ctx context.Context, id int64, listID string) error {
	query := `UPDATE users SET joined_lists = array_remove(joined_lists, $2) WHERE id = $1`
	return s.mustMatch(ctx, query, "leave list", id, listID)
}

// CountByJoinedList counts users signed up for the given list.
func (s *PostgresStore) CountByJoinedList(ctx context.Context, listID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM users WHERE $1 = ANY(joined_lists)`, listID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count list members: %w", err)
	}
	return count, nil
}

// mustMatch runs an UPDATE that must affect the user's row, translating a
// zero-row result into sentinel.ErrNotFound.
func (s *PostgresStore) mustMatch(ctx context.Context, query, op string, id int64, arg string) error {
	result, err := s.db.ExecContext(ctx, query, id, arg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) exists(ctx context.Context, id int64) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = $1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check user exists: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user      models.User
		lists     pq.StringArray
		refs      pq.StringArray
		updatedAt time.Time
	)
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.AvatarURL, &lists, &refs, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.JoinedLists = lists
	user.CheckinRefs = refs
	user.UpdatedAt = updatedAt
	return &user, nil
}

// stringSlice normalizes nil to an empty slice so array columns never store NULL.
func stringSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ Store = (*PostgresStore)(nil)
