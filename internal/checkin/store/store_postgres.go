package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"trailmark/internal/checkin/models"
	"trailmark/pkg/platform/sentinel"
)

// PostgresStore persists check-ins in PostgreSQL, joining the owner profile
// from the users table on every read.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed check-in store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const checkinsSchema = `
	CREATE TABLE IF NOT EXISTS checkins (
		id        TEXT PRIMARY KEY,
		ts        TIMESTAMPTZ NOT NULL,
		lon       DOUBLE PRECISION NOT NULL,
		lat       DOUBLE PRECISION NOT NULL,
		public    BOOLEAN NOT NULL DEFAULT FALSE,
		place_id  TEXT NOT NULL,
		owner_id  BIGINT NOT NULL,
		comment   TEXT,
		photo_ref TEXT
	);
	CREATE INDEX IF NOT EXISTS checkins_place_ts_idx ON checkins (place_id, ts DESC);
	CREATE INDEX IF NOT EXISTS checkins_owner_place_ts_idx ON checkins (owner_id, place_id, ts)
`

// EnsureSchema creates the checkins table and indexes if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, checkinsSchema); err != nil {
		return fmt.Errorf("ensure checkins schema: %w", err)
	}
	return nil
}

// selectJoined is the shared read projection: one check-in row with the
// owner profile left-joined so a deleted owner still yields the record.
const selectJoined = `
	SELECT c.id, c.ts, c.lon, c.lat, c.public, c.place_id, c.owner_id,
	       c.comment, c.photo_ref,
	       u.id, u.name, u.email, u.avatar_url
	FROM checkins c
	LEFT JOIN users u ON u.id = c.owner_id
`

// Create persists a new check-in. The caller assigns the id.
func (s *PostgresStore) Create(ctx context.Context, checkin *models.Checkin) error {
	query := `
		INSERT INTO checkins (id, ts, lon, lat, public, place_id, owner_id, comment, photo_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var lon, lat float64
	if checkin.Location != nil {
		lon, lat = checkin.Location.Lon, checkin.Location.Lat
	}
	_, err := s.db.ExecContext(ctx, query,
		checkin.ID, checkin.Timestamp, lon, lat, checkin.Public,
		checkin.PlaceID, checkin.OwnerID, checkin.Comment, checkin.PhotoRef)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create checkin: %w", err)
	}
	return nil
}

// FindByID returns the check-in with its owner joined, or sentinel.ErrNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Checkin, error) {
	row := s.db.QueryRowContext(ctx, selectJoined+` WHERE c.id = $1`, id)
	return scanCheckin(row)
}

// Update applies the guestbook fields and returns the updated record.
func (s *PostgresStore) Update(ctx context.Context, id string, update models.Update) (*models.Checkin, error) {
	query := `
		UPDATE checkins SET
			public    = COALESCE($2, public),
			comment   = COALESCE($3, comment),
			photo_ref = COALESCE($4, photo_ref)
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, update.Public, update.Comment, update.PhotoRef)
	if err != nil {
		return nil, fmt.Errorf("update checkin: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update checkin: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, id)
}

// Delete removes the check-in or returns sentinel.ErrNotFound.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM checkins WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete checkin: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete checkin: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// FindByPlace returns the place's check-ins newest first.
func (s *PostgresStore) FindByPlace(ctx context.Context, placeID string, public *bool) ([]*models.Checkin, error) {
	query := selectJoined + `
		WHERE c.place_id = $1 AND ($2::boolean IS NULL OR c.public = $2)
		ORDER BY c.ts DESC
	`
	return s.queryCheckins(ctx, query, placeID, public)
}

// FindByPlaces returns the check-ins across all given places, newest first.
func (s *PostgresStore) FindByPlaces(ctx context.Context, placeIDs []string, public *bool) ([]*models.Checkin, error) {
	if len(placeIDs) == 0 {
		return []*models.Checkin{}, nil
	}
	query := selectJoined + `
		WHERE c.place_id = ANY($1) AND ($2::boolean IS NULL OR c.public = $2)
		ORDER BY c.ts DESC
	`
	return s.queryCheckins(ctx, query, pq.Array(placeIDs), public)
}

// FindByOwner returns the user's check-ins newest first.
func (s *PostgresStore) FindByOwner(ctx context.Context, ownerID int64) ([]*models.Checkin, error) {
	query := selectJoined + ` WHERE c.owner_id = $1 ORDER BY c.ts DESC`
	return s.queryCheckins(ctx, query, ownerID)
}

// ExistsSince reports whether the owner has a check-in at the place with a
// timestamp strictly after the given instant.
func (s *PostgresStore) ExistsSince(ctx context.Context, ownerID int64, placeID string, after time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM checkins
			WHERE owner_id = $1 AND place_id = $2 AND ts > $3
		)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, ownerID, placeID, after).Scan(&exists); err != nil {
		return false, fmt.Errorf("check quarantine window: %w", err)
	}
	return exists, nil
}

// ReassignOwner moves every check-in from one owner to another.
func (s *PostgresStore) ReassignOwner(ctx context.Context, fromID, toID int64) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE checkins SET owner_id = $2 WHERE owner_id = $1`, fromID, toID)
	if err != nil {
		return 0, fmt.Errorf("reassign checkins: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign checkins: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) queryCheckins(ctx context.Context, query string, args ...any) ([]*models.Checkin, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checkins: %w", err)
	}
	defer rows.Close()

	checkins := make([]*models.Checkin, 0)
	for rows.Next() {
		checkin, err := scanCheckin(rows)
		if err != nil {
			return nil, err
		}
		checkins = append(checkins, checkin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkins: %w", err)
	}
	return checkins, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckin(row rowScanner) (*models.Checkin, error) {
	var (
		checkin   models.Checkin
		loc       models.Coordinates
		ownerID   sql.NullInt64
		ownerName sql.NullString
		email     sql.NullString
		avatarURL sql.NullString
	)
	err := row.Scan(
		&checkin.ID, &checkin.Timestamp, &loc.Lon, &loc.Lat, &checkin.Public,
		&checkin.PlaceID, &checkin.OwnerID, &checkin.Comment, &checkin.PhotoRef,
		&ownerID, &ownerName, &email, &avatarURL,
	)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan checkin: %w", err)
	}
	checkin.Location = &loc
	if ownerID.Valid {
		owner := &models.Owner{ID: ownerID.Int64, Name: ownerName.String}
		if email.Valid {
			owner.Email = &email.String
		}
		if avatarURL.Valid {
			owner.AvatarURL = &avatarURL.String
		}
		checkin.Owner = owner
	}
	return &checkin, nil
}

var _ Store = (*PostgresStore)(nil)
