package validator_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trailmark/internal/checkin/models"
	checkinstore "trailmark/internal/checkin/store"
	"trailmark/internal/checkin/validator"
	"trailmark/internal/places"
	userstore "trailmark/internal/user/store"
	dErrors "trailmark/pkg/domain-errors"
	"trailmark/pkg/platform/sentinel"
)

// fakePlaceSource serves one canned place or a canned error.
type fakePlaceSource struct {
	place *places.Place
	err   error
}

func (f *fakePlaceSource) GetPlace(ctx context.Context, id string) (*places.Place, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.place, nil
}

// failingQuarantineChecker simulates a broken check-in store.
type failingQuarantineChecker struct{}

func (failingQuarantineChecker) ExistsSince(ctx context.Context, ownerID int64, placeID string, after time.Time) (bool, error) {
	return false, sentinel.ErrUnavailable
}

const (
	maxDistance = 200.0
	quarantine  = 86400 * time.Second
	placeLon    = 8.3
	placeLat    = 61.6
)

type ValidatorSuite struct {
	suite.Suite
	placeSource *fakePlaceSource
	checkins    *checkinstore.InMemoryStore
	validator   *validator.Validator
	now         time.Time
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) SetupTest() {
	s.placeSource = &fakePlaceSource{
		place: &places.Place{ID: "place-1", Coordinates: []float64{placeLon, placeLat}},
	}
	s.checkins = checkinstore.NewInMemory(userstore.NewInMemory())
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.validator = s.newValidator(s.checkins)
}

func (s *ValidatorSuite) newValidator(checkins validator.QuarantineChecker) *validator.Validator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return validator.New(s.placeSource, checkins, maxDistance, quarantine, logger, nil)
}

func (s *ValidatorSuite) draft() models.Draft {
	return models.Draft{
		Timestamp: s.now.Add(-time.Minute),
		Location:  models.Coordinates{Lon: placeLon, Lat: placeLat},
		PlaceID:   "place-1",
		OwnerID:   1234,
	}
}

// latitudeOffset returns the degrees of latitude that span the given
// great-circle distance.
func latitudeOffset(meters float64) float64 {
	return meters / 6371000 * 180 / math.Pi
}

func (s *ValidatorSuite) fieldsOf(err error) map[string][]string {
	s.Require().Error(err)
	s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation), "expected validation error, got %v", err)
	return dErrors.FieldsOf(err)
}

func (s *ValidatorSuite) TestValidDraftPasses() {
	err := s.validator.Validate(context.Background(), s.draft(), s.now)
	s.Require().NoError(err)
}

func (s *ValidatorSuite) TestFutureTimestampFails() {
	draft := s.draft()
	draft.Timestamp = s.now.Add(time.Minute)

	fields := s.fieldsOf(s.validator.Validate(context.Background(), draft, s.now))
	s.Contains(fields, "timestamp")
}

func (s *ValidatorSuite) TestGeofenceBoundary() {
	s.Run("at registered coordinates", func() {
		err := s.validator.Validate(context.Background(), s.draft(), s.now)
		s.NoError(err)
	})

	s.Run("201 meters away fails", func() {
		draft := s.draft()
		draft.Location.Lat = placeLat + latitudeOffset(201)

		fields := s.fieldsOf(s.validator.Validate(context.Background(), draft, s.now))
		s.Contains(fields, "location")
	})

	s.Run("199 meters away passes", func() {
		draft := s.draft()
		draft.Location.Lat = placeLat + latitudeOffset(199)

		s.NoError(s.validator.Validate(context.Background(), draft, s.now))
	})
}

func (s *ValidatorSuite) TestRegistryFailureFailsClosed() {
	s.placeSource.err = sentinel.ErrUnavailable

	err := s.validator.Validate(context.Background(), s.draft(), s.now)
	fields := s.fieldsOf(err)
	s.Contains(fields, "location")
	s.False(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ValidatorSuite) TestUnknownPlaceFailsClosed() {
	s.placeSource.err = sentinel.ErrNotFound

	fields := s.fieldsOf(s.validator.Validate(context.Background(), s.draft(), s.now))
	s.Contains(fields, "location")
}

func (s *ValidatorSuite) TestQuarantineWindow() {
	seed := func(at time.Time) {
		s.Require().NoError(s.checkins.Create(context.Background(), &models.Checkin{
			ID:        "existing-" + at.String(),
			Timestamp: at,
			Location:  &models.Coordinates{Lon: placeLon, Lat: placeLat},
			PlaceID:   "place-1",
			OwnerID:   1234,
		}))
	}
	draft := s.draft()

	s.Run("86399 seconds apart fails", func() {
		seed(draft.Timestamp.Add(-86399 * time.Second))

		fields := s.fieldsOf(s.validator.Validate(context.Background(), draft, s.now))
		s.Contains(fields, "timestamp")
	})

	s.Run("86401 seconds apart passes", func() {
		s.SetupTest()
		draft := s.draft()
		seed(draft.Timestamp.Add(-86401 * time.Second))

		s.NoError(s.validator.Validate(context.Background(), draft, s.now))
	})

	s.Run("other owner at same place passes", func() {
		s.SetupTest()
		draft := s.draft()
		s.Require().NoError(s.checkins.Create(context.Background(), &models.Checkin{
			ID:        "theirs",
			Timestamp: draft.Timestamp.Add(-time.Hour),
			PlaceID:   "place-1",
			OwnerID:   5678,
		}))

		s.NoError(s.validator.Validate(context.Background(), draft, s.now))
	})
}

func (s *ValidatorSuite) TestFailuresAccumulateAcrossRules() {
	s.Require().NoError(s.checkins.Create(context.Background(), &models.Checkin{
		ID:        "existing",
		Timestamp: s.now.Add(-time.Hour),
		PlaceID:   "place-1",
		OwnerID:   1234,
	}))

	draft := s.draft()
	draft.Timestamp = s.now.Add(time.Minute)
	draft.Location.Lat = placeLat + latitudeOffset(500)

	fields := s.fieldsOf(s.validator.Validate(context.Background(), draft, s.now))
	s.Contains(fields, "location")
	s.Require().Contains(fields, "timestamp")
	// Future timestamp and quarantine both report on the timestamp field.
	s.Len(fields["timestamp"], 2)
}

func (s *ValidatorSuite) TestStoreFailureIsInternal() {
	v := s.newValidator(failingQuarantineChecker{})

	err := v.Validate(context.Background(), s.draft(), s.now)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.False(dErrors.HasCode(err, dErrors.CodeValidation))
}
