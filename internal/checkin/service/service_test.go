package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	authmodels "trailmark/internal/auth/models"
	"trailmark/internal/checkin/models"
	"trailmark/internal/checkin/service"
	checkinstore "trailmark/internal/checkin/store"
	"trailmark/internal/places"
	userstore "trailmark/internal/user/store"
	dErrors "trailmark/pkg/domain-errors"
	"trailmark/pkg/platform/audit"
	"trailmark/pkg/platform/sentinel"
	"trailmark/pkg/requestcontext"
)

// stubValidator approves or rejects every draft.
type stubValidator struct {
	err error
}

func (v *stubValidator) Validate(ctx context.Context, draft models.Draft, now time.Time) error {
	return v.err
}

// fakeListSource serves one canned list.
type fakeListSource struct {
	list *places.Place
	err  error
}

func (f *fakeListSource) GetList(ctx context.Context, id string) (*places.Place, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

type ServiceSuite struct {
	suite.Suite
	users     *userstore.InMemoryStore
	checkins  *checkinstore.InMemoryStore
	lists     *fakeListSource
	validator *stubValidator
	sink      *audit.MemorySink
	service   *service.Service
	now       time.Time
	nextID    int
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.users = userstore.NewInMemory()
	s.checkins = checkinstore.NewInMemory(s.users)
	s.lists = &fakeListSource{
		list: &places.Place{ID: "list-a", MemberPlaceIDs: []string{"place-1", "place-2"}},
	}
	s.validator = &stubValidator{}
	s.sink = audit.NewMemorySink()
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.nextID = 0

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = service.New(s.checkins, s.users, s.lists, s.validator, nil, logger, nil,
		service.WithIDGenerator(func() string {
			s.nextID++
			return fmt.Sprintf("checkin-%d", s.nextID)
		}))

	ctx := context.Background()
	_, err := s.users.UpsertProfile(ctx, 1234, "Ola Nordmann", nil, nil)
	s.Require().NoError(err)
	_, err = s.users.UpsertProfile(ctx, 5678, "Kari Nordmann", nil, nil)
	s.Require().NoError(err)
}

func (s *ServiceSuite) asUser(id int64) context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	return authmodels.WithPrincipal(ctx, authmodels.User{ID: id, Authenticated: true})
}

func (s *ServiceSuite) asClient() context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	return authmodels.WithPrincipal(ctx, authmodels.Client{Validated: true})
}

func (s *ServiceSuite) asAnonymous() context.Context {
	return authmodels.WithPrincipal(context.Background(), authmodels.Anonymous{})
}

func (s *ServiceSuite) draft(placeID string, public bool) models.Draft {
	return models.Draft{
		Timestamp: s.now.Add(-time.Minute),
		Location:  models.Coordinates{Lon: 8.3, Lat: 61.6},
		Public:    public,
		PlaceID:   placeID,
	}
}

func (s *ServiceSuite) create(ownerID int64, placeID string, public bool) *models.Checkin {
	checkin, err := s.service.Create(s.asUser(ownerID), s.draft(placeID, public))
	s.Require().NoError(err)
	return checkin
}

func (s *ServiceSuite) TestCreatePersistsAndAppendsRef() {
	checkin := s.create(1234, "place-1", true)

	s.Equal("checkin-1", checkin.ID)
	s.Equal(int64(1234), checkin.OwnerID)
	s.Require().NotNil(checkin.Owner)
	s.Equal("Ola Nordmann", checkin.Owner.Name)

	user, err := s.users.FindByID(context.Background(), 1234)
	s.Require().NoError(err)
	s.Equal([]string{"checkin-1"}, user.CheckinRefs)
}

func (s *ServiceSuite) TestCreateDefaultsTimestampToRequestTime() {
	draft := s.draft("place-1", false)
	draft.Timestamp = time.Time{}

	checkin, err := s.service.Create(s.asUser(1234), draft)
	s.Require().NoError(err)
	s.True(checkin.Timestamp.Equal(s.now))
}

func (s *ServiceSuite) TestCreateRequiresAuthenticatedUser() {
	for _, ctx := range []context.Context{s.asAnonymous(), s.asClient()} {
		_, err := s.service.Create(ctx, s.draft("place-1", false))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	}
}

func (s *ServiceSuite) TestCreateRejectedDraftDoesNotPersist() {
	s.validator.err = dErrors.NewValidation(map[string][]string{
		"location": {"too far from place"},
	})

	_, err := s.service.Create(s.asUser(1234), s.draft("place-1", false))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	stored, err := s.checkins.FindByOwner(context.Background(), 1234)
	s.Require().NoError(err)
	s.Empty(stored)

	user, err := s.users.FindByID(context.Background(), 1234)
	s.Require().NoError(err)
	s.Empty(user.CheckinRefs)
}

func (s *ServiceSuite) TestGetRedactsForPrincipal() {
	s.create(1234, "place-1", true)

	checkin, err := s.service.Get(s.asUser(5678), "checkin-1")
	s.Require().NoError(err)
	s.Require().NotNil(checkin.Owner)
	s.Nil(checkin.Owner.Email)
}

func (s *ServiceSuite) TestGetPrivateForbiddenToStranger() {
	s.create(1234, "place-1", false)

	_, err := s.service.Get(s.asUser(5678), "checkin-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	// Owner and client still see it.
	_, err = s.service.Get(s.asUser(1234), "checkin-1")
	s.Require().NoError(err)
	_, err = s.service.Get(s.asClient(), "checkin-1")
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestGetMissingCheckinIsNotFound() {
	_, err := s.service.Get(s.asClient(), "nope")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestUpdateByOwnerAndClient() {
	s.create(1234, "place-1", false)

	public := true
	updated, err := s.service.Update(s.asUser(1234), "checkin-1", models.Update{Public: &public})
	s.Require().NoError(err)
	s.True(updated.Public)

	comment := "via backend"
	updated, err = s.service.Update(s.asClient(), "checkin-1", models.Update{Comment: &comment})
	s.Require().NoError(err)
	s.Require().NotNil(updated.Comment)
}

func (s *ServiceSuite) TestUpdateForbiddenToNonOwner() {
	s.create(1234, "place-1", true)

	public := false
	_, err := s.service.Update(s.asUser(5678), "checkin-1", models.Update{Public: &public})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.Update(s.asAnonymous(), "checkin-1", models.Update{Public: &public})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestDelete() {
	s.create(1234, "place-1", true)

	s.Require().Error(s.service.Delete(s.asUser(5678), "checkin-1"))

	s.Require().NoError(s.service.Delete(s.asUser(1234), "checkin-1"))
	_, err := s.service.Get(s.asUser(1234), "checkin-1")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestPlaceLogRedactsPerPrincipal() {
	s.create(1234, "place-1", true)
	s.create(1234, "place-1", false)

	log, err := s.service.PlaceLog(s.asAnonymous(), "place-1", nil)
	s.Require().NoError(err)
	s.Require().Len(log, 2)
	for _, c := range log {
		if c.Public {
			s.NotNil(c.Owner)
			s.Nil(c.Owner.Email)
		} else {
			s.Nil(c.Owner)
			s.Nil(c.Location)
		}
	}
}

func (s *ServiceSuite) TestPlaceLogPublicFilter() {
	s.create(1234, "place-1", true)
	s.create(5678, "place-1", false)

	public := true
	log, err := s.service.PlaceLog(s.asClient(), "place-1", &public)
	s.Require().NoError(err)
	s.Require().Len(log, 1)
	s.True(log[0].Public)
}

func (s *ServiceSuite) TestPlaceStats() {
	s.create(1234, "place-1", true)
	s.create(1234, "place-1", false)
	s.create(5678, "place-1", true)

	stats, err := s.service.PlaceStats(s.asAnonymous(), "place-1")
	s.Require().NoError(err)
	s.Equal(3, stats.Total)
	s.Equal(2, stats.Public)
	s.Equal(1, stats.Private)
	s.Equal(2, stats.DistinctUsers)
}

func (s *ServiceSuite) TestPlaceUsersClientOnly() {
	s.create(1234, "place-1", true)
	s.create(1234, "place-1", true)
	s.create(5678, "place-1", false)

	_, err := s.service.PlaceUsers(s.asUser(1234), "place-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	rollups, err := s.service.PlaceUsers(s.asClient(), "place-1")
	s.Require().NoError(err)
	s.Require().Len(rollups, 2)
	for _, r := range rollups {
		if r.UserID == 1234 {
			s.Equal(2, r.Count)
		}
	}
}

func (s *ServiceSuite) TestListLogSpansMemberPlaces() {
	s.create(1234, "place-1", true)
	s.create(5678, "place-2", true)
	s.create(1234, "place-3", true) // not in the list

	log, err := s.service.ListLog(s.asClient(), "list-a", nil)
	s.Require().NoError(err)
	s.Len(log, 2)
}

func (s *ServiceSuite) TestListLogUnknownList() {
	s.lists.err = sentinel.ErrNotFound

	_, err := s.service.ListLog(s.asClient(), "list-x", nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListStatsCountsOnlySignedUpUsers() {
	ctx := context.Background()
	s.Require().NoError(s.users.JoinList(ctx, 1234, "list-a"))

	s.create(1234, "place-1", true)
	s.create(5678, "place-2", true) // has not joined the list

	stats, err := s.service.ListStats(s.asClient(), "list-a")
	s.Require().NoError(err)
	s.Equal(1, stats.Total)
	s.Equal(1, stats.DistinctUsers)
}

func (s *ServiceSuite) TestListUsersClientOnly() {
	s.create(1234, "place-1", true)

	_, err := s.service.ListUsers(s.asAnonymous(), "list-a")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	rollups, err := s.service.ListUsers(s.asClient(), "list-a")
	s.Require().NoError(err)
	s.Len(rollups, 1)
}

func (s *ServiceSuite) TestAuditEventsAreEmitted() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := audit.NewPublisher(s.sink, logger)
	svc := service.New(s.checkins, s.users, s.lists, s.validator, publisher, logger, nil,
		service.WithIDGenerator(func() string { return "checkin-audit" }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = publisher.Run(ctx) }()

	_, err := svc.Create(s.asUser(1234), s.draft("place-1", true))
	s.Require().NoError(err)
	s.Require().NoError(svc.Delete(s.asUser(1234), "checkin-audit"))

	s.Require().Eventually(func() bool {
		return len(s.sink.Events()) == 2
	}, time.Second, 10*time.Millisecond)

	events := s.sink.Events()
	s.Equal(audit.ActionCheckinCreated, events[0].Action)
	s.Equal("checkin-audit", events[0].Subject)
	s.Equal(int64(1234), events[0].UserID)
	s.Equal(audit.ActionCheckinDeleted, events[1].Action)
}
