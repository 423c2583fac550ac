// Package service implements the check-in use cases: creation behind the
// validation chain, guestbook updates, deletion, and the place and list
// feeds. Every read goes through the visibility engine before it leaves the
// service.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	authmodels "trailmark/internal/auth/models"
	"trailmark/internal/checkin/models"
	checkinstore "trailmark/internal/checkin/store"
	"trailmark/internal/checkin/visibility"
	"trailmark/internal/places"
	userstore "trailmark/internal/user/store"
	dErrors "trailmark/pkg/domain-errors"
	"trailmark/pkg/platform/audit"
	"trailmark/pkg/platform/sentinel"
	"trailmark/pkg/requestcontext"
)

// membershipLookupLimit caps concurrent user store reads in list aggregates.
const membershipLookupLimit = 8

// Validator runs the creation-time rules.
type Validator interface {
	Validate(ctx context.Context, draft models.Draft, now time.Time) error
}

// ListSource fetches list membership from the place registry.
type ListSource interface {
	GetList(ctx context.Context, id string) (*places.Place, error)
}

// Metrics is the subset of platform metrics the service records.
type Metrics interface {
	IncCheckinCreated()
}

// Service orchestrates check-in reads and writes.
type Service struct {
	checkins  checkinstore.Store
	users     userstore.Store
	lists     ListSource
	validator Validator
	publisher *audit.Publisher
	logger    *slog.Logger
	metrics   Metrics
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator overrides check-in id generation for tests.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// New constructs the check-in service.
func New(checkins checkinstore.Store, users userstore.Store, lists ListSource, validator Validator, publisher *audit.Publisher, logger *slog.Logger, metrics Metrics, opts ...Option) *Service {
	s := &Service{
		checkins:  checkins,
		users:     users,
		lists:     lists,
		validator: validator,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create validates and persists a new check-in owned by the authenticated
// user. The draft's timestamp defaults to the request time. Nothing persists
// when any validation rule fails.
func (s *Service) Create(ctx context.Context, draft models.Draft) (*models.Checkin, error) {
	user, ok := authmodels.AuthenticatedUser(authmodels.FromContext(ctx))
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "check-ins require an authenticated user")
	}
	draft.OwnerID = user.ID

	now := requestcontext.Now(ctx)
	if draft.Timestamp.IsZero() {
		draft.Timestamp = now
	}
	if draft.PlaceID == "" {
		return nil, dErrors.NewValidation(map[string][]string{
			"placeId": {"place id is required"},
		})
	}

	if err := s.validator.Validate(ctx, draft, now); err != nil {
		return nil, err
	}

	location := draft.Location
	checkin := &models.Checkin{
		ID:        s.newID(),
		Timestamp: draft.Timestamp,
		Location:  &location,
		Public:    draft.Public,
		PlaceID:   draft.PlaceID,
		OwnerID:   user.ID,
		Comment:   draft.Comment,
		PhotoRef:  draft.PhotoRef,
	}
	if err := s.checkins.Create(ctx, checkin); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist check-in")
	}
	if err := s.users.AppendCheckinRef(ctx, user.ID, checkin.ID); err != nil {
		// The check-in exists; a stale ref list is repairable and not worth
		// failing the request over.
		s.logger.ErrorContext(ctx, "append check-in ref failed",
			"checkin_id", checkin.ID,
			"user_id", user.ID,
			"error", err,
		)
	}

	if s.metrics != nil {
		s.metrics.IncCheckinCreated()
	}
	s.emit(ctx, audit.ActionCheckinCreated, checkin.ID)

	created, err := s.checkins.FindByID(ctx, checkin.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load created check-in")
	}
	return created, nil
}

// Get returns the check-in as the principal is allowed to see it. Private
// check-ins are forbidden to everyone but the owner and validated clients.
func (s *Service) Get(ctx context.Context, id string) (*models.Checkin, error) {
	checkin, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	principal := authmodels.FromContext(ctx)
	if !visibility.IsReadAllowed(checkin, principal) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not allowed to view this check-in")
	}
	return visibility.Redact(checkin, principal), nil
}

// Update applies guestbook fields. Only the owner and validated clients may
// update; location, timestamp, place and owner never change.
func (s *Service) Update(ctx context.Context, id string, update models.Update) (*models.Checkin, error) {
	checkin, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	principal := authmodels.FromContext(ctx)
	if !visibility.IsWriteAllowed(checkin, principal) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not allowed to modify this check-in")
	}

	updated, err := s.checkins.Update(ctx, id, update)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update check-in")
	}
	s.emit(ctx, audit.ActionCheckinUpdated, id)
	return visibility.Redact(updated, principal), nil
}

// Delete removes the check-in. Only the owner and validated clients may
// delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	checkin, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !visibility.IsWriteAllowed(checkin, authmodels.FromContext(ctx)) {
		return dErrors.New(dErrors.CodeForbidden, "not allowed to modify this check-in")
	}

	if err := s.checkins.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "check-in not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete check-in")
	}
	s.emit(ctx, audit.ActionCheckinDeleted, id)
	return nil
}

// PlaceLog returns the place's check-ins newest first, each redacted for the
// principal. A non-nil public filters by the stored public flag.
func (s *Service) PlaceLog(ctx context.Context, placeID string, public *bool) ([]*models.Checkin, error) {
	checkins, err := s.checkins.FindByPlace(ctx, placeID, public)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load place log")
	}
	return s.redactAll(ctx, checkins), nil
}

// PlaceStats aggregates the check-ins at one place.
func (s *Service) PlaceStats(ctx context.Context, placeID string) (*models.Stats, error) {
	checkins, err := s.checkins.FindByPlace(ctx, placeID, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load place stats")
	}
	return aggregate(checkins), nil
}

// PlaceUsers rolls up the place's check-ins per user. Restricted to
// validated clients.
func (s *Service) PlaceUsers(ctx context.Context, placeID string) ([]models.UserRollup, error) {
	if !authmodels.IsValidatedClient(authmodels.FromContext(ctx)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "client token required")
	}
	checkins, err := s.checkins.FindByPlace(ctx, placeID, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load place users")
	}
	return rollup(checkins), nil
}

// ListLog returns the check-ins across the list's member places, newest
// first, each redacted for the principal.
func (s *Service) ListLog(ctx context.Context, listID string, public *bool) ([]*models.Checkin, error) {
	checkins, err := s.listCheckins(ctx, listID, public)
	if err != nil {
		return nil, err
	}
	return s.redactAll(ctx, checkins), nil
}

// ListStats aggregates check-ins across the list's member places, counting
// only check-ins by users who signed up for the list.
func (s *Service) ListStats(ctx context.Context, listID string) (*models.Stats, error) {
	checkins, err := s.listCheckins(ctx, listID, nil)
	if err != nil {
		return nil, err
	}

	joined, err := s.joinedOwners(ctx, listID, checkins)
	if err != nil {
		return nil, err
	}
	signedUp := checkins[:0]
	for _, c := range checkins {
		if joined[c.OwnerID] {
			signedUp = append(signedUp, c)
		}
	}
	return aggregate(signedUp), nil
}

// ListUsers rolls up the list's check-ins per user. Restricted to validated
// clients.
func (s *Service) ListUsers(ctx context.Context, listID string) ([]models.UserRollup, error) {
	if !authmodels.IsValidatedClient(authmodels.FromContext(ctx)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "client token required")
	}
	checkins, err := s.listCheckins(ctx, listID, nil)
	if err != nil {
		return nil, err
	}
	return rollup(checkins), nil
}

func (s *Service) find(ctx context.Context, id string) (*models.Checkin, error) {
	checkin, err := s.checkins.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "check-in not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load check-in")
	}
	return checkin, nil
}

func (s *Service) listCheckins(ctx context.Context, listID string, public *bool) ([]*models.Checkin, error) {
	list, err := s.lists.GetList(ctx, listID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "list not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "place registry unavailable")
	}

	checkins, err := s.checkins.FindByPlaces(ctx, list.MemberPlaceIDs, public)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load list check-ins")
	}
	return checkins, nil
}

// joinedOwners reports, per distinct owner in the feed, whether that user
// signed up for the list. Lookups fan out with a bounded errgroup.
func (s *Service) joinedOwners(ctx context.Context, listID string, checkins []*models.Checkin) (map[int64]bool, error) {
	owners := make(map[int64]bool)
	for _, c := range checkins {
		owners[c.OwnerID] = false
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(membershipLookupLimit)
	for ownerID := range owners {
		g.Go(func() error {
			user, err := s.users.FindByID(ctx, ownerID)
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			owners[ownerID] = user.HasJoined(listID)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolve list membership")
	}
	return owners, nil
}

func (s *Service) redactAll(ctx context.Context, checkins []*models.Checkin) []*models.Checkin {
	principal := authmodels.FromContext(ctx)
	redacted := make([]*models.Checkin, 0, len(checkins))
	for _, c := range checkins {
		redacted = append(redacted, visibility.Redact(c, principal))
	}
	return redacted
}

func (s *Service) emit(ctx context.Context, action audit.Action, subject string) {
	if s.publisher == nil {
		return
	}
	event := audit.Event{
		Action:    action,
		Subject:   subject,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    requestcontext.DeviceLabel(ctx),
	}
	switch p := authmodels.FromContext(ctx).(type) {
	case authmodels.User:
		event.UserID = p.ID
	case authmodels.Client:
		event.Client = p.Validated
	}
	s.publisher.Emit(ctx, event)
}

func aggregate(checkins []*models.Checkin) *models.Stats {
	stats := &models.Stats{Total: len(checkins)}
	owners := make(map[int64]struct{})
	for _, c := range checkins {
		if c.Public {
			stats.Public++
		} else {
			stats.Private++
		}
		owners[c.OwnerID] = struct{}{}
	}
	stats.DistinctUsers = len(owners)
	return stats
}

// rollup groups a feed per owner. The feed arrives newest first, so the
// first check-in seen per owner carries their most recent visit.
func rollup(checkins []*models.Checkin) []models.UserRollup {
	byOwner := make(map[int64]int)
	order := make([]int64, 0)
	last := make(map[int64]time.Time)
	for _, c := range checkins {
		if _, seen := byOwner[c.OwnerID]; !seen {
			order = append(order, c.OwnerID)
			last[c.OwnerID] = c.Timestamp
		}
		byOwner[c.OwnerID]++
	}

	rollups := make([]models.UserRollup, 0, len(order))
	for _, ownerID := range order {
		rollups = append(rollups, models.UserRollup{
			UserID:   ownerID,
			Count:    byOwner[ownerID],
			LastSeen: last[ownerID],
		})
	}
	return rollups
}
