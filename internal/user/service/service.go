// Package service implements the member-facing profile use cases: profile
// views with private check-ins hidden from strangers, list membership, the
// client-only stats, and user id migration.
package service

import (
	"context"
	"errors"
	"log/slog"

	authmodels "trailmark/internal/auth/models"
	checkinmodels "trailmark/internal/checkin/models"
	checkinstore "trailmark/internal/checkin/store"
	"trailmark/internal/checkin/visibility"
	"trailmark/internal/places"
	"trailmark/internal/user/models"
	userstore "trailmark/internal/user/store"
	dErrors "trailmark/pkg/domain-errors"
	"trailmark/pkg/platform/audit"
	"trailmark/pkg/platform/sentinel"
	"trailmark/pkg/requestcontext"
)

// ListSource verifies that a list exists before a user joins it.
type ListSource interface {
	GetList(ctx context.Context, id string) (*places.Place, error)
}

// Service orchestrates profile reads and membership writes.
type Service struct {
	users     userstore.Store
	checkins  checkinstore.Store
	lists     ListSource
	publisher *audit.Publisher
	logger    *slog.Logger
}

// New constructs the user service.
func New(users userstore.Store, checkins checkinstore.Store, lists ListSource, publisher *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{
		users:     users,
		checkins:  checkins,
		lists:     lists,
		publisher: publisher,
		logger:    logger,
	}
}

// Profile is the view of a user returned to a requester. Email is only
// present for the owner and validated clients, and CheckinRefs hides private
// check-ins from everyone else.
type Profile struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Email       *string  `json:"email,omitempty"`
	AvatarURL   *string  `json:"avatarUrl,omitempty"`
	JoinedLists []string `json:"joinedLists"`
	CheckinRefs []string `json:"checkinRefs"`
}

// GetProfile returns the user's profile shaped for the requesting principal.
func (s *Service) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		ID:          user.ID,
		Name:        user.Name,
		AvatarURL:   user.AvatarURL,
		JoinedLists: user.JoinedLists,
		CheckinRefs: user.CheckinRefs,
	}
	if s.isPrivileged(ctx, id) {
		profile.Email = user.Email
		return profile, nil
	}

	refs, err := s.publicCheckinRefs(ctx, user)
	if err != nil {
		return nil, err
	}
	profile.CheckinRefs = refs
	return profile, nil
}

// Log returns the user's check-ins newest first. Non-owners only see the
// ones they are allowed to read, redacted.
func (s *Service) Log(ctx context.Context, id int64) ([]*checkinmodels.Checkin, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	checkins, err := s.checkins.FindByOwner(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load user log")
	}

	principal := authmodels.FromContext(ctx)
	visible := make([]*checkinmodels.Checkin, 0, len(checkins))
	for _, c := range checkins {
		if visibility.IsReadAllowed(c, principal) {
			visible = append(visible, visibility.Redact(c, principal))
		}
	}
	return visible, nil
}

// Stats aggregates the user's check-ins. Restricted to validated clients.
func (s *Service) Stats(ctx context.Context, id int64) (*checkinmodels.Stats, error) {
	if !authmodels.IsValidatedClient(authmodels.FromContext(ctx)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "client token required")
	}
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	checkins, err := s.checkins.FindByOwner(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load user stats")
	}

	stats := &checkinmodels.Stats{Total: len(checkins)}
	if len(checkins) > 0 {
		stats.DistinctUsers = 1
	}
	for _, c := range checkins {
		if c.Public {
			stats.Public++
		} else {
			stats.Private++
		}
	}
	return stats, nil
}

// JoinList signs the authenticated user up for a list after verifying the
// list exists. Idempotent.
func (s *Service) JoinList(ctx context.Context, listID string) (*models.User, error) {
	user, err := s.requireSelf(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.verifyList(ctx, listID); err != nil {
		return nil, err
	}

	if err := s.users.JoinList(ctx, user.ID, listID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "join list")
	}
	s.emit(ctx, audit.ActionListJoined, listID, user.ID)
	return s.find(ctx, user.ID)
}

// LeaveList removes the authenticated user from a list. Idempotent.
func (s *Service) LeaveList(ctx context.Context, listID string) (*models.User, error) {
	user, err := s.requireSelf(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.users.LeaveList(ctx, user.ID, listID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "leave list")
	}
	s.emit(ctx, audit.ActionListLeft, listID, user.ID)
	return s.find(ctx, user.ID)
}

// Migrate moves everything owned by the source user id onto the target id:
// check-ins are re-owned, list memberships and check-in refs merge without
// duplicates, and the source record is deleted. Restricted to validated
// clients; used when the identity provider renumbers an account.
func (s *Service) Migrate(ctx context.Context, fromID, toID int64) (*models.User, error) {
	if !authmodels.IsValidatedClient(authmodels.FromContext(ctx)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "client token required")
	}
	if fromID == toID {
		return nil, dErrors.New(dErrors.CodeBadRequest, "source and target user ids are equal")
	}

	source, err := s.find(ctx, fromID)
	if err != nil {
		return nil, err
	}

	target, err := s.users.FindByID(ctx, toID)
	if errors.Is(err, sentinel.ErrNotFound) {
		// The target has not authenticated yet; seed it from the source.
		target = &models.User{
			ID:        toID,
			Name:      source.Name,
			Email:     source.Email,
			AvatarURL: source.AvatarURL,
		}
	} else if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load target user")
	}

	target.JoinedLists = mergeUnique(target.JoinedLists, source.JoinedLists)
	target.CheckinRefs = mergeUnique(target.CheckinRefs, source.CheckinRefs)

	moved, err := s.checkins.ReassignOwner(ctx, fromID, toID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "re-own check-ins")
	}
	if err := s.users.Save(ctx, target); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save target user")
	}
	if err := s.users.Delete(ctx, fromID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "delete source user")
	}

	s.logger.InfoContext(ctx, "migrated user",
		"from_user_id", fromID,
		"to_user_id", toID,
		"checkins_moved", moved,
	)
	s.emit(ctx, audit.ActionUserMigrated, "", toID)
	return s.find(ctx, toID)
}

func (s *Service) find(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load user")
	}
	return user, nil
}

// requireSelf returns the authenticated user behind the request.
func (s *Service) requireSelf(ctx context.Context) (authmodels.User, error) {
	user, ok := authmodels.AuthenticatedUser(authmodels.FromContext(ctx))
	if !ok {
		return authmodels.User{}, dErrors.New(dErrors.CodeUnauthenticated, "list membership requires an authenticated user")
	}
	return user, nil
}

// isPrivileged reports whether the principal may see the user's private
// fields: the user themselves or a validated client.
func (s *Service) isPrivileged(ctx context.Context, id int64) bool {
	principal := authmodels.FromContext(ctx)
	if authmodels.IsValidatedClient(principal) {
		return true
	}
	user, ok := authmodels.AuthenticatedUser(principal)
	return ok && user.ID == id
}

// publicCheckinRefs filters the user's refs down to public check-ins,
// preserving creation order.
func (s *Service) publicCheckinRefs(ctx context.Context, user *models.User) ([]string, error) {
	checkins, err := s.checkins.FindByOwner(ctx, user.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load user check-ins")
	}
	public := make(map[string]struct{}, len(checkins))
	for _, c := range checkins {
		if c.Public {
			public[c.ID] = struct{}{}
		}
	}

	refs := make([]string, 0, len(public))
	for _, ref := range user.CheckinRefs {
		if _, ok := public[ref]; ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func (s *Service) verifyList(ctx context.Context, listID string) error {
	_, err := s.lists.GetList(ctx, listID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "list not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstream, "place registry unavailable")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, subject string, userID int64) {
	if s.publisher == nil {
		return
	}
	s.publisher.Emit(ctx, audit.Event{
		Action:    action,
		UserID:    userID,
		Client:    authmodels.IsValidatedClient(authmodels.FromContext(ctx)),
		Subject:   subject,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    requestcontext.DeviceLabel(ctx),
	})
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, v := range append(append([]string{}, a...), b...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		merged = append(merged, v)
	}
	return merged
}
