// Package resolver turns request credentials into a principal. A client
// token, when present, wins over a user id/token pair; user pairs are
// verified against the identity provider through the session cache.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	authmodels "trailmark/internal/auth/models"
	"trailmark/internal/auth/store/session"
	"trailmark/internal/identity"
	usermodels "trailmark/internal/user/models"
	dErrors "trailmark/pkg/domain-errors"
	"trailmark/pkg/platform/sentinel"
)

const tracerName = "trailmark/internal/auth/resolver"

// Credentials are the raw values extracted from the request headers.
// Zero values mean the header was absent.
type Credentials struct {
	ClientToken string
	UserID      string
	UserToken   string
}

// IdentitySource verifies a user token and returns the provider profile.
// The identity client satisfies it.
type IdentitySource interface {
	GetProfile(ctx context.Context, token string) (*identity.Profile, error)
}

// UserWriter refreshes the local profile record on successful verification.
// The user store satisfies it.
type UserWriter interface {
	UpsertProfile(ctx context.Context, id int64, name string, email, avatarURL *string) (*usermodels.User, error)
}

// Metrics is the subset of platform metrics the resolver records.
type Metrics interface {
	IncAuthCacheHit()
	IncAuthCacheMiss()
	ObserveIdentityLatency(d time.Duration)
}

// Resolver authenticates requests against the client-token allow-list or the
// identity provider.
type Resolver struct {
	cache    session.Cache
	identity IdentitySource
	users    UserWriter
	allowed  map[string]struct{}
	ttl      time.Duration
	logger   *slog.Logger
	metrics  Metrics
}

// New constructs a Resolver. clientTokens is the static allow-list of valid
// backend client tokens, loaded once at startup.
func New(cache session.Cache, identitySource IdentitySource, users UserWriter, clientTokens []string, ttl time.Duration, logger *slog.Logger, metrics Metrics) *Resolver {
	allowed := make(map[string]struct{}, len(clientTokens))
	for _, token := range clientTokens {
		if token != "" {
			allowed[token] = struct{}{}
		}
	}
	return &Resolver{
		cache:    cache,
		identity: identitySource,
		users:    users,
		allowed:  allowed,
		ttl:      ttl,
		logger:   logger,
		metrics:  metrics,
	}
}

// Resolve produces the principal for the given credentials. Requests without
// any credentials resolve to Anonymous; endpoints that need more use
// RequireAuth or check the variant themselves.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (authmodels.Principal, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "auth.resolve")
	defer span.End()

	switch {
	case creds.ClientToken != "":
		span.SetAttributes(attribute.String("auth.kind", "client"))
		return r.resolveClient(creds.ClientToken)

	case creds.UserID != "" || creds.UserToken != "":
		span.SetAttributes(attribute.String("auth.kind", "user"))
		if creds.UserID == "" || creds.UserToken == "" {
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "missing required header")
		}
		return r.resolveUser(ctx, creds.UserID, creds.UserToken)

	default:
		span.SetAttributes(attribute.String("auth.kind", "anonymous"))
		return authmodels.Anonymous{}, nil
	}
}

// RequireAuth behaves like Resolve but rejects requests that would otherwise
// resolve to Anonymous.
func (r *Resolver) RequireAuth(ctx context.Context, creds Credentials) (authmodels.Principal, error) {
	principal, err := r.Resolve(ctx, creds)
	if err != nil {
		return nil, err
	}
	if _, ok := principal.(authmodels.Anonymous); ok {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "authentication required")
	}
	return principal, nil
}

func (r *Resolver) resolveClient(token string) (authmodels.Principal, error) {
	if _, ok := r.allowed[token]; !ok {
		return nil, dErrors.New(dErrors.CodeForbidden, "invalid client token")
	}
	return authmodels.Client{Validated: true}, nil
}

func (r *Resolver) resolveUser(ctx context.Context, rawUserID, token string) (authmodels.Principal, error) {
	userID, err := strconv.ParseInt(rawUserID, 10, 64)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "invalid user id")
	}

	key := session.Key(userID, token)
	if cached, err := r.cache.Get(ctx, key); err == nil {
		var user authmodels.User
		if err := json.Unmarshal([]byte(cached), &user); err == nil {
			if r.metrics != nil {
				r.metrics.IncAuthCacheHit()
			}
			return user, nil
		}
		// A corrupt entry falls through to re-verification and is rewritten.
		r.logger.WarnContext(ctx, "discarding corrupt session cache entry", "key", key)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		// Cache backend trouble degrades to provider verification.
		r.logger.WarnContext(ctx, "session cache read failed", "error", err)
	}
	if r.metrics != nil {
		r.metrics.IncAuthCacheMiss()
	}

	start := time.Now()
	profile, err := r.identity.GetProfile(ctx, token)
	if r.metrics != nil {
		r.metrics.ObserveIdentityLatency(time.Since(start))
	}
	if err != nil {
		if errors.Is(err, identity.ErrTokenRejected) {
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "user token rejected")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "identity provider unavailable")
	}
	if profile.ID != userID {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "token does not belong to user")
	}

	record, err := r.users.UpsertProfile(ctx, userID, profile.FullName(), profile.Email, profile.AvatarURL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "refresh user profile")
	}

	principal := authmodels.User{
		ID: userID,
		Profile: authmodels.Profile{
			Name:      record.Name,
			Email:     record.Email,
			AvatarURL: record.AvatarURL,
		},
		Authenticated: true,
	}
	if err := r.writeCache(ctx, key, principal); err != nil {
		// Verification succeeded; a cache write failure only costs the next
		// request a provider round trip.
		r.logger.WarnContext(ctx, "session cache write failed", "error", err)
	}
	return principal, nil
}

func (r *Resolver) writeCache(ctx context.Context, key string, principal authmodels.User) error {
	serialized, err := json.Marshal(principal)
	if err != nil {
		return fmt.Errorf("serialize principal: %w", err)
	}
	return r.cache.Set(ctx, key, string(serialized), r.ttl)
}
