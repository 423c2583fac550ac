// Package validator enforces the creation-time rules for check-ins: the
// timestamp must not be in the future, the claimed location must be inside
// the place's geofence, and the owner must be outside the quarantine window
// for that place. The rules hit independent backends and run concurrently;
// their failures accumulate per field so the caller sees every violation at
// once.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"trailmark/internal/checkin/models"
	"trailmark/internal/places"
	dErrors "trailmark/pkg/domain-errors"
)

const tracerName = "trailmark/internal/checkin/validator"

// PlaceSource fetches registered place coordinates.
// The place registry client satisfies it.
type PlaceSource interface {
	GetPlace(ctx context.Context, id string) (*places.Place, error)
}

// QuarantineChecker answers whether a recent check-in already exists.
// The check-in store satisfies it.
type QuarantineChecker interface {
	ExistsSince(ctx context.Context, ownerID int64, placeID string, after time.Time) (bool, error)
}

// Metrics is the subset of platform metrics the validator records.
type Metrics interface {
	ObserveRegistryLatency(d time.Duration)
	IncrementValidationFailure(field string)
}

// Validator composes the three creation-time rules.
type Validator struct {
	places      PlaceSource
	checkins    QuarantineChecker
	maxDistance float64
	quarantine  time.Duration
	logger      *slog.Logger
	metrics     Metrics
}

// New constructs a Validator. maxDistance is in meters.
func New(placeSource PlaceSource, checkins QuarantineChecker, maxDistance float64, quarantine time.Duration, logger *slog.Logger, metrics Metrics) *Validator {
	return &Validator{
		places:      placeSource,
		checkins:    checkins,
		maxDistance: maxDistance,
		quarantine:  quarantine,
		logger:      logger,
		metrics:     metrics,
	}
}

// Validate runs all rules against the draft. It returns nil when every rule
// passes, a validation error carrying the per-field failures when any rule
// rejects the draft, and an internal error only when the check-in store
// itself fails. A registry failure during the geofence check rejects the
// draft (fail-closed) instead of surfacing as a server error.
func (v *Validator) Validate(ctx context.Context, draft models.Draft, now time.Time) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "checkin.validate")
	defer span.End()
	span.SetAttributes(
		attribute.String("place.id", draft.PlaceID),
		attribute.Int64("owner.id", draft.OwnerID),
	)

	var (
		mu       sync.Mutex
		failures = make(map[string][]string)
	)
	fail := func(field, reason string) {
		mu.Lock()
		failures[field] = append(failures[field], reason)
		mu.Unlock()
		if v.metrics != nil {
			v.metrics.IncrementValidationFailure(field)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v.checkTemporal(draft, now, fail)
		return nil
	})
	g.Go(func() error {
		v.checkGeofence(ctx, draft, fail)
		return nil
	})
	g.Go(func() error {
		return v.checkQuarantine(ctx, draft, fail)
	})

	if err := g.Wait(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "checkin validation")
	}
	if len(failures) > 0 {
		return dErrors.NewValidation(failures)
	}
	return nil
}

func (v *Validator) checkTemporal(draft models.Draft, now time.Time, fail func(field, reason string)) {
	if draft.Timestamp.After(now) {
		fail("timestamp", "timestamp must not be in the future")
	}
}

func (v *Validator) checkGeofence(ctx context.Context, draft models.Draft, fail func(field, reason string)) {
	start := time.Now()
	place, err := v.places.GetPlace(ctx, draft.PlaceID)
	if v.metrics != nil {
		v.metrics.ObserveRegistryLatency(time.Since(start))
	}
	if err != nil {
		// Fail closed: an unknown place and an unreachable registry both
		// reject the draft rather than leaking a server error.
		v.logger.WarnContext(ctx, "place registry lookup failed, rejecting check-in",
			"place_id", draft.PlaceID,
			"error", err,
		)
		fail("location", "place location could not be verified")
		return
	}
	if len(place.Coordinates) < 2 {
		fail("location", "place has no registered coordinates")
		return
	}

	registered := models.Coordinates{Lon: place.Coordinates[0], Lat: place.Coordinates[1]}
	distance := haversineMeters(draft.Location, registered)
	if distance > v.maxDistance {
		fail("location", fmt.Sprintf("too far from place: %.0fm exceeds the %.0fm limit", distance, v.maxDistance))
	}
}

func (v *Validator) checkQuarantine(ctx context.Context, draft models.Draft, fail func(field, reason string)) error {
	cutoff := draft.Timestamp.Add(-v.quarantine)
	exists, err := v.checkins.ExistsSince(ctx, draft.OwnerID, draft.PlaceID, cutoff)
	if err != nil {
		return fmt.Errorf("quarantine lookup: %w", err)
	}
	if exists {
		fail("timestamp", "already checked in at this place within the quarantine window")
	}
	return nil
}

const earthRadiusMeters = 6371000

// haversineMeters computes the great-circle distance between two WGS84
// points.
func haversineMeters(a, b models.Coordinates) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLon*sinLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
