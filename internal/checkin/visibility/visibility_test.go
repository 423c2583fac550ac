package visibility_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmodels "trailmark/internal/auth/models"
	"trailmark/internal/checkin/models"
	"trailmark/internal/checkin/visibility"
)

func strPtr(v string) *string { return &v }

func sampleCheckin(public bool) *models.Checkin {
	return &models.Checkin{
		ID:        "c1",
		Timestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Location:  &models.Coordinates{Lon: 8.3, Lat: 61.6},
		Public:    public,
		PlaceID:   "place-1",
		OwnerID:   1234,
		Owner: &models.Owner{
			ID:        1234,
			Name:      "Ola Nordmann",
			Email:     strPtr("ola@example.org"),
			AvatarURL: strPtr("https://img/1.png"),
		},
		Comment:  strPtr("great views"),
		PhotoRef: strPtr("photo-1"),
	}
}

var (
	anonymous = authmodels.Anonymous{}
	client    = authmodels.Client{Validated: true}
	owner     = authmodels.User{ID: 1234, Authenticated: true}
	stranger  = authmodels.User{ID: 5678, Authenticated: true}
)

func TestIsReadAllowed(t *testing.T) {
	tests := []struct {
		name      string
		public    bool
		principal authmodels.Principal
		want      bool
	}{
		{"public readable by anonymous", true, anonymous, true},
		{"public readable by stranger", true, stranger, true},
		{"public readable by client", true, client, true},
		{"private readable by owner", false, owner, true},
		{"private readable by client", false, client, true},
		{"private hidden from stranger", false, stranger, false},
		{"private hidden from anonymous", false, anonymous, false},
		{"unvalidated client cannot read private", false, authmodels.Client{}, false},
		{"unauthenticated owner cannot read private", false, authmodels.User{ID: 1234}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, visibility.IsReadAllowed(sampleCheckin(tt.public), tt.principal))
		})
	}
}

func TestIsWriteAllowed(t *testing.T) {
	tests := []struct {
		name      string
		principal authmodels.Principal
		want      bool
	}{
		{"owner may write", owner, true},
		{"client may write", client, true},
		{"stranger may not write", stranger, false},
		{"anonymous may not write", anonymous, false},
		{"unvalidated client may not write", authmodels.Client{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Write permission ignores the public flag.
			assert.Equal(t, tt.want, visibility.IsWriteAllowed(sampleCheckin(true), tt.principal))
			assert.Equal(t, tt.want, visibility.IsWriteAllowed(sampleCheckin(false), tt.principal))
		})
	}
}

func TestRedactOwnerAndClientSeeEverything(t *testing.T) {
	for _, principal := range []authmodels.Principal{owner, client} {
		checkin := sampleCheckin(false)
		redacted := visibility.Redact(checkin, principal)

		assert.Equal(t, checkin, redacted)
		assert.NotSame(t, checkin, redacted)
	}
}

func TestRedactPublicForStranger(t *testing.T) {
	checkin := sampleCheckin(true)
	redacted := visibility.Redact(checkin, stranger)

	require.NotNil(t, redacted.Owner)
	assert.Equal(t, int64(1234), redacted.Owner.ID)
	assert.Equal(t, "Ola Nordmann", redacted.Owner.Name)
	assert.NotNil(t, redacted.Owner.AvatarURL)
	assert.Nil(t, redacted.Owner.Email)

	assert.NotNil(t, redacted.Location)
	assert.NotNil(t, redacted.Comment)
}

func TestRedactPrivateForStranger(t *testing.T) {
	for _, principal := range []authmodels.Principal{stranger, anonymous} {
		redacted := visibility.Redact(sampleCheckin(false), principal)

		assert.Nil(t, redacted.Owner)
		assert.Nil(t, redacted.Location)
		assert.Nil(t, redacted.Comment)
		assert.Nil(t, redacted.PhotoRef)

		// The husk keeps the identifying skeleton.
		assert.Equal(t, "c1", redacted.ID)
		assert.Equal(t, "place-1", redacted.PlaceID)
		assert.False(t, redacted.Public)
		assert.False(t, redacted.Timestamp.IsZero())
	}
}

func TestRedactDoesNotMutateInput(t *testing.T) {
	checkin := sampleCheckin(true)
	_ = visibility.Redact(checkin, stranger)

	require.NotNil(t, checkin.Owner)
	assert.NotNil(t, checkin.Owner.Email)
	assert.NotNil(t, checkin.Location)
}

func TestRedactIsIdempotent(t *testing.T) {
	for _, public := range []bool{true, false} {
		for _, principal := range []authmodels.Principal{anonymous, stranger, owner, client} {
			once := visibility.Redact(sampleCheckin(public), principal)
			twice := visibility.Redact(once, principal)
			assert.Equal(t, once, twice)
		}
	}
}
