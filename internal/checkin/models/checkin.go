// Package models defines the check-in record and its redaction-ready
// projection. A check-in read from a store arrives with the owner profile
// already joined; nothing downstream performs further I/O to render it.
package models

import "time"

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Owner is the profile projection attached to a check-in on read.
// Email is stripped for non-owners before serialization.
type Owner struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Email     *string `json:"email,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// Checkin is a member's record of visiting a place. OwnerID is the canonical
// ownership field and never serializes; Owner is the joined profile and is
// what redaction operates on.
type Checkin struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Location  *Coordinates `json:"location"`
	Public    bool         `json:"public"`
	PlaceID   string       `json:"placeId"`
	OwnerID   int64        `json:"-"`
	Owner     *Owner       `json:"owner"`
	Comment   *string      `json:"comment,omitempty"`
	PhotoRef  *string      `json:"photoRef,omitempty"`
}

// Clone returns a deep copy so redaction never mutates stored state.
func (c *Checkin) Clone() *Checkin {
	clone := *c
	if c.Location != nil {
		loc := *c.Location
		clone.Location = &loc
	}
	if c.Owner != nil {
		owner := *c.Owner
		clone.Owner = &owner
	}
	return &clone
}

// Draft carries the caller-supplied fields of a new check-in before
// validation. Timestamp defaults to the request time when absent.
type Draft struct {
	Timestamp time.Time
	Location  Coordinates
	Public    bool
	PlaceID   string
	OwnerID   int64
	Comment   *string
	PhotoRef  *string
}

// Update carries the guestbook fields a PUT may change. Location, timestamp,
// place and owner are immutable after creation.
type Update struct {
	Public   *bool
	Comment  *string
	PhotoRef *string
}

// Stats aggregates the check-ins at one place or across a list.
type Stats struct {
	Total         int `json:"total"`
	Public        int `json:"public"`
	Private       int `json:"private"`
	DistinctUsers int `json:"distinctUsers"`
}

// UserRollup is the per-user aggregate exposed to validated clients.
type UserRollup struct {
	UserID   int64     `json:"userId"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"lastSeen"`
}
