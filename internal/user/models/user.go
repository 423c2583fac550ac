// Package models defines the locally persisted member profile. The identity
// provider owns the account; this record is a cached projection plus the
// state the check-in service adds on top (list membership, check-in refs).
package models

import "time"

// User is the persisted profile for a member, keyed by the identity
// provider's numeric id. Created lazily on first successful authentication
// and refreshed from the provider on every subsequent one.
type User struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Email     *string `json:"email,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`

	// JoinedLists holds the registry ids of lists the member signed up for.
	JoinedLists []string `json:"joinedLists"`

	// CheckinRefs holds check-in ids in creation order.
	CheckinRefs []string `json:"checkinRefs"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// HasJoined reports whether the user signed up for the given list.
func (u *User) HasJoined(listID string) bool {
	for _, id := range u.JoinedLists {
		if id == listID {
			return true
		}
	}
	return false
}

// PublicView strips fields a non-owner must not see.
type PublicView struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// Public returns the projection of the user safe to show to anyone.
func (u *User) Public() PublicView {
	return PublicView{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL}
}
