// Package visibility decides what a principal may see of a check-in. All
// functions are pure: the check-in arrives with its owner already joined and
// the result is a fresh projection, never a mutation of the input.
package visibility

import (
	authmodels "trailmark/internal/auth/models"
	"trailmark/internal/checkin/models"
)

// IsReadAllowed reports whether the principal may see the full check-in.
// Public check-ins are readable by anyone; private ones only by the owner or
// a validated client.
func IsReadAllowed(checkin *models.Checkin, principal authmodels.Principal) bool {
	if checkin.Public {
		return true
	}
	return authmodels.IsValidatedClient(principal) || isOwner(checkin, principal)
}

// IsWriteAllowed reports whether the principal may update or delete the
// check-in. Only the owning authenticated user and validated clients may
// write; anonymous and non-owning users never can.
func IsWriteAllowed(checkin *models.Checkin, principal authmodels.Principal) bool {
	return authmodels.IsValidatedClient(principal) || isOwner(checkin, principal)
}

// Redact returns the projection of the check-in the principal is allowed to
// see. The owner and validated clients get the record unchanged. Anyone else
// gets the public projection (owner reduced to id, name and avatar) when the
// check-in is public, and otherwise a husk holding only id, timestamp, place
// and the public flag.
func Redact(checkin *models.Checkin, principal authmodels.Principal) *models.Checkin {
	out := checkin.Clone()
	if authmodels.IsValidatedClient(principal) || isOwner(checkin, principal) {
		return out
	}
	if checkin.Public {
		if out.Owner != nil {
			out.Owner.Email = nil
		}
		return out
	}
	out.Owner = nil
	out.Location = nil
	out.Comment = nil
	out.PhotoRef = nil
	return out
}

func isOwner(checkin *models.Checkin, principal authmodels.Principal) bool {
	user, ok := authmodels.AuthenticatedUser(principal)
	return ok && user.ID == checkin.OwnerID
}
