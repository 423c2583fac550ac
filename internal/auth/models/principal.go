// Package models defines the principal attached to every request after
// authentication. Exactly one variant is active per request; consumers branch
// with a type switch so new variants cannot be silently ignored.
package models

import "context"

// Principal is the authenticated identity (or lack thereof) associated with a
// request. The three variants are Anonymous, Client and User.
type Principal interface {
	principal()
}

// Anonymous is attached when no credentials were presented. It is never an
// error by itself; endpoints that require credentials reject it explicitly.
type Anonymous struct{}

func (Anonymous) principal() {}

// Client is a trusted backend service identified by a static shared token.
type Client struct {
	// Validated is true only when the presented token matched the allow-list.
	// The resolver never attaches an unvalidated client, but consumers must
	// still check the flag rather than trust the variant alone.
	Validated bool
}

func (Client) principal() {}

// User is an end-user verified against the identity provider (directly or via
// the session cache).
type User struct {
	ID            int64   `json:"id"`
	Profile       Profile `json:"profile"`
	Authenticated bool    `json:"authenticated"`
}

func (User) principal() {}

// Profile carries the subset of the identity provider's record the service
// keeps for display.
type Profile struct {
	Name      string  `json:"name"`
	Email     *string `json:"email,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// IsValidatedClient reports whether p is a client principal that passed
// allow-list validation.
func IsValidatedClient(p Principal) bool {
	c, ok := p.(Client)
	return ok && c.Validated
}

// AuthenticatedUser returns the user variant when p is an authenticated user.
func AuthenticatedUser(p Principal) (User, bool) {
	u, ok := p.(User)
	if !ok || !u.Authenticated {
		return User{}, false
	}
	return u, true
}

type principalKey struct{}

// ContextKeyPrincipal is exported for tests that need context.WithValue.
var ContextKeyPrincipal = principalKey{}

// WithPrincipal injects a principal into the context. Middleware sets it;
// services read it through FromContext.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// FromContext retrieves the request principal. Defaults to Anonymous so
// service code never has to handle a missing value.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(ContextKeyPrincipal).(Principal); ok {
		return p
	}
	return Anonymous{}
}
