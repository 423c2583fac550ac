// Package identity talks to the external identity provider that owns user
// accounts. The service never sees passwords; it only exchanges a bearer
// token for the profile the provider associates with it.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrTokenRejected is returned when the provider answers with a non-200
// status, i.e. the token is invalid, expired or revoked. Callers translate it
// into an authentication failure; every other error is an upstream failure.
var ErrTokenRejected = errors.New("identity provider rejected token")

// Profile is the provider's record for a verified token.
type Profile struct {
	ID         int64   `json:"id"`
	GivenName  string  `json:"givenName"`
	FamilyName string  `json:"familyName"`
	Email      *string `json:"email,omitempty"`
	AvatarURL  *string `json:"avatarUrl,omitempty"`
}

// FullName joins the provider's name parts the way profiles display them.
func (p Profile) FullName() string {
	return p.GivenName + " " + p.FamilyName
}

// Config for the identity provider client. BaseURL is overridable so tests
// can point the client at an httptest server.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client fetches member profiles from the identity provider.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates an identity provider client with a bounded timeout.
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

// GetProfile exchanges a bearer token for the profile it belongs to.
func (c *Client) GetProfile(ctx context.Context, token string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/profile", nil)
	if err != nil {
		return nil, fmt.Errorf("create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrTokenRejected, resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile response: %w", err)
	}
	if profile.ID == 0 {
		return nil, fmt.Errorf("profile response missing id")
	}

	return &profile, nil
}
