// Package places talks to the external registry that owns place and list
// metadata. The service stores only registry ids; coordinates and list
// membership are fetched on demand.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"trailmark/pkg/platform/sentinel"
)

// Place is a registry entry. Coordinates are [lon, lat] as served by the
// registry; MemberPlaceIDs is populated for list entries only.
type Place struct {
	ID             string    `json:"id"`
	Coordinates    []float64 `json:"coordinates"`
	MemberPlaceIDs []string  `json:"memberPlaceIds,omitempty"`
}

// Config for the place registry client. BaseURL is overridable so tests can
// point the client at an httptest server.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client fetches place and list metadata from the registry.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a place registry client with a bounded timeout.
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

// GetPlace fetches a single place by registry id.
func (c *Client) GetPlace(ctx context.Context, id string) (*Place, error) {
	return c.get(ctx, "/places/"+id)
}

// GetList fetches a list by registry id, including its member place ids.
func (c *Client) GetList(ctx context.Context, id string) (*Place, error) {
	return c.get(ctx, "/lists/"+id)
}

func (c *Client) get(ctx context.Context, path string) (*Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create registry request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.config.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("registry object %s: %w", path, sentinel.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("registry returned status %d for %s: %w", resp.StatusCode, path, sentinel.ErrUnavailable)
	}

	var place Place
	if err := json.NewDecoder(resp.Body).Decode(&place); err != nil {
		return nil, fmt.Errorf("decode registry response: %w", err)
	}

	return &place, nil
}
