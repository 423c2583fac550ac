package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProfile(t *testing.T) {
	t.Run("returns profile for valid token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/profile", r.URL.Path)
			assert.Equal(t, "Bearer valid-token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":1234,"givenName":"Ola","familyName":"Nordmann","email":"ola@example.com"}`))
		}))
		defer srv.Close()

		client := NewClient(Config{BaseURL: srv.URL})
		profile, err := client.GetProfile(context.Background(), "valid-token")

		require.NoError(t, err)
		assert.Equal(t, int64(1234), profile.ID)
		assert.Equal(t, "Ola Nordmann", profile.FullName())
		require.NotNil(t, profile.Email)
		assert.Equal(t, "ola@example.com", *profile.Email)
		assert.Nil(t, profile.AvatarURL)
	})

	t.Run("non-200 maps to ErrTokenRejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		client := NewClient(Config{BaseURL: srv.URL})
		_, err := client.GetProfile(context.Background(), "bad-token")

		assert.ErrorIs(t, err, ErrTokenRejected)
	})

	t.Run("unreachable provider is not a rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // connection refused from here on

		client := NewClient(Config{BaseURL: srv.URL})
		_, err := client.GetProfile(context.Background(), "any")

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrTokenRejected)
	})

	t.Run("profile without id is rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"givenName":"Ola","familyName":"Nordmann"}`))
		}))
		defer srv.Close()

		client := NewClient(Config{BaseURL: srv.URL})
		_, err := client.GetProfile(context.Background(), "valid-token")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing id")
	})
}
