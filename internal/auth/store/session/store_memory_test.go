package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trailmark/pkg/platform/sentinel"
)

type MemoryCacheSuite struct {
	suite.Suite
	now   time.Time
	cache *InMemoryCache
}

func TestMemoryCacheSuite(t *testing.T) {
	suite.Run(t, new(MemoryCacheSuite))
}

func (s *MemoryCacheSuite) SetupTest() {
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.cache = NewInMemory(WithClock(func() time.Time { return s.now }))
}

func (s *MemoryCacheSuite) TestGetSetRoundTrip() {
	ctx := context.Background()

	err := s.cache.Set(ctx, Key(1234, "tok"), `{"id":1234}`, time.Hour)
	s.Require().NoError(err)

	value, err := s.cache.Get(ctx, Key(1234, "tok"))
	s.Require().NoError(err)
	s.Equal(`{"id":1234}`, value)
}

func (s *MemoryCacheSuite) TestMissReturnsNotFound() {
	_, err := s.cache.Get(context.Background(), Key(999, "absent"))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryCacheSuite) TestEntryExpiresAfterTTL() {
	ctx := context.Background()
	key := Key(1234, "tok")

	s.Require().NoError(s.cache.Set(ctx, key, "v", 86400*time.Second))

	s.now = s.now.Add(86399 * time.Second)
	_, err := s.cache.Get(ctx, key)
	s.NoError(err, "entry should still be live one second before expiry")

	s.now = s.now.Add(2 * time.Second)
	_, err = s.cache.Get(ctx, key)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryCacheSuite) TestTTLReportsRemainingLifetime() {
	ctx := context.Background()
	key := Key(1234, "tok")

	s.Require().NoError(s.cache.Set(ctx, key, "v", time.Hour))

	s.now = s.now.Add(15 * time.Minute)
	remaining, err := s.cache.TTL(ctx, key)
	s.Require().NoError(err)
	s.Equal(45*time.Minute, remaining)

	_, err = s.cache.TTL(ctx, Key(1, "other"))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryCacheSuite) TestLastWriteWins() {
	ctx := context.Background()
	key := Key(1234, "tok")

	s.Require().NoError(s.cache.Set(ctx, key, "first", time.Hour))
	s.Require().NoError(s.cache.Set(ctx, key, "second", 2*time.Hour))

	value, err := s.cache.Get(ctx, key)
	s.Require().NoError(err)
	s.Equal("second", value)

	remaining, err := s.cache.TTL(ctx, key)
	s.Require().NoError(err)
	s.Equal(2*time.Hour, remaining)
}

func (s *MemoryCacheSuite) TestKeyFormat() {
	s.Equal("user:1234:abc", Key(1234, "abc"))
}
