package lease

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type RedisStoreTestSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  *RedisStore
}

func (s *RedisStoreTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr

	s.client = redis.NewClient(&redis.Options{
		Addr: s.mr.Addr(),
	})
	s.store = NewRedisStore(s.client)
}

func (s *RedisStoreTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestRedisStoreTestSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreTestSuite))
}

func (s *RedisStoreTestSuite) TestAcquireIsExclusive() {
	ctx := context.Background()

	token, ok, err := s.store.Acquire(ctx, "game1", 30*time.Second)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.NotEmpty(token)

	_, ok, err = s.store.Acquire(ctx, "game1", 30*time.Second)
	s.Require().NoError(err)
	s.False(ok)

	s.True(s.mr.Exists(redisKeyPrefix + "game1"))
	s.Equal(30*time.Second, s.mr.TTL(redisKeyPrefix+"game1"))
}

func (s *RedisStoreTestSuite) TestLeaseExpires() {
	ctx := context.Background()

	_, ok, err := s.store.Acquire(ctx, "game1", 30*time.Second)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.mr.FastForward(31 * time.Second)

	_, ok, err = s.store.Acquire(ctx, "game1", 30*time.Second)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *RedisStoreTestSuite) TestReleaseOnlyWithOwnToken() {
	ctx := context.Background()

	token, ok, err := s.store.Acquire(ctx, "game1", 30*time.Second)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Require().NoError(s.store.Release(ctx, "game1", "stale-token"))
	s.True(s.mr.Exists(redisKeyPrefix + "game1"))

	s.Require().NoError(s.store.Release(ctx, "game1", token))
	s.False(s.mr.Exists(redisKeyPrefix + "game1"))
}

func (s *RedisStoreTestSuite) TestAcquireErrorWhenServerDown() {
	s.mr.Close()

	_, ok, err := s.store.Acquire(context.Background(), "game1", time.Second)
	s.Error(err)
	s.False(ok)
}
