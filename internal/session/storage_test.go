package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStorage(t *testing.T, ttl time.Duration) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStorage(client, ttl), mr
}

func TestRedisStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage, mr := newRedisStorage(t, time.Hour)

	_, err := storage.Load(ctx, "tab-9")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, storage.Save(ctx, "tab-9", Record{Token: "tok", Email: "jane@example.com", Role: RoleClient}))

	rec, err := storage.Load(ctx, "tab-9")
	require.NoError(t, err)
	assert.Equal(t, Record{Token: "tok", Email: "jane@example.com", Role: RoleClient}, rec)
	assert.Equal(t, time.Hour, mr.TTL("reserv:session:tab-9"))

	require.NoError(t, storage.Delete(ctx, "tab-9"))
	assert.False(t, mr.Exists("reserv:session:tab-9"))
}

func TestRedisStorageExpires(t *testing.T) {
	ctx := context.Background()
	storage, mr := newRedisStorage(t, time.Minute)
	require.NoError(t, storage.Save(ctx, "tab-1", Record{Token: "tok"}))

	mr.FastForward(2 * time.Minute)

	_, err := storage.Load(ctx, "tab-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreOverRedisSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	storage, _ := newRedisStorage(t, time.Hour)

	first, err := Open(ctx, storage, "tab-1", nil)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "tok", Profile{Email: "p@example.com", Role: RoleProvider}))

	reopened, err := Open(ctx, storage, "tab-1", nil)
	require.NoError(t, err)
	assert.True(t, reopened.IsLoggedIn())
	assert.Equal(t, RoleProvider, reopened.Role())
}

func TestRedisStorageLoadError(t *testing.T) {
	storage, mr := newRedisStorage(t, time.Hour)
	mr.Close()

	_, err := storage.Load(context.Background(), "tab-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
