package audit_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheckart/rescue-ranger/pkg/audit"
)

// Requires a running redis; set AUDIT_TEST_REDIS_URL to enable.
func redisStorage(t *testing.T) *audit.RedisStorage {
	t.Helper()
	url := os.Getenv("AUDIT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("AUDIT_TEST_REDIS_URL not set")
	}
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	return audit.NewRedisStorage(client)
}

func TestRedisStorageRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := redisStorage(t)

	tid := uuid.New()
	base := time.Now().UTC().Truncate(time.Second)

	var events []audit.Event
	for i := range 5 {
		e := accessEvent(tid)
		e.UserID = "user-rt"
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		events = append(events, e)
	}
	require.NoError(t, storage.StoreBatch(ctx, events))

	t.Run("recent by tenant newest first", func(t *testing.T) {
		got, err := storage.RecentByTenant(ctx, tid, 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, events[4].ID, got[0].ID)
		assert.True(t, got[0].Timestamp.After(got[2].Timestamp))
	})

	t.Run("recent by user", func(t *testing.T) {
		got, err := storage.RecentByUser(ctx, "user-rt", 50)
		require.NoError(t, err)
		require.NotEmpty(t, got)
	})
}

func TestRedisStorageSecurityFeed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := redisStorage(t)

	e := accessEvent(uuid.New())
	e.Type = audit.TypeCrossTenantAttempt
	e.Action = "horses.update"
	require.NoError(t, storage.StoreBatch(ctx, []audit.Event{e}))

	feed, err := storage.SecurityFeed(ctx, 50)
	require.NoError(t, err)
	require.NotEmpty(t, feed)
	assert.Equal(t, audit.TypeCrossTenantAttempt, feed[0].Type)
}
