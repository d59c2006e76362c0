//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialgate/pkg/testutil/containers"
)

func TestRedisLocker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	client := redis.NewClient(&redis.Options{Addr: rc.Addr})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedis(client, WithTTL(5*time.Second), WithRetryInterval(5*time.Millisecond))
	ctx := context.Background()

	release, err := l.Lock(ctx, "cred-1")
	require.NoError(t, err)

	t.Run("second holder waits until release", func(t *testing.T) {
		waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err := l.Lock(waitCtx, "cred-1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("other keys are independent", func(t *testing.T) {
		other, err := l.Lock(ctx, "cred-2")
		require.NoError(t, err)
		other()
	})

	release()

	t.Run("released lock can be reacquired", func(t *testing.T) {
		again, err := l.Lock(ctx, "cred-1")
		require.NoError(t, err)
		again()
	})

	t.Run("release does not delete a lock taken over by another token", func(t *testing.T) {
		short := NewRedis(client, WithTTL(20*time.Millisecond))
		stale, err := short.Lock(ctx, "cred-3")
		require.NoError(t, err)
		time.Sleep(40 * time.Millisecond)

		fresh, err := l.Lock(ctx, "cred-3")
		require.NoError(t, err)
		stale()

		exists, err := client.Exists(ctx, keyPrefix+"cred-3").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)
		fresh()
	})
}
