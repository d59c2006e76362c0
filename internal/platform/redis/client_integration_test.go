//go:build integration

package redis_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialgate/internal/platform/config"
	"trialgate/internal/platform/redis"
	"trialgate/pkg/testutil/containers"
)

func TestClientFromURL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	reg := prometheus.NewRegistry()

	client, err := redis.New(t.Context(), config.RedisConfig{URL: rc.URL, PoolSize: 4, MinIdleConns: 1}, redis.NewPoolMetrics(reg))
	require.NoError(t, err)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Health(t.Context()))
	require.NoError(t, client.Set(t.Context(), "trialgate:it", "1", 0).Err())

	client.RecordPoolStats()
	n, err := testutil.GatherAndCount(reg, "trialgate_redis_pool_total_conns")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewWithoutURL(t *testing.T) {
	client, err := redis.New(t.Context(), config.RedisConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, client)
}
