//go:build integration

package containers

import (
	"context"
	"testing"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer backs the cross-replica proof locker in tests.
type RedisContainer struct {
	Container *tcredis.RedisContainer
	// Addr is host:port for redis.Options.Addr.
	Addr string
	// URL is a redis:// URL accepted by config.RedisConfig.
	URL string
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("redis endpoint: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("redis connection string: %v", err)
	}
	return &RedisContainer{Container: container, Addr: addr, URL: url}
}
