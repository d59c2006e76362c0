//go:build integration

// Package containers starts the Postgres, Redis and Redpanda instances that
// integration tests share within one test binary.
package containers

import (
	"sync"
	"testing"
)

// Manager starts each container on first use and hands the same instance to
// every later caller in the package.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	kafka    *KafkaContainer
	redis    *RedisContainer
}

var (
	manager     *Manager
	managerOnce sync.Once
)

func GetManager() *Manager {
	managerOnce.Do(func() { manager = &Manager{} })
	return manager
}

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return lazy(m, &m.postgres, t, NewPostgresContainer)
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return lazy(m, &m.kafka, t, NewKafkaContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return lazy(m, &m.redis, t, NewRedisContainer)
}

func lazy[C any](m *Manager, slot **C, t *testing.T, start func(*testing.T) *C) *C {
	m.mu.Lock()
	defer m.mu.Unlock()
	if *slot == nil {
		*slot = start(t)
	}
	return *slot
}
