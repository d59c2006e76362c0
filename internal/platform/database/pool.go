// Package database opens the Postgres pool behind every durable store.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	pingTimeout         = 5 * time.Second
	codeUniqueViolation = "23505"
)

type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PoolMetrics mirrors sql.DBStats into Prometheus.
type PoolMetrics struct {
	open      prometheus.Gauge
	inUse     prometheus.Gauge
	idle      prometheus.Gauge
	waitCount prometheus.Counter
	waited    prometheus.Counter
}

func NewPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	f := promauto.With(reg)
	return &PoolMetrics{
		open: f.NewGauge(prometheus.GaugeOpts{
			Name: "trialgate_db_open_connections",
			Help: "Established connections, in use or idle",
		}),
		inUse: f.NewGauge(prometheus.GaugeOpts{
			Name: "trialgate_db_in_use_connections",
			Help: "Connections currently in use",
		}),
		idle: f.NewGauge(prometheus.GaugeOpts{
			Name: "trialgate_db_idle_connections",
			Help: "Idle connections",
		}),
		waitCount: f.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_db_wait_total",
			Help: "Connections waited for because the pool was exhausted",
		}),
		waited: f.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_db_wait_seconds_total",
			Help: "Time spent waiting for a connection",
		}),
	}
}

// Pool owns the *sql.DB shared by the Postgres stores and the tx runner.
type Pool struct {
	db      *sql.DB
	metrics *PoolMetrics
	last    sql.DBStats
}

// New connects and pings. An empty URL returns (nil, nil): the server then runs
// on in-memory stores. metrics may be nil.
func New(ctx context.Context, cfg Config, metrics *PoolMetrics) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck // init failed
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Pool{db: db, metrics: metrics}, nil
}

func (p *Pool) DB() *sql.DB {
	return p.db
}

// Health is registered as the "database" readiness check.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errors.New("database not configured")
	}
	return p.db.PingContext(ctx)
}

// Close is safe on a nil pool.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// RecordStats publishes pool statistics. Counters advance by the delta since
// the previous call; it is not safe for concurrent use.
func (p *Pool) RecordStats() {
	if p == nil || p.metrics == nil {
		return
	}
	stats := p.db.Stats()
	m := p.metrics
	m.open.Set(float64(stats.OpenConnections))
	m.inUse.Set(float64(stats.InUse))
	m.idle.Set(float64(stats.Idle))
	if d := stats.WaitCount - p.last.WaitCount; d > 0 {
		m.waitCount.Add(float64(d))
	}
	if d := stats.WaitDuration - p.last.WaitDuration; d > 0 {
		m.waited.Add(d.Seconds())
	}
	p.last = stats
}

// UniqueViolation reports whether err is a Postgres unique_violation and, if
// so, which constraint or unique index rejected the row.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsUniqueViolation is UniqueViolation without the constraint name.
func IsUniqueViolation(err error) bool {
	_, ok := UniqueViolation(err)
	return ok
}
