//go:build integration

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"trialgate/internal/platform/config"
	"trialgate/internal/platform/database"
	"trialgate/pkg/platform/audit"
	"trialgate/pkg/testutil/containers"
)

func TestAuditOutboxReachesKafkaAndAuditTable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)
	kafka := containers.GetManager().GetKafka(t)
	ctx := t.Context()
	require.NoError(t, pg.TruncateAudit(ctx))

	topic := "trialgate.audit.it-" + uuid.NewString()[:8]
	require.NoError(t, kafka.CreateTopic(ctx, topic))

	pool, err := database.New(ctx, database.Config{URL: pg.DSN, MaxOpenConns: 4, MaxIdleConns: 1, ConnMaxLifetime: time.Minute}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	cfg := config.Server{Kafka: config.Kafka{
		Brokers:       kafka.Brokers,
		AuditTopic:    topic,
		ConsumerGroup: "trialgate-it-" + uuid.NewString()[:8],
	}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := newAuditing(cfg, pool, prometheus.NewRegistry(), log)
	require.NoError(t, err)
	require.NotNil(t, a.worker)

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	a.start(gctx, g, log)
	t.Cleanup(func() {
		cancel()
		_ = g.Wait()
	})

	subject := "cred-" + uuid.NewString()
	require.NoError(t, a.publisher.Emit(ctx, audit.Event{
		Action:  string(audit.EventCredentialIssued),
		Subject: subject,
		Actor:   "issuer:st-mary",
		Outcome: "success",
	}))

	t.Run("outbox entry is published to the topic", func(t *testing.T) {
		rec, err := kafka.WaitForRecord(ctx, topic, 30*time.Second, func(r *kgo.Record) bool {
			return bytes.Contains(r.Value, []byte(subject))
		})
		require.NoError(t, err)
		require.NotNil(t, rec, "audit event never reached kafka")
		_, err = uuid.Parse(string(rec.Key))
		assert.NoError(t, err, "message key carries the outbox entry id")
	})

	t.Run("consumer lands the event in the audit table", func(t *testing.T) {
		require.Eventually(t, func() bool {
			events, err := a.reader.ListRecent(ctx, 10)
			if err != nil {
				return false
			}
			for _, e := range events {
				if e.Subject == subject {
					return e.Category == audit.CategoryCompliance && e.Actor == "issuer:st-mary"
				}
			}
			return false
		}, 30*time.Second, 200*time.Millisecond)
	})
}
