package consumer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type nopHandler struct{}

func (nopHandler) Handle(context.Context, *Message) error { return nil }

func TestConfigValidation(t *testing.T) {
	valid := Config{Brokers: "localhost:9092", GroupID: "trialgate-audit", Topics: []string{"audit"}}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"blank brokers", func(c *Config) { c.Brokers = " , " }, "brokers not configured"},
		{"no group", func(c *Config) { c.GroupID = "" }, "group ID not configured"},
		{"no topics", func(c *Config) { c.Topics = nil }, "topics not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, backoff(0))
	assert.Equal(t, 200*time.Millisecond, backoff(1))
	assert.Equal(t, 3200*time.Millisecond, backoff(5))
	assert.Equal(t, maxBackoff, backoff(6))
	assert.Equal(t, maxBackoff, backoff(100))
}

func TestToMessageCopiesHeaders(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := toMessage(&kgo.Record{
		Topic:     "audit",
		Partition: 2,
		Offset:    41,
		Key:       []byte("id"),
		Value:     []byte(`{}`),
		Headers:   []kgo.RecordHeader{{Key: "action", Value: []byte("proof_submitted")}},
		Timestamp: at,
	})
	assert.Equal(t, "proof_submitted", msg.Headers["action"])
	assert.Equal(t, int64(41), msg.Offset)
	assert.Equal(t, at, msg.Timestamp)
}

func TestStopIsIdempotent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := New(Config{Brokers: "127.0.0.1:1", GroupID: "g", Topics: []string{"audit"}}, nopHandler{}, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.Stop(ctx))
	assert.ErrorIs(t, c.Health(ctx), errClosed)
}
