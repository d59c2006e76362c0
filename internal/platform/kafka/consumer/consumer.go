// Package consumer reads the audit topic back into the audit table.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"trialgate/internal/platform/kafka"
)

const (
	minBackoff = 100 * time.Millisecond
	maxBackoff = 5 * time.Second
)

var errClosed = errors.New("kafka consumer is closed")

// Message is one fetched record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler stores a message. A returned error means "try again"; messages that
// can never succeed must be logged and acknowledged with nil.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

type Config struct {
	Brokers string
	GroupID string
	Topics  []string
	// AutoOffsetReset is "earliest" (the default) or "latest".
	AutoOffsetReset string
}

func (c Config) validate() error {
	switch {
	case len(kafka.SplitBrokers(c.Brokers)) == 0:
		return errors.New("kafka brokers not configured")
	case c.GroupID == "":
		return errors.New("kafka consumer group ID not configured")
	case len(c.Topics) == 0:
		return errors.New("kafka consumer topics not configured")
	}
	return nil
}

// Consumer commits a record only after its handler succeeded. A failing
// handler is retried with capped backoff, so a storage outage pauses
// consumption instead of skipping audit events.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool
}

func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	reset := kgo.NewOffset().AtStart()
	if cfg.AutoOffsetReset == "latest" {
		reset = kgo.NewOffset().AtEnd()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(kafka.SplitBrokers(cfg.Brokers)...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.ConsumeResetOffset(reset),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{client: client, handler: handler, logger: logger, ctx: ctx, cancel: cancel}, nil
}

func (c *Consumer) Start() {
	c.wg.Add(1)
	go c.run()
}

func (c *Consumer) run() {
	defer c.wg.Done()
	for {
		fetches := c.client.PollFetches(c.ctx)
		if c.ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("kafka fetch failed", "topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(r *kgo.Record) {
			if c.ctx.Err() != nil {
				return
			}
			if !c.handleWithRetry(toMessage(r)) {
				return
			}
			if err := c.client.CommitRecords(c.ctx, r); err != nil {
				c.logger.Error("kafka commit failed", "topic", r.Topic, "partition", r.Partition, "offset", r.Offset, "error", err)
			}
		})
	}
}

// handleWithRetry reports false only when the consumer is stopping.
func (c *Consumer) handleWithRetry(msg *Message) bool {
	for attempt := 0; ; attempt++ {
		err := c.handler.Handle(c.ctx, msg)
		if err == nil {
			return true
		}
		wait := backoff(attempt)
		c.logger.Warn("audit message not stored, retrying",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt+1,
			"retry_in", wait,
			"error", err,
		)
		select {
		case <-c.ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

// backoff doubles from minBackoff up to maxBackoff.
func backoff(attempt int) time.Duration {
	d := minBackoff
	for range attempt {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func toMessage(r *kgo.Record) *Message {
	headers := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Headers:   headers,
		Timestamp: r.Timestamp,
	}
}

// Stop cancels polling and waits for the in-flight record, up to ctx.
func (c *Consumer) Stop(ctx context.Context) error {
	if !c.stopped.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	defer c.client.Close()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) Health(ctx context.Context) error {
	if c.stopped.Load() {
		return errClosed
	}
	return c.client.Ping(ctx)
}
