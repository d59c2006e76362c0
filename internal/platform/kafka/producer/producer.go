// Package producer publishes audit records to Kafka for the outbox worker.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"trialgate/internal/platform/kafka"
)

const (
	defaultClientID = "trialgate"
	closeTimeout    = 30 * time.Second
)

var errClosed = errors.New("kafka producer is closed")

// Message is one record bound for topic.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

type Config struct {
	// Brokers is a comma-separated seed list.
	Brokers  string
	ClientID string
	// Acks is "0", "1" or "all" (the default).
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

// Producer publishes synchronously: Produce returns once the broker acked.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
	closed atomic.Bool
}

func New(cfg Config, logger *slog.Logger) (*Producer, error) {
	brokers := kafka.SplitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = defaultClientID
	}

	acks, idempotent := ackPolicy(cfg.Acks)
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.RequiredAcks(acks),
		kgo.RecordRetries(cfg.Retries),
		kgo.ProducerBatchCompression(kgo.SnappyCompression(), kgo.NoCompression()),
		kgo.ProducerLinger(5 * time.Millisecond),
		kgo.AllowAutoTopicCreation(),
	}
	// franz-go refuses idempotent writes without acks from all in-sync replicas.
	if !idempotent {
		opts = append(opts, kgo.DisableIdempotentWrite())
	}
	if cfg.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client, logger: logger}, nil
}

func ackPolicy(acks string) (policy kgo.Acks, idempotent bool) {
	switch acks {
	case "0":
		return kgo.NoAck(), false
	case "1":
		return kgo.LeaderAck(), false
	default:
		return kgo.AllISRAcks(), true
	}
}

func (p *Producer) Produce(ctx context.Context, msg *Message) error {
	if p.closed.Load() {
		return errClosed
	}
	record := &kgo.Record{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: recordHeaders(msg.Headers),
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", msg.Topic, err)
	}
	return nil
}

// recordHeaders orders headers by key so identical messages encode identically.
func recordHeaders(h map[string]string) []kgo.RecordHeader {
	if len(h) == 0 {
		return nil
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	headers := make([]kgo.RecordHeader, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(h[k])})
	}
	return headers
}

// Close flushes buffered records and releases the client. Repeated calls are no-ops.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil && p.logger != nil {
		p.logger.Warn("kafka producer closed with unflushed records", "error", err)
	}
	p.client.Close()
	return nil
}

// Health is registered as the "kafka_producer" readiness check.
func (p *Producer) Health(ctx context.Context) error {
	if p.closed.Load() {
		return errClosed
	}
	return p.client.Ping(ctx)
}
