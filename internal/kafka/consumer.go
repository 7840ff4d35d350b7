package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a simplified wrapper around Kafka records
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int32
	Offset    int64
	Timestamp time.Time
	Headers   map[string]string
}

// EventType returns the outbox event type carried in the record headers.
func (m *Message) EventType() string {
	return m.Headers[HeaderEventType]
}

// Handler processes a single message. Return error to trigger retry.
type Handler func(ctx context.Context, msg *Message) error

// DeadLetter receives messages whose handler kept failing.
type DeadLetter func(ctx context.Context, msg *Message, err error)

type Consumer struct {
	client *kgo.Client
	cfg    *Config
	topics []string
	group  string
	logger *zerolog.Logger
	dlq    DeadLetter
}

func NewConsumer(cfg *Config, logger *zerolog.Logger, group string, topics ...string) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.SessionTimeout(cfg.SessionTimeout),
		kgo.HeartbeatInterval(cfg.HeartbeatInterval),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Consumer{
		client: client,
		cfg:    cfg,
		topics: topics,
		group:  group,
		logger: logger,
	}, nil
}

// OnDeadLetter installs the sink for messages that exhausted their retries.
func (c *Consumer) OnDeadLetter(dlq DeadLetter) {
	c.dlq = dlq
}

// Run starts consuming messages and calls handler for each.
// Blocks until context is cancelled.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fetches := c.client.PollRecords(ctx, c.cfg.MaxPollRecords)
		if fetches.IsClientClosed() {
			return nil
		}
		for _, fe := range fetches.Errors() {
			if fe.Err == context.Canceled {
				continue
			}
			c.logger.Warn().Err(fe.Err).Str("topic", fe.Topic).Int32("partition", fe.Partition).Msg("fetch error")
		}

		fetches.EachRecord(func(record *kgo.Record) {
			msg := &Message{
				Topic:     record.Topic,
				Key:       record.Key,
				Value:     record.Value,
				Partition: record.Partition,
				Offset:    record.Offset,
				Timestamp: record.Timestamp,
				Headers:   headersToMap(record.Headers),
			}

			if err := c.processWithRetry(ctx, handler, msg); err != nil {
				c.logger.Error().Err(err).
					Str("topic", msg.Topic).
					Int64("offset", msg.Offset).
					Str("event_type", msg.EventType()).
					Msg("message processing failed after retries")
				if c.dlq != nil {
					c.dlq(ctx, msg, err)
				}
			}
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("failed to commit offsets")
		}
	}
}

func (c *Consumer) processWithRetry(ctx context.Context, handler Handler, msg *Message) error {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := handler(ctx, msg); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Consumer) Close() {
	c.client.Close()
}

func headersToMap(headers []kgo.RecordHeader) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Key] = string(h.Value)
	}
	return m
}
