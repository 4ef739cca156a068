// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. Plan events are published as JSON and consumed through
// a MessageHandler callback.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/config"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// messageReader is the part of *kafka.Reader the consume loop uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerStats counts what the consume loop has done since it started.
type ConsumerStats struct {
	Processed   int64 `json:"processed"`
	Failed      int64 `json:"failed"`
	FetchErrors int64 `json:"fetch_errors"`
}

// Consumer hands each message on a topic to a MessageHandler. A message the
// handler rejects is still committed: plan events are statistics, and one
// undecodable record must not stall the group.
type Consumer struct {
	reader       messageReader
	handler      MessageHandler
	logger       *slog.Logger
	fetchBackoff time.Duration

	processed   atomic.Int64
	failed      atomic.Int64
	fetchErrors atomic.Int64
}

// NewConsumer creates a Consumer in cfg.ConsumerGroup for topic.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       1e6,
		MaxWait:        time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})
	return newConsumer(r, topic, handler)
}

func newConsumer(r messageReader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:       r,
		handler:      handler,
		logger:       slog.Default().With("component", "plan-event-consumer", "topic", topic),
		fetchBackoff: time.Second,
	}
}

// Start runs the consume loop until ctx ends, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("closing reader", "error", err)
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s := c.Stats()
				c.logger.Info("consumer stopping", "processed", s.Processed, "failed", s.Failed)
				return nil
			}
			c.fetchErrors.Add(1)
			c.logger.Error("fetch failed", "error", err, "retry_in", c.fetchBackoff)
			select {
			case <-time.After(c.fetchBackoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.failed.Add(1)
			c.logger.Warn("dropping unprocessable message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		} else {
			c.processed.Add(1)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

// Stats returns the loop counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Processed:   c.processed.Load(),
		Failed:      c.failed.Load(),
		FetchErrors: c.fetchErrors.Load(),
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
