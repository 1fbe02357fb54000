package kafka

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/backdrop/internal/config"
	"github.com/yokitheyo/backdrop/internal/dto"
)

type MessageHandler func(ctx context.Context, task *dto.CompositeTask) error

type fetcher interface {
	FetchWithRetry(ctx context.Context, strategy retry.Strategy) (kafkago.Message, error)
	Commit(ctx context.Context, msg kafkago.Message) error
	Close() error
}

type Consumer struct {
	client   fetcher
	handler  MessageHandler
	topic    string
	strategy retry.Strategy
	backoff  time.Duration
}

func NewConsumer(cfg *config.KafkaConfig, strategy retry.Strategy, handler MessageHandler) *Consumer {
	client := wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)

	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("group_id", cfg.GroupID).
		Msg("Kafka consumer initialized (wbf)")

	return &Consumer{
		client:   client,
		handler:  handler,
		topic:    cfg.Topic,
		strategy: strategy,
		backoff:  time.Second,
	}
}

// Start blocks until ctx is done. Undecodable messages are committed and
// dropped; handler failures leave the message uncommitted.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("Kafka consumer stopped")
			return nil
		default:
		}

		msg, err := c.client.FetchWithRetry(ctx, c.strategy)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			zlog.Logger.Error().Err(err).Msg("Failed to fetch Kafka message")
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff):
			}
			continue
		}

		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) {
	var task dto.CompositeTask
	if err := json.Unmarshal(msg.Value, &task); err != nil || task.CompositeID == "" {
		zlog.Logger.Error().
			Err(err).
			Bytes("msg", msg.Value).
			Msg("Invalid composite task, dropping")
		c.commit(ctx, msg, "")
		return
	}

	zlog.Logger.Info().
		Str("composite_id", task.CompositeID).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("Received composite task")

	if err := c.handler(ctx, &task); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("composite_id", task.CompositeID).
			Msg("Task processing failed")
		return
	}

	c.commit(ctx, msg, task.CompositeID)
}

func (c *Consumer) commit(ctx context.Context, msg kafkago.Message, compositeID string) {
	if err := c.client.Commit(ctx, msg); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("composite_id", compositeID).
			Msg("Failed to commit message")
		return
	}
	zlog.Logger.Debug().
		Str("composite_id", compositeID).
		Int64("offset", msg.Offset).
		Msg("Message committed")
}

func (c *Consumer) Close() error {
	if err := c.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka consumer")
		return err
	}
	zlog.Logger.Info().Msg("Kafka consumer closed successfully")
	return nil
}
