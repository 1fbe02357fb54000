package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/backdrop/internal/config"
	"github.com/yokitheyo/backdrop/internal/domain"
	"github.com/yokitheyo/backdrop/internal/dto"
)

type sender interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key, value []byte) error
	Close() error
}

type Producer struct {
	client   sender
	topic    string
	strategy retry.Strategy
}

// NewProducer creates a composite-task producer on top of wbf kafka.
func NewProducer(cfg *config.KafkaConfig, strategy retry.Strategy) *Producer {
	client := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)
	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka producer initialized (wbf)")
	return &Producer{
		client:   client,
		topic:    cfg.Topic,
		strategy: strategy,
	}
}

// PublishCompositeTask keys the message by composite id so retries of one
// job land on the same partition.
func (p *Producer) PublishCompositeTask(ctx context.Context, compositeID string) error {
	data, err := json.Marshal(dto.CompositeTask{CompositeID: compositeID})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("composite_id", compositeID).Msg("Failed to marshal task")
		return fmt.Errorf("%w: marshal task: %w", domain.ErrQueueFailed, err)
	}
	if err := p.client.SendWithRetry(ctx, p.strategy, []byte(compositeID), data); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("composite_id", compositeID).
			Str("topic", p.topic).
			Msg("Failed to send Kafka message with retry")
		return fmt.Errorf("%w: %w", domain.ErrQueueFailed, err)
	}
	zlog.Logger.Info().
		Str("composite_id", compositeID).
		Str("topic", p.topic).
		Msg("Composite task published")
	return nil
}

func (p *Producer) Close() error {
	if err := p.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka producer")
		return err
	}
	zlog.Logger.Info().Msg("Kafka producer closed successfully")
	return nil
}

var _ domain.QueueService = (*Producer)(nil)
